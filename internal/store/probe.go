package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ProbeKind distinguishes which negative-result kind a probe entry tracks,
// since two-hit admission is independently switchable per kind
// (cache_nxdomain/cache_nodata) even though it shares one ledger.
type ProbeKind string

const (
	ProbeKindNXDOMAIN ProbeKind = "nxdomain"
	ProbeKindNODATA   ProbeKind = "nodata"
)

// ProbeEntry records that a negative result has been observed once for a
// query key and is waiting on a second observation before the result is
// admitted to the negative cache.
type ProbeEntry struct {
	QueryKey       string
	Kind           ProbeKind
	FirstSeenAt    time.Time
	ProbeExpiresAt time.Time
}

// RecordProbe inserts a new probe entry for a first-observed negative
// result, or returns the existing entry if one is already live for this
// key and kind (idempotent on the admission path's first-hit branch).
func (s *Store) RecordProbe(key string, kind ProbeKind, now time.Time, probeTTL time.Duration) (*ProbeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.lookupProbe(key, kind)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ProbeExpiresAt.After(now) {
		return existing, nil
	}

	entry := &ProbeEntry{
		QueryKey:       key,
		Kind:           kind,
		FirstSeenAt:    now,
		ProbeExpiresAt: now.Add(probeTTL),
	}

	_, err = s.conn.Exec(`
		INSERT INTO probe_entries (query_key, kind, first_seen_at, probe_expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(query_key, kind) DO UPDATE SET
			first_seen_at = excluded.first_seen_at,
			probe_expires_at = excluded.probe_expires_at
	`, entry.QueryKey, string(entry.Kind), entry.FirstSeenAt, entry.ProbeExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record probe entry: %w", err)
	}

	return entry, nil
}

// Lookup returns the live probe entry for a key/kind, or nil if none exists
// or it has expired.
func (s *Store) Lookup(key string, kind ProbeKind, now time.Time) (*ProbeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, err := s.lookupProbe(key, kind)
	if err != nil {
		return nil, err
	}
	if entry == nil || !entry.ProbeExpiresAt.After(now) {
		return nil, nil
	}
	return entry, nil
}

func (s *Store) lookupProbe(key string, kind ProbeKind) (*ProbeEntry, error) {
	row := s.conn.QueryRow(`
		SELECT query_key, kind, first_seen_at, probe_expires_at
		FROM probe_entries
		WHERE query_key = ? AND kind = ?
	`, key, string(kind))

	var entry ProbeEntry
	var kindStr string
	err := row.Scan(&entry.QueryKey, &kindStr, &entry.FirstSeenAt, &entry.ProbeExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up probe entry: %w", err)
	}
	entry.Kind = ProbeKind(kindStr)
	return &entry, nil
}

// Admit removes the probe entry for a key/kind, marking it as having been
// promoted to a full negative cache entry (or simply no longer relevant).
func (s *Store) Admit(key string, kind ProbeKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.conn.Exec(`DELETE FROM probe_entries WHERE query_key = ? AND kind = ?`, key, string(kind)); err != nil {
		return fmt.Errorf("failed to admit probe entry: %w", err)
	}
	return nil
}

// PruneExpired deletes probe entries whose window has closed, bounding the
// ledger's size independent of eviction happening via the cache.
func (s *Store) PruneExpired(now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.conn.Exec(`DELETE FROM probe_entries WHERE probe_expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to prune expired probe entries: %w", err)
	}
	return res.RowsAffected()
}
