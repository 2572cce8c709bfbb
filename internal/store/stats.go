package store

import (
	"fmt"
	"time"
)

// StatsSnapshot is a point-in-time capture of resolver counters, persisted
// periodically so the admin surface can report activity across restarts
// and so operators can eyeball a trend without a separate metrics backend.
type StatsSnapshot struct {
	TakenAt           time.Time
	QueriesTotal      int64
	AnswerCacheHits   int64
	AnswerCacheMisses int64
	NegativeCacheHits int64
	NXDOMAINTotal     int64
	ServfailTotal     int64
	AnswerCacheSize   int64
	NegativeCacheSize int64
}

// InsertSnapshot persists one statistics snapshot.
func (s *Store) InsertSnapshot(snap StatsSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		INSERT INTO stats_snapshots (
			taken_at, queries_total, answer_cache_hits, answer_cache_misses,
			negative_cache_hits, nxdomain_total, servfail_total,
			answer_cache_size, negative_cache_size
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		snap.TakenAt, snap.QueriesTotal, snap.AnswerCacheHits, snap.AnswerCacheMisses,
		snap.NegativeCacheHits, snap.NXDOMAINTotal, snap.ServfailTotal,
		snap.AnswerCacheSize, snap.NegativeCacheSize,
	)
	if err != nil {
		return fmt.Errorf("failed to insert stats snapshot: %w", err)
	}
	return nil
}

// RecentSnapshots returns up to limit most recent snapshots, newest first.
func (s *Store) RecentSnapshots(limit int) ([]StatsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.Query(`
		SELECT taken_at, queries_total, answer_cache_hits, answer_cache_misses,
		       negative_cache_hits, nxdomain_total, servfail_total,
		       answer_cache_size, negative_cache_size
		FROM stats_snapshots
		ORDER BY taken_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []StatsSnapshot
	for rows.Next() {
		var snap StatsSnapshot
		if err := rows.Scan(
			&snap.TakenAt, &snap.QueriesTotal, &snap.AnswerCacheHits, &snap.AnswerCacheMisses,
			&snap.NegativeCacheHits, &snap.NXDOMAINTotal, &snap.ServfailTotal,
			&snap.AnswerCacheSize, &snap.NegativeCacheSize,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stats snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stats snapshots: %w", err)
	}

	return snapshots, nil
}

// LatestSnapshot returns the most recent snapshot, or nil if none exists.
func (s *Store) LatestSnapshot() (*StatsSnapshot, error) {
	snaps, err := s.RecentSnapshots(1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}
