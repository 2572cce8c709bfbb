package resolvers

import (
	"sync"
	"time"

	"github.com/hydraresolve/hydraresolve/internal/store"
)

// NegativeAdmissionConfig controls whether and how negative results
// (NXDOMAIN, NODATA) are admitted into the response cache.
type NegativeAdmissionConfig struct {
	Enabled       bool // Master switch for negative caching
	CacheNXDOMAIN bool // Cache NXDOMAIN results
	CacheNODATA   bool // Cache NODATA results
	TwoHit        bool // Require two observations before caching (mitigates single-query cache poisoning via forged negatives)
	ProbeTTL      time.Duration
	MinTTL        time.Duration
	MaxTTL        time.Duration
}

// probeState is the in-memory record of a first-observed negative result
// awaiting a second hit before admission.
type probeState struct {
	expiresAt time.Time
}

// NegativeAdmission implements the two-hit negative-admission state
// machine: a negative result (NXDOMAIN/NODATA) for a given query is only
// admitted into the cache once it has been observed twice within the
// probe window. This keeps a single forged or transient negative response
// from poisoning the cache, at the cost of one extra upstream round trip
// the first time a name is (genuinely or maliciously) absent.
//
// The in-memory map is authoritative for the hot admission decision, kept
// as a plain mutex-guarded map since probe volume is bounded by query
// diversity rather than total query rate. An optional backing store
// durably records the same state so a restart mid-probe-window doesn't
// hand an attacker a free retry of their two-hit budget; store writes are
// fire-and-forget and never block the admission decision.
type NegativeAdmission struct {
	cfg   NegativeAdmissionConfig
	store *store.Store

	mu     sync.Mutex
	probes map[string]probeState
}

// NewNegativeAdmission creates a negative-admission gate. backing may be
// nil, in which case admission state is purely in-memory and does not
// survive a restart.
func NewNegativeAdmission(cfg NegativeAdmissionConfig, backing *store.Store) *NegativeAdmission {
	if cfg.ProbeTTL <= 0 {
		cfg.ProbeTTL = 10 * time.Second
	}
	return &NegativeAdmission{
		cfg:    cfg,
		store:  backing,
		probes: make(map[string]probeState),
	}
}

// Allowed reports whether entryType is eligible for caching at all under
// this configuration (independent of the two-hit state machine). A nil
// receiver imposes no additional restriction, deferring entirely to the
// cache's own negative-caching switch.
func (n *NegativeAdmission) Allowed(entryType CacheEntryType) bool {
	if n == nil {
		return true
	}
	if !n.cfg.Enabled {
		return entryType != CacheNXDOMAIN && entryType != CacheNODATA
	}
	switch entryType {
	case CacheNXDOMAIN:
		return n.cfg.CacheNXDOMAIN
	case CacheNODATA:
		return n.cfg.CacheNODATA
	default:
		return true
	}
}

// Admit decides whether a negative result for key/kind should be cached
// now. When two-hit admission is disabled, every allowed negative result
// is admitted immediately. When enabled, the first observation is
// recorded as a probe and not cached; a second observation within the
// probe window admits it and clears the probe.
func (n *NegativeAdmission) Admit(key string, kind store.ProbeKind) bool {
	if n == nil || !n.cfg.TwoHit {
		return true
	}

	now := time.Now()

	n.mu.Lock()
	p, exists := n.probes[key+"/"+string(kind)]
	if exists && p.expiresAt.After(now) {
		delete(n.probes, key+"/"+string(kind))
		n.mu.Unlock()
		n.persistAdmit(key, kind)
		return true
	}

	n.probes[key+"/"+string(kind)] = probeState{expiresAt: now.Add(n.cfg.ProbeTTL)}
	n.mu.Unlock()

	n.persistProbe(key, kind, now)
	return false
}

// ClampTTL applies the configured min/max TTL bounds for negative entries.
func (n *NegativeAdmission) ClampTTL(ttl time.Duration) time.Duration {
	if n == nil {
		return ttl
	}
	if n.cfg.MinTTL > 0 && ttl < n.cfg.MinTTL {
		ttl = n.cfg.MinTTL
	}
	if n.cfg.MaxTTL > 0 && ttl > n.cfg.MaxTTL {
		ttl = n.cfg.MaxTTL
	}
	return ttl
}

func (n *NegativeAdmission) persistProbe(key string, kind store.ProbeKind, now time.Time) {
	if n.store == nil {
		return
	}
	go func() {
		_, _ = n.store.RecordProbe(key, kind, now, n.cfg.ProbeTTL)
	}()
}

func (n *NegativeAdmission) persistAdmit(key string, kind store.ProbeKind) {
	if n.store == nil {
		return
	}
	go func() {
		_ = n.store.Admit(key, kind)
	}()
}

// probeKindForEntryType maps a cache entry type to its probe ledger kind.
func probeKindForEntryType(entryType CacheEntryType) store.ProbeKind {
	if entryType == CacheNODATA {
		return store.ProbeKindNODATA
	}
	return store.ProbeKindNXDOMAIN
}
