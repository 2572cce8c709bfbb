package resolvers

import (
	"context"
	"time"

	"github.com/hydraresolve/hydraresolve/internal/cache"
	"github.com/hydraresolve/hydraresolve/internal/dns"
	"github.com/hydraresolve/hydraresolve/internal/singleflight"
)

// backgroundRefreshTimeout bounds a stale-triggered background refresh so a
// wedged upstream/recursion path can't leak goroutines indefinitely.
const backgroundRefreshTimeout = 10 * time.Second

// DispatcherConfig configures the answer cache and negative-admission gate
// a Dispatcher applies uniformly to whatever resolver it wraps.
type DispatcherConfig struct {
	MaxEntries      int
	MaxTTL          time.Duration
	NegativeEnabled bool
	MaxNegativeTTL  time.Duration
	PrefetchWindow  time.Duration
	StaleWindow     time.Duration
	Admission       *NegativeAdmission // nil disables two-hit gating/TTL clamping
}

// Dispatcher is the single component in front of resolution that probes the
// answer cache, coalesces concurrent identical queries, invokes the wrapped
// resolver on a miss or stale hit, and admits the result back into the
// cache. Both ForwardingResolver and iterative.Resolver are wrapped the
// same way, so neither one implements its own caching, prefetching, or
// request coalescing; whatever they return is raw resolution data, and
// Dispatcher is the only place that patches transaction IDs and ages TTLs
// before handing a response to the client.
type Dispatcher struct {
	inner     Resolver
	cache     *cache.Cache[[]byte]
	sf        *singleflight.Group[string, []byte]
	admission *NegativeAdmission
}

// NewDispatcher wraps inner (a ForwardingResolver or iterative.Resolver)
// with a shared answer cache, single-flight coordinator, and negative
// admission gate.
func NewDispatcher(inner Resolver, cfg DispatcherConfig) *Dispatcher {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	return &Dispatcher{
		inner: inner,
		cache: cache.New(cache.Config[[]byte]{
			Mode:            cache.Counted,
			MaxEntries:      maxEntries,
			MaxTTL:          cfg.MaxTTL,
			NegativeEnabled: cfg.NegativeEnabled,
			MaxNegativeTTL:  cfg.MaxNegativeTTL,
			PrefetchWindow:  cfg.PrefetchWindow,
			StaleWindow:     cfg.StaleWindow,
		}),
		sf:        singleflight.New[string, []byte](),
		admission: cfg.Admission,
	}
}

// Cache exposes the shared answer cache for admin-surface introspection.
func (d *Dispatcher) Cache() *cache.Cache[[]byte] {
	return d.cache
}

// Resolve probes the cache, serves Hit/NearExpiry/Stale results directly
// (kicking off a background refresh for the latter two), and otherwise
// resolves through the wrapped resolver behind the single-flight gate so
// concurrent identical queries share one resolution.
func (d *Dispatcher) Resolve(ctx context.Context, req dns.Packet, reqBytes []byte) (Result, error) {
	txid := req.Header.ID
	key := questionCacheKey(normalizeQuestionKey(req))

	if val, state, _, age := d.cache.Probe(key); state != cache.Miss {
		adjusted := adjustTTLs(val, age)
		source := "cache"
		switch state {
		case cache.NearExpiry:
			source = "cache-near-expiry"
			d.triggerRefresh(key, req, reqBytes)
		case cache.Stale:
			source = "cache-stale"
			d.triggerRefresh(key, req, reqBytes)
		}
		return Result{ResponseBytes: PatchTransactionID(adjusted, txid), Source: source}, nil
	}

	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	resp, err, _ := d.sf.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		return d.resolveAndAdmit(ctx, key, req, reqBytes)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{ResponseBytes: PatchTransactionID(resp, txid), Source: "resolved"}, nil
}

// Close releases the wrapped resolver's resources.
func (d *Dispatcher) Close() error {
	return d.inner.Close()
}

// triggerRefresh kicks off an asynchronous re-resolution for a NearExpiry or
// Stale cache entry so the next query observes a fresh value, per the
// prefetch/serve-stale-while-revalidate behavior. It is itself single-flight
// gated, so a flurry of stale hits for the same question triggers at most
// one outstanding refresh.
func (d *Dispatcher) triggerRefresh(key string, req dns.Packet, reqBytes []byte) {
	if d.sf.InFlight(key) {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundRefreshTimeout)
		defer cancel()
		_, _, _ = d.sf.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
			return d.resolveAndAdmit(ctx, key, req, reqBytes)
		})
	}()
}

// resolveAndAdmit invokes the wrapped resolver and, on success, classifies
// and admits the response into the cache under the dispatcher's negative
// admission policy. Returns the raw response bytes (txid untouched) for the
// caller to patch; the cached copy is always stored with txid normalized to
// 0 so it can be shared across clients regardless of which resolver
// produced it.
func (d *Dispatcher) resolveAndAdmit(ctx context.Context, key string, req dns.Packet, reqBytes []byte) ([]byte, error) {
	res, err := d.inner.Resolve(ctx, req, reqBytes)
	if err != nil {
		return nil, err
	}
	resp := res.ResponseBytes

	decision := analyzeCacheDecision(resp)
	if decision.ttlSeconds <= 0 {
		return resp, nil
	}

	entryType := decision.entryType
	if entryType == CacheNXDOMAIN || entryType == CacheNODATA {
		if !d.admission.Allowed(entryType) {
			return resp, nil
		}
		if !d.admission.Admit(negativeProbeKey(normalizeQuestionKey(req)), probeKindForEntryType(entryType)) {
			return resp, nil
		}
	}

	ttl := time.Duration(decision.ttlSeconds) * time.Second
	if entryType == CacheNXDOMAIN || entryType == CacheNODATA || entryType == CacheSERVFAIL {
		ttl = d.admission.ClampTTL(ttl)
	}

	d.cache.Set(key, PatchTransactionID(resp, 0), ttl, toEntryType(entryType))
	return resp, nil
}

// questionCacheKey derives the dispatcher's cache/single-flight key from a
// question. It intentionally matches negativeProbeKey's format (both
// identify "this question"); the two are stored in distinct maps so the
// shared format causes no collision.
func questionCacheKey(q QuestionKey) string {
	return negativeProbeKey(q)
}

// toEntryType maps a CacheEntryType to the shared cache package's EntryType.
func toEntryType(t CacheEntryType) cache.EntryType {
	switch t {
	case CacheNXDOMAIN:
		return cache.NXDOMAIN
	case CacheNODATA:
		return cache.NODATA
	case CacheSERVFAIL:
		return cache.SERVFAIL
	default:
		return cache.Positive
	}
}
