package server

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/hydraresolve/hydraresolve/internal/adminapi/handlers"
	"github.com/hydraresolve/hydraresolve/internal/cache"
	"github.com/hydraresolve/hydraresolve/internal/config"
	"github.com/hydraresolve/hydraresolve/internal/filtering"
	"github.com/hydraresolve/hydraresolve/internal/iterative"
	"github.com/hydraresolve/hydraresolve/internal/rescontrol"
	"github.com/hydraresolve/hydraresolve/internal/resolvers"
	"github.com/hydraresolve/hydraresolve/internal/roothints"
	"github.com/hydraresolve/hydraresolve/internal/store"
	"github.com/hydraresolve/hydraresolve/internal/zone"
)

// Runner orchestrates the DNS server startup, configuration, and shutdown.
type Runner struct {
	logger       *slog.Logger
	stats        *DNSStats
	adminHandler *handlers.Handler // optional; wired in by cmd/hydradns before Run/RunWithContext
}

// NewRunner creates a new server runner with the given logger.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger, stats: NewDNSStats()}
}

// DNSStats returns the runner's query statistics collector. It is safe to
// read before the server starts; counters simply stay at zero until Run is
// called.
func (r *Runner) DNSStats() *DNSStats {
	return r.stats
}

// SetAdminHandler wires the admin/status API's introspection hooks to the
// resolver components Run constructs. Call before Run/RunWithContext; a nil
// handler (the default) skips admin wiring entirely.
func (r *Runner) SetAdminHandler(h *handlers.Handler) {
	r.adminHandler = h
}

// Run starts the DNS server with the given configuration, deriving its
// lifetime context from SIGINT/SIGTERM.
func (r *Runner) Run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return r.RunWithContext(ctx, cfg)
}

// RunWithContext starts the DNS server with the given configuration under
// an externally-supplied context, so the caller can coordinate shutdown
// with sibling components (admin API, cluster syncer).
//
// Server lifecycle:
//  1. Configure runtime (GOMAXPROCS based on workers setting)
//  2. Load zone files for local resolution
//  3. Build resolver chain (filtering -> custom DNS -> zones -> dispatcher
//     over forwarding or iterative resolution)
//  4. Start UDP and optionally TCP servers
//  5. Wait for shutdown signal or ctx cancellation
//  6. Gracefully stop servers with timeout
func (r *Runner) RunWithContext(ctx context.Context, cfg *config.Config) error {
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	// Configure GOMAXPROCS based on worker settings
	desiredProcs := r.configureRuntime(cfg)

	// Calculate concurrency limits
	maxConc := r.calculateMaxConcurrency(cfg, desiredProcs)
	upPool := r.calculateUpstreamPoolSize(cfg, maxConc)

	// Load zone files
	zones := r.loadZones(cfg)

	// Open the probe-ledger store, if configured. Its absence degrades
	// two-hit negative admission to a purely in-memory state machine.
	probeStore, err := r.openStore(cfg)
	if err != nil {
		return err
	}
	if probeStore != nil {
		defer probeStore.Close()
	}

	// Build resolver chain
	comps := r.buildResolverChain(cfg, zones, upPool, probeStore)
	resolver := comps.chain
	defer resolver.Close()

	if r.adminHandler != nil {
		r.wireAdminHooks(cfg, comps)
	}
	r.startResourceController(ctx, cfg, comps)

	// Create server components
	h := &QueryHandler{Logger: r.logger, Resolver: resolver, Timeout: 4 * time.Second, Stats: r.stats}
	limiter := NewRateLimiter(RateLimitSettings{
		CleanupSeconds:   cfg.RateLimit.CleanupSeconds,
		MaxIPEntries:     cfg.RateLimit.MaxIPEntries,
		MaxPrefixEntries: cfg.RateLimit.MaxPrefixEntries,
		GlobalQPS:        cfg.RateLimit.GlobalQPS,
		GlobalBurst:      cfg.RateLimit.GlobalBurst,
		PrefixQPS:        cfg.RateLimit.PrefixQPS,
		PrefixBurst:      cfg.RateLimit.PrefixBurst,
		IPQPS:            cfg.RateLimit.IPQPS,
		IPBurst:          cfg.RateLimit.IPBurst,
	})

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	r.logStartup(cfg, addr, maxConc, upPool)

	// UDP workers-per-socket and per-IP concurrency come from the listener
	// config (§4.J); fall back to the computed concurrency budget if unset.
	udpWorkers := cfg.Listener.UDPWorkersPerSocket
	if udpWorkers <= 0 {
		udpWorkers = maxConc
	}
	concurrency := NewConcurrencyLimiter(cfg.Listener.PerIPConcurrency)

	// Start servers
	udp := &UDPServer{
		Logger:           r.logger,
		Handler:          h,
		Limiter:          limiter,
		Concurrency:      concurrency,
		WorkersPerSocket: udpWorkers,
	}
	var tcp *TCPServer
	if cfg.Server.EnableTCP {
		tcp = &TCPServer{
			Logger:      r.logger,
			Handler:     h,
			IdleTimeout: time.Duration(cfg.Listener.TCPIdleTimeoutSecs) * time.Second,
		}
	}

	errCh := make(chan error, 2)
	go func() { errCh <- udp.Run(ctx, addr) }()
	if tcp != nil {
		go func() { errCh <- tcp.Run(ctx, addr) }()
	}

	// Wait for shutdown or error
	select {
	case <-ctx.Done():
		// shutdown requested via signal
	case err := <-errCh:
		if err != nil {
			cancelRun()
			return err
		}
	}

	// Graceful shutdown
	stopTimeout := 5 * time.Second
	_ = udp.Stop(stopTimeout)
	if tcp != nil {
		_ = tcp.Stop(stopTimeout)
	}
	return nil
}

// configureRuntime sets GOMAXPROCS based on worker configuration.
// Workers can reduce but never increase parallelism beyond the default.
func (r *Runner) configureRuntime(cfg *config.Config) int {
	baseProcs := runtime.GOMAXPROCS(0)
	if baseProcs <= 0 {
		baseProcs = 1
	}
	desiredProcs := baseProcs

	if cfg.Server.Workers.Mode == config.WorkersFixed {
		w := cfg.Server.Workers.Value
		if w <= 0 {
			w = 1
		}
		if w < desiredProcs {
			desiredProcs = w
		}
	}

	prev := runtime.GOMAXPROCS(desiredProcs)
	actual := runtime.GOMAXPROCS(0)
	if r.logger != nil {
		r.logger.Info("runtime", "gomaxprocs", actual, "prev", prev, "base", baseProcs)
	}
	return actual
}

// calculateMaxConcurrency determines the maximum concurrent request handlers.
func (r *Runner) calculateMaxConcurrency(cfg *config.Config, procs int) int {
	maxConc := cfg.Server.MaxConcurrency
	if maxConc <= 0 {
		c := procs
		if c <= 0 {
			c = 1
		}
		maxConc = c * 256
		if maxConc > 2048 {
			maxConc = 2048
		}
		if maxConc < 1 {
			maxConc = 1
		}
	}
	return maxConc
}

// calculateUpstreamPoolSize determines the UDP connection pool size for upstream queries.
func (r *Runner) calculateUpstreamPoolSize(cfg *config.Config, maxConc int) int {
	upPool := cfg.Server.UpstreamSocketPoolSize
	if upPool <= 0 {
		upPool = maxConc
		if upPool < 64 {
			upPool = 64
		}
		if upPool > 1024 {
			upPool = 1024
		}
	}
	return upPool
}

// loadZones discovers and loads zone files from the configured location.
func (r *Runner) loadZones(cfg *config.Config) []*zone.Zone {
	zoneFiles := discoverZoneFiles(cfg.Zones.Directory, cfg.Zones.Files)
	zones := make([]*zone.Zone, 0, len(zoneFiles))

	for _, p := range zoneFiles {
		z, err := zone.LoadFile(p)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("failed to load zone file", "path", p, "err", err)
			}
			continue
		}
		zones = append(zones, z)
	}

	if len(zones) > 0 && r.logger != nil {
		r.logger.Info("zones enabled", "count", len(zones), "files", zoneFiles)
	}
	return zones
}

// openStore opens the SQLite-backed probe-ledger store when a path is
// configured. Returns (nil, nil) when Store.Path is empty.
func (r *Runner) openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, nil
	}
	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if r.logger != nil {
		r.logger.Info("probe ledger opened", "path", cfg.Store.Path)
	}
	return s, nil
}

// resolverComponents bundles the assembled resolver chain together with
// handles to its concrete components, so Run can wire admin-surface
// introspection hooks and the memory-pressure controller without the chain
// itself needing to expose that through the resolvers.Resolver interface.
type resolverComponents struct {
	chain      resolvers.Resolver
	dispatcher *resolvers.Dispatcher // wraps forwarding or iterative resolution uniformly (always set)
	forwarding *resolvers.ForwardingResolver // set in forwarder mode, nil in iterative mode
	iterative  *iterative.Resolver           // set in iterative mode, nil in forwarder mode
	policy     *filtering.PolicyEngine       // nil when filtering is disabled
}

// buildResolverChain creates the resolver chain: filtering -> custom DNS ->
// zones (if any) -> Dispatcher(forwarding or iterative resolution).
//
// Dispatcher is the single component that probes the shared answer cache,
// coalesces concurrent identical queries, and admits results (subject to
// negative-admission gating) back into the cache — applied uniformly
// whether the wrapped resolver is ForwardingResolver or iterative.Resolver,
// so both modes get the same cache/negative-cache/single-flight behavior.
func (r *Runner) buildResolverChain(cfg *config.Config, zones []*zone.Zone, upPool int, probeStore *store.Store) resolverComponents {
	var comps resolverComponents
	resList := make([]resolvers.Resolver, 0, 3)

	if custom := r.buildCustomDNSResolver(cfg); custom != nil {
		resList = append(resList, custom)
	}

	if len(zones) > 0 {
		resList = append(resList, resolvers.NewZoneResolver(zones))
	}

	// Presence of upstream servers selects forwarder mode; their absence
	// selects iterative mode, resolving recursively from root hints (§4.I).
	var inner resolvers.Resolver
	if len(cfg.Upstream.Servers) > 0 {
		udpTimeout := parseDurationOrDefault(cfg.Upstream.UDPTimeout, resolvers.DefaultUDPTimeout)
		tcpTimeout := parseDurationOrDefault(cfg.Upstream.TCPTimeout, resolvers.DefaultTCPTimeout)

		fwd := resolvers.NewForwardingResolver(
			cfg.Upstream.Servers,
			upPool,
			cfg.Server.TCPFallback,
			udpTimeout,
			tcpTimeout,
			cfg.Upstream.MaxRetries,
		)
		comps.forwarding = fwd
		inner = fwd
	} else {
		it := r.buildIterativeResolver(cfg)
		comps.iterative = it
		inner = it
		if r.logger != nil {
			r.logger.Info("no upstreams configured, resolving iteratively from root hints")
		}
	}

	dispatcher := resolvers.NewDispatcher(inner, resolvers.DispatcherConfig{
		MaxEntries:      cfg.Cache.AnswerCacheSize,
		MaxTTL:          time.Duration(cfg.Cache.MaxTTLSecs) * time.Second,
		NegativeEnabled: cfg.Cache.Negative.Enabled,
		MaxNegativeTTL:  time.Duration(cfg.Cache.Negative.MaxTTLSecs) * time.Second,
		PrefetchWindow:  time.Duration(cfg.Cache.PrefetchThresholdSecs) * time.Second,
		StaleWindow:     time.Duration(cfg.Cache.StaleWindowSecs) * time.Second,
		Admission:       r.buildNegativeAdmission(cfg, probeStore),
	})
	comps.dispatcher = dispatcher
	resList = append(resList, dispatcher)

	var chain resolvers.Resolver = &resolvers.Chained{Resolvers: resList}

	// Wrap with filtering if enabled
	if cfg.Filtering.Enabled {
		policy := r.buildFilteringPolicy(cfg)
		comps.policy = policy
		chain = resolvers.NewFilteringResolver(policy, chain)
		if r.logger != nil {
			r.logger.Info("filtering enabled",
				"whitelist_count", len(cfg.Filtering.WhitelistDomains),
				"blacklist_count", len(cfg.Filtering.BlacklistDomains),
				"blocklists", len(cfg.Filtering.Blocklists),
			)
		}
	}

	comps.chain = chain
	return comps
}

// buildCustomDNSResolver constructs the legacy static host/CNAME override
// resolver from cfg.CustomDNS. Returns nil when no entries are configured
// or construction fails (logged as a warning, not fatal).
func (r *Runner) buildCustomDNSResolver(cfg *config.Config) *resolvers.CustomDNSResolver {
	if len(cfg.CustomDNS.Hosts) == 0 && len(cfg.CustomDNS.CNAMEs) == 0 {
		return nil
	}
	custom, err := resolvers.NewCustomDNSResolver(cfg.CustomDNS.Hosts, cfg.CustomDNS.CNAMEs)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("invalid custom_dns configuration, skipping", "err", err)
		}
		return nil
	}
	if r.logger != nil {
		r.logger.Info("custom DNS overrides enabled", "hosts", len(cfg.CustomDNS.Hosts), "cnames", len(cfg.CustomDNS.CNAMEs))
	}
	return custom
}

// buildIterativeResolver constructs the recursive/iterative resolver used
// when no upstream forwarders are configured. Root server addresses come
// from cfg.Iterative.Roots directly when given, otherwise from the
// named.root-format file at cfg.Iterative.RootHintsPath.
func (r *Runner) buildIterativeResolver(cfg *config.Config) *iterative.Resolver {
	roots := r.loadRootHints(cfg)
	timeout := time.Duration(cfg.Iterative.QueryTimeoutSecs) * time.Second

	// With a byte budget configured, size delegations by weight so the
	// resource controller started in startResourceController can shrink it.
	var delegations cache.Config[iterative.DelegationPoint]
	if cfg.Cache.AnswerCacheMaxBytes > 0 {
		delegations = cache.Config[iterative.DelegationPoint]{Mode: cache.Weighted, MaxBytes: cfg.Cache.AnswerCacheMaxBytes}
	}

	return iterative.New(iterative.Config{
		Logger:          r.logger,
		Roots:           roots,
		QueryTimeout:    timeout,
		AllowOtherTypes: cfg.Iterative.AllowOtherTypes,
		Delegations:     delegations,
	})
}

// loadRootHints resolves the iterative resolver's seed root server
// addresses, preferring explicit IPs in cfg.Iterative.Roots over the
// named.root file at cfg.Iterative.RootHintsPath.
func (r *Runner) loadRootHints(cfg *config.Config) []netip.Addr {
	if len(cfg.Iterative.Roots) > 0 {
		addrs := make([]netip.Addr, 0, len(cfg.Iterative.Roots))
		for _, raw := range cfg.Iterative.Roots {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				if r.logger != nil {
					r.logger.Warn("invalid iterative root address, skipping", "addr", raw, "err", err)
				}
				continue
			}
			addrs = append(addrs, addr)
		}
		if len(addrs) > 0 {
			return addrs
		}
	}

	if cfg.Iterative.RootHintsPath == "" {
		return nil
	}
	addrs, err := roothints.Load(cfg.Iterative.RootHintsPath)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("failed to load root hints file", "path", cfg.Iterative.RootHintsPath, "err", err)
		}
		return nil
	}
	return addrs
}

// buildNegativeAdmission constructs the two-hit negative-admission gate
// from cache configuration. probeStore may be nil, in which case admission
// state is kept purely in memory.
func (r *Runner) buildNegativeAdmission(cfg *config.Config, probeStore *store.Store) *resolvers.NegativeAdmission {
	neg := cfg.Cache.Negative
	admCfg := resolvers.NegativeAdmissionConfig{
		Enabled:       neg.Enabled,
		CacheNXDOMAIN: neg.CacheNXDOMAIN,
		CacheNODATA:   neg.CacheNODATA,
		TwoHit:        neg.TwoHit,
		ProbeTTL:      time.Duration(neg.ProbeTTLSecs) * time.Second,
		MinTTL:        time.Duration(neg.MinTTLSecs) * time.Second,
		MaxTTL:        time.Duration(neg.MaxTTLSecs) * time.Second,
	}
	return resolvers.NewNegativeAdmission(admCfg, probeStore)
}

// parseDurationOrDefault parses a duration string (e.g. "3s"), falling back
// to def if raw is empty or invalid.
func parseDurationOrDefault(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// wireAdminHooks connects the admin/status API's introspection hooks to the
// resolver components just built. Only called when SetAdminHandler has been
// given a non-nil handler.
func (r *Runner) wireAdminHooks(cfg *config.Config, comps resolverComponents) {
	r.adminHandler.SetDNSStatsFunc(func() handlers.DNSStatsSnapshot {
		s := r.stats.Snapshot()
		return handlers.DNSStatsSnapshot{
			QueriesTotal: s.QueriesTotal,
			QueriesUDP:   s.QueriesUDP,
			QueriesTCP:   s.QueriesTCP,
			ResponsesNX:  s.ResponsesNX,
			ResponsesErr: s.ResponsesErr,
			AvgLatencyMs: s.AvgLatencyMs,
		}
	})

	if comps.dispatcher != nil {
		c := comps.dispatcher.Cache()
		r.adminHandler.SetAnswerCacheHooks(
			cacheStatsFunc(c),
			cacheEntriesFunc(c, cache.Positive),
		)
		r.adminHandler.SetNegativeCacheHooks(
			cacheStatsFunc(c),
			negativeCacheEntriesFunc(c),
		)
	}

	if comps.iterative != nil {
		it := comps.iterative
		r.adminHandler.SetDelegationsFunc(func(limit int) []handlers.DelegationEntry {
			snaps := it.Delegations(limit)
			out := make([]handlers.DelegationEntry, 0, len(snaps))
			for _, s := range snaps {
				glueNames := make([]string, 0, len(s.Value.Glue))
				for name := range s.Value.Glue {
					glueNames = append(glueNames, name)
				}
				out = append(out, handlers.DelegationEntry{
					Zone:      s.Key,
					NS:        s.Value.NS,
					GlueNames: glueNames,
					ExpiresAt: s.ExpiresAt,
				})
			}
			return out
		})
	}
}

// cacheStatsFunc adapts the dispatcher's shared answer cache into the admin
// surface's CacheStatsFunc shape.
func cacheStatsFunc(c *cache.Cache[[]byte]) handlers.CacheStatsFunc {
	return func() handlers.CacheStats {
		s := c.Stats()
		return handlers.CacheStats{
			Entries:     s.Entries,
			WeightBytes: s.WeightBytes,
			Hits:        s.Hits,
			Misses:      s.Misses,
			NearExpiry:  s.NearExpiry,
			StaleServed: s.StaleServed,
		}
	}
}

// cacheEntriesFunc lists entries of the given type from the dispatcher's
// cache, for the admin surface's /cache/answer endpoint.
func cacheEntriesFunc(c *cache.Cache[[]byte], want cache.EntryType) handlers.CacheEntriesFunc {
	return func(limit int) []handlers.CacheEntry {
		snaps := c.Snapshot(0)
		out := make([]handlers.CacheEntry, 0, len(snaps))
		for _, e := range snaps {
			if e.EntryType != want {
				continue
			}
			out = append(out, handlers.CacheEntry{Key: e.Key, Type: e.EntryType.String(), ExpiresAt: e.ExpiresAt})
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return out
	}
}

// negativeCacheEntriesFunc lists NXDOMAIN/NODATA/SERVFAIL entries, for the
// admin surface's /cache/negative endpoint.
func negativeCacheEntriesFunc(c *cache.Cache[[]byte]) handlers.CacheEntriesFunc {
	return func(limit int) []handlers.CacheEntry {
		snaps := c.Snapshot(0)
		out := make([]handlers.CacheEntry, 0, len(snaps))
		for _, e := range snaps {
			if e.EntryType == cache.Positive {
				continue
			}
			out = append(out, handlers.CacheEntry{Key: e.Key, Type: e.EntryType.String(), ExpiresAt: e.ExpiresAt})
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return out
	}
}

// startResourceController wires internal/rescontrol to the iterative
// resolver's delegation cache, the only weighted (internal/cache.Cache)
// instance the resolver chain constructs; the dispatcher's answer cache
// uses count-based eviction, not a byte budget, regardless of mode.
func (r *Runner) startResourceController(ctx context.Context, cfg *config.Config, comps resolverComponents) *rescontrol.Controller {
	if comps.iterative == nil || cfg.Cache.AnswerCacheMaxBytes <= 0 {
		return nil
	}
	ctrl := rescontrol.New(rescontrol.Config{
		Target:               comps.iterative.DelegationCache(),
		BaseMaxBytes:         cfg.Cache.AnswerCacheMaxBytes,
		HighWatermarkPercent: cfg.Cache.HighWatermarkPercent,
		Logger:               r.logger,
	})
	go ctrl.Run(ctx)
	return ctrl
}

// buildFilteringPolicy creates a PolicyEngine from the configuration.
func (r *Runner) buildFilteringPolicy(cfg *config.Config) *filtering.PolicyEngine {
	// Convert blocklist configs to BlocklistURLs
	blocklists := make([]filtering.BlocklistURL, 0, len(cfg.Filtering.Blocklists))
	for _, bl := range cfg.Filtering.Blocklists {
		format := filtering.FormatAuto
		switch bl.Format {
		case "adblock":
			format = filtering.FormatAdblock
		case "hosts":
			format = filtering.FormatHosts
		case "domains":
			format = filtering.FormatDomains
		}
		blocklists = append(blocklists, filtering.BlocklistURL{
			Name:   bl.Name,
			URL:    bl.URL,
			Format: format,
		})
	}

	// Parse refresh interval
	refreshInterval := 24 * time.Hour
	if cfg.Filtering.RefreshInterval != "" {
		if d, err := time.ParseDuration(cfg.Filtering.RefreshInterval); err == nil {
			refreshInterval = d
		}
	}

	return filtering.NewPolicyEngine(filtering.PolicyEngineConfig{
		Enabled:          cfg.Filtering.Enabled,
		BlockAction:      filtering.ActionBlock,
		LogBlocked:       cfg.Filtering.LogBlocked,
		LogAllowed:       cfg.Filtering.LogAllowed,
		WhitelistDomains: cfg.Filtering.WhitelistDomains,
		BlacklistDomains: cfg.Filtering.BlacklistDomains,
		BlocklistURLs:    blocklists,
		RefreshInterval:  refreshInterval,
	})
}

// logStartup logs server configuration at startup.
func (r *Runner) logStartup(cfg *config.Config, addr string, maxConc, upPool int) {
	if r.logger != nil {
		r.logger.Info(
			"dns listening",
			"addr", addr,
			"udp", true,
			"tcp", cfg.Server.EnableTCP,
			"upstreams", cfg.Upstream.Servers,
			"max_concurrency", maxConc,
			"upstream_pool", upPool,
		)
	}
}

// discoverZoneFiles returns zone files to load, either from explicit config
// or by scanning the zones directory.
func discoverZoneFiles(zonesDir string, explicit []string) []string {
	// Use explicit list if provided
	if len(explicit) > 0 {
		out := make([]string, 0, len(explicit))
		for _, p := range explicit {
			p = filepath.Clean(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out
	}

	// Otherwise scan directory
	if zonesDir == "" {
		zonesDir = "zones"
	}
	entries, err := os.ReadDir(zonesDir)
	if err != nil {
		return nil
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == "" {
			continue
		}
		files = append(files, filepath.Join(zonesDir, name))
	}
	sort.Strings(files)
	return files
}
