// Package config provides configuration loading and validation for HydraDNS.
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Command-line flags (not handled here, see cmd/hydradns/main.go)
//  2. Environment variables (HYDRADNS_* prefix)
//  3. TOML config file (if specified with --config)
//  4. Hardcoded defaults
//
// Environment variables are mapped from HYDRADNS_CATEGORY_SETTING format,
// e.g., HYDRADNS_SERVER_HOST maps to server.host in the TOML file.
//
// All configuration is validated during Load() to ensure correctness early.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// initConfig sets up the config loader with defaults, env binding, and config file.
func initConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("toml")

	setDefaults(v)

	// Environment variable binding.
	// Uses HYDRADNS_ prefix: HYDRADNS_SERVER_HOST -> server.host
	v.SetEnvPrefix("HYDRADNS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

// setDefaults configures all default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 1053)
	v.SetDefault("server.workers", "auto")
	v.SetDefault("server.max_concurrency", 0)
	v.SetDefault("server.upstream_socket_pool_size", 0)
	v.SetDefault("server.enable_tcp", true)
	v.SetDefault("server.tcp_fallback", true)

	v.SetDefault("upstream.servers", []string{"8.8.8.8"})
	v.SetDefault("upstream.udp_timeout", "3s")
	v.SetDefault("upstream.tcp_timeout", "5s")
	v.SetDefault("upstream.max_retries", 3)

	// Top-level iterative-mode keys, per SPEC_FULL.md §6's "top" section.
	v.SetDefault("roots", []string{})
	v.SetDefault("allow_other_types", false)
	v.SetDefault("root_hints_path", "")
	v.SetDefault("query_timeout_secs", 2)

	v.SetDefault("zones.directory", "zones")
	v.SetDefault("zones.files", []string{})

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.structured", false)
	v.SetDefault("logging.structured_format", "json")
	v.SetDefault("logging.include_pid", false)
	v.SetDefault("logging.extra_fields", map[string]string{})

	v.SetDefault("filters.enabled", false)
	v.SetDefault("filters.log_blocked", true)
	v.SetDefault("filters.log_allowed", false)
	v.SetDefault("filters.allowlist_domains", []string{})
	v.SetDefault("filters.blocklist_domains", []string{})
	v.SetDefault("filters.blocklists", []BlocklistConfig{})
	v.SetDefault("filters.deny_nets", []string{})
	v.SetDefault("filters.allow_nets", []string{})
	v.SetDefault("filters.refresh_interval", "24h")

	v.SetDefault("rate_limit.cleanup_seconds", 60.0)
	v.SetDefault("rate_limit.max_ip_entries", 65536)
	v.SetDefault("rate_limit.max_prefix_entries", 16384)
	v.SetDefault("rate_limit.global_qps", 100000.0)
	v.SetDefault("rate_limit.global_burst", 100000)
	v.SetDefault("rate_limit.prefix_qps", 10000.0)
	v.SetDefault("rate_limit.prefix_burst", 20000)
	v.SetDefault("rate_limit.ip_qps", 5000.0)
	v.SetDefault("rate_limit.ip_burst", 10000)

	v.SetDefault("listener.udp_workers_per_socket", 1024)
	v.SetDefault("listener.per_ip_concurrency", 256)
	v.SetDefault("listener.tcp_idle_timeout_secs", 5)

	v.SetDefault("cache.answer_cache_size", 100000)
	v.SetDefault("cache.negative_cache_size", 50000)
	v.SetDefault("cache.answer_cache_max_bytes", 0)
	v.SetDefault("cache.negative_cache_max_bytes", 0)
	v.SetDefault("cache.min_ttl", 0)
	v.SetDefault("cache.max_ttl", 86400)
	v.SetDefault("cache.negative_ttl", 300)
	v.SetDefault("cache.prefetch_threshold_secs", 0)
	v.SetDefault("cache.stale_window_secs", 0)
	v.SetDefault("cache.high_watermark_percent", 85.0)
	v.SetDefault("cache.negative.enabled", true)
	v.SetDefault("cache.negative.cache_nxdomain", true)
	v.SetDefault("cache.negative.cache_nodata", true)
	v.SetDefault("cache.negative.two_hit", false)
	v.SetDefault("cache.negative.probe_ttl_secs", 30)
	v.SetDefault("cache.negative.min_ttl", 0)
	v.SetDefault("cache.negative.max_ttl", 3600)

	// Admin/status surface: disabled and bound to localhost by default.
	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.host", "127.0.0.1")
	v.SetDefault("admin.port", 8080)
	v.SetDefault("admin.api_key", "")

	v.SetDefault("store.path", "hydradns.db")

	v.SetDefault("cluster.mode", string(ClusterModeStandalone))
	v.SetDefault("cluster.primary_url", "")
	v.SetDefault("cluster.shared_secret", "")
	v.SetDefault("cluster.node_id", "")
	v.SetDefault("cluster.sync_interval", "5m")
	v.SetDefault("cluster.sync_timeout", "10s")
	v.SetDefault("cluster.poll_interval_secs", 300)
}

// loadFromSource loads configuration from file and environment.
func loadFromSource(configPath string) (*Config, error) {
	v, err := initConfig(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	loadServerConfig(v, cfg)
	loadUpstreamConfig(v, cfg)
	loadIterativeConfig(v, cfg)
	loadZonesConfig(v, cfg)
	loadCustomDNSConfig(v, cfg)
	loadLoggingConfig(v, cfg)
	loadFilteringConfig(v, cfg)
	loadRateLimitConfig(v, cfg)
	loadListenerConfig(v, cfg)
	loadCacheConfig(v, cfg)
	loadAPIConfig(v, cfg)
	loadStoreConfig(v, cfg)
	loadClusterConfig(v, cfg)

	if err := normalizeConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadServerConfig(v *viper.Viper, cfg *Config) {
	cfg.Server.Host = v.GetString("server.host")
	cfg.Server.Port = v.GetInt("server.port")
	cfg.Server.MaxConcurrency = v.GetInt("server.max_concurrency")
	cfg.Server.UpstreamSocketPoolSize = v.GetInt("server.upstream_socket_pool_size")
	cfg.Server.EnableTCP = v.GetBool("server.enable_tcp")
	cfg.Server.TCPFallback = v.GetBool("server.tcp_fallback")
	cfg.Server.WorkersRaw = v.GetString("server.workers")
	cfg.Server.Workers = parseWorkers(cfg.Server.WorkersRaw)
}

func loadUpstreamConfig(v *viper.Viper, cfg *Config) {
	cfg.Upstream.Servers = parseServerList(getStringSliceOrSplit(v, "upstream.servers"))
	cfg.Upstream.UDPTimeout = v.GetString("upstream.udp_timeout")
	cfg.Upstream.TCPTimeout = v.GetString("upstream.tcp_timeout")
	cfg.Upstream.MaxRetries = v.GetInt("upstream.max_retries")

	// Top-level `upstreams` key (SPEC_FULL.md §6): presence selects
	// forwarder mode. When set, it replaces the `upstream.servers` list.
	if top := getStringSliceOrSplit(v, "upstreams"); len(top) > 0 {
		cfg.Upstream.Servers = parseServerList(top)
	}
}

func loadIterativeConfig(v *viper.Viper, cfg *Config) {
	cfg.Iterative.Roots = getStringSliceOrSplit(v, "roots")
	cfg.Iterative.AllowOtherTypes = v.GetBool("allow_other_types")
	cfg.Iterative.RootHintsPath = v.GetString("root_hints_path")
	cfg.Iterative.QueryTimeoutSecs = v.GetInt("query_timeout_secs")
}

func loadZonesConfig(v *viper.Viper, cfg *Config) {
	cfg.Zones.Directory = v.GetString("zones.directory")
	cfg.Zones.Files = v.GetStringSlice("zones.files")
	// Top-level `zones_dir` key (SPEC_FULL.md §6) takes precedence when set.
	if dir := v.GetString("zones_dir"); dir != "" {
		cfg.Zones.Directory = dir
	}
}

func loadCustomDNSConfig(v *viper.Viper, cfg *Config) {
	if v.IsSet("custom_dns.hosts") {
		hostsMap := v.GetStringMap("custom_dns.hosts")
		cfg.CustomDNS.Hosts = make(map[string][]string)
		for name, value := range hostsMap {
			switch val := value.(type) {
			case string:
				cfg.CustomDNS.Hosts[name] = []string{val}
			case []interface{}:
				ips := make([]string, 0, len(val))
				for _, ip := range val {
					if ipStr, ok := ip.(string); ok {
						ips = append(ips, ipStr)
					}
				}
				cfg.CustomDNS.Hosts[name] = ips
			case []string:
				cfg.CustomDNS.Hosts[name] = val
			}
		}
	}

	if v.IsSet("custom_dns.cnames") {
		cfg.CustomDNS.CNAMEs = v.GetStringMapString("custom_dns.cnames")
	}
}

func loadLoggingConfig(v *viper.Viper, cfg *Config) {
	cfg.Logging.Level = strings.ToUpper(v.GetString("logging.level"))
	cfg.Logging.Structured = v.GetBool("logging.structured")
	cfg.Logging.StructuredFormat = v.GetString("logging.structured_format")
	cfg.Logging.IncludePID = v.GetBool("logging.include_pid")
	cfg.Logging.ExtraFields = v.GetStringMapString("logging.extra_fields")
}

func loadFilteringConfig(v *viper.Viper, cfg *Config) {
	cfg.Filtering.Enabled = v.GetBool("filters.enabled")
	cfg.Filtering.LogBlocked = v.GetBool("filters.log_blocked")
	cfg.Filtering.LogAllowed = v.GetBool("filters.log_allowed")
	cfg.Filtering.RefreshInterval = v.GetString("filters.refresh_interval")

	cfg.Filtering.WhitelistDomains = getStringSliceOrSplit(v, "filters.allowlist_domains")
	cfg.Filtering.BlacklistDomains = getStringSliceOrSplit(v, "filters.blocklist_domains")
	cfg.Filtering.DenyNets = getStringSliceOrSplit(v, "filters.deny_nets")
	cfg.Filtering.AllowNets = getStringSliceOrSplit(v, "filters.allow_nets")

	if err := v.UnmarshalKey("filters.blocklists", &cfg.Filtering.Blocklists); err != nil {
		cfg.Filtering.Blocklists = []BlocklistConfig{}
	}

	if url := v.GetString("filters.blocklist_url"); url != "" {
		cfg.Filtering.Blocklists = append(cfg.Filtering.Blocklists, BlocklistConfig{
			Name:   "env-blocklist",
			URL:    url,
			Format: "auto",
		})
	}
}

func loadRateLimitConfig(v *viper.Viper, cfg *Config) {
	cfg.RateLimit.CleanupSeconds = v.GetFloat64("rate_limit.cleanup_seconds")
	cfg.RateLimit.MaxIPEntries = v.GetInt("rate_limit.max_ip_entries")
	cfg.RateLimit.MaxPrefixEntries = v.GetInt("rate_limit.max_prefix_entries")
	cfg.RateLimit.GlobalQPS = v.GetFloat64("rate_limit.global_qps")
	cfg.RateLimit.GlobalBurst = v.GetInt("rate_limit.global_burst")
	cfg.RateLimit.PrefixQPS = v.GetFloat64("rate_limit.prefix_qps")
	cfg.RateLimit.PrefixBurst = v.GetInt("rate_limit.prefix_burst")
	cfg.RateLimit.IPQPS = v.GetFloat64("rate_limit.ip_qps")
	cfg.RateLimit.IPBurst = v.GetInt("rate_limit.ip_burst")
}

func loadListenerConfig(v *viper.Viper, cfg *Config) {
	cfg.Listener.UDPWorkersPerSocket = v.GetInt("listener.udp_workers_per_socket")
	cfg.Listener.PerIPConcurrency = v.GetInt("listener.per_ip_concurrency")
	cfg.Listener.TCPIdleTimeoutSecs = v.GetInt("listener.tcp_idle_timeout_secs")
}

func loadCacheConfig(v *viper.Viper, cfg *Config) {
	cfg.Cache.AnswerCacheSize = v.GetInt("cache.answer_cache_size")
	cfg.Cache.NegativeCacheSize = v.GetInt("cache.negative_cache_size")
	cfg.Cache.AnswerCacheMaxBytes = v.GetInt("cache.answer_cache_max_bytes")
	cfg.Cache.NegativeCacheMaxBytes = v.GetInt("cache.negative_cache_max_bytes")
	cfg.Cache.MinTTLSecs = v.GetInt("cache.min_ttl")
	cfg.Cache.MaxTTLSecs = v.GetInt("cache.max_ttl")
	cfg.Cache.NegativeTTLSecs = v.GetInt("cache.negative_ttl")
	cfg.Cache.PrefetchThresholdSecs = v.GetInt("cache.prefetch_threshold_secs")
	cfg.Cache.StaleWindowSecs = v.GetInt("cache.stale_window_secs")
	cfg.Cache.HighWatermarkPercent = v.GetFloat64("cache.high_watermark_percent")

	cfg.Cache.Negative.Enabled = v.GetBool("cache.negative.enabled")
	cfg.Cache.Negative.CacheNXDOMAIN = v.GetBool("cache.negative.cache_nxdomain")
	cfg.Cache.Negative.CacheNODATA = v.GetBool("cache.negative.cache_nodata")
	cfg.Cache.Negative.TwoHit = v.GetBool("cache.negative.two_hit")
	cfg.Cache.Negative.ProbeTTLSecs = v.GetInt("cache.negative.probe_ttl_secs")
	cfg.Cache.Negative.MinTTLSecs = v.GetInt("cache.negative.min_ttl")
	cfg.Cache.Negative.MaxTTLSecs = v.GetInt("cache.negative.max_ttl")
}

func loadAPIConfig(v *viper.Viper, cfg *Config) {
	cfg.API.Enabled = v.GetBool("admin.enabled")
	cfg.API.Host = v.GetString("admin.host")
	cfg.API.Port = v.GetInt("admin.port")
	cfg.API.APIKey = v.GetString("admin.api_key")
}

func loadStoreConfig(v *viper.Viper, cfg *Config) {
	cfg.Store.Path = v.GetString("store.path")
}

func loadClusterConfig(v *viper.Viper, cfg *Config) {
	cfg.Cluster.Mode = ClusterMode(v.GetString("cluster.mode"))
	cfg.Cluster.PrimaryURL = v.GetString("cluster.primary_url")
	cfg.Cluster.SharedSecret = v.GetString("cluster.shared_secret")
	cfg.Cluster.NodeID = v.GetString("cluster.node_id")
	cfg.Cluster.SyncInterval = v.GetString("cluster.sync_interval")
	cfg.Cluster.SyncTimeout = v.GetString("cluster.sync_timeout")
	cfg.Cluster.PollIntervalSecs = v.GetInt("cluster.poll_interval_secs")
}

// parseWorkers converts the workers string to WorkerSetting.
func parseWorkers(raw string) WorkerSetting {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" || raw == "auto" {
		return WorkerSetting{Mode: WorkersAuto}
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return WorkerSetting{Mode: WorkersFixed, Value: n}
	}
	return WorkerSetting{Mode: WorkersAuto}
}

// parseServerList cleans up a list of server addresses.
func parseServerList(servers []string) []string {
	result := make([]string, 0, len(servers))
	for _, s := range servers {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if h, _, ok := strings.Cut(s, ":"); ok {
			s = h
		}
		result = append(result, s)
	}
	return result
}

// getStringSliceOrSplit handles slice values, plain comma-separated strings,
// and the env-var case where a single slice element itself contains commas
// (e.g. HYDRADNS_UPSTREAM_SERVERS="1.1.1.1, 8.8.8.8:53" lands as one field).
func getStringSliceOrSplit(v *viper.Viper, key string) []string {
	var raw []string
	if slice := v.GetStringSlice(key); len(slice) > 0 {
		raw = slice
	} else if s := v.GetString(key); s != "" {
		raw = []string{s}
	} else {
		return nil
	}

	result := make([]string, 0, len(raw))
	for _, s := range raw {
		for _, p := range strings.Split(s, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
	}
	return result
}

// normalizeConfig validates and normalizes the configuration.
func normalizeConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be 1..65535")
	}

	if len(cfg.Upstream.Servers) == 0 {
		cfg.Upstream.Servers = []string{"8.8.8.8"}
	}

	// Limit to 3 upstream servers (strict-order failover).
	if len(cfg.Upstream.Servers) > 3 {
		cfg.Upstream.Servers = cfg.Upstream.Servers[:3]
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.StructuredFormat == "" {
		cfg.Logging.StructuredFormat = "json"
	}
	if cfg.Logging.ExtraFields == nil {
		cfg.Logging.ExtraFields = map[string]string{}
	}

	if cfg.Filtering.RefreshInterval == "" {
		cfg.Filtering.RefreshInterval = "24h"
	}

	if cfg.API.Host == "" {
		cfg.API.Host = "127.0.0.1"
	}
	if cfg.API.Enabled {
		if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
			return errors.New("admin.port must be 1..65535")
		}
	}

	if cfg.Listener.UDPWorkersPerSocket <= 0 {
		cfg.Listener.UDPWorkersPerSocket = 1024
	}
	if cfg.Listener.PerIPConcurrency <= 0 {
		cfg.Listener.PerIPConcurrency = 256
	}
	if cfg.Listener.TCPIdleTimeoutSecs <= 0 {
		cfg.Listener.TCPIdleTimeoutSecs = 5
	}

	switch cfg.Cluster.Mode {
	case ClusterModeStandalone, ClusterModePrimary, ClusterModeSecondary:
	case "":
		cfg.Cluster.Mode = ClusterModeStandalone
	default:
		return fmt.Errorf("cluster.mode must be standalone, primary, or secondary, got %q", cfg.Cluster.Mode)
	}
	if cfg.Cluster.Mode == ClusterModeSecondary && cfg.Cluster.PrimaryURL == "" {
		return errors.New("cluster.primary_url is required when cluster.mode is secondary")
	}

	return nil
}
