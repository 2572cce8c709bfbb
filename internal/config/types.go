// Package config provides configuration loading for HydraDNS using Viper.
// Configuration is loaded from TOML files with automatic environment variable binding.
//
// Environment variables use the HYDRADNS_ prefix and underscore-separated keys:
//   - HYDRADNS_SERVER_HOST -> server.host
//   - HYDRADNS_SERVER_PORT -> server.port
//   - HYDRADNS_UPSTREAMS -> upstreams (comma-separated)
//   - HYDRADNS_CACHE_MAX_TTL -> cache.max_ttl
package config

import (
	"os"
	"strconv"
	"strings"
)

// WorkersMode specifies how worker count is determined.
type WorkersMode int

const (
	// WorkersAuto automatically determines worker count based on available CPUs.
	WorkersAuto WorkersMode = iota
	// WorkersFixed uses a specific worker count.
	WorkersFixed
)

// WorkerSetting represents the workers configuration.
type WorkerSetting struct {
	Mode  WorkersMode
	Value int
}

// String returns the string representation of the worker setting.
func (w WorkerSetting) String() string {
	if w.Mode == WorkersAuto {
		return "auto"
	}
	return strconv.Itoa(w.Value)
}

// ServerConfig contains server-related settings.
type ServerConfig struct {
	Host                   string        `mapstructure:"host"`
	Port                   int           `mapstructure:"port"`
	Workers                WorkerSetting `mapstructure:"-"`
	WorkersRaw             string        `mapstructure:"workers"`
	MaxConcurrency         int           `mapstructure:"max_concurrency"`
	UpstreamSocketPoolSize int           `mapstructure:"upstream_socket_pool_size"`
	EnableTCP              bool          `mapstructure:"enable_tcp"`
	TCPFallback            bool          `mapstructure:"tcp_fallback"`
}

// UpstreamConfig contains upstream DNS server settings (forwarder mode).
// Presence of Servers selects forwarder mode over iterative mode (§4.I).
type UpstreamConfig struct {
	Servers    []string `mapstructure:"servers"`
	UDPTimeout string   `mapstructure:"udp_timeout"`
	TCPTimeout string   `mapstructure:"tcp_timeout"`
	MaxRetries int      `mapstructure:"max_retries"`
}

// IterativeConfig contains settings used only when no upstreams are
// configured and the engine resolves recursively from the root.
type IterativeConfig struct {
	Roots            []string `mapstructure:"roots"`
	AllowOtherTypes  bool     `mapstructure:"allow_other_types"`
	RootHintsPath    string   `mapstructure:"root_hints_path"`
	QueryTimeoutSecs int      `mapstructure:"query_timeout_secs"`
}

// ZonesConfig contains local zone-override settings.
type ZonesConfig struct {
	Directory string   `mapstructure:"directory"`
	Files     []string `mapstructure:"files"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level            string            `mapstructure:"level"`
	Structured       bool              `mapstructure:"structured"`
	StructuredFormat string            `mapstructure:"structured_format"`
	IncludePID       bool              `mapstructure:"include_pid"`
	ExtraFields      map[string]string `mapstructure:"extra_fields"`
}

// FilteringConfig controls domain filtering (blocklists/allowlists).
type FilteringConfig struct {
	Enabled          bool              `mapstructure:"enabled"`
	LogBlocked       bool              `mapstructure:"log_blocked"`
	LogAllowed       bool              `mapstructure:"log_allowed"`
	WhitelistDomains []string          `mapstructure:"allowlist_domains"`
	BlacklistDomains []string          `mapstructure:"blocklist_domains"`
	Blocklists       []BlocklistConfig `mapstructure:"blocklists"`
	DenyNets         []string          `mapstructure:"deny_nets"`
	AllowNets        []string          `mapstructure:"allow_nets"`
	RefreshInterval  string            `mapstructure:"refresh_interval"`
}

// BlocklistConfig defines a remote blocklist source.
type BlocklistConfig struct {
	Name   string `mapstructure:"name"`
	URL    string `mapstructure:"url"`
	Format string `mapstructure:"format"` // "auto", "adblock", "hosts", "domains"
}

// RateLimitConfig controls the token-bucket rate limiter (ambient, carried
// from the teacher). This throttles request *rate*; ListenerConfig's
// PerIPConcurrency throttles concurrent in-flight requests, separately.
type RateLimitConfig struct {
	CleanupSeconds   float64 `mapstructure:"cleanup_seconds"`
	MaxIPEntries     int     `mapstructure:"max_ip_entries"`
	MaxPrefixEntries int     `mapstructure:"max_prefix_entries"`
	GlobalQPS        float64 `mapstructure:"global_qps"`
	GlobalBurst      int     `mapstructure:"global_burst"`
	PrefixQPS        float64 `mapstructure:"prefix_qps"`
	PrefixBurst      int     `mapstructure:"prefix_burst"`
	IPQPS            float64 `mapstructure:"ip_qps"`
	IPBurst          int     `mapstructure:"ip_burst"`
}

// ListenerConfig contains §4.J listener tunables.
type ListenerConfig struct {
	UDPWorkersPerSocket int `mapstructure:"udp_workers_per_socket"`
	PerIPConcurrency    int `mapstructure:"per_ip_concurrency"`
	TCPIdleTimeoutSecs  int `mapstructure:"tcp_idle_timeout_secs"`
}

// CacheConfig controls the answer/negative TTL caches (internal/cache).
type CacheConfig struct {
	AnswerCacheSize      int             `mapstructure:"answer_cache_size"`
	NegativeCacheSize    int             `mapstructure:"negative_cache_size"`
	AnswerCacheMaxBytes  int             `mapstructure:"answer_cache_max_bytes"`
	NegativeCacheMaxBytes int            `mapstructure:"negative_cache_max_bytes"`
	MinTTLSecs           int             `mapstructure:"min_ttl"`
	MaxTTLSecs           int             `mapstructure:"max_ttl"`
	NegativeTTLSecs      int             `mapstructure:"negative_ttl"`
	PrefetchThresholdSecs int            `mapstructure:"prefetch_threshold_secs"`
	StaleWindowSecs      int             `mapstructure:"stale_window_secs"`
	HighWatermarkPercent float64         `mapstructure:"high_watermark_percent"`
	Negative             NegativeConfig  `mapstructure:"negative"`
}

// NegativeConfig controls negative-caching policy (RFC 2308-ish, with
// two-hit admission as the spec's anti-poisoning measure).
type NegativeConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	CacheNXDOMAIN bool `mapstructure:"cache_nxdomain"`
	CacheNODATA   bool `mapstructure:"cache_nodata"`
	TwoHit        bool `mapstructure:"two_hit"`
	ProbeTTLSecs  int  `mapstructure:"probe_ttl_secs"`
	MinTTLSecs    int  `mapstructure:"min_ttl"`
	MaxTTLSecs    int  `mapstructure:"max_ttl"`
}

// APIConfig contains the management/admin API settings (read-only status
// surface per SPEC_FULL.md's narrowing of the teacher's full CRUD API).
//
// Note: APIKey is intentionally treated as a secret and should not be
// returned by API endpoints.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	APIKey  string `mapstructure:"api_key"`
}

// StoreConfig points at the SQLite-backed probe-ledger/stats-snapshot store.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ClusterMode selects this node's role in root-hints/blocklist propagation.
type ClusterMode string

const (
	ClusterModeStandalone ClusterMode = "standalone"
	ClusterModePrimary    ClusterMode = "primary"
	ClusterModeSecondary  ClusterMode = "secondary"
)

// ClusterConfig controls root-hints/blocklist propagation between nodes.
type ClusterConfig struct {
	Mode             ClusterMode `mapstructure:"mode"`
	PrimaryURL       string      `mapstructure:"primary_url"`
	SharedSecret     string      `mapstructure:"shared_secret"`
	NodeID           string      `mapstructure:"node_id"`
	SyncInterval     string      `mapstructure:"sync_interval"`
	SyncTimeout      string      `mapstructure:"sync_timeout"`
	PollIntervalSecs int         `mapstructure:"poll_interval_secs"`
}

// CustomDNSConfig holds static host/CNAME overrides. Retained from the
// teacher's simple-record feature; SPEC_FULL.md's local zone store
// (internal/zone) is the primary override mechanism, this is a lighter
// legacy path the resolver chain still consults first.
type CustomDNSConfig struct {
	Hosts  map[string][]string `mapstructure:"hosts"`
	CNAMEs map[string]string   `mapstructure:"cnames"`
}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Iterative IterativeConfig `mapstructure:"-"` // populated from top-level keys, see loadIterativeConfig
	Zones     ZonesConfig     `mapstructure:"zones"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Filtering FilteringConfig `mapstructure:"filters"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Listener  ListenerConfig  `mapstructure:"listener"`
	Cache     CacheConfig     `mapstructure:"cache"`
	API       APIConfig       `mapstructure:"admin"`
	Store     StoreConfig     `mapstructure:"store"`
	Cluster   ClusterConfig   `mapstructure:"cluster"`
	CustomDNS CustomDNSConfig `mapstructure:"custom_dns"`
}

// ResolveConfigPath determines the config file path from flag or environment.
func ResolveConfigPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if v := strings.TrimSpace(os.Getenv("HYDRADNS_CONFIG")); v != "" {
		return v
	}
	return ""
}

// Load loads configuration from a TOML file with environment variable overrides.
// This is the main entry point for loading configuration.
//
// Configuration priority (highest to lowest):
//  1. Environment variables (HYDRADNS_*)
//  2. Config file values
//  3. Default values
func Load(path string) (*Config, error) {
	return loadFromSource(path)
}
