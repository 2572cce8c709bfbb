// Package handlers implements the read-only admin/status endpoint handlers
// for HydraDNS.
//
// @title HydraDNS Admin API
// @version 1.0
// @description Read-only status and introspection API: health, stats, cache
// occupancy, and delegation cache contents. Configuration is owned by TOML
// files, not this API; there are no mutation endpoints here.
//
// @contact.name HydraDNS
//
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
//
// @host localhost:8080
// @BasePath /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
package handlers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hydraresolve/hydraresolve/internal/cluster"
)

// DNSStatsSnapshot is a point-in-time read of resolver query counters.
type DNSStatsSnapshot struct {
	QueriesTotal uint64
	QueriesUDP   uint64
	QueriesTCP   uint64
	ResponsesNX  uint64
	ResponsesErr uint64
	AvgLatencyMs float64
}

// DNSStatsFunc returns the current DNS query counters.
type DNSStatsFunc func() DNSStatsSnapshot

// CacheStats mirrors cache.Stats without importing the generic cache
// package here, so this package stays dependency-free of the cache's type
// parameter.
type CacheStats struct {
	Entries, WeightBytes, Hits, Misses, NearExpiry, StaleServed int
}

// CacheEntry is one cache entry as reported for introspection.
type CacheEntry struct {
	Key       string
	Type      string
	ExpiresAt time.Time
}

// CacheStatsFunc returns the current stats for one cache.
type CacheStatsFunc func() CacheStats

// CacheEntriesFunc returns up to limit cache entries for introspection.
type CacheEntriesFunc func(limit int) []CacheEntry

// DelegationEntry is one cached NS delegation point.
type DelegationEntry struct {
	Zone      string
	NS        []string
	GlueNames []string
	ExpiresAt time.Time
}

// DelegationEntriesFunc returns up to limit cached delegation points.
type DelegationEntriesFunc func(limit int) []DelegationEntry

// ClusterStatusFunc returns this node's current cluster sync status.
// Standalone/primary nodes with no active syncer return the zero value.
type ClusterStatusFunc func() cluster.SyncStatus

// ClusterExportFunc builds this node's current root-hints/blocklist export,
// for a secondary node to pull. Only meaningful on primary/standalone nodes.
type ClusterExportFunc func() (*cluster.ExportData, error)

// Handler contains the read-only introspection hooks for admin endpoints.
// Each hook is wired in by cmd/hydradns once the corresponding resolver
// component exists; a nil hook degrades its endpoint to empty/zero output
// rather than panicking, so the admin surface can come up before every
// resolver component has finished initializing.
type Handler struct {
	logger    *slog.Logger
	nodeID    string
	startTime time.Time

	mu                 sync.RWMutex
	dnsStats           DNSStatsFunc
	answerCacheStats   CacheStatsFunc
	answerCacheList    CacheEntriesFunc
	negativeCacheStats CacheStatsFunc
	negativeCacheList  CacheEntriesFunc
	delegationsList    DelegationEntriesFunc
	clusterStatus      ClusterStatusFunc
	clusterExport      ClusterExportFunc
}

// New creates a new Handler.
func New(logger *slog.Logger, nodeID string) *Handler {
	return &Handler{
		logger:    logger,
		nodeID:    nodeID,
		startTime: time.Now(),
	}
}

func (h *Handler) SetDNSStatsFunc(fn DNSStatsFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dnsStats = fn
}

func (h *Handler) GetDNSStatsFunc() DNSStatsFunc {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dnsStats
}

func (h *Handler) SetAnswerCacheHooks(stats CacheStatsFunc, list CacheEntriesFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.answerCacheStats = stats
	h.answerCacheList = list
}

func (h *Handler) SetNegativeCacheHooks(stats CacheStatsFunc, list CacheEntriesFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.negativeCacheStats = stats
	h.negativeCacheList = list
}

func (h *Handler) SetDelegationsFunc(fn DelegationEntriesFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.delegationsList = fn
}

func (h *Handler) SetClusterStatusFunc(fn ClusterStatusFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clusterStatus = fn
}

func (h *Handler) SetClusterExportFunc(fn ClusterExportFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clusterExport = fn
}
