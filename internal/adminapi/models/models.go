// Package models defines response types for the HydraDNS admin surface.
// All types are JSON-serializable. This surface is read-only: there are no
// request/create/update bodies, unlike the teacher's full CRUD API models.
package models

import "time"

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse represents a simple status response.
type StatusResponse struct {
	Status string `json:"status"`
}

// CPUStats contains system CPU statistics.
type CPUStats struct {
	NumCPU      int     `json:"num_cpu"`
	UsedPercent float64 `json:"used_percent"`
	IdlePercent float64 `json:"idle_percent"`
}

// MemoryStats contains system memory statistics.
type MemoryStats struct {
	TotalMB     float64 `json:"total_mb"`
	FreeMB      float64 `json:"free_mb"`
	UsedMB      float64 `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// DNSStatsResponse contains DNS query counters.
type DNSStatsResponse struct {
	QueriesTotal uint64  `json:"queries_total"`
	QueriesUDP   uint64  `json:"queries_udp"`
	QueriesTCP   uint64  `json:"queries_tcp"`
	ResponsesNX  uint64  `json:"responses_nxdomain"`
	ResponsesErr uint64  `json:"responses_error"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// CacheStatsResponse reports occupancy/hit-rate counters for one cache.
type CacheStatsResponse struct {
	Entries      int `json:"entries"`
	WeightBytes  int `json:"weight_bytes"`
	Hits         int `json:"hits"`
	Misses       int `json:"misses"`
	NearExpiry   int `json:"near_expiry"`
	StaleServed  int `json:"stale_served"`
}

// CacheEntrySummary is one cache entry as reported for introspection.
type CacheEntrySummary struct {
	Key       string    `json:"key"`
	Type      string    `json:"type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CacheResponse bundles stats and a bounded sample of entries.
type CacheResponse struct {
	Stats   CacheStatsResponse  `json:"stats"`
	Entries []CacheEntrySummary `json:"entries"`
}

// DelegationSummary is one cached NS delegation point.
type DelegationSummary struct {
	Zone      string   `json:"zone"`
	NS        []string `json:"ns"`
	GlueNames []string `json:"glue_names"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DelegationsResponse bundles delegation cache stats and a bounded sample.
type DelegationsResponse struct {
	Stats   CacheStatsResponse  `json:"stats"`
	Entries []DelegationSummary `json:"entries"`
}

// ClusterStatusResponse reports this node's cluster role and, for
// secondary nodes, the last root-hints/blocklist sync outcome.
type ClusterStatusResponse struct {
	Mode            string     `json:"mode"`
	NodeID          string     `json:"node_id"`
	PrimaryURL      string     `json:"primary_url,omitempty"`
	LastSyncTime    *time.Time `json:"last_sync_time,omitempty"`
	LastSyncVersion int64      `json:"last_sync_version,omitempty"`
	LastSyncError   string     `json:"last_sync_error,omitempty"`
	NextSyncTime    *time.Time `json:"next_sync_time,omitempty"`
	SyncCount       int64      `json:"sync_count"`
	ErrorCount      int64      `json:"error_count"`
	DataVersion     int64      `json:"data_version"`
}

// ServerStatsResponse contains server runtime statistics.
type ServerStatsResponse struct {
	Uptime        string           `json:"uptime"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	StartTime     time.Time        `json:"start_time"`
	NodeID        string           `json:"node_id"`
	CPU           CPUStats         `json:"cpu"`
	Memory        MemoryStats      `json:"memory"`
	DNSStats      DNSStatsResponse `json:"dns"`
}
