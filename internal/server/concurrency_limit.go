package server

import (
	"net/netip"
	"sync"
)

// DefaultPerIPConcurrency is the default cap on in-flight UDP queries per
// source IP, per §4.J.
const DefaultPerIPConcurrency = 256

// ConcurrencyLimiter bounds the number of concurrently in-flight queries
// from a single source IP. It complements RateLimiter: the token bucket
// throttles request *rate* over time, this throttles the number of
// requests being processed *right now*. A client that sends a burst
// within its rate budget can still be held back here if its previous
// queries haven't finished (e.g. a slow upstream on the resolution path).
type ConcurrencyLimiter struct {
	max int

	mu       sync.Mutex
	inFlight map[netip.Addr]int
}

// NewConcurrencyLimiter creates a limiter capping in-flight requests per
// IP at max. A non-positive max falls back to DefaultPerIPConcurrency.
func NewConcurrencyLimiter(max int) *ConcurrencyLimiter {
	if max <= 0 {
		max = DefaultPerIPConcurrency
	}
	return &ConcurrencyLimiter{
		max:      max,
		inFlight: make(map[netip.Addr]int),
	}
}

// TryAcquire attempts to reserve a concurrency slot for ip. Returns false
// if the IP is already at its in-flight cap; the caller should drop the
// query rather than queue it.
func (c *ConcurrencyLimiter) TryAcquire(ip netip.Addr) bool {
	if c == nil {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight[ip] >= c.max {
		return false
	}
	c.inFlight[ip]++
	return true
}

// Release frees the concurrency slot acquired by a prior successful
// TryAcquire for ip.
func (c *ConcurrencyLimiter) Release(ip netip.Addr) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.inFlight[ip]
	if cur <= 1 {
		delete(c.inFlight, ip)
		return
	}
	c.inFlight[ip] = cur - 1
}
