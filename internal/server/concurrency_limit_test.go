package server

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConcurrencyLimiterAllowsUpToMax(t *testing.T) {
	c := NewConcurrencyLimiter(2)
	ip := netip.MustParseAddr("192.0.2.1")

	assert.True(t, c.TryAcquire(ip))
	assert.True(t, c.TryAcquire(ip))
	assert.False(t, c.TryAcquire(ip))
}

func TestConcurrencyLimiterReleaseFreesSlot(t *testing.T) {
	c := NewConcurrencyLimiter(1)
	ip := netip.MustParseAddr("192.0.2.1")

	assert.True(t, c.TryAcquire(ip))
	assert.False(t, c.TryAcquire(ip))

	c.Release(ip)
	assert.True(t, c.TryAcquire(ip))
}

func TestConcurrencyLimiterTracksIPsIndependently(t *testing.T) {
	c := NewConcurrencyLimiter(1)
	ip1 := netip.MustParseAddr("192.0.2.1")
	ip2 := netip.MustParseAddr("192.0.2.2")

	assert.True(t, c.TryAcquire(ip1))
	assert.True(t, c.TryAcquire(ip2))
	assert.False(t, c.TryAcquire(ip1))
}

func TestConcurrencyLimiterDefaultsWhenNonPositive(t *testing.T) {
	c := NewConcurrencyLimiter(0)
	assert.Equal(t, DefaultPerIPConcurrency, c.max)
}

func TestConcurrencyLimiterNilIsPermissive(t *testing.T) {
	var c *ConcurrencyLimiter
	ip := netip.MustParseAddr("192.0.2.1")
	assert.True(t, c.TryAcquire(ip))
	c.Release(ip) // must not panic
}
