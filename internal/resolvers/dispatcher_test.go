package resolvers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hydraresolve/hydraresolve/internal/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingResolver returns a fixed response and counts how many times
// Resolve was actually invoked, so tests can assert on cache/single-flight
// coalescing behavior.
type countingResolver struct {
	calls    int32
	response []byte
	err      error
	delay    time.Duration
}

func (c *countingResolver) Resolve(ctx context.Context, req dns.Packet, reqBytes []byte) (Result, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if c.err != nil {
		return Result{}, c.err
	}
	return Result{ResponseBytes: c.response, Source: "inner"}, nil
}

func (c *countingResolver) Close() error { return nil }

func positiveResponse(t *testing.T, ttl uint32) []byte {
	t.Helper()
	resp := dns.Packet{
		Header:    dns.Header{ID: 0x1234, Flags: uint16(dns.QRFlag)},
		Questions: []dns.Question{{Name: "example.com", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)}},
		Answers: []dns.Record{
			{Name: "example.com", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN), TTL: ttl, Data: []byte{1, 2, 3, 4}},
		},
	}
	b, err := resp.Marshal()
	require.NoError(t, err)
	return b
}

func testQuery() dns.Packet {
	return dns.Packet{
		Header:    dns.Header{ID: 0xBEEF},
		Questions: []dns.Question{{Name: "example.com", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)}},
	}
}

func TestDispatcher_MissThenHit(t *testing.T) {
	inner := &countingResolver{response: positiveResponse(t, 300)}
	d := NewDispatcher(inner, DispatcherConfig{MaxEntries: 10, MaxTTL: time.Hour})
	defer d.Close()

	req := testQuery()

	res, err := d.Resolve(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, "resolved", res.Source)
	assert.EqualValues(t, 1, inner.calls)

	res2, err := d.Resolve(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, "cache", res2.Source)
	assert.EqualValues(t, 1, inner.calls, "second query should be served from cache, not re-resolved")
}

func TestDispatcher_TransactionIDPatchedPerClient(t *testing.T) {
	inner := &countingResolver{response: positiveResponse(t, 300)}
	d := NewDispatcher(inner, DispatcherConfig{MaxEntries: 10, MaxTTL: time.Hour})
	defer d.Close()

	req := testQuery()
	req.Header.ID = 0x1111
	res, err := d.Resolve(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, byte(0x11), res.ResponseBytes[0])
	assert.Equal(t, byte(0x11), res.ResponseBytes[1])

	req.Header.ID = 0x2222
	res2, err := d.Resolve(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, byte(0x22), res2.ResponseBytes[0])
	assert.Equal(t, byte(0x22), res2.ResponseBytes[1])
}

func TestDispatcher_SingleFlightCoalescesConcurrentMisses(t *testing.T) {
	inner := &countingResolver{response: positiveResponse(t, 300), delay: 50 * time.Millisecond}
	d := NewDispatcher(inner, DispatcherConfig{MaxEntries: 10, MaxTTL: time.Hour})
	defer d.Close()

	req := testQuery()
	const n = 8
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := d.Resolve(context.Background(), req, nil)
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	assert.EqualValues(t, 1, inner.calls, "concurrent identical queries should coalesce into one resolution")
}

func TestDispatcher_ZeroTTLNotCached(t *testing.T) {
	inner := &countingResolver{response: positiveResponse(t, 0)}
	d := NewDispatcher(inner, DispatcherConfig{MaxEntries: 10, MaxTTL: time.Hour})
	defer d.Close()

	req := testQuery()
	_, err := d.Resolve(context.Background(), req, nil)
	require.NoError(t, err)
	_, err = d.Resolve(context.Background(), req, nil)
	require.NoError(t, err)

	assert.EqualValues(t, 2, inner.calls, "zero-TTL responses should not populate the cache")
}

func TestDispatcher_StaleTriggersBackgroundRefresh(t *testing.T) {
	inner := &countingResolver{response: positiveResponse(t, 1)}
	d := NewDispatcher(inner, DispatcherConfig{
		MaxEntries:  10,
		MaxTTL:      time.Hour,
		StaleWindow: time.Hour,
	})
	defer d.Close()

	req := testQuery()
	_, err := d.Resolve(context.Background(), req, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, inner.calls)

	time.Sleep(1100 * time.Millisecond)

	res, err := d.Resolve(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, "cache-stale", res.Source, "expired entry within the stale window should still be served")

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&inner.calls) >= 2
	}, time.Second, 10*time.Millisecond, "stale hit should trigger a background refresh")
}

func TestDispatcher_ContextCancelledOnMiss(t *testing.T) {
	inner := &countingResolver{response: positiveResponse(t, 300)}
	d := NewDispatcher(inner, DispatcherConfig{MaxEntries: 10, MaxTTL: time.Hour})
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Resolve(ctx, testQuery(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, inner.calls, "cancelled context should never reach the inner resolver")
}

func TestDispatcher_NegativeAdmissionGatesNXDOMAIN(t *testing.T) {
	nxFlags := uint16(dns.QRFlag) | uint16(dns.RCodeNXDomain)
	resp := dns.Packet{
		Header:    dns.Header{ID: 1, Flags: nxFlags},
		Questions: []dns.Question{{Name: "example.com", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)}},
	}
	b, err := resp.Marshal()
	require.NoError(t, err)

	inner := &countingResolver{response: b}
	admission := NewNegativeAdmission(NegativeAdmissionConfig{
		Enabled:       true,
		CacheNXDOMAIN: true,
		TwoHit:        true,
		ProbeTTL:      time.Minute,
	}, nil)

	d := NewDispatcher(inner, DispatcherConfig{
		MaxEntries:      10,
		MaxTTL:          time.Hour,
		NegativeEnabled: true,
		MaxNegativeTTL:  time.Minute,
		Admission:       admission,
	})
	defer d.Close()

	req := testQuery()

	// First miss only records a probe; two-hit admission withholds caching.
	res, err := d.Resolve(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, "resolved", res.Source)

	res2, err := d.Resolve(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, "resolved", res2.Source, "first probe should not admit the entry into the cache")
	assert.EqualValues(t, 2, inner.calls)

	// Second identical miss should satisfy the two-hit gate and get cached.
	res3, err := d.Resolve(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, "cache", res3.Source, "second matching miss should admit the NXDOMAIN into the cache")
	assert.EqualValues(t, 2, inner.calls)
}

func TestDispatcher_InnerErrorNotCached(t *testing.T) {
	inner := &countingResolver{err: context.DeadlineExceeded}
	d := NewDispatcher(inner, DispatcherConfig{MaxEntries: 10, MaxTTL: time.Hour})
	defer d.Close()

	_, err := d.Resolve(context.Background(), testQuery(), nil)
	assert.Error(t, err)
	_, err = d.Resolve(context.Background(), testQuery(), nil)
	assert.Error(t, err)

	assert.EqualValues(t, 2, inner.calls, "resolver errors should never populate the cache")
}
