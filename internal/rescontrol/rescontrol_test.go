package rescontrol

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	maxBytes int
	calls    int
}

func (f *fakeTarget) SetMaxBytes(maxBytes int) {
	f.maxBytes = maxBytes
	f.calls++
}

func TestTickLeavesBudgetUntouchedBelowWatermark(t *testing.T) {
	target := &fakeTarget{}
	c := New(Config{
		Target:               target,
		BaseMaxBytes:         1_000_000,
		HighWatermarkPercent: 85,
		Sample:               func() (float64, error) { return 50, nil },
	})

	c.Tick()
	assert.Zero(t, target.calls, "budget should not be touched when memory is healthy")
}

func TestTickShrinksBudgetAboveWatermark(t *testing.T) {
	target := &fakeTarget{}
	c := New(Config{
		Target:               target,
		BaseMaxBytes:         1_000_000,
		HighWatermarkPercent: 85,
		Sample:               func() (float64, error) { return 92.5, nil },
	})

	c.Tick()
	require.Equal(t, 1, target.calls)
	assert.Less(t, target.maxBytes, 1_000_000)
	assert.Greater(t, target.maxBytes, 0)
}

func TestTickClampsAtFullPressure(t *testing.T) {
	target := &fakeTarget{}
	c := New(Config{
		Target:               target,
		BaseMaxBytes:         1_000_000,
		HighWatermarkPercent: 85,
		Sample:               func() (float64, error) { return 100, nil },
	})

	c.Tick()
	assert.Equal(t, 100_000, target.maxBytes) // floor at 10% of base
}

func TestTickRestoresBudgetOncePressureSubsides(t *testing.T) {
	target := &fakeTarget{}
	usedPercent := 95.0
	c := New(Config{
		Target:               target,
		BaseMaxBytes:         1_000_000,
		HighWatermarkPercent: 85,
		Sample:               func() (float64, error) { return usedPercent, nil },
	})

	c.Tick()
	require.Less(t, target.maxBytes, 1_000_000)

	usedPercent = 40
	c.Tick()
	assert.Equal(t, 1_000_000, target.maxBytes)
}

func TestTickSkipsOnSampleError(t *testing.T) {
	target := &fakeTarget{}
	c := New(Config{
		Target:               target,
		BaseMaxBytes:         1_000_000,
		HighWatermarkPercent: 85,
		Sample:               func() (float64, error) { return 0, assert.AnError },
	})

	c.Tick()
	assert.Zero(t, target.calls)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	target := &fakeTarget{}
	c := New(Config{
		Target:               target,
		BaseMaxBytes:         1_000_000,
		HighWatermarkPercent: 85,
		Interval:             time.Millisecond,
		Sample:               func() (float64, error) { return 95, nil },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
	assert.Greater(t, target.calls, 0)
}

func TestRunNoopsWithoutTargetOrBudget(t *testing.T) {
	c := New(Config{BaseMaxBytes: 0, Sample: func() (float64, error) { return 95, nil }})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Run(ctx) // should return immediately, not panic
}
