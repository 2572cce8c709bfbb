package singleflight

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDoCoalesces(t *testing.T) {
	g := New[string, int]()
	var calls atomic.Int32
	start := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 10)
	for i := range 10 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			v, err, _ := g.Do(context.Background(), "key", func(ctx context.Context) (int, error) {
				calls.Add(1)
				time.Sleep(20 * time.Millisecond)
				return 42, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, 42, r)
	}
}

func TestDoSequentialCallsReexecute(t *testing.T) {
	g := New[string, int]()
	var calls atomic.Int32

	for range 3 {
		v, err, shared := g.Do(context.Background(), "key", func(ctx context.Context) (int, error) {
			calls.Add(1)
			return int(calls.Load()), nil
		})
		assert.NoError(t, err)
		assert.False(t, shared)
		_ = v
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoContextCancelledWhileWaiting(t *testing.T) {
	g := New[string, int]()
	release := make(chan struct{})

	go func() {
		_, _, _ = g.Do(context.Background(), "key", func(ctx context.Context) (int, error) {
			<-release
			return 1, nil
		})
	}()

	time.Sleep(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err, shared := g.Do(ctx, "key", func(ctx context.Context) (int, error) {
		t.Fatal("fn should not run for a waiter")
		return 0, nil
	})
	assert.True(t, shared)
	assert.ErrorIs(t, err, context.Canceled)
	close(release)
}

func TestLenAndInFlight(t *testing.T) {
	g := New[string, int]()
	assert.Equal(t, 0, g.Len())
	assert.False(t, g.InFlight("key"))

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _, _ = g.Do(context.Background(), "key", func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()
	<-started
	assert.True(t, g.InFlight("key"))
	close(release)
}
