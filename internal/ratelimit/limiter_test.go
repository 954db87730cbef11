// ABOUTME: Tests for the sliding-window limiter.
// ABOUTME: Uses a fake clock so window expiry is deterministic.

package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlickxl/iplicit-mcp-server/internal/iplicit"
)

// fakeClock drives the limiter's view of time manually.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(cfg Config, clock *fakeClock) *Limiter {
	l := New(cfg)
	l.now = clock.now
	// sleeping advances the fake clock instead of waiting
	l.sleep = func(ctx context.Context, d time.Duration) error {
		clock.advance(d)
		return ctx.Err()
	}
	return l
}

func TestTryAcquire_WindowCapacity(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(Config{Capacity: 3, Window: time.Minute}, clock)

	for i := 0; i < 3; i++ {
		_, ok := l.TryAcquire()
		require.True(t, ok, "call %d should fit in the window", i+1)
	}

	wait, ok := l.TryAcquire()
	assert.False(t, ok, "4th call must be rejected")
	assert.Equal(t, time.Minute, wait, "retry hint is until the oldest entry expires")
	assert.Equal(t, 3, l.InFlight())
}

func TestTryAcquire_SlotFreesWhenOldestExpires(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(Config{Capacity: 2, Window: time.Minute}, clock)

	_, ok := l.TryAcquire()
	require.True(t, ok)
	clock.advance(30 * time.Second)
	_, ok = l.TryAcquire()
	require.True(t, ok)

	_, ok = l.TryAcquire()
	require.False(t, ok)

	// 31s later the first entry has left the window; exactly one slot frees.
	clock.advance(31 * time.Second)
	_, ok = l.TryAcquire()
	assert.True(t, ok)
	_, ok = l.TryAcquire()
	assert.False(t, ok)
}

func TestAcquire_NonBlockingReturnsRateLimitError(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(Config{Capacity: 1, Window: time.Minute, Blocking: false}, clock)

	require.NoError(t, l.Acquire(context.Background()))

	err := l.Acquire(context.Background())
	var rerr *iplicit.RateLimitError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, time.Minute, rerr.RetryAfter)
	assert.False(t, rerr.Upstream, "local rejection is not an upstream 429")
}

func TestAcquire_BlockingWaitsForSlot(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(Config{Capacity: 1, Window: time.Minute, Blocking: true}, clock)

	require.NoError(t, l.Acquire(context.Background()))

	// The second acquire sleeps (advancing the fake clock) until the first
	// entry expires, then succeeds.
	require.NoError(t, l.Acquire(context.Background()))
	assert.Equal(t, 1, l.InFlight())
}

func TestAcquire_CancelledWaiterConsumesNoSlot(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(Config{Capacity: 1, Window: time.Minute, Blocking: true}, clock)
	l.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	require.NoError(t, l.Acquire(context.Background()))
	err := l.Acquire(context.Background())
	require.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, l.InFlight())
}

func TestAcquire_DegenerateQuotaRejectsEverything(t *testing.T) {
	clock := newFakeClock()

	for name, cfg := range map[string]Config{
		"zero capacity": {Capacity: 0, Window: time.Minute},
		"zero window":   {Capacity: 10, Window: 0},
	} {
		t.Run(name, func(t *testing.T) {
			l := newTestLimiter(cfg, clock)
			_, ok := l.TryAcquire()
			assert.False(t, ok)

			// Blocking mode must reject too rather than wait for a slot
			// that can never free.
			blocking := newTestLimiter(Config{
				Capacity: cfg.Capacity,
				Window:   cfg.Window,
				Blocking: true,
			}, clock)
			blocking.sleep = func(ctx context.Context, d time.Duration) error {
				t.Fatal("degenerate quota must reject without sleeping")
				return nil
			}
			err := blocking.Acquire(context.Background())
			var rerr *iplicit.RateLimitError
			require.ErrorAs(t, err, &rerr)
			assert.False(t, rerr.Upstream)
		})
	}
}

func TestTryAcquire_ConcurrentCallersNeverOvercount(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(Config{Capacity: 50, Window: time.Minute}, clock)

	var wg sync.WaitGroup
	granted := make(chan struct{}, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := l.TryAcquire(); ok {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	assert.Equal(t, 50, count)
	assert.Equal(t, 50, l.InFlight())
}
