// ABOUTME: Sliding-window rate limiter for outbound iplicit API calls.
// ABOUTME: Tracks accepted-call timestamps and blocks or rejects when the window is full.

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/qlickxl/iplicit-mcp-server/internal/iplicit"
)

// Config sets the quota window. The iplicit API allows 1500 requests per
// 5 minutes; both values come from configuration rather than being baked in.
type Config struct {
	Capacity int
	Window   time.Duration

	// Blocking selects whether Acquire waits for a slot to free or fails
	// immediately with a retry-after hint.
	Blocking bool
}

// Limiter counts calls in a moving window. The prune-check-record sequence
// runs under one mutex so concurrent callers can neither overcount nor
// undercount the window.
type Limiter struct {
	capacity int
	window   time.Duration
	blocking bool

	mu     sync.Mutex
	stamps []time.Time // accepted-call times, oldest first

	// injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a limiter. A degenerate quota (capacity or window <= 0)
// rejects every call.
func New(cfg Config) *Limiter {
	return &Limiter{
		capacity: cfg.Capacity,
		window:   cfg.Window,
		blocking: cfg.Blocking,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Acquire obtains one call slot. In blocking mode it waits until the oldest
// window entry expires; in non-blocking mode a full window yields
// *iplicit.RateLimitError carrying the retry-after duration. A waiter whose
// context is cancelled consumes no slot. A degenerate quota rejects
// immediately even in blocking mode: no amount of waiting frees a slot.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.capacity <= 0 || l.window <= 0 {
		return &iplicit.RateLimitError{RetryAfter: l.window}
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait, ok := l.TryAcquire()
		if ok {
			return nil
		}
		if !l.blocking {
			return &iplicit.RateLimitError{RetryAfter: wait}
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// TryAcquire attempts to take a slot without waiting. On success it records
// the call and returns (0, true); otherwise it returns how long until the
// earliest slot frees.
func (l *Limiter) TryAcquire() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.capacity <= 0 || l.window <= 0 {
		return l.window, false
	}

	now := l.now()
	l.prune(now)

	if len(l.stamps) < l.capacity {
		l.stamps = append(l.stamps, now)
		return 0, true
	}

	// Oldest survivor frees its slot when it leaves the window.
	wait := l.stamps[0].Add(l.window).Sub(now)
	if wait <= 0 {
		wait = time.Nanosecond
	}
	return wait, false
}

// InFlight returns how many recorded calls remain inside the window.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.stamps)
}

// prune drops entries older than the window. Must be called with mu held.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
