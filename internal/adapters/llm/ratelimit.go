package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimiter admits at most limit requests per sliding window. Callers
// over the limit block cooperatively until the oldest request ages out.
type RateLimiter struct {
	mu     sync.Mutex
	stamps []time.Time
	limit  int
	window time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a sliding-window limiter.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Acquire blocks until a request slot is free or the context is done.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.now()
		r.evict(now)

		if len(r.stamps) < r.limit {
			r.stamps = append(r.stamps, now)
			r.mu.Unlock()
			return nil
		}

		// Wait for the oldest request to leave the window
		wait := r.stamps[0].Add(r.window).Sub(now) + 10*time.Millisecond
		r.mu.Unlock()

		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Available returns the number of slots free right now.
func (r *RateLimiter) Available(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evict(now)
	return r.limit - len(r.stamps)
}

// evict drops timestamps older than the window. Caller holds the lock.
func (r *RateLimiter) evict(now time.Time) {
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(r.stamps) && !r.stamps[i].After(cutoff) {
		i++
	}
	r.stamps = r.stamps[i:]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
