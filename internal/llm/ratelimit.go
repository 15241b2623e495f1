package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// rateLimiter is a token bucket holding up to one minute of requests.
// Tokens are refilled lazily from the elapsed time on each acquire.
type rateLimiter struct {
	lastRefill time.Time
	now        func() time.Time
	tokens     float64
	capacity   float64
	perSecond  float64
	mu         sync.Mutex
}

// newRateLimiter creates a new rate limiter with the specified requests per minute.
func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}

	return &rateLimiter{
		tokens:     float64(requestsPerMinute),
		capacity:   float64(requestsPerMinute),
		perSecond:  float64(requestsPerMinute) / 60,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// wait blocks until a token is available or the context is canceled.
func (rl *rateLimiter) wait(ctx context.Context) error {
	for {
		delay, ok := rl.reserve()
		if ok {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// tryAcquire attempts to acquire a token without blocking.
func (rl *rateLimiter) tryAcquire() bool {
	_, ok := rl.reserve()
	return ok
}

// reserve takes a token if one is available, otherwise it reports how long
// until the next one arrives.
func (rl *rateLimiter) reserve() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.perSecond
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
	rl.lastRefill = now

	if rl.tokens >= 1 {
		rl.tokens--
		return 0, true
	}

	missing := 1 - rl.tokens
	return time.Duration(missing / rl.perSecond * float64(time.Second)), false
}

// reset restores the limiter to full capacity.
func (rl *rateLimiter) reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = rl.capacity
	rl.lastRefill = rl.now()
}
