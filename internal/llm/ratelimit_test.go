package llm

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	t.Run("tryAcquire drains the bucket", func(t *testing.T) {
		rl := newRateLimiter(5)
		frozen := time.Now()
		rl.now = func() time.Time { return frozen }

		for i := 0; i < 5; i++ {
			assert.True(t, rl.tryAcquire(), "attempt %d", i+1)
		}
		assert.False(t, rl.tryAcquire())
	})

	t.Run("refills with elapsed time", func(t *testing.T) {
		rl := newRateLimiter(60)
		clock := time.Now()
		rl.now = func() time.Time { return clock }
		rl.lastRefill = clock

		for i := 0; i < 60; i++ {
			require.True(t, rl.tryAcquire())
		}
		require.False(t, rl.tryAcquire())

		delay, ok := rl.reserve()
		assert.False(t, ok)
		assert.InDelta(t, time.Second, delay, float64(10*time.Millisecond))

		clock = clock.Add(2 * time.Second)
		assert.True(t, rl.tryAcquire())
		assert.True(t, rl.tryAcquire())
		assert.False(t, rl.tryAcquire())
	})

	t.Run("never exceeds capacity", func(t *testing.T) {
		rl := newRateLimiter(3)
		clock := time.Now()
		rl.now = func() time.Time { return clock }
		rl.lastRefill = clock

		clock = clock.Add(time.Hour)
		for i := 0; i < 3; i++ {
			require.True(t, rl.tryAcquire())
		}
		assert.False(t, rl.tryAcquire())
	})

	t.Run("context cancellation", func(t *testing.T) {
		rl := newRateLimiter(1)
		require.NoError(t, rl.wait(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := rl.wait(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limiter canceled")
	})

	t.Run("reset", func(t *testing.T) {
		rl := newRateLimiter(2)
		frozen := time.Now()
		rl.now = func() time.Time { return frozen }

		require.True(t, rl.tryAcquire())
		require.True(t, rl.tryAcquire())
		require.False(t, rl.tryAcquire())

		rl.reset()
		assert.True(t, rl.tryAcquire())
	})

	t.Run("default rate limit", func(t *testing.T) {
		rl := newRateLimiter(0)
		for i := 0; i < 50; i++ {
			require.True(t, rl.tryAcquire(), "Expected default rate limit to allow many requests")
		}
	})

	t.Run("concurrent access", func(t *testing.T) {
		rl := newRateLimiter(100)
		frozen := time.Now()
		rl.now = func() time.Time { return frozen }

		var acquired atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					if rl.tryAcquire() {
						acquired.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(100), acquired.Load())
	})
}
