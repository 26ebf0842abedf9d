package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLimiter_Allow(t *testing.T) {
	limiter := NewLocalLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 3, d.Limit)
	assert.True(t, d.ResetAt.After(time.Now()))

	// 다른 키는 영향 없음
	d, err = limiter.Allow(ctx, "user:2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLocalLimiter_Refill(t *testing.T) {
	now := time.Now()
	limiter := NewLocalLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, _ := limiter.Allow(ctx, "k")
		require.True(t, d.Allowed)
	}
	d, _ := limiter.Allow(ctx, "k")
	require.False(t, d.Allowed)

	// 2개/분 = 30초마다 1개
	now = now.Add(31 * time.Second)
	d, _ = limiter.Allow(ctx, "k")
	assert.True(t, d.Allowed)
	d, _ = limiter.Allow(ctx, "k")
	assert.False(t, d.Allowed)
}

func TestLocalLimiter_ResetAndPrune(t *testing.T) {
	now := time.Now()
	limiter := NewLocalLimiter(1, time.Minute)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	d, _ := limiter.Allow(ctx, "a")
	require.True(t, d.Allowed)
	limiter.Reset("a")
	d, _ = limiter.Allow(ctx, "a")
	assert.True(t, d.Allowed)

	_, _ = limiter.Allow(ctx, "b")
	now = now.Add(10 * time.Minute)
	assert.Equal(t, 2, limiter.Prune(5*time.Minute))
}

func TestLocalLimiter_ConcurrentAccess(t *testing.T) {
	limiter := NewLocalLimiter(50, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, _ := limiter.Allow(ctx, "shared"); d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}
