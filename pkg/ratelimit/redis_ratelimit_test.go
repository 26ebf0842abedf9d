package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisClient(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 테스트용 DB
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skip("Redis not available:", err)
	}
	return client
}

func TestRedisLimiter_Allow(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	limiter := NewRedisLimiter(client, 3, time.Minute)
	ctx := context.Background()
	key := "test:user:123"
	require.NoError(t, limiter.Reset(ctx, key))
	defer limiter.Reset(ctx, key)

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.True(t, d.ResetAt.After(time.Now()))
}

func TestRedisLimiter_WindowExpires(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	limiter := NewRedisLimiter(client, 1, 500*time.Millisecond)
	ctx := context.Background()
	key := "test:window"
	require.NoError(t, limiter.Reset(ctx, key))
	defer limiter.Reset(ctx, key)

	d, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = limiter.Allow(ctx, key)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	time.Sleep(600 * time.Millisecond)

	d, err = limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
