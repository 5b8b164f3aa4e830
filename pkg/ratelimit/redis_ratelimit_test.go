package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisRateLimiter 테스트용 Redis Rate Limiter
// 주의: 실제 Redis 서버가 필요합니다 (localhost:6379)
func setupRedisRateLimiter(t *testing.T) (*redis.Client, *RedisRateLimiter) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 테스트용 DB
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis server not available: %v", err)
	}
	client.FlushDB(ctx)

	return client, NewRedisRateLimiter(client, "test:ratelimit:")
}

func TestRedisRateLimiter_Exhaust(t *testing.T) {
	client, limiter := setupRedisRateLimiter(t)
	defer client.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, "user:1", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, info, err := limiter.AllowWithInfo(ctx, "user:1", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Equal(t, 5, info.Limit)
	assert.True(t, info.ResetTime.After(time.Now()))

	// 다른 키는 영향 없음
	allowed, err = limiter.Allow(ctx, "user:2", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimiter_Refill(t *testing.T) {
	client, limiter := setupRedisRateLimiter(t)
	defer client.Close()

	now := time.Now()
	limiter.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "user:1", 2, 2*time.Second)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := limiter.Allow(ctx, "user:1", 2, 2*time.Second)
	require.NoError(t, err)
	assert.False(t, allowed)

	// 초당 1개 리필
	now = now.Add(time.Second)
	allowed, err = limiter.Allow(ctx, "user:1", 2, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimiter_Reset(t *testing.T) {
	client, limiter := setupRedisRateLimiter(t)
	defer client.Close()

	ctx := context.Background()
	allowed, err := limiter.Allow(ctx, "user:1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "user:1", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "user:1"))

	allowed, err = limiter.Allow(ctx, "user:1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimiter_InvalidArguments(t *testing.T) {
	limiter := NewRedisRateLimiter(nil, "")

	_, err := limiter.Allow(context.Background(), "user:1", 0, time.Minute)
	assert.Error(t, err)
	_, err = limiter.Allow(context.Background(), "user:1", 1, 0)
	assert.Error(t, err)
}

func TestRedisRateLimiter_ConcurrentRequests(t *testing.T) {
	client, limiter := setupRedisRateLimiter(t)
	defer client.Close()

	var allowedCount int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, err := limiter.Allow(context.Background(), "user:shared", 10, time.Hour)
			if err == nil && allowed {
				atomic.AddInt32(&allowedCount, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), allowedCount)
}
