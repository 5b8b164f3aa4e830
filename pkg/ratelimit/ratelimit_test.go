package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTokenBucket_Allow(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(5, 1, clock.Now)

	for i := 0; i < 5; i++ {
		assert.True(t, bucket.Allow(), "request %d should be allowed", i+1)
	}
	assert.False(t, bucket.Allow(), "6th request should be denied")

	clock.Advance(1100 * time.Millisecond)
	assert.True(t, bucket.Allow(), "request after refill should be allowed")
	assert.False(t, bucket.Allow())
}

func TestTokenBucket_FractionalRefillCarriesOver(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(2, 2, clock.Now) // 500ms per token

	assert.True(t, bucket.AllowN(2))

	clock.Advance(300 * time.Millisecond)
	assert.False(t, bucket.Allow())

	// 300ms + 300ms = 600ms: 한 개 리필
	clock.Advance(300 * time.Millisecond)
	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow())
}

func TestTokenBucket_CapacityCap(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(3, 1, clock.Now)

	clock.Advance(time.Hour)
	assert.True(t, bucket.AllowN(3))
	assert.False(t, bucket.Allow())
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	limiter := newRateLimiter(3, 1, clock.Now)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("user:1"))
	}
	assert.False(t, limiter.Allow("user:1"))
	assert.True(t, limiter.Allow("user:2"))
	assert.Equal(t, int64(3), limiter.Capacity())
}

func TestRateLimiter_Reset(t *testing.T) {
	clock := newFakeClock()
	limiter := newRateLimiter(1, 1, clock.Now)

	assert.True(t, limiter.Allow("user:1"))
	assert.False(t, limiter.Allow("user:1"))

	limiter.Reset("user:1")
	assert.True(t, limiter.Allow("user:1"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	clock := newFakeClock()
	limiter := newRateLimiter(5, 1, clock.Now)

	limiter.Allow("user:1")
	clock.Advance(5 * time.Minute)
	limiter.Allow("user:2")
	assert.Equal(t, 2, limiter.ActiveBuckets())

	clock.Advance(6 * time.Minute)
	limiter.cleanup()
	assert.Equal(t, 1, limiter.ActiveBuckets())
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	limiter := newRateLimiter(100, 0, time.Now)

	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if limiter.Allow("shared") {
					atomic.AddInt64(&allowed, 1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), allowed)
}

func BenchmarkRateLimiter_Allow(b *testing.B) {
	limiter := NewRateLimiter(1000000, 1000000)
	defer limiter.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		limiter.Allow(fmt.Sprintf("user:%d", i%100))
	}
}
