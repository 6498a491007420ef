package security

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_FirstRequestSetsWindow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2)

	mock.ExpectIncr("ratelimit:checkout:10.0.0.1").SetVal(1)
	mock.ExpectExpire("ratelimit:checkout:10.0.0.1", time.Minute).SetVal(true)

	assert.True(t, limiter.Allow(context.Background(), "checkout", "10.0.0.1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_RejectsOverLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2)

	mock.ExpectIncr("ratelimit:scan:10.0.0.2").SetVal(2)
	mock.ExpectIncr("ratelimit:scan:10.0.0.2").SetVal(3)

	assert.True(t, limiter.Allow(context.Background(), "scan", "10.0.0.2"))
	assert.False(t, limiter.Allow(context.Background(), "scan", "10.0.0.2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_FallsBackWhenRedisDown(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2)

	for i := 0; i < 3; i++ {
		mock.ExpectIncr("ratelimit:checkout:10.0.0.3").SetErr(errors.New("connection refused"))
	}

	ctx := context.Background()
	assert.True(t, limiter.Allow(ctx, "checkout", "10.0.0.3"))
	assert.True(t, limiter.Allow(ctx, "checkout", "10.0.0.3"))
	assert.False(t, limiter.Allow(ctx, "checkout", "10.0.0.3"))
}

func TestRateLimiter_WithoutRedis(t *testing.T) {
	limiter := NewRateLimiter(nil, 1)

	ctx := context.Background()
	assert.True(t, limiter.Allow(ctx, "api", "10.0.0.4"))
	assert.False(t, limiter.Allow(ctx, "api", "10.0.0.4"))
	assert.True(t, limiter.Allow(ctx, "api", "10.0.0.5"))
}

func TestRateLimiter_EvictsIdleLocalBuckets(t *testing.T) {
	limiter := NewRateLimiter(nil, 1)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		limiter.Allow(ctx, "api", fmt.Sprintf("10.1.0.%d", i))
	}
	assert.Len(t, limiter.fallback, 100)

	now = now.Add(fallbackIdle)
	assert.True(t, limiter.Allow(ctx, "api", "10.2.0.1"))
	assert.Len(t, limiter.fallback, 1)

	// Recently seen clients keep their bucket across a sweep.
	now = now.Add(4 * time.Minute)
	limiter.Allow(ctx, "api", "10.2.0.2")
	now = now.Add(time.Minute)
	limiter.Allow(ctx, "api", "10.2.0.3")
	assert.Len(t, limiter.fallback, 2)
	assert.NotContains(t, limiter.fallback, "api:10.2.0.1")
	assert.Contains(t, limiter.fallback, "api:10.2.0.2")
}

func TestIsSuspiciousUserAgent(t *testing.T) {
	tests := map[string]bool{
		"":               true,
		"Googlebot/2.1":  true,
		"python-scraper": true,
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0)": false,
	}

	for ua, want := range tests {
		assert.Equal(t, want, IsSuspiciousUserAgent(ua), ua)
	}
}
