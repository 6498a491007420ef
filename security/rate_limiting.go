package security

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter counts requests per client in fixed one-minute Redis windows.
// When Redis cannot be reached it degrades to an in-process token bucket.
type RateLimiter struct {
	redis     *redis.Client
	perMinute int

	mu        sync.Mutex
	fallback  map[string]*localBucket
	lastSweep time.Time
	now       func() time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// fallbackIdle is how long an untouched local bucket is kept. A bucket idle
// this long has refilled completely, so dropping it loses nothing.
const fallbackIdle = 5 * time.Minute

func NewRateLimiter(redisClient *redis.Client, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &RateLimiter{
		redis:     redisClient,
		perMinute: perMinute,
		fallback:  make(map[string]*localBucket),
		now:       time.Now,
	}
}

// Allow reports whether the client identified by key may proceed.
func (r *RateLimiter) Allow(ctx context.Context, scope, key string) bool {
	if r.redis == nil {
		return r.localAllow(scope + ":" + key)
	}
	redisKey := fmt.Sprintf("ratelimit:%s:%s", scope, key)

	count, err := r.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		slog.Warn("rate limiter falling back to local bucket", "scope", scope, "error", err)
		return r.localAllow(scope + ":" + key)
	}
	if count == 1 {
		r.redis.Expire(ctx, redisKey, time.Minute)
	}
	return count <= int64(r.perMinute)
}

func (r *RateLimiter) localAllow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) >= fallbackIdle {
		r.sweepLocked(now)
	}

	b, ok := r.fallback[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(r.perMinute)), r.perMinute)}
		r.fallback[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// sweepLocked drops buckets idle for fallbackIdle. r.mu must be held.
func (r *RateLimiter) sweepLocked(now time.Time) {
	for key, b := range r.fallback {
		if now.Sub(b.lastSeen) >= fallbackIdle {
			delete(r.fallback, key)
		}
	}
	r.lastSweep = now
}

// Middleware limits a route group by client IP.
func (r *RateLimiter) Middleware(scope string) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if !r.Allow(e.Request.Context(), scope, e.RealIP()) {
			return e.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Too many requests",
			})
		}
		return e.Next()
	}
}

// AntiBotMiddleware rejects obvious automated clients on checkout routes.
func (r *RateLimiter) AntiBotMiddleware() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if IsSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
			return e.JSON(http.StatusForbidden, map[string]string{
				"error": "Access denied",
			})
		}
		return e.Next()
	}
}

func IsSuspiciousUserAgent(ua string) bool {
	if strings.TrimSpace(ua) == "" {
		return true
	}
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	lower := strings.ToLower(ua)
	for _, pattern := range suspicious {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
