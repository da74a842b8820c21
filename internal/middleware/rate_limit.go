package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/pageza/recipe-assistant/backend/internal/apperrors"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// Window is the time window for rate limiting
	Window time.Duration
	// Limit is the maximum number of requests allowed in the window
	Limit int
	// Key prefix for Redis keys
	KeyPrefix string
}

// RateLimiter enforces a per-user request budget. Counters live in Redis when a client
// is given (fixed window) and in per-process token buckets otherwise.
type RateLimiter struct {
	redis  *redis.Client
	local  *localBuckets
	config RateLimitConfig
	logger *slog.Logger
	now    func() time.Time
}

// RateLimitExceeded is the 429 body
type RateLimitExceeded struct {
	ErrorResponse
	RetryAfter int `json:"retry_after"`
}

// NewRateLimiter creates a new rate limiter instance. redisClient may be nil.
func NewRateLimiter(redisClient *redis.Client, config RateLimitConfig, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		redis:  redisClient,
		config: config,
		logger: logger,
		now:    time.Now,
	}
	if redisClient == nil {
		rl.local = newLocalBuckets(config.Window, config.Limit)
	}
	return rl
}

// NewAIRateLimiter limits calls to the AI endpoints per user per hour
func NewAIRateLimiter(redisClient *redis.Client, perHour int, logger *slog.Logger) *RateLimiter {
	return NewRateLimiter(redisClient, RateLimitConfig{
		Window:    time.Hour,
		Limit:     perHour,
		KeyPrefix: "rate_limit:ai",
	}, logger)
}

// RateLimitMiddleware returns a Gin middleware that enforces rate limiting. Requests
// without an authenticated user are keyed by client IP.
func (rl *RateLimiter) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userID, ok := UserID(c); ok {
			key = "user:" + userID.String()
		}

		allowed, remaining, resetTime, err := rl.IsAllowed(c.Request.Context(), key)
		if err != nil {
			// Fail open
			rl.logger.WarnContext(c.Request.Context(), "rate limit check failed", "key", key, "error", err)
			c.Header("X-RateLimit-Error", "rate limit check failed")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			retryAfter := int(math.Ceil(resetTime.Sub(rl.now()).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitExceeded{
				ErrorResponse: ErrorResponse{
					Detail: fmt.Sprintf("You have exceeded the rate limit of %d requests per %v", rl.config.Limit, rl.config.Window),
					Code:   apperrors.CodeRateLimited,
				},
				RetryAfter: retryAfter,
			})
			return
		}

		c.Next()
	}
}

// IsAllowed counts a request for key.
// Returns: allowed, remaining requests, reset time, error
func (rl *RateLimiter) IsAllowed(ctx context.Context, key string) (bool, int, time.Time, error) {
	now := rl.now()
	if rl.local != nil {
		allowed, remaining, reset := rl.local.allow(key, now)
		return allowed, remaining, reset, nil
	}

	windowStart := now.Truncate(rl.config.Window)
	redisKey := fmt.Sprintf("%s:%s:%d", rl.config.KeyPrefix, key, windowStart.Unix())

	pipe := rl.redis.Pipeline()
	incrCmd := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, err
	}

	count := int(incrCmd.Val())
	remaining := rl.config.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	return count <= rl.config.Limit, remaining, windowStart.Add(rl.config.Window), nil
}

const sweepThreshold = 1024

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localBuckets is a per-key token bucket refilled evenly over the window
type localBuckets struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	every   time.Duration
	burst   int
	window  time.Duration
}

func newLocalBuckets(window time.Duration, limit int) *localBuckets {
	if limit < 1 {
		limit = 1
	}
	return &localBuckets{
		buckets: make(map[string]*bucket),
		every:   window / time.Duration(limit),
		burst:   limit,
		window:  window,
	}
}

func (l *localBuckets) allow(key string, now time.Time) (bool, int, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buckets) >= sweepThreshold {
		for k, b := range l.buckets {
			// An idle bucket has refilled completely, dropping it changes nothing
			if now.Sub(b.lastSeen) > l.window {
				delete(l.buckets, k)
			}
		}
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(l.every), l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0, now.Add(l.window)
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, 0, now.Add(delay)
	}

	remaining := int(b.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, now.Add(l.every * time.Duration(l.burst-remaining))
}
