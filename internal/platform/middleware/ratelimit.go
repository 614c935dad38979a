package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/auth"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 50, BurstSize: 100}
}

type bucket struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// limiter keeps one token bucket per caller key.
type limiter struct {
	cfg     RateLimitConfig
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
}

func newLimiter(cfg RateLimitConfig) *limiter {
	return &limiter{cfg: cfg, now: time.Now, buckets: make(map[string]*bucket)}
}

// take consumes a token for key. When none is available it returns the number
// of whole seconds until one will be.
func (l *limiter) take(key string) (bool, int) {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.cfg.BurstSize), last: l.now()}
		l.buckets[key] = b
	}
	l.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	b.tokens = math.Min(float64(l.cfg.BurstSize), b.tokens+now.Sub(b.last).Seconds()*l.cfg.RequestsPerSecond)
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if l.cfg.RequestsPerSecond <= 0 {
		return false, 1
	}
	return false, int(math.Ceil((1 - b.tokens) / l.cfg.RequestsPerSecond))
}

// RateLimit throttles per authenticated user, or per client IP for anonymous
// callers.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	l := newLimiter(cfg)
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
				key = "user:" + uid
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			if ok, wait := l.take(key); !ok {
				h.Set("Retry-After", strconv.Itoa(wait))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
