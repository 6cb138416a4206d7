package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/penshort/shortlytics/internal/cache"
)

// Rate limit policy names, used in Redis keys and logs.
const (
	PolicyShorten   = "shorten"
	PolicyAnalytics = "analytics"
)

// defaultFallbackSize bounds the number of IPs tracked in process per policy.
const defaultFallbackSize = 10000

// IPLimitStore is the shared limiter state. *cache.Cache implements it.
type IPLimitStore interface {
	CheckIPRateLimit(ctx context.Context, policy, ip string, limit int, window time.Duration) (*cache.RateLimitResult, error)
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Store   IPLimitStore
	Enabled bool
	// FallbackSize caps the in-process limiter used while the store is
	// unreachable. Zero uses the default.
	FallbackSize int
}

// RateLimiter builds per-IP rate limit middleware. Limits are shared
// through Redis. When Redis cannot be reached each instance enforces the
// same policy with its own token buckets instead of failing open.
type RateLimiter struct {
	cfg RateLimitConfig
}

// NewRateLimiter creates a RateLimiter.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.FallbackSize <= 0 {
		cfg.FallbackSize = defaultFallbackSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RateLimiter{cfg: cfg}
}

// Limit returns middleware allowing at most limit requests per window for
// each client IP under the named policy.
func (rl *RateLimiter) Limit(policy string, limit int, window time.Duration) func(http.Handler) http.Handler {
	local := newLocalLimiter(limit, window, rl.cfg.FallbackSize)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.cfg.Enabled || limit <= 0 || window <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r)

			var result *cache.RateLimitResult
			var err error
			if rl.cfg.Store != nil {
				result, err = rl.cfg.Store.CheckIPRateLimit(r.Context(), policy, ip, limit, window)
			}
			if rl.cfg.Store == nil || err != nil {
				if err != nil {
					rl.cfg.Logger.Warn("rate limit store unavailable, using local limiter",
						slog.String("policy", policy),
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
				}
				result = local.check(ip)
			}

			setRateLimitHeaders(w, limit, result.Remaining, result.ResetAt)

			if !result.Allowed {
				rl.cfg.Logger.Warn("rate limit exceeded",
					slog.String("policy", policy),
					slog.String("ip", ip),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int64("retry_after_seconds", int64(result.RetryAfter.Seconds())),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter)))
				writeError(w, http.StatusTooManyRequests, MsgTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// localLimiter is a per-IP token bucket kept in process. Idle IPs expire
// after one window, at which point their bucket would be full anyway.
type localLimiter struct {
	mu       sync.Mutex
	visitors *expirable.LRU[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
}

func newLocalLimiter(limit int, window time.Duration, size int) *localLimiter {
	ttl := window
	if ttl <= 0 {
		ttl = time.Minute
	}
	r := rate.Inf
	if limit > 0 && window > 0 {
		r = rate.Limit(float64(limit) / window.Seconds())
	}
	return &localLimiter{
		visitors: expirable.NewLRU[string, *rate.Limiter](size, nil, ttl),
		rate:     r,
		burst:    limit,
	}
}

// getVisitor returns the limiter for ip, creating one if needed.
func (l *localLimiter) getVisitor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.visitors.Get(ip); ok {
		return lim
	}
	lim := rate.NewLimiter(l.rate, l.burst)
	l.visitors.Add(ip, lim)
	return lim
}

func (l *localLimiter) check(ip string) *cache.RateLimitResult {
	lim := l.getVisitor(ip)
	now := time.Now()

	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)

	result := &cache.RateLimitResult{
		Allowed:   allowed,
		Remaining: int64(math.Max(0, math.Floor(tokens))),
		ResetAt:   now.Add(time.Duration(float64(time.Second) / float64(l.rate))),
	}
	if !allowed && l.rate > 0 {
		result.RetryAfter = time.Duration((1 - tokens) / float64(l.rate) * float64(time.Second))
	}
	return result
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	if limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// getClientIP returns the peer address without its port. Forwarding headers
// are only honored through RealIP, which rewrites RemoteAddr for trusted
// proxies.
func getClientIP(r *http.Request) string {
	return hostOnly(r.RemoteAddr)
}

// ClientIP returns the client address used for rate limiting and click
// recording.
func ClientIP(r *http.Request) string {
	return getClientIP(r)
}
