/**
 * @description
 * Fixed-window rate limiting for the lookup endpoint, backed by Redis so the
 * limit holds across replicas. Every lookup can cost a portal round trip and,
 * on a cold session, a full captcha login.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: Redis client used for the shared counters.
 */
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRateLimitPrefix = "lookup-bank:rate_limit"

// RateDecision is the outcome of counting one request against a client's window.
type RateDecision struct {
	Limit      int
	Remaining  int
	Allowed    bool
	RetryAfter time.Duration
}

// RateLimiter admits or rejects one request from clientID.
type RateLimiter interface {
	Allow(ctx context.Context, clientID string) (RateDecision, error)
}

// RedisRateLimiter counts requests per client in a fixed window of length
// window, admitting at most limit of them.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRedisRateLimiter creates a limiter storing counters under prefix.
func NewRedisRateLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisRateLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultRateLimitPrefix
	}
	if window < time.Second {
		window = time.Second
	}
	return &RedisRateLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow implements RateLimiter. A limiter without a client or a positive
// limit admits everything.
func (l *RedisRateLimiter) Allow(ctx context.Context, clientID string) (RateDecision, error) {
	if l == nil || l.client == nil || l.limit <= 0 {
		return RateDecision{Allowed: true}, nil
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		clientID = "unknown"
	}
	key := l.prefix + ":" + clientID

	// SET NX starts the window with its expiry; INCR keeps the TTL.
	var hits *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, l.window)
		hits = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return RateDecision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return decide(l.limit, l.window, hits.Val(), ttl.Val()), nil
}

func decide(limit int, window time.Duration, hits int64, ttl time.Duration) RateDecision {
	d := RateDecision{
		Limit:     limit,
		Remaining: max(limit-int(hits), 0),
		Allowed:   hits <= int64(limit),
	}
	if !d.Allowed {
		// PTTL reports -1 or -2 when the key has no expiry.
		if ttl <= 0 {
			ttl = window
		}
		d.RetryAfter = ttl
	}
	return d
}

// retryAfterSeconds rounds up so clients never retry inside the window.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}

// RateLimitMiddleware rejects clients the limiter refuses with 429.
// Limiter errors fail open.
func RateLimitMiddleware(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := limiter.Allow(r.Context(), getClientIP(r))
			if err != nil {
				logger.Warn("rate limiter unavailable; allowing request", "component", "rate_limit", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if decision.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			}
			if !decision.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
				respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For may carry a chain; the first entry is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
