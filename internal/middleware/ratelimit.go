// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/sessionguard/internal/core"
)

const (
	keyPrefixIP   = "ratelimit:ip:"
	keyPrefixUser = "ratelimit:user:"

	bucketIdleTTL = 10 * time.Minute
)

type RateLimitConfig struct {
	Limit      redis_rate.Limit
	KeyFunc    func(*http.Request) string
	BypassFunc func(*http.Request) bool
	Logger     *slog.Logger

	// FailOpen lets requests through when neither Redis nor the local
	// fallback can decide.
	FailOpen bool
}

// RateLimiter enforces a Redis-backed GCRA limit shared by every replica.
// While Redis is unreachable each process falls back to its own token
// buckets, so the effective limit is per replica until Redis returns.
type RateLimiter struct {
	redis    *redis_rate.Limiter
	fallback *localLimiter
	cfg      RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &RateLimiter{
		redis:    redis_rate.NewLimiter(rdb),
		fallback: &localLimiter{buckets: make(map[string]*bucket)},
		cfg:      cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.cfg.BypassFunc != nil && rl.cfg.BypassFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.cfg.KeyFunc(r)

		res, err := rl.decide(r.Context(), key)
		if err != nil {
			if !rl.cfg.FailOpen {
				core.JSONError(w, core.UnavailableError("rate limiter unavailable"))
				return
			}
			rl.cfg.Logger.WarnContext(r.Context(), "rate limiter failing open",
				"key", key,
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		writeLimitHeaders(w.Header(), rl.cfg.Limit, res)

		if res.Allowed > 0 {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := max(int(res.RetryAfter.Round(time.Second).Seconds()), 1)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		core.JSONError(w, core.RateLimitedError(retryAfter))
	})
}

func (rl *RateLimiter) decide(
	ctx context.Context,
	key string,
) (*redis_rate.Result, error) {
	res, err := rl.redis.Allow(ctx, key, rl.cfg.Limit)
	if err == nil {
		return res, nil
	}

	rl.cfg.Logger.DebugContext(ctx, "redis rate limit unavailable, using local bucket",
		"error", err,
	)
	return rl.fallback.allow(key, rl.cfg.Limit, time.Now())
}

func writeLimitHeaders(h http.Header, limit redis_rate.Limit, res *redis_rate.Result) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(
		time.Now().Add(res.ResetAfter).Unix(), 10,
	))
	h.Set("RateLimit-Policy",
		strconv.Itoa(limit.Rate)+";w="+strconv.Itoa(int(limit.Period.Seconds())),
	)
}

func KeyByIP(r *http.Request) string {
	return keyPrefixIP + ClientIP(r)
}

// KeyByUser keys authenticated callers by account and everyone else by
// address.
func KeyByUser(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return keyPrefixUser + userID
	}
	return KeyByIP(r)
}

// KeyByIPAndEndpoint gives each client address its own budget per route, for
// unauthenticated endpoints that guess at credentials or tokens.
func KeyByIPAndEndpoint(r *http.Request) string {
	return KeyByIP(r) + ":endpoint:" + routeShape(r.URL.Path)
}

func KeyByUserAndEndpoint(r *http.Request) string {
	return KeyByUser(r) + ":endpoint:" + routeShape(r.URL.Path)
}

// routeShape collapses identifiers in a path so every session or user id
// shares one bucket.
func routeShape(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if isIdentifier(seg) {
			segments[i] = "{id}"
		}
	}
	return "/" + strings.Join(segments, "/")
}

func isIdentifier(seg string) bool {
	if seg == "" {
		return false
	}
	if uuid.Validate(seg) == nil {
		return true
	}
	_, err := strconv.ParseUint(seg, 10, 64)
	return err == nil
}

func PerMinute(requests, burst int) redis_rate.Limit {
	return PerWindow(requests, burst, time.Minute)
}

// PerWindow allows requests per window with bursts up to burst.
func PerWindow(requests, burst int, window time.Duration) redis_rate.Limit {
	return redis_rate.Limit{
		Rate:   requests,
		Burst:  max(burst, 1),
		Period: window,
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localLimiter holds one token bucket per key. Idle buckets are dropped on
// the next call after bucketIdleTTL instead of by a background goroutine.
type localLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func (l *localLimiter) allow(
	key string,
	limit redis_rate.Limit,
	now time.Time,
) (*redis_rate.Result, error) {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return nil, core.ErrInvalidInput
	}

	interval := limit.Period / time.Duration(limit.Rate)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= bucketIdleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) >= bucketIdleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(interval), limit.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := &redis_rate.Result{Limit: limit, RetryAfter: -1}

	reservation := b.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); !reservation.OK() || delay > 0 {
		reservation.CancelAt(now)
		res.RetryAfter = delay
		if !reservation.OK() {
			res.RetryAfter = limit.Period
		}
	} else {
		res.Allowed = 1
	}

	tokens := b.limiter.TokensAt(now)
	res.Remaining = max(int(tokens), 0)
	res.ResetAfter = time.Duration((float64(limit.Burst) - tokens) * float64(interval))

	return res, nil
}
