package httpkit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	Rate            float64                           // requests per second
	Burst           int                               // max burst
	KeyFunc         func(req *Request[Stream]) string // default: remote IP
	OnLimit         Handler[Stream]                   // default: 429 with an empty body
	CleanupInterval time.Duration                     // how often to prune idle limiters (default: 1m)
	MaxIdle         time.Duration                     // remove limiters idle longer than this (default: 5m)
}

// RateLimit returns middleware that applies per-key rate limiting. Limited
// responses carry a Retry-After header.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(req *Request[Stream]) string {
			host, _, err := net.SplitHostPort(req.RemoteAddr)
			if err != nil {
				return req.RemoteAddr
			}
			return host
		}
	}
	if cfg.OnLimit == nil {
		cfg.OnLimit = HandlerFunc[Stream](func(_ context.Context, _ *Request[Stream], resp *ResponseBuilder) Responder {
			return resp.Status(http.StatusTooManyRequests).Empty()
		})
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	maxIdle := cfg.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 5 * time.Minute
	}

	retryAfter := "1"
	if cfg.Rate > 0 && cfg.Rate < 1 {
		retryAfter = strconv.FormatFloat(1/cfg.Rate, 'f', 0, 64)
	}

	store := &limiterStore{
		limit:    rate.Limit(cfg.Rate),
		burst:    cfg.Burst,
		interval: cleanupInterval,
		maxIdle:  maxIdle,
		entries:  make(map[string]*limiterEntry),
	}

	return func(next Handler[Stream]) Handler[Stream] {
		return HandlerFunc[Stream](func(ctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
			if store.allow(cfg.KeyFunc(req), time.Now()) {
				return next.Handle(ctx, req, resp)
			}
			return withHeaders(resolve(cfg.OnLimit.Handle(ctx, req, resp)), func(h http.Header) {
				h.Set("Retry-After", retryAfter)
			})
		})
	}
}

// limiterStore holds one token bucket per key and prunes idle buckets at
// most once per interval.
type limiterStore struct {
	limit    rate.Limit
	burst    int
	interval time.Duration
	maxIdle  time.Duration

	mu      sync.Mutex
	entries map[string]*limiterEntry
	pruned  time.Time
}

func (s *limiterStore) allow(key string, now time.Time) bool {
	s.mu.Lock()
	if now.Sub(s.pruned) >= s.interval {
		for k, e := range s.entries {
			if now.Sub(e.lastSeen) > s.maxIdle {
				delete(s.entries, k)
			}
		}
		s.pruned = now
	}
	entry, ok := s.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[key] = entry
	}
	entry.lastSeen = now
	s.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}
