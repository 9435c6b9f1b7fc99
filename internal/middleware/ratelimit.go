// Package middleware provides HTTP middleware for buildhub.
package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/nivostack/buildhub/internal/metrics"
)

// Scope names the identity a RateLimiter keys its buckets on.
type Scope string

// Rate limit scopes.
const (
	ScopeClient  Scope = "client"  // client IP
	ScopeProject Scope = "project" // project resolved from the SDK API key
	ScopeUser    Scope = "user"    // authenticated user
)

const (
	maxLimiterKeys = 100_000
	limiterIdle    = 10 * time.Minute
	limiterSweep   = 5 * time.Minute
)

var scopeMessages = map[Scope]string{
	ScopeClient:  "rate limit exceeded",
	ScopeProject: "sdk request rate exceeded for this project",
	ScopeUser:    "request rate exceeded for this user",
}

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// limiterSet holds one token bucket per key, created on first use and
// dropped once idle.
type limiterSet struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	maxKeys int
	entries map[string]*limiterEntry
}

func newLimiterSet(limit rate.Limit, burst, maxKeys int) *limiterSet {
	return &limiterSet{
		limit:   limit,
		burst:   burst,
		maxKeys: maxKeys,
		entries: make(map[string]*limiterEntry),
	}
}

// get returns the bucket for key, creating it if needed. It returns nil when
// the set is full and key is new.
func (s *limiterSet) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		if len(s.entries) >= s.maxKeys {
			return nil
		}
		e = &limiterEntry{lim: rate.NewLimiter(s.limit, s.burst)}
		s.entries[key] = e
	}
	e.seen = now

	return e.lim
}

// peek returns the bucket for key without creating one.
func (s *limiterSet) peek(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		return e.lim
	}
	return nil
}

func (s *limiterSet) forget(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *limiterSet) sweep(now time.Time, idle time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.entries {
		if now.Sub(e.seen) > idle {
			delete(s.entries, k)
		}
	}
}

func (s *limiterSet) sweepLoop(ctx context.Context, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(now, idle)
		}
	}
}

// RateLimiter throttles requests per scope identity: client IP on the public
// router, project on SDK delivery, user on the build API.
type RateLimiter struct {
	scope      Scope
	set        *limiterSet
	retryAfter string
}

// NewRateLimiter creates a RateLimiter allowing perSecond requests with the given
// burst per identity. Idle buckets are swept until ctx is cancelled.
func NewRateLimiter(ctx context.Context, scope Scope, perSecond float64, burst int) *RateLimiter {
	wait := 1
	if perSecond > 0 {
		wait = max(1, int(math.Ceil(1/perSecond)))
	}

	rl := &RateLimiter{
		scope:      scope,
		set:        newLimiterSet(rate.Limit(perSecond), burst, maxLimiterKeys),
		retryAfter: strconv.Itoa(wait),
	}
	go rl.set.sweepLoop(ctx, limiterSweep, limiterIdle)

	return rl
}

func (rl *RateLimiter) identity(c *gin.Context) string {
	switch rl.scope {
	case ScopeProject:
		return c.GetString(ProjectIDKey)
	case ScopeUser:
		return c.GetString(UserIDKey)
	default:
		// SetTrustedProxies(nil) in the router keeps X-Forwarded-For out of ClientIP.
		return c.ClientIP()
	}
}

// Handler returns Gin middleware enforcing the limit. Project and user limiters
// must run after the middleware that resolves the identity; requests without
// one pass through.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.identity(c)
		if key == "" {
			c.Next()
			return
		}

		lim := rl.set.get(key, time.Now())
		if lim == nil {
			rl.reject(c, "too many clients")
			return
		}
		if !lim.Allow() {
			rl.reject(c, scopeMessages[rl.scope])
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) reject(c *gin.Context, message string) {
	metrics.RateLimited.WithLabelValues(string(rl.scope)).Inc()
	c.Header("Retry-After", rl.retryAfter)
	respondError(c, http.StatusTooManyRequests, "rate_limited", message)
}
