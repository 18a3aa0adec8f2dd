package core

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter caps request frequency per client address with a fixed-window
// counter. Windows are reset lazily on the next hit after expiry. Counters
// live in process memory only, so the guarantee is best-effort per instance.
type RateLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	buckets map[string]*rateWindow

	// now is swappable for tests.
	now func() time.Time
}

type rateWindow struct {
	start time.Time
	count int
}

// NewRateLimiter builds a limiter allowing max hits per window per key.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:     max,
		window:  window,
		buckets: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *RateLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.buckets[key]
	if !ok || now.Sub(w.start) >= l.window {
		l.buckets[key] = &rateWindow{start: now, count: 1}
		return true
	}
	w.count++
	return w.count <= l.max
}

// RateLimitMiddleware rejects clients over the limit with 429. Blocked hits
// are counted in stats when a stats service is wired.
func RateLimitMiddleware(limiter *RateLimiter, stats *StatsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			if stats != nil {
				stats.RecordRateLimited(c.Request.Context())
			}
			respondError(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
