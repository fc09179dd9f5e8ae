package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// rateWindow is the refill interval for both quota tiers.
const rateWindow = time.Minute

type rateBucket struct {
	tokens     int
	lastRefill time.Time
}

// rateLimiter is a per-client token bucket, a request quota on top of the
// login lockout. Like the lockout it is only correct for a single-process
// deployment; a multi-instance setup needs a shared store.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	buckets map[string]*rateBucket
	now     func() time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		buckets: make(map[string]*rateBucket),
		now:     time.Now,
	}
}

// allow consumes one token for the address, refilling the bucket once the
// window has elapsed since the last refill.
func (l *rateLimiter) allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[addr]
	if !ok || now.Sub(b.lastRefill) >= rateWindow {
		b = &rateBucket{tokens: l.limit, lastRefill: now}
		l.buckets[addr] = b
	}
	if b.tokens == 0 {
		return false
	}
	b.tokens--
	return true
}

// rateLimit rejects requests over the quota with 429. A 429 here counts
// only the request, never the credentials; the login lockout is separate.
func rateLimit(l *rateLimiter, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": message})
			return
		}
		c.Next()
	}
}
