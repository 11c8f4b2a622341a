// Package middleware holds transport-agnostic gin middleware.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const staleClientWindow = 5 * time.Minute

// RateLimiter throttles per client IP. Auth endpoints are a natural
// target for credential stuffing and OTP brute force, so every route
// sits behind it.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*clientBucket
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter for the provided requests-per-minute
// budget. A non-positive budget disables throttling.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:   burst,
		clients: make(map[string]*clientBucket),
	}
}

// Handler returns the gin middleware enforcing the budget.
func (r *RateLimiter) Handler() gin.HandlerFunc {
	if r == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if !r.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"detail": "Too many requests. Please slow down.",
			})
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) allow(key string) bool {
	now := time.Now()

	r.mu.Lock()
	entry, ok := r.clients[key]
	if !ok {
		entry = &clientBucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[key] = entry
		r.evictStaleLocked(now)
	}
	entry.lastSeen = now
	r.mu.Unlock()

	return entry.limiter.Allow()
}

func (r *RateLimiter) evictStaleLocked(now time.Time) {
	for key, entry := range r.clients {
		if now.Sub(entry.lastSeen) > staleClientWindow {
			delete(r.clients, key)
		}
	}
}
