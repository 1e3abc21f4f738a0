package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/huddle/internal/clock"
	"github.com/gin-gonic/gin"
)

// ClientRateLimiter allows each client token at most limit calls per
// sliding interval.
type ClientRateLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
	clock    clock.Clock
	swept    time.Time
}

func NewClientRateLimiter(limit int, interval time.Duration, c clock.Clock) *ClientRateLimiter {
	if c == nil {
		c = clock.Real()
	}
	return &ClientRateLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
		clock:    c,
	}
}

func (rl *ClientRateLimiter) Allow(token string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	windowStart := now.Add(-rl.interval)
	if now.Sub(rl.swept) >= rl.interval {
		rl.sweep(windowStart)
		rl.swept = now
	}

	attempts := rl.history[token]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[token] = fresh
		return false
	}
	rl.history[token] = append(fresh, now)
	return true
}

// sweep drops clients with no call inside the window.
func (rl *ClientRateLimiter) sweep(windowStart time.Time) {
	for token, attempts := range rl.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(rl.history, token)
		}
	}
}

// Middleware rejects over-limit clients with 429. It must run after
// ClientTokenMiddleware.
func (rl *ClientRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.GetString("client_token")) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limited"})
			return
		}
		c.Next()
	}
}
