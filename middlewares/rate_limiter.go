package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor
	lastGC   time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		visitors: make(map[string]*visitor),
		lastGC:   time.Now(),
	}
}

func (rl *RateLimiter) limiterFor(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastGC) > rl.idleTTL {
		for key, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.idleTTL {
				delete(rl.visitors, key)
			}
		}
		rl.lastGC = now
	}

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiterFor(c.ClientIP(), time.Now()).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"status":  false,
				"message": "too many requests, slow down",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
