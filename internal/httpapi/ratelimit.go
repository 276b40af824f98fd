package httpapi

import (
	"net/http"
	"sync"
	"time"

	"telecaller-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// IPRateLimiter keeps one token bucket per client IP.
// Buckets idle longer than idleTTL are dropped by Sweep.
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration

	Now func() time.Time
}

type ipLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewIPRateLimiter(r rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: make(map[string]*ipLimiter),
		rate:     r,
		burst:    burst,
		idleTTL:  10 * time.Minute,
		Now:      time.Now,
	}
}

// Allow consumes one token for ip.
func (i *IPRateLimiter) Allow(ip string) bool {
	now := i.Now()
	i.mu.Lock()
	l, ok := i.limiters[ip]
	if !ok {
		l = &ipLimiter{lim: rate.NewLimiter(i.rate, i.burst)}
		i.limiters[ip] = l
	}
	l.lastSeen = now
	i.mu.Unlock()
	return l.lim.AllowN(now, 1)
}

// Sweep forgets buckets not used since idleTTL and returns how many were removed.
func (i *IPRateLimiter) Sweep() int {
	cutoff := i.Now().Add(-i.idleTTL)
	i.mu.Lock()
	defer i.mu.Unlock()
	n := 0
	for ip, l := range i.limiters {
		if l.lastSeen.Before(cutoff) {
			delete(i.limiters, ip)
			n++
		}
	}
	return n
}

// Middleware rejects requests over the per-IP budget with 429.
func (i *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !i.Allow(ip) {
			logger.FromGin(c).Warn("rate limit exceeded", "ip", ip, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
