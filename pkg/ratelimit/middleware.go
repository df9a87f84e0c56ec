package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/xkayo32/pytake-sub002/pkg/metrics"
)

type Limiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(c *gin.Context) string

type RateLimitConfig struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
	Key             KeyFunc
}

func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// ClientIP buckets requests by caller address.
func ClientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		ip = c.RemoteIP()
	}
	return ip
}

// PathParam buckets requests by a route parameter, falling back to the client IP.
func PathParam(name string) KeyFunc {
	return func(c *gin.Context) string {
		if v := c.Param(name); v != "" {
			return name + ":" + v
		}
		return ClientIP(c)
	}
}

// RateLimitMiddleware limits each key to config.RPS. Idle buckets are swept
// every CleanupInterval until ctx is done.
func RateLimitMiddleware(ctx context.Context, config RateLimitConfig) gin.HandlerFunc {
	defaults := DefaultConfig()
	if config.RPS <= 0 {
		config.RPS = defaults.RPS
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.MaxAge <= 0 {
		config.MaxAge = defaults.MaxAge
	}
	if config.Key == nil {
		config.Key = ClientIP
	}

	limiters := make(map[string]*Limiter)
	var mu sync.RWMutex

	go func() {
		ticker := time.NewTicker(config.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mu.Lock()
				now := time.Now()
				for key, limiter := range limiters {
					limiter.mu.Lock()
					lastSeen := limiter.lastSeen
					limiter.mu.Unlock()
					if now.Sub(lastSeen) > config.MaxAge {
						delete(limiters, key)
					}
				}
				mu.Unlock()
			}
		}
	}()

	return func(c *gin.Context) {
		key := config.Key(c)

		mu.RLock()
		limiter, exists := limiters[key]
		mu.RUnlock()

		if !exists {
			mu.Lock()
			limiter, exists = limiters[key]
			if !exists {
				limiter = &Limiter{
					limiter:  rate.NewLimiter(rate.Limit(config.RPS), config.Burst),
					lastSeen: time.Now(),
				}
				limiters[key] = limiter
			}
			mu.Unlock()
		}

		limiter.mu.Lock()
		limiter.lastSeen = time.Now()
		limiter.mu.Unlock()

		if !limiter.limiter.Allow() {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("X-RateLimit-Limit", formatRate(config.RPS))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"error_code": "RATE_LIMIT_EXCEEDED",
			})
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()

		c.Header("X-RateLimit-Limit", formatRate(config.RPS))
		remaining := int(limiter.limiter.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}

func formatRate(rps float64) string {
	return strconv.FormatFloat(rps, 'f', -1, 64)
}
