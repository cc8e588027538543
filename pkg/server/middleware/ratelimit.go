// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-mantavfs.
//
// go-mantavfs is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate
	RequestsPerSecond float64

	// Burst is the maximum burst size
	Burst int

	// PerIP gives every client address its own limiter instead of one
	// shared by the gateway
	PerIP bool

	// IdleTimeout drops a per-IP limiter that has not been used for this
	// long (default 10m)
	IdleTimeout time.Duration

	// Exempt lists path prefixes that are never limited, such as probes
	Exempt []string
}

// DefaultRateLimitConfig returns a rate limit config with sensible defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             200,
		IdleTimeout:       10 * time.Minute,
		Exempt:            []string{"/health", "/metrics"},
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter hands out the limiter for a request.
type rateLimiter struct {
	config *RateLimitConfig
	global *rate.Limiter
	now    func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

func newRateLimiter(config *RateLimitConfig) *rateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	rl := &rateLimiter{
		config:  config,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
	if !config.PerIP {
		rl.global = rl.newLimiter()
	}
	rl.lastSweep = rl.now()
	return rl
}

func (rl *rateLimiter) newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)
}

func (rl *rateLimiter) idleTimeout() time.Duration {
	if rl.config.IdleTimeout > 0 {
		return rl.config.IdleTimeout
	}
	return 10 * time.Minute
}

// limiterFor returns the limiter for clientIP. Idle per-IP limiters are
// swept at most once per idle timeout.
func (rl *rateLimiter) limiterFor(clientIP string) *rate.Limiter {
	if rl.global != nil {
		return rl.global
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	idle := rl.idleTimeout()
	if now.Sub(rl.lastSweep) >= idle {
		for ip, cl := range rl.clients {
			if now.Sub(cl.lastSeen) >= idle {
				delete(rl.clients, ip)
			}
		}
		rl.lastSweep = now
	}

	cl, ok := rl.clients[clientIP]
	if !ok {
		cl = &clientLimiter{limiter: rl.newLimiter()}
		rl.clients[clientIP] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

func (rl *rateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *rateLimiter) exempt(path string) bool {
	for _, prefix := range rl.config.Exempt {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// retryAfter is the whole number of seconds until limiter admits one
// request, at least 1.
func retryAfter(limiter *rate.Limiter, now time.Time) int {
	r := limiter.ReserveN(now, 1)
	if !r.OK() {
		return 1
	}
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return max(1, int(math.Ceil(delay.Seconds())))
}

// RateLimitMiddleware rejects requests over the configured rate with 429
// and a Retry-After header.
func RateLimitMiddleware(config *RateLimitConfig, logger adapters.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = adapters.NewDefaultLogger()
	}
	return newRateLimiter(config).handler(logger)
}

func (rl *rateLimiter) handler(logger adapters.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.exempt(c.Request.URL.Path) {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		limiter := rl.limiterFor(clientIP)
		now := rl.now()
		if limiter.AllowN(now, 1) {
			c.Next()
			return
		}

		wait := retryAfter(limiter, now)
		logger.Warn(c.Request.Context(), "rate limit exceeded", append(RequestIDFields(c.Request.Context()),
			adapters.Field{Key: "client_ip", Value: clientIP},
			adapters.Field{Key: "path", Value: c.Request.URL.Path},
			adapters.Field{Key: "method", Value: c.Request.Method},
			adapters.Field{Key: "retry_after", Value: wait})...)

		c.Header("X-RateLimit-Limit", strconv.FormatFloat(rl.config.RequestsPerSecond, 'f', -1, 64))
		c.Header("X-RateLimit-Burst", strconv.Itoa(rl.config.Burst))
		c.Header("Retry-After", strconv.Itoa(wait))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   http.StatusText(http.StatusTooManyRequests),
			"code":    http.StatusTooManyRequests,
			"message": "rate limit exceeded",
		})
	}
}
