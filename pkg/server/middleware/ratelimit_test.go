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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func newLimitedRouter(config *RateLimitConfig, logger adapters.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware(), RateLimitMiddleware(config, logger))
	router.GET("/api/v1/fs/*path", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func fetch(router *gin.Engine, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/fs/user/stor/a", nil)
	if remote != "" {
		req.RemoteAddr = remote
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("allows requests within burst", func(t *testing.T) {
		router := newLimitedRouter(&RateLimitConfig{RequestsPerSecond: 10, Burst: 20}, adapters.NewNoOpLogger())
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, fetch(router, "").Code)
		}
	})

	t.Run("rejects once burst is spent", func(t *testing.T) {
		logger := adapters.NewMemoryLogger()
		router := newLimitedRouter(&RateLimitConfig{RequestsPerSecond: 1, Burst: 2}, logger)

		assert.Equal(t, http.StatusOK, fetch(router, "").Code)
		assert.Equal(t, http.StatusOK, fetch(router, "").Code)

		w := fetch(router, "")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Burst"))
		assert.Contains(t, w.Body.String(), "rate limit exceeded")

		entries := logger.Entries()
		if assert.Len(t, entries, 1) {
			assert.Equal(t, adapters.WarnLevel, entries[0].Level)
			assert.Equal(t, "/api/v1/fs/user/stor/a", entries[0].Fields["path"])
			assert.NotEmpty(t, entries[0].Fields["request_id"])
		}
	})

	t.Run("per-IP limiters are independent", func(t *testing.T) {
		router := newLimitedRouter(&RateLimitConfig{RequestsPerSecond: 1, Burst: 1, PerIP: true}, nil)

		assert.Equal(t, http.StatusOK, fetch(router, "192.168.1.1:1234").Code)
		assert.Equal(t, http.StatusTooManyRequests, fetch(router, "192.168.1.1:1234").Code)
		assert.Equal(t, http.StatusOK, fetch(router, "192.168.1.2:1234").Code)
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		router := newLimitedRouter(nil, adapters.NewNoOpLogger())
		assert.Equal(t, http.StatusOK, fetch(router, "").Code)
	})
}

func TestRateLimitExemptPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(&RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             1,
		Exempt:            []string{"/health"},
	}, adapters.NewNoOpLogger()))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rl := newRateLimiter(&RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             1,
		PerIP:             true,
		IdleTimeout:       time.Minute,
	})
	rl.now = func() time.Time { return now }
	rl.lastSweep = now

	rl.limiterFor("10.0.0.1")
	rl.limiterFor("10.0.0.2")
	assert.Equal(t, 2, rl.tracked())

	now = now.Add(30 * time.Second)
	rl.limiterFor("10.0.0.2")

	now = now.Add(45 * time.Second)
	rl.limiterFor("10.0.0.3")
	assert.Equal(t, 2, rl.tracked(), "10.0.0.1 was idle past the timeout")
}

func TestRetryAfterTracksRefill(t *testing.T) {
	now := time.Unix(1700000000, 0)
	limiter := rate.NewLimiter(rate.Limit(0.25), 1)
	assert.True(t, limiter.AllowN(now, 1))
	assert.Equal(t, 4, retryAfter(limiter, now))
	assert.Equal(t, 4, retryAfter(limiter, now), "probing must not consume tokens")

	fast := rate.NewLimiter(rate.Limit(100), 1)
	assert.True(t, fast.AllowN(now, 1))
	assert.Equal(t, 1, retryAfter(fast, now))
}

func TestDefaultRateLimitConfig(t *testing.T) {
	config := DefaultRateLimitConfig()
	assert.Equal(t, float64(100), config.RequestsPerSecond)
	assert.Equal(t, 200, config.Burst)
	assert.False(t, config.PerIP)
	assert.Equal(t, 10*time.Minute, config.IdleTimeout)
	assert.Equal(t, []string{"/health", "/metrics"}, config.Exempt)
}
