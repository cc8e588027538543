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

package rest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
	"github.com/jeremyhahn/go-mantavfs/pkg/server/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiddlewareRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw...)
	router.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/missing", func(c *gin.Context) { RespondWithError(c, http.StatusNotFound, "nope") })
	router.GET("/panic", func(c *gin.Context) { panic("kaboom") })
	router.PUT("/upload", func(c *gin.Context) { c.Status(http.StatusCreated) })
	return router
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORSMiddleware(t *testing.T) {
	t.Run("any origin", func(t *testing.T) {
		router := newMiddlewareRouter(CORSMiddleware())

		req := httptest.NewRequest(http.MethodOptions, "/ok", nil)
		req.Header.Set("Access-Control-Request-Headers", "M-Color")
		w := serve(router, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Range")
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "M-Color")
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Range")

		w = serve(router, httptest.NewRequest(http.MethodGet, "/ok", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("listed origins", func(t *testing.T) {
		router := newMiddlewareRouter(CORSMiddleware("https://app.example"))

		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set("Origin", "https://app.example")
		w := serve(router, req)
		assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", w.Header().Get("Vary"))

		req = httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set("Origin", "https://evil.example")
		w = serve(router, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

		req = httptest.NewRequest(http.MethodOptions, "/ok", nil)
		req.Header.Set("Origin", "https://evil.example")
		assert.Equal(t, http.StatusForbidden, serve(router, req).Code)
	})
}

func TestLoggingMiddleware(t *testing.T) {
	logger := adapters.NewMemoryLogger()
	router := newMiddlewareRouter(middleware.RequestIDMiddleware(), LoggingMiddleware(logger))

	serve(router, httptest.NewRequest(http.MethodGet, "/ok", nil))
	serve(router, httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logger.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, adapters.InfoLevel, entries[0].Level)
	assert.Equal(t, http.StatusOK, entries[0].Fields["status"])
	assert.NotEmpty(t, entries[0].Fields["request_id"])
	assert.Equal(t, adapters.WarnLevel, entries[1].Level)
	assert.Equal(t, "/missing", entries[1].Fields["path"])
	assert.Equal(t, 2, entries[0].Fields["bytes"])
}

func TestLoggingMiddlewareQuietProbes(t *testing.T) {
	logger := adapters.NewMemoryLogger()
	router := newMiddlewareRouter(LoggingMiddleware(logger))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, 1, logger.Count(adapters.DebugLevel))
	assert.Equal(t, 0, logger.Count(adapters.InfoLevel))
}

func TestErrorHandlingMiddleware(t *testing.T) {
	logger := adapters.NewMemoryLogger()
	router := newMiddlewareRouter(ErrorHandlingMiddleware(logger))

	w := serve(router, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
	assert.Equal(t, 1, logger.Count(adapters.ErrorLevel))
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	router := newMiddlewareRouter(RequestSizeLimitMiddleware(8))

	w := serve(router, httptest.NewRequest(http.MethodPut, "/upload", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = serve(router, httptest.NewRequest(http.MethodPut, "/upload", strings.NewReader("0123")))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = serve(router, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestSizeLimitControlBodies(t *testing.T) {
	router := newMiddlewareRouter(RequestSizeLimitMiddleware(1 << 30))
	router.POST("/api/v1/rename/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	big := strings.NewReader(strings.Repeat("x", MaxControlBodySize+1))
	w := serve(router, httptest.NewRequest(http.MethodPost, "/api/v1/rename/a", big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = serve(router, httptest.NewRequest(http.MethodPost, "/api/v1/rename/a", strings.NewReader(`{"to":"/b"}`)))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
