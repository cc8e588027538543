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
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
	"github.com/jeremyhahn/go-mantavfs/pkg/server/middleware"
)

// MaxControlBodySize caps the JSON bodies of the rename, copy, mkdir and
// attrs routes.
const MaxControlBodySize = 64 << 10

var (
	corsAllowHeaders = strings.Join([]string{
		"Accept", "Authorization", "Cache-Control", "Content-Length", "Content-MD5",
		"Content-Type", "If-Match", "Origin", "Range", "X-Request-ID",
	}, ", ")
	corsExposeHeaders = strings.Join([]string{
		"Accept-Ranges", "Content-Length", "Content-Range", "ETag",
		"Last-Modified", "X-Request-ID",
	}, ", ")
)

// CORSMiddleware answers preflight requests and tags responses for the
// allowed origins. An empty list or "*" allows any origin. Preflights may
// request extra headers, such as M- metadata, and are granted them.
func CORSMiddleware(origins ...string) gin.HandlerFunc {
	anyOrigin := len(origins) == 0 || slices.Contains(origins, "*")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		h := c.Writer.Header()
		switch {
		case anyOrigin:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(origins, origin):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		default:
			if c.Request.Method == http.MethodOptions && origin != "" {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		h.Set("Access-Control-Expose-Headers", corsExposeHeaders)

		if c.Request.Method == http.MethodOptions {
			allow := corsAllowHeaders
			if requested := c.GetHeader("Access-Control-Request-Headers"); requested != "" {
				allow += ", " + requested
			}
			h.Set("Access-Control-Allow-Headers", allow)
			h.Set("Access-Control-Allow-Methods", "GET, HEAD, PUT, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// LoggingMiddleware logs each request once it completes. Probe and
// scrape endpoints log at debug level.
func LoggingMiddleware(logger adapters.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		ctx := c.Request.Context()
		fields := append(middleware.RequestIDFields(ctx),
			adapters.Field{Key: "method", Value: c.Request.Method},
			adapters.Field{Key: "path", Value: c.Request.URL.Path},
			adapters.Field{Key: "status", Value: status},
			adapters.Field{Key: "bytes", Value: c.Writer.Size()},
			adapters.Field{Key: "latency", Value: time.Since(start).String()},
			adapters.Field{Key: "client_ip", Value: c.ClientIP()},
		)
		if r := c.GetHeader("Range"); r != "" {
			fields = append(fields, adapters.Field{Key: "range", Value: r})
		}
		if len(c.Errors) > 0 {
			fields = append(fields, adapters.Field{Key: "error", Value: c.Errors.Last().Error()})
		}

		switch path := c.Request.URL.Path; {
		case status >= 500:
			logger.Error(ctx, "HTTP request completed", fields...)
		case status >= 400:
			logger.Warn(ctx, "HTTP request completed", fields...)
		case path == "/health" || path == "/metrics":
			logger.Debug(ctx, "HTTP request completed", fields...)
		default:
			logger.Info(ctx, "HTTP request completed", fields...)
		}
	}
}

// ErrorHandlingMiddleware turns a handler panic into a 500 response.
// Panics after the response started are only logged.
func ErrorHandlingMiddleware(logger adapters.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.Error(c.Request.Context(), "panic recovered", append(middleware.RequestIDFields(c.Request.Context()),
				adapters.Field{Key: "panic", Value: fmt.Sprint(rec)},
				adapters.Field{Key: "method", Value: c.Request.Method},
				adapters.Field{Key: "path", Value: c.Request.URL.Path},
				adapters.Field{Key: "written", Value: c.Writer.Written()})...)
			if !c.Writer.Written() {
				RespondWithError(c, http.StatusInternalServerError, "internal server error")
			}
			c.Abort()
		}()

		c.Next()
	}
}

// RequestSizeLimitMiddleware bounds request bodies: object uploads to
// maxUpload bytes and POST control bodies to MaxControlBodySize.
func RequestSizeLimitMiddleware(maxUpload int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := int64(-1)
		switch c.Request.Method {
		case http.MethodPut:
			limit = maxUpload
			if strings.HasPrefix(c.Request.URL.Path, "/api/v1/attrs/") {
				limit = min(limit, MaxControlBodySize)
			}
		case http.MethodPost:
			limit = min(maxUpload, MaxControlBodySize)
		}
		if limit < 0 {
			c.Next()
			return
		}

		if c.Request.ContentLength > limit {
			RespondWithError(c, http.StatusRequestEntityTooLarge, "request entity too large")
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

		c.Next()
	}
}
