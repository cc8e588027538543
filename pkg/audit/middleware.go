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

package audit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
)

type loggerKey struct{}

// WithAuditLogger returns a copy of ctx carrying logger.
func WithAuditLogger(ctx context.Context, logger AuditLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetAuditLogger returns the audit logger on ctx, or a no-op logger.
func GetAuditLogger(ctx context.Context) AuditLogger {
	if logger, ok := ctx.Value(loggerKey{}).(AuditLogger); ok {
		return logger
	}
	return NewNoOpAuditLogger()
}

// routeEvents maps a gateway route to the event it records. Routes not
// listed fall back to the request method.
var routeEvents = map[string]EventType{
	"/api/v1/mkdir/*path":  EventDirectoryCreated,
	"/api/v1/rename/*path": EventObjectMoved,
	"/api/v1/copy/*path":   EventObjectLinked,
	"/api/v1/list/*path":   EventListObjects,
	"/api/v1/stat/*path":   EventObjectAccessed,
	"/api/v1/url/*path":    EventObjectAccessed,
}

// AuditMiddleware records one event per gateway request. It reuses the
// request ID set by the request ID middleware, or assigns one when that
// middleware is not installed.
func AuditMiddleware(auditLogger AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		requestID := adapters.RequestIDFromContext(ctx)
		if requestID == "" {
			requestID = c.GetHeader(adapters.RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Header(adapters.RequestIDHeader, requestID)
			ctx = adapters.WithRequestID(ctx, requestID)
		}
		c.Request = c.Request.WithContext(WithAuditLogger(ctx, auditLogger))

		start := time.Now()
		c.Next()

		method := c.Request.Method
		path := c.Request.URL.Path
		if !shouldAuditRequest(path, method) {
			return
		}

		status := c.Writer.Status()
		event := &AuditEvent{
			Timestamp:  start,
			EventType:  determineEventType(method, c.FullPath()),
			Path:       c.Param("path"),
			Action:     method + " " + path,
			Result:     ResultSuccess,
			IPAddress:  c.ClientIP(),
			RequestID:  requestID,
			Method:     method,
			StatusCode: status,
			Duration:   time.Since(start),
		}
		if status >= 400 {
			event.Result = ResultFailure
			if len(c.Errors) > 0 {
				event.ErrorMessage = c.Errors.Last().Error()
			}
		}
		switch {
		case method == http.MethodGet && c.Writer.Size() > 0:
			event.BytesTransferred = int64(c.Writer.Size())
		case method == http.MethodPut && c.Request.ContentLength > 0:
			event.BytesTransferred = c.Request.ContentLength
		}
		if strings.HasPrefix(path, "/signed/") {
			event.Metadata = map[string]any{"signed": true}
		}
		_ = auditLogger.LogEvent(c.Request.Context(), event) // #nosec G104 -- audit failures must not fail the request
	}
}

// determineEventType maps a matched route onto an event type.
func determineEventType(method, route string) EventType {
	if strings.HasPrefix(route, "/api/v1/attrs/") {
		if method == http.MethodGet {
			return EventObjectAccessed
		}
		return EventMetadataUpdated
	}
	if event, ok := routeEvents[route]; ok {
		return event
	}

	switch method {
	case http.MethodPut, http.MethodPost:
		return EventObjectCreated
	case http.MethodDelete:
		return EventObjectDeleted
	default:
		return EventObjectAccessed
	}
}

func shouldAuditRequest(path, method string) bool {
	switch {
	case method == http.MethodOptions:
		return false
	case path == "/health", path == "/metrics", strings.HasPrefix(path, "/health/"):
		return false
	}
	return true
}
