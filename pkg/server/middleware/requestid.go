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
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
)

const (
	// RequestIDHeader is the header carrying the request ID in both directions
	RequestIDHeader = adapters.RequestIDHeader

	// RequestIDKey is the gin context key holding the request ID
	RequestIDKey = "request_id"

	maxRequestIDLength = 128
)

// validRequestID accepts inbound IDs of visible ASCII only, so a client
// cannot smuggle line breaks or control bytes into the logs.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}

// RequestIDMiddleware reuses a well-formed inbound X-Request-ID or assigns
// a new UUID. The ID is echoed on the response and put on the request
// context, where session logs, the audit trail and remote store calls
// pick it up.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(adapters.WithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// GetRequestID returns the request ID assigned to c, or "".
func GetRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	if c.Request != nil {
		return adapters.RequestIDFromContext(c.Request.Context())
	}
	return ""
}

// RequestIDFields returns the request ID as log fields, nil when ctx carries
// none.
func RequestIDFields(ctx context.Context) []adapters.Field {
	id := adapters.RequestIDFromContext(ctx)
	if id == "" {
		return nil
	}
	return []adapters.Field{{Key: "request_id", Value: id}}
}
