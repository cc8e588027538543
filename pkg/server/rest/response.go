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
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jeremyhahn/go-mantavfs/pkg/common"
	"github.com/jeremyhahn/go-mantavfs/pkg/vfs"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ListResponse is the body of a directory listing.
type ListResponse struct {
	Path    string          `json:"path"`
	Entries []*vfs.FileInfo `json:"entries"`
	Count   int             `json:"count"`
}

// AttributesResponse carries a node's custom attributes without the storage
// prefix.
type AttributesResponse struct {
	Path       string            `json:"path"`
	Attributes map[string]string `json:"attributes"`
}

// URLResponse carries a public or signed URL.
type URLResponse struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// DeleteResponse reports how many nodes a recursive delete removed.
type DeleteResponse struct {
	Path     string `json:"path"`
	Selector string `json:"selector"`
	Deleted  int    `json:"deleted"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status       string           `json:"status"`
	Version      string           `json:"version,omitempty"`
	Backend      string           `json:"backend,omitempty"`
	Home         string           `json:"home,omitempty"`
	Capabilities []vfs.Capability `json:"capabilities,omitempty"`
}

// RenameRequest is the body of POST /api/v1/rename.
type RenameRequest struct {
	To string `json:"to" binding:"required"`
}

// CopyRequest is the body of POST /api/v1/copy. Selector is one of "self",
// "children" or "all" and defaults to "self".
type CopyRequest struct {
	To       string `json:"to" binding:"required"`
	Selector string `json:"selector,omitempty"`
}

// AttributeRequest is the body of PUT /api/v1/attrs.
type AttributeRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// RespondWithSuccess sends a standardized success response
func RespondWithSuccess(c *gin.Context, code int, message string, data any) {
	c.JSON(code, SuccessResponse{
		Message: message,
		Data:    data,
	})
}

// RespondWithStoreError maps an error from the session or the store onto an
// HTTP status and records it on the gin context for the audit trail.
func RespondWithStoreError(c *gin.Context, err error) {
	_ = c.Error(err) // #nosec G104 -- gin.Context.Error only appends
	code := StatusFor(err)
	if c.Request.Method == http.MethodHead {
		c.Status(code)
		return
	}
	message := err.Error()
	if code >= http.StatusInternalServerError {
		message = common.SanitizeErrorMessage(err)
	}
	RespondWithError(c, code, message)
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	var verr *common.ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr),
		errors.Is(err, vfs.ErrParse),
		errors.Is(err, vfs.ErrInvalidArgument),
		errors.Is(err, vfs.ErrForeignNode):
		return http.StatusBadRequest
	case common.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, common.ErrIsDirectory),
		errors.Is(err, common.ErrNotDirectory),
		errors.Is(err, common.ErrDirectoryNotEmpty):
		return http.StatusConflict
	case errors.Is(err, common.ErrInvalidOffset):
		return http.StatusRequestedRangeNotSatisfiable
	case errors.Is(err, vfs.ErrUnsupportedOperation),
		errors.Is(err, common.ErrSigningUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, common.ErrSignatureInvalid),
		errors.Is(err, common.ErrSignatureExpired):
		return http.StatusForbidden
	case errors.Is(err, vfs.ErrSessionClosed),
		errors.Is(err, common.ErrClientClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	if code := common.StatusCode(err); code >= 400 && code < 600 {
		return code
	}
	return http.StatusInternalServerError
}
