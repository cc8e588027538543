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

package common

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxPathLength is the maximum allowed length for object paths
	MaxPathLength = 1024

	// MaxMetadataKeyLength is the maximum allowed length for metadata keys
	MaxMetadataKeyLength = 256

	// MaxMetadataValueLength is the maximum allowed length for metadata values
	MaxMetadataValueLength = 2048
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidatePath rejects paths that cannot be sent to a store: empty, too long,
// not UTF-8, or carrying null bytes or line breaks.
func ValidatePath(p string) error {
	if p == "" {
		return &ValidationError{Field: "path", Message: "path cannot be empty"}
	}
	if len(p) > MaxPathLength {
		return &ValidationError{
			Field:   "path",
			Message: fmt.Sprintf("path length exceeds maximum of %d bytes", MaxPathLength),
		}
	}
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '\x00':
			return &ValidationError{Field: "path", Message: "path cannot contain null bytes"}
		case '\n', '\r':
			return &ValidationError{
				Field:   "path",
				Message: fmt.Sprintf("path contains invalid character sequence: %q", string(p[i])),
			}
		}
	}
	if !utf8.ValidString(p) {
		return &ValidationError{Field: "path", Message: "path must be valid UTF-8"}
	}
	return nil
}

// ValidateAttribute checks a single custom metadata pair.
func ValidateAttribute(key, value string) error {
	if strings.TrimSpace(key) == "" {
		return &ValidationError{Field: "metadata.key", Message: "metadata key cannot be empty"}
	}
	if len(key) > MaxMetadataKeyLength {
		return &ValidationError{
			Field:   "metadata.key",
			Message: fmt.Sprintf("metadata key '%s' exceeds maximum length of %d bytes", key, MaxMetadataKeyLength),
		}
	}
	if strings.ContainsAny(key, "\x00\r\n:") {
		return &ValidationError{Field: "metadata.key", Message: "metadata key contains invalid characters"}
	}
	if !utf8.ValidString(key) {
		return &ValidationError{Field: "metadata.key", Message: "metadata key must be valid UTF-8"}
	}
	if len(value) > MaxMetadataValueLength {
		return &ValidationError{
			Field:   "metadata.value",
			Message: fmt.Sprintf("metadata value for key '%s' exceeds maximum length of %d bytes", key, MaxMetadataValueLength),
		}
	}
	if strings.ContainsRune(value, '\x00') {
		return &ValidationError{Field: "metadata.value", Message: "metadata value cannot contain null bytes"}
	}
	if !utf8.ValidString(value) {
		return &ValidationError{Field: "metadata.value", Message: "metadata value must be valid UTF-8"}
	}
	return nil
}

// SanitizeErrorMessage removes internal details from error messages before
// they are shown to gateway clients.
func SanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	if _, ok := err.(*ValidationError); ok {
		return err.Error()
	}
	if IsNotFound(err) {
		return "object not found"
	}

	sanitizedPatterns := map[string]string{
		"no such file or directory": "object not found",
		"does not exist":            "object not found",
		"permission denied":         "access denied",
		"already exists":            "object already exists",
		"directory not empty":       "directory not empty",
		"not supported":             "operation not supported",
		"connection refused":        "service unavailable",
		"connection reset":          "service unavailable",
		"timeout":                   "request timeout",
		"context canceled":          "request canceled",
		"context deadline exceeded": "request timeout",
	}

	lowerMsg := strings.ToLower(err.Error())
	for pattern, replacement := range sanitizedPatterns {
		if strings.Contains(lowerMsg, pattern) {
			return replacement
		}
	}

	return "internal server error"
}
