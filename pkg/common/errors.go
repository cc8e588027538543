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
	"errors"
	"fmt"
	"net/http"
)

var (
	// Configuration errors

	// ErrNotConfigured is returned when a store client is used before it is configured.
	ErrNotConfigured = errors.New("not configured")

	// ErrPathNotSet is returned when the required local root path is not set.
	ErrPathNotSet = errors.New("path not set")

	// ErrBucketNotSet is returned when the required bucket is not set.
	ErrBucketNotSet = errors.New("bucket not set")

	// ErrAccountNotSet is returned when required account credentials are not set.
	ErrAccountNotSet = errors.New("accountName, accountKey, or containerName not set")

	// ErrRegionNotSet is returned when the required region is not set.
	ErrRegionNotSet = errors.New("region not set")

	// ErrEndpointNotSet is returned when the required endpoint is not set.
	ErrEndpointNotSet = errors.New("endpoint not set")

	// ErrAccessKeyNotSet is returned when the required access key is not set.
	ErrAccessKeyNotSet = errors.New("accessKey not set")

	// ErrSecretKeyNotSet is returned when the required secret key is not set.
	ErrSecretKeyNotSet = errors.New("secretKey not set")

	// Store operation errors

	// ErrNotFound is returned when the remote object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrClientClosed is returned when a closed client is used.
	ErrClientClosed = errors.New("client closed")

	// ErrNotDirectory is returned when a directory operation targets a file.
	ErrNotDirectory = errors.New("not a directory")

	// ErrIsDirectory is returned when a content operation targets a directory.
	ErrIsDirectory = errors.New("is a directory")

	// ErrDirectoryNotEmpty is returned when deleting a directory that still has children.
	ErrDirectoryNotEmpty = errors.New("directory not empty")

	// ErrSigningUnsupported is returned by clients that cannot produce signed URLs.
	ErrSigningUnsupported = errors.New("url signing not supported")

	// ErrInvalidOffset is returned when a ranged read starts outside the object.
	ErrInvalidOffset = errors.New("invalid offset")
)

// StatusError is a remote call failure carrying the HTTP-like status the store
// answered with. A 404 status matches ErrNotFound under errors.Is.
type StatusError struct {
	Op   string
	Path string
	Code int
	Err  error
}

// NewStatusError wraps err as a StatusError.
func NewStatusError(op, path string, code int, err error) *StatusError {
	return &StatusError{Op: op, Path: path, Code: code, Err: err}
}

func (e *StatusError) Error() string {
	msg := http.StatusText(e.Code)
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Op, e.Path, e.Code, msg)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Is reports 404 responses as ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// NotFound builds the error a client returns for a missing path.
func NotFound(op, path string) error {
	return &StatusError{Op: op, Path: path, Code: http.StatusNotFound, Err: ErrNotFound}
}

// IsNotFound reports whether err represents a missing remote object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StatusCode extracts the remote status from err, or 0 when err carries none.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
