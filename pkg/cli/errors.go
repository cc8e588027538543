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

package cli

import "errors"

var (
	// Configuration errors

	// ErrBackendPathRequired is returned when backend-path is required but not set.
	ErrBackendPathRequired = errors.New("backend-path is required for local backend")

	// ErrBackendBucketRequired is returned when backend-bucket is required but not set.
	ErrBackendBucketRequired = errors.New("backend-bucket is required")

	// ErrBackendURLRequired is returned when backend-url is required but not set.
	ErrBackendURLRequired = errors.New("backend-url is required")

	// ErrBackendCredentialsRequired is returned when a backend needs a key and secret.
	ErrBackendCredentialsRequired = errors.New("backend-key and backend-secret are required")

	// ErrUnsupportedBackend is returned when an unsupported backend is specified.
	ErrUnsupportedBackend = errors.New("unsupported backend")

	// ErrUnsupportedOutputFormat is returned when an unsupported output format is specified.
	ErrUnsupportedOutputFormat = errors.New("unsupported output format")

	// Command errors

	// ErrInvalidSelector is returned for a --selector other than self, children or all.
	ErrInvalidSelector = errors.New("selector must be self, children or all")

	// ErrAttributeKeyRequired is returned when an attribute command has a blank key.
	ErrAttributeKeyRequired = errors.New("attribute key is required")

	// ErrNothingDeleted is returned when rm finds nothing to delete.
	ErrNothingDeleted = errors.New("nothing was deleted")

	// ErrCannotRename is returned when mv would replace a directory.
	ErrCannotRename = errors.New("cannot rename onto an existing directory")
)
