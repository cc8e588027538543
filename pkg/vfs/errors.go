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

package vfs

import "errors"

var (
	// ErrParse is returned when a filesystem address cannot be parsed.
	ErrParse = errors.New("malformed filesystem address")

	// ErrInvalidArgument is returned for blank required parameters and
	// negative offsets.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConfiguration is returned when mutually exclusive or out of range
	// options are set.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrUnsupportedOperation is returned for append writes, random access
	// writes and truncation. The store is never contacted.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrSessionClosed is returned by nodes of a closed session.
	ErrSessionClosed = errors.New("session closed")

	// ErrForeignNode is returned when a node from another session is passed
	// where a node of the same session is required.
	ErrForeignNode = errors.New("node belongs to a different session")
)
