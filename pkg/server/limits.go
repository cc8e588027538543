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

package server

import "time"

// Gateway-wide limits and defaults.
const (
	// DefaultHost is the interface the gateway binds to.
	DefaultHost = "0.0.0.0"

	// DefaultPort is the gateway's listening port.
	DefaultPort = 8080

	// MaxUploadSize is the largest request body accepted for a PUT (1 GB).
	MaxUploadSize = 1 * 1024 * 1024 * 1024

	// MaxHeaderBytes caps request headers. Metadata travels as M- headers,
	// so this also bounds an object's attributes.
	MaxHeaderBytes = 64 << 10

	// DefaultReadHeaderTimeout bounds reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultReadTimeout bounds reading a whole request, body included.
	DefaultReadTimeout = 60 * time.Second

	// DefaultWriteTimeout bounds writing a response. Large downloads over
	// slow links need a higher value.
	DefaultWriteTimeout = 5 * time.Minute

	// DefaultIdleTimeout is how long keep-alive connections are held open.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultShutdownTimeout bounds a graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)
