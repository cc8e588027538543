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
	"context"
	"io"
	"time"
)

// Client is the remote object store as seen by the filesystem layer. Every
// path is absolute and '/'-rooted. Implementations own transport, retries,
// authentication and signing. Missing objects are reported with an error
// that satisfies IsNotFound.
type Client interface {
	// Head returns the metadata stored for path.
	Head(ctx context.Context, path string) (*ObjectInfo, error)

	// Get opens the full content of path for reading.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Put stores the content read from r at path, replacing any existing
	// object. metadata may be nil.
	Put(ctx context.Context, path string, r io.Reader, metadata map[string]string) error

	// PutMetadata merges update into the custom metadata of path.
	PutMetadata(ctx context.Context, path string, update MetadataUpdate) error

	// PutDirectory creates the directory at path. Creating an existing
	// directory is not an error.
	PutDirectory(ctx context.Context, path string) error

	// List returns the direct children of the directory at path.
	List(ctx context.Context, path string) ([]*ObjectInfo, error)

	// Delete removes the object or empty directory at path.
	Delete(ctx context.Context, path string) error

	// Move renames src to dst.
	Move(ctx context.Context, src, dst string) error

	// Link makes dst a server-side copy of src without transferring content
	// through the caller.
	Link(ctx context.Context, dst, src string) error

	// OpenRange opens a channel reading path from offset to the end.
	OpenRange(ctx context.Context, path string, offset int64) (RangeReader, error)

	// SignURL returns a URL granting method on path for ttl.
	SignURL(ctx context.Context, path, method string, ttl time.Duration) (string, error)

	// BaseURL is the public endpoint objects are addressed under.
	BaseURL() string

	// Close releases transport resources.
	Close() error
}

// RangeReader is a byte channel opened at an offset into one object.
type RangeReader interface {
	io.ReadCloser

	// Offset is the object offset the channel was opened at.
	Offset() int64

	// Length is the number of bytes between Offset and the end of the object.
	Length() int64
}

type rangeReader struct {
	io.ReadCloser
	offset int64
	length int64
}

// NewRangeReader wraps rc, which must start at offset and hold length bytes.
func NewRangeReader(rc io.ReadCloser, offset, length int64) RangeReader {
	return &rangeReader{ReadCloser: rc, offset: offset, length: length}
}

func (r *rangeReader) Offset() int64 { return r.offset }

func (r *rangeReader) Length() int64 { return r.length }

// EmptyRange is a channel positioned at or past the end of an object.
func EmptyRange(offset int64) RangeReader {
	return NewRangeReader(io.NopCloser(eofReader{}), offset, 0)
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
