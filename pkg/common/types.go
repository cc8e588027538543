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
	"time"
)

// ObjectInfo represents the metadata the store returns for one path, either
// from a HEAD call or from one entry of a directory listing.
type ObjectInfo struct {
	// Path is the absolute, '/'-rooted path of the object
	Path string `json:"path"`

	// Directory is true when the path names a directory
	Directory bool `json:"directory"`

	// Size is the content length in bytes (0 for directories)
	Size int64 `json:"size"`

	// LastModified is the timestamp when the object was last modified
	LastModified time.Time `json:"last_modified"`

	// MD5 is the raw content digest when the store reports one
	MD5 []byte `json:"md5,omitempty"`

	// ETag is the entity tag for the object
	ETag string `json:"etag,omitempty"`

	// ContentType is the MIME type of the object
	ContentType string `json:"content_type,omitempty"`

	// Metadata holds the custom key/value pairs stored alongside the object,
	// with keys exactly as the store reports them (prefix included)
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the info so cached values can be mutated
// without touching the store's copy.
func (o *ObjectInfo) Clone() *ObjectInfo {
	if o == nil {
		return nil
	}
	c := *o
	if o.MD5 != nil {
		c.MD5 = append([]byte(nil), o.MD5...)
	}
	c.Metadata = CopyMetadata(o.Metadata)
	return &c
}

// MetadataUpdate describes a change to an object's custom metadata. Keys in
// Set are written, keys in Remove are deleted, everything else is kept.
type MetadataUpdate struct {
	Set    map[string]string
	Remove []string
}

// Apply merges the update into md and returns the result. md is not modified.
func (u MetadataUpdate) Apply(md map[string]string) map[string]string {
	out := CopyMetadata(md)
	if out == nil {
		out = make(map[string]string, len(u.Set))
	}
	for k, v := range u.Set {
		out[k] = v
	}
	for _, k := range u.Remove {
		delete(out, k)
	}
	return out
}

// CopyMetadata returns a copy of a metadata map. A nil map stays nil.
func CopyMetadata(md map[string]string) map[string]string {
	if md == nil {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
