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
	"path"
	"strings"
)

// DirectoryContentType marks the zero-byte objects flat stores use to
// represent directories.
const DirectoryContentType = "application/x-json-stream; type=directory"

// CleanPath returns p as an absolute, cleaned path.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

// KeyMapper translates filesystem paths to keys of a flat object store,
// optionally nested under a key prefix.
type KeyMapper struct {
	prefix string
}

// NewKeyMapper returns a mapper rooted at prefix ("" for the bucket root).
func NewKeyMapper(prefix string) KeyMapper {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return KeyMapper{prefix: prefix}
}

// Prefix returns the normalized key prefix, with a trailing separator when
// non-empty.
func (m KeyMapper) Prefix() string {
	return m.prefix
}

// ObjectKey is the key of the object stored at p.
func (m KeyMapper) ObjectKey(p string) string {
	return m.prefix + strings.TrimPrefix(CleanPath(p), "/")
}

// DirKey is the key of the directory marker for p and also the listing
// prefix of its children. The root maps to the bare prefix.
func (m KeyMapper) DirKey(p string) string {
	p = CleanPath(p)
	if p == "/" {
		return m.prefix
	}
	return m.prefix + strings.TrimPrefix(p, "/") + "/"
}

// Path maps a key (object or directory marker) back to a filesystem path.
func (m KeyMapper) Path(key string) string {
	key = strings.TrimPrefix(key, m.prefix)
	return CleanPath(strings.TrimSuffix(key, "/"))
}

// IsDirKey reports whether key names a directory marker or common prefix.
func IsDirKey(key string) bool {
	return strings.HasSuffix(key, "/")
}
