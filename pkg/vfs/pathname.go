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

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// Scheme is the URI scheme served by this package.
	Scheme = "manta"

	// Separator is the path separator.
	Separator = "/"
)

// FileType classifies a node.
type FileType int

const (
	typeUnset FileType = iota

	// Imaginary is a path with nothing stored at it.
	Imaginary

	// File is an object with content.
	File

	// Folder is a directory.
	Folder

	// FileOrFolder is the kind of a freshly parsed name whose type has not
	// been looked up.
	FileOrFolder
)

// String returns the lower-case name of the type.
func (t FileType) String() string {
	switch t {
	case Imaginary:
		return "imaginary"
	case File:
		return "file"
	case Folder:
		return "folder"
	case FileOrFolder:
		return "file-or-folder"
	default:
		return "unknown"
	}
}

// HasContent reports whether nodes of this type may be read.
func (t FileType) HasContent() bool {
	return t == File || t == FileOrFolder
}

// HasChildren reports whether nodes of this type may be listed.
func (t FileType) HasChildren() bool {
	return t == Folder || t == FileOrFolder
}

func (t FileType) valid() bool {
	return t >= Imaginary && t <= FileOrFolder
}

// PathName identifies a node: a scheme, an absolute normalized path and the
// kind the name was created with. PathName values are immutable and compare
// by scheme and path only.
type PathName struct {
	scheme string
	path   string
	kind   FileType
}

// ParsePathName parses a manta URI such as "manta:///user/stor/a.txt". A
// bare path without a scheme is accepted. An empty path resolves to the root.
func ParsePathName(uri string) (PathName, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return PathName{}, fmt.Errorf("%w: %q: %v", ErrParse, uri, err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "":
		scheme = Scheme
	case Scheme:
	default:
		return PathName{}, fmt.Errorf("%w: unsupported scheme %q", ErrParse, u.Scheme)
	}

	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	if p == "" {
		p = Separator
	}
	return PathName{scheme: scheme, path: Normalize(p), kind: FileOrFolder}, nil
}

// MustParsePathName is like ParsePathName but panics on error.
func MustParsePathName(uri string) PathName {
	name, err := ParsePathName(uri)
	if err != nil {
		panic(err)
	}
	return name
}

// NewPathName builds a name of the given kind. The path must not be blank.
func NewPathName(scheme, p string, kind FileType) (PathName, error) {
	if strings.TrimSpace(p) == "" {
		return PathName{}, fmt.Errorf("%w: path is blank", ErrInvalidArgument)
	}
	if !kind.valid() {
		return PathName{}, fmt.Errorf("%w: file type is not set", ErrInvalidArgument)
	}
	if scheme == "" {
		scheme = Scheme
	}
	return PathName{scheme: scheme, path: Normalize(p), kind: kind}, nil
}

// Normalize returns the absolute form of p: a leading "//" is collapsed,
// "." and empty segments are removed, ".." is resolved and any trailing
// separator is dropped. Ascending above the root yields the root.
func Normalize(p string) string {
	if strings.HasPrefix(p, "//") {
		p = Separator + strings.TrimLeft(p, Separator)
	}

	segments := make([]string, 0, strings.Count(p, Separator)+1)
	for _, seg := range strings.Split(p, Separator) {
		switch seg {
		case "", ".":
		case "..":
			if len(segments) == 0 {
				return Separator
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}
	return Separator + strings.Join(segments, Separator)
}

// Scheme returns the name's scheme.
func (n PathName) Scheme() string {
	if n.scheme == "" {
		return Scheme
	}
	return n.scheme
}

// Path returns the absolute path.
func (n PathName) Path() string {
	if n.path == "" {
		return Separator
	}
	return n.path
}

// Kind returns the type the name was created with.
func (n PathName) Kind() FileType {
	return n.kind
}

// IsRoot reports whether the name is "/".
func (n PathName) IsRoot() bool {
	return n.Path() == Separator
}

// BaseName returns the last path segment, or "" for the root.
func (n PathName) BaseName() string {
	p := n.Path()
	return p[strings.LastIndex(p, Separator)+1:]
}

// Parent returns the enclosing folder. The root is its own parent.
func (n PathName) Parent() PathName {
	p := n.Path()
	i := strings.LastIndex(p, Separator)
	if i <= 0 {
		return PathName{scheme: n.Scheme(), path: Separator, kind: Folder}
	}
	return PathName{scheme: n.Scheme(), path: p[:i], kind: Folder}
}

// Child returns the name of a direct child. name must be a single segment.
func (n PathName) Child(name string, kind FileType) (PathName, error) {
	if strings.TrimSpace(name) == "" || strings.Contains(name, Separator) || name == "." || name == ".." {
		return PathName{}, fmt.Errorf("%w: invalid child name %q", ErrInvalidArgument, name)
	}
	return NewPathName(n.Scheme(), strings.TrimSuffix(n.Path(), Separator)+Separator+name, kind)
}

// Resolve returns the name of rel interpreted relative to n. An absolute rel
// replaces the path entirely.
func (n PathName) Resolve(rel string, kind FileType) (PathName, error) {
	if strings.HasPrefix(rel, Separator) {
		return NewPathName(n.Scheme(), rel, kind)
	}
	return NewPathName(n.Scheme(), n.Path()+Separator+rel, kind)
}

// WithKind returns a copy of the name with a different kind.
func (n PathName) WithKind(kind FileType) (PathName, error) {
	return NewPathName(n.Scheme(), n.Path(), kind)
}

// IsDescendantOf reports whether n lies strictly below ancestor.
func (n PathName) IsDescendantOf(ancestor PathName) bool {
	return isUnder(n.Path(), ancestor.Path())
}

// Equal compares scheme and path.
func (n PathName) Equal(other PathName) bool {
	return n.Scheme() == other.Scheme() && n.Path() == other.Path()
}

// URI returns the name as "<scheme>://<path>".
func (n PathName) URI() string {
	return n.Scheme() + "://" + n.Path()
}

func (n PathName) String() string {
	return n.URI()
}

// isUnder reports whether p is strictly below dir.
func isUnder(p, dir string) bool {
	if dir == Separator {
		return p != Separator
	}
	return strings.HasPrefix(p, dir+Separator)
}
