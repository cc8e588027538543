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
	"context"
	"encoding/json"
	"io/fs"
	"time"

	"github.com/jeremyhahn/go-mantavfs/pkg/common"
)

// FileInfo describes a node. It implements fs.FileInfo and fs.DirEntry.
type FileInfo struct {
	name        string
	path        string
	size        int64
	mode        fs.FileMode
	modTime     time.Time
	isDir       bool
	contentType string
	etag        string
}

var (
	_ fs.FileInfo = (*FileInfo)(nil)
	_ fs.DirEntry = (*FileInfo)(nil)
)

// NewFileInfo builds a FileInfo from store metadata. writeable selects the
// permission bits.
func NewFileInfo(info *common.ObjectInfo, writeable bool) *FileInfo {
	fi := &FileInfo{
		name:        baseName(info.Path),
		path:        Normalize(info.Path),
		size:        info.Size,
		modTime:     info.LastModified,
		isDir:       info.Directory,
		contentType: info.ContentType,
		etag:        info.ETag,
	}
	switch {
	case fi.isDir && writeable:
		fi.mode = fs.ModeDir | 0o755
	case fi.isDir:
		fi.mode = fs.ModeDir | 0o555
	case writeable:
		fi.mode = 0o644
	default:
		fi.mode = 0o444
	}
	if fi.isDir {
		fi.size = 0
	}
	return fi
}

func baseName(p string) string {
	p = Normalize(p)
	if p == Separator {
		return Separator
	}
	return PathName{path: p}.BaseName()
}

// Name returns the base name of the node.
func (fi *FileInfo) Name() string { return fi.name }

// Path returns the absolute path of the node.
func (fi *FileInfo) Path() string { return fi.path }

// Size returns the content length; directories report 0.
func (fi *FileInfo) Size() int64 { return fi.size }

// Mode returns the file mode bits.
func (fi *FileInfo) Mode() fs.FileMode { return fi.mode }

// ModTime returns the modification time.
func (fi *FileInfo) ModTime() time.Time { return fi.modTime }

// IsDir reports whether the node is a directory.
func (fi *FileInfo) IsDir() bool { return fi.isDir }

// Sys returns nil.
func (fi *FileInfo) Sys() any { return nil }

// ContentType returns the stored MIME type.
func (fi *FileInfo) ContentType() string { return fi.contentType }

// ETag returns the stored entity tag.
func (fi *FileInfo) ETag() string { return fi.etag }

// Type returns the type bits of Mode.
func (fi *FileInfo) Type() fs.FileMode { return fi.mode.Type() }

// Info returns fi itself.
func (fi *FileInfo) Info() (fs.FileInfo, error) { return fi, nil }

type jsonFileInfo struct {
	Name        string      `json:"name"`
	Path        string      `json:"path"`
	Size        int64       `json:"size"`
	Mode        fs.FileMode `json:"mode"`
	ModTime     time.Time   `json:"modTime"`
	IsDir       bool        `json:"isDir"`
	ContentType string      `json:"contentType,omitempty"`
	ETag        string      `json:"etag,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (fi *FileInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonFileInfo{
		Name:        fi.name,
		Path:        fi.path,
		Size:        fi.size,
		Mode:        fi.mode,
		ModTime:     fi.modTime,
		IsDir:       fi.isDir,
		ContentType: fi.contentType,
		ETag:        fi.etag,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (fi *FileInfo) UnmarshalJSON(data []byte) error {
	var jfi jsonFileInfo
	if err := json.Unmarshal(data, &jfi); err != nil {
		return err
	}
	*fi = FileInfo{
		name:        jfi.Name,
		path:        jfi.Path,
		size:        jfi.Size,
		mode:        jfi.Mode,
		modTime:     jfi.ModTime,
		isDir:       jfi.IsDir,
		contentType: jfi.ContentType,
		etag:        jfi.ETag,
	}
	return nil
}

// Stat returns a FileInfo for the node. A missing node yields an error
// matching common.ErrNotFound.
func (n *FileNode) Stat(ctx context.Context) (*FileInfo, error) {
	info, err := n.Info(ctx)
	if err != nil {
		return nil, err
	}
	return NewFileInfo(info, n.IsWriteable()), nil
}
