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
	"errors"
	"io"
	"io/fs"
	"sort"

	"github.com/jeremyhahn/go-mantavfs/pkg/common"
)

// FS exposes a session as a read-only io/fs filesystem rooted at "/".
// Names follow fs.ValidPath; "." is the root.
type FS struct {
	ctx     context.Context
	session *Session
}

var (
	_ fs.StatFS     = (*FS)(nil)
	_ fs.ReadDirFS  = (*FS)(nil)
	_ fs.ReadFileFS = (*FS)(nil)
)

// FS returns an io/fs view of the session. Every request it makes uses ctx.
func (s *Session) FS(ctx context.Context) *FS {
	return &FS{ctx: ctx, session: s}
}

func (f *FS) node(op, name string) (*FileNode, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return f.session.Root(), nil
	}
	return f.session.NodeAt(Separator + name), nil
}

func pathError(op, name string, err error) error {
	switch {
	case common.IsNotFound(err):
		err = fs.ErrNotExist
	case errors.Is(err, ErrSessionClosed):
		err = fs.ErrClosed
	}
	return &fs.PathError{Op: op, Path: name, Err: err}
}

// Stat implements fs.StatFS.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	n, err := f.node("stat", name)
	if err != nil {
		return nil, err
	}
	fi, err := n.Stat(f.ctx)
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return fi, nil
}

// ReadDir implements fs.ReadDirFS. Entries are sorted by name.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	n, err := f.node("readdir", name)
	if err != nil {
		return nil, err
	}
	return f.readDir(n, name)
}

func (f *FS) readDir(n *FileNode, name string) ([]fs.DirEntry, error) {
	t, err := n.Type(f.ctx)
	if err != nil {
		return nil, pathError("readdir", name, err)
	}
	switch t {
	case Imaginary:
		return nil, pathError("readdir", name, fs.ErrNotExist)
	case File:
		return nil, pathError("readdir", name, common.ErrNotDirectory)
	}

	children, err := n.ListChildren(f.ctx)
	if err != nil {
		return nil, pathError("readdir", name, err)
	}
	entries := make([]fs.DirEntry, 0, len(children))
	for _, child := range children {
		fi, err := child.(*FileNode).Stat(f.ctx)
		if common.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, pathError("readdir", name, err)
		}
		entries = append(entries, fi)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

// ReadFile implements fs.ReadFileFS.
func (f *FS) ReadFile(name string) ([]byte, error) {
	file, err := f.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// Open implements fs.FS.
func (f *FS) Open(name string) (fs.File, error) {
	n, err := f.node("open", name)
	if err != nil {
		return nil, err
	}
	fi, err := n.Stat(f.ctx)
	if err != nil {
		return nil, pathError("open", name, err)
	}
	if fi.IsDir() {
		return &fsDir{fs: f, node: n, name: name, info: fi}, nil
	}
	rc, err := n.OpenReader(f.ctx)
	if err != nil {
		return nil, pathError("open", name, err)
	}
	return &fsFile{ReadCloser: rc, info: fi}, nil
}

type fsFile struct {
	io.ReadCloser
	info *FileInfo
}

func (f *fsFile) Stat() (fs.FileInfo, error) { return f.info, nil }

type fsDir struct {
	fs      *FS
	node    *FileNode
	name    string
	info    *FileInfo
	entries []fs.DirEntry
	loaded  bool
}

var _ fs.ReadDirFile = (*fsDir)(nil)

func (d *fsDir) Stat() (fs.FileInfo, error) { return d.info, nil }

func (d *fsDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: common.ErrIsDirectory}
}

func (d *fsDir) Close() error { return nil }

// ReadDir follows the fs.ReadDirFile contract: n <= 0 returns everything
// left, otherwise at most n entries and io.EOF once exhausted.
func (d *fsDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.loaded {
		entries, err := d.fs.readDir(d.node, d.name)
		if err != nil {
			return nil, err
		}
		d.entries, d.loaded = entries, true
	}
	if n <= 0 {
		rest := d.entries
		d.entries = nil
		return rest, nil
	}
	if len(d.entries) == 0 {
		return nil, io.EOF
	}
	if n > len(d.entries) {
		n = len(d.entries)
	}
	batch := d.entries[:n]
	d.entries = d.entries[n:]
	return batch, nil
}
