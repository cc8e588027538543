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
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
	"github.com/jeremyhahn/go-mantavfs/pkg/audit"
	"github.com/jeremyhahn/go-mantavfs/pkg/common"
)

// MetadataPrefix namespaces custom attributes in object metadata.
const MetadataPrefix = "m-"

// PublicURITTL is the validity of URLs signed by PublicURI.
const PublicURITTL = time.Hour

// Node is the set of operations a filesystem node supports.
type Node interface {
	Name() PathName
	Attach(ctx context.Context) error
	Detach()
	IsAttached() bool

	Exists(ctx context.Context) (bool, error)
	Type(ctx context.Context) (FileType, error)
	Size(ctx context.Context) (int64, error)
	LastModified(ctx context.Context) (time.Time, error)
	Info(ctx context.Context) (*common.ObjectInfo, error)
	Stat(ctx context.Context) (*FileInfo, error)

	OpenReader(ctx context.Context) (io.ReadCloser, error)
	OpenWriter(ctx context.Context, appendMode bool) (io.WriteCloser, error)
	OpenRandomAccess(ctx context.Context, mode AccessMode) (*RandomAccessReader, error)

	ListChildrenNames(ctx context.Context) ([]string, error)
	ListChildren(ctx context.Context) ([]Node, error)

	Attributes(ctx context.Context) (map[string]string, error)
	SetAttribute(ctx context.Context, key, value string) error
	RemoveAttribute(ctx context.Context, key string) error

	IsHidden() bool
	IsExecutable() bool
	IsWriteable() bool
	CanRenameTo(ctx context.Context, other Node) bool
	PublicURI(ctx context.Context) (string, error)

	Rename(ctx context.Context, target Node) error
	CreateFolder(ctx context.Context) error
	Delete(ctx context.Context) (bool, error)
	DeleteAll(ctx context.Context, selector Selector) (int, error)
	CopyFrom(ctx context.Context, src Node, selector Selector) error
}

type nodeState int

const (
	stateDetached nodeState = iota
	statePresent
	stateAbsent
)

// FileNode is a path within a session. It starts detached; the first
// operation that needs metadata attaches it with a HEAD request and caches
// the response. A missing object attaches as absent and reports Imaginary.
// The cache is cleared by Detach and by every mutation made through the
// node.
type FileNode struct {
	session *Session
	name    PathName

	// guarded by session.mu
	state nodeState
	info  *common.ObjectInfo
}

var _ Node = (*FileNode)(nil)

// Name returns the node's path name.
func (n *FileNode) Name() PathName {
	return n.name
}

// Session returns the owning session.
func (n *FileNode) Session() *Session {
	return n.session
}

func (n *FileNode) path() string {
	return n.name.Path()
}

func (n *FileNode) String() string {
	return n.name.URI()
}

// Attach loads the node's metadata if it is not already cached. The root
// never issues a request.
func (n *FileNode) Attach(ctx context.Context) error {
	return n.session.withLock(func() error {
		return n.attachLocked(ctx)
	})
}

func (n *FileNode) attachLocked(ctx context.Context) error {
	if n.name.IsRoot() || n.state != stateDetached {
		return nil
	}
	info, err := n.session.client.Head(ctx, n.path())
	switch {
	case err == nil:
		n.state, n.info = statePresent, info
	case common.IsNotFound(err):
		n.state, n.info = stateAbsent, nil
	default:
		return fmt.Errorf("attach %s: %w", n.path(), err)
	}
	return nil
}

// Detach drops the cached metadata.
func (n *FileNode) Detach() {
	n.session.mu.Lock()
	defer n.session.mu.Unlock()
	n.detachLocked()
}

func (n *FileNode) detachLocked() {
	n.state, n.info = stateDetached, nil
}

// IsAttached reports whether metadata is cached.
func (n *FileNode) IsAttached() bool {
	n.session.mu.Lock()
	defer n.session.mu.Unlock()
	return n.state != stateDetached
}

func (n *FileNode) typeLocked() FileType {
	if n.name.IsRoot() {
		return Folder
	}
	if n.state != statePresent {
		return Imaginary
	}
	if n.info.Directory {
		return Folder
	}
	return File
}

// Type returns Folder, File or Imaginary.
func (n *FileNode) Type(ctx context.Context) (FileType, error) {
	if n.name.IsRoot() {
		return Folder, nil
	}
	var t FileType
	err := n.session.withLock(func() error {
		if err := n.attachLocked(ctx); err != nil {
			return err
		}
		t = n.typeLocked()
		return nil
	})
	return t, err
}

// Exists reports whether something is stored at the node's path.
func (n *FileNode) Exists(ctx context.Context) (bool, error) {
	t, err := n.Type(ctx)
	return t != Imaginary, err
}

// Size returns the content length, or -1 when none is known: the node is
// absent, a directory, or the root.
func (n *FileNode) Size(ctx context.Context) (int64, error) {
	size := int64(-1)
	err := n.session.withLock(func() error {
		if err := n.attachLocked(ctx); err != nil {
			return err
		}
		if n.state == statePresent && !n.info.Directory {
			size = n.info.Size
		}
		return nil
	})
	return size, err
}

// LastModified returns the cached modification time. The root reports the
// zero time.
func (n *FileNode) LastModified(ctx context.Context) (time.Time, error) {
	var modified time.Time
	err := n.session.withLock(func() error {
		if err := n.attachLocked(ctx); err != nil {
			return err
		}
		if n.name.IsRoot() {
			return nil
		}
		if n.state != statePresent {
			return common.NotFound("last modified", n.path())
		}
		modified = n.info.LastModified
		return nil
	})
	return modified, err
}

// Info returns a copy of the cached metadata.
func (n *FileNode) Info(ctx context.Context) (*common.ObjectInfo, error) {
	var info *common.ObjectInfo
	err := n.session.withLock(func() error {
		if err := n.attachLocked(ctx); err != nil {
			return err
		}
		switch {
		case n.name.IsRoot():
			info = &common.ObjectInfo{Path: Separator, Directory: true, ContentType: common.DirectoryContentType}
		case n.state == statePresent:
			info = n.info.Clone()
		default:
			return common.NotFound("stat", n.path())
		}
		return nil
	})
	return info, err
}

// OpenReader streams the object's content. The request is not serialized
// with other operations.
func (n *FileNode) OpenReader(ctx context.Context) (io.ReadCloser, error) {
	if n.session.IsClosed() {
		return nil, ErrSessionClosed
	}
	rc, err := n.session.client.Get(ctx, n.path())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", n.path(), err)
	}
	return rc, nil
}

// OpenWriter returns a sink that uploads everything written to it as the
// object's new content when closed. Appending is not supported and fails
// without contacting the store.
func (n *FileNode) OpenWriter(ctx context.Context, appendMode bool) (io.WriteCloser, error) {
	if appendMode {
		return nil, fmt.Errorf("%w: append to %s", ErrUnsupportedOperation, n.path())
	}
	if n.session.IsClosed() {
		return nil, ErrSessionClosed
	}

	path := n.path()
	put := func(r io.Reader) error {
		if err := n.session.client.Put(ctx, path, r, nil); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	}
	done := func(written int64, err error) {
		n.session.mu.Lock()
		n.detachLocked()
		n.session.mu.Unlock()
		n.session.recordMutation(ctx, audit.EventObjectCreated, path, "", written, err)
	}
	return newUploadWriter(put, done), nil
}

// OpenRandomAccess opens the object for reading at arbitrary offsets. Only
// ModeRead is supported.
func (n *FileNode) OpenRandomAccess(ctx context.Context, mode AccessMode) (*RandomAccessReader, error) {
	if mode != ModeRead {
		return nil, fmt.Errorf("%w: random access mode %q", ErrUnsupportedOperation, mode)
	}

	path := n.path()
	open := func(offset int64) (common.RangeReader, error) {
		var channel common.RangeReader
		err := n.session.withLock(func() error {
			var err error
			channel, err = n.session.client.OpenRange(ctx, path, offset)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("open %s at %d: %w", path, offset, err)
		}
		return channel, nil
	}

	channel, err := open(0)
	if err != nil {
		return nil, err
	}
	return newRandomAccessReader(path, channel, open, n.session.logger), nil
}

// listLocked lists the node's children. An absent node has none.
func (n *FileNode) listLocked(ctx context.Context) ([]*common.ObjectInfo, error) {
	if err := n.attachLocked(ctx); err != nil {
		return nil, err
	}
	if !n.name.IsRoot() {
		switch n.typeLocked() {
		case Imaginary:
			return nil, nil
		case File:
			return nil, fmt.Errorf("list %s: %w", n.path(), common.ErrNotDirectory)
		}
	}
	infos, err := n.session.client.List(ctx, n.path())
	if common.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", n.path(), err)
	}
	return infos, nil
}

// childName strips the parent prefix and any leading separator.
func childName(parent, child string) string {
	return strings.TrimLeft(strings.TrimPrefix(child, parent), Separator)
}

// ListChildrenNames returns the names of the node's children. The root
// lists only the home directory's name and makes no request.
func (n *FileNode) ListChildrenNames(ctx context.Context) ([]string, error) {
	if n.name.IsRoot() {
		if leaf := n.session.homeLeaf(); leaf != "" {
			return []string{leaf}, nil
		}
	}

	var names []string
	err := n.session.withLock(func() error {
		infos, err := n.listLocked(ctx)
		if err != nil {
			return err
		}
		names = make([]string, 0, len(infos))
		for _, info := range infos {
			names = append(names, childName(n.path(), info.Path))
		}
		return nil
	})
	return names, err
}

// ListChildren returns the node's children already attached from the
// listing. The root returns a single detached Folder node for the home
// directory.
func (n *FileNode) ListChildren(ctx context.Context) ([]Node, error) {
	if n.name.IsRoot() && n.session.homeLeaf() != "" {
		home := PathName{scheme: n.name.Scheme(), path: n.session.home, kind: Folder}
		return []Node{n.session.Node(home)}, nil
	}

	var children []Node
	err := n.session.withLock(func() error {
		infos, err := n.listLocked(ctx)
		if err != nil {
			return err
		}
		children = make([]Node, 0, len(infos))
		for _, info := range infos {
			kind := File
			if info.Directory {
				kind = Folder
			}
			child := n.session.Node(PathName{scheme: n.name.Scheme(), path: Normalize(info.Path), kind: kind})
			child.state, child.info = statePresent, info.Clone()
			children = append(children, child)
		}
		return nil
	})
	return children, err
}

// Attributes returns the custom metadata with the storage prefix removed.
func (n *FileNode) Attributes(ctx context.Context) (map[string]string, error) {
	attrs := map[string]string{}
	err := n.session.withLock(func() error {
		if err := n.attachLocked(ctx); err != nil {
			return err
		}
		if n.name.IsRoot() {
			return nil
		}
		if n.state != statePresent {
			return common.NotFound("attributes", n.path())
		}
		for k, v := range n.info.Metadata {
			if strings.HasPrefix(strings.ToLower(k), MetadataPrefix) {
				k = k[len(MetadataPrefix):]
			}
			attrs[k] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attrs, nil
}

// SetAttribute stores a custom attribute. A cached node is updated in place.
func (n *FileNode) SetAttribute(ctx context.Context, key, value string) error {
	return n.updateMetadata(ctx, key, common.MetadataUpdate{
		Set: map[string]string{MetadataPrefix + key: value},
	}, value)
}

// RemoveAttribute deletes a custom attribute. A cached node is updated in
// place.
func (n *FileNode) RemoveAttribute(ctx context.Context, key string) error {
	return n.updateMetadata(ctx, key, common.MetadataUpdate{
		Remove: []string{MetadataPrefix + key},
	}, "")
}

func (n *FileNode) updateMetadata(ctx context.Context, key string, update common.MetadataUpdate, value string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: attribute name is blank", ErrInvalidArgument)
	}
	if err := common.ValidateAttribute(MetadataPrefix+key, value); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	err := n.session.withLock(func() error {
		if err := n.session.client.PutMetadata(ctx, n.path(), update); err != nil {
			return fmt.Errorf("update metadata of %s: %w", n.path(), err)
		}
		if n.state == statePresent {
			n.info.Metadata = update.Apply(n.info.Metadata)
		}
		return nil
	})
	n.session.recordMutation(ctx, audit.EventMetadataUpdated, n.path(), "", 0, err)
	return err
}

// IsHidden is always false.
func (n *FileNode) IsHidden() bool { return false }

// IsExecutable is always false.
func (n *FileNode) IsExecutable() bool { return false }

// IsWriteable applies the session's WritePolicy.
func (n *FileNode) IsWriteable() bool {
	return n.session.policy.IsWriteable(n.name, n.session.home)
}

// CanRenameTo reports whether the node can be renamed to other: both must
// belong to the same session and both must be existing files. Lookup
// failures are logged and reported as false.
func (n *FileNode) CanRenameTo(ctx context.Context, other Node) bool {
	target, ok := other.(*FileNode)
	if !ok || target.session != n.session || n.name.Equal(target.name) {
		return false
	}

	warn := func(err error) bool {
		n.session.logger.Warn(ctx, "unable to determine if file can be renamed",
			adapters.Field{Key: "path", Value: n.path()},
			adapters.Field{Key: "target", Value: target.path()},
			adapters.Field{Key: "error", Value: err.Error()})
		return false
	}

	srcType, err := n.Type(ctx)
	if err != nil {
		return warn(err)
	}
	if srcType != File {
		return false
	}
	dstType, err := target.Type(ctx)
	if err != nil {
		return warn(err)
	}
	return dstType == File
}

// PublicURI returns a URL for the node. Paths under <home>/public are
// readable without credentials and get the plain store URL; anything else
// gets a GET URL signed for PublicURITTL.
func (n *FileNode) PublicURI(ctx context.Context) (string, error) {
	path := n.path()
	public := Normalize(n.session.home + Separator + "public")
	if path == public || isUnder(path, public) {
		return strings.TrimSuffix(n.session.client.BaseURL(), Separator) + path, nil
	}

	var signed string
	err := n.session.withLock(func() error {
		var err error
		signed, err = n.session.client.SignURL(ctx, path, http.MethodGet, PublicURITTL)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", path, err)
	}
	return signed, nil
}

// Rename moves the node to target's path.
func (n *FileNode) Rename(ctx context.Context, target Node) error {
	dst, ok := target.(*FileNode)
	if !ok || dst.session != n.session {
		return ErrForeignNode
	}
	if n.name.Equal(dst.name) {
		return fmt.Errorf("%w: rename %s onto itself", ErrInvalidArgument, n.path())
	}

	err := n.session.withLock(func() error {
		if err := n.session.client.Move(ctx, n.path(), dst.path()); err != nil {
			return fmt.Errorf("rename %s to %s: %w", n.path(), dst.path(), err)
		}
		n.detachLocked()
		dst.detachLocked()
		return nil
	})
	n.session.recordMutation(ctx, audit.EventObjectMoved, n.path(), dst.path(), 0, err)
	return err
}

// CreateFolder creates a directory at the node's path.
func (n *FileNode) CreateFolder(ctx context.Context) error {
	err := n.session.withLock(func() error {
		if err := n.session.client.PutDirectory(ctx, n.path()); err != nil {
			return fmt.Errorf("create folder %s: %w", n.path(), err)
		}
		n.detachLocked()
		return nil
	})
	n.session.recordMutation(ctx, audit.EventDirectoryCreated, n.path(), "", 0, err)
	return err
}

// Delete removes the object or empty directory at the node's path. It
// returns false if nothing was there.
func (n *FileNode) Delete(ctx context.Context) (bool, error) {
	if n.name.IsRoot() {
		return false, fmt.Errorf("%w: delete the root", ErrUnsupportedOperation)
	}

	deleted := false
	err := n.session.withLock(func() error {
		if err := n.attachLocked(ctx); err != nil {
			return err
		}
		if n.state == stateAbsent {
			return nil
		}
		err := n.session.client.Delete(ctx, n.path())
		n.detachLocked()
		if common.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("delete %s: %w", n.path(), err)
		}
		deleted = true
		return nil
	})
	if deleted || err != nil {
		n.session.recordMutation(ctx, audit.EventObjectDeleted, n.path(), "", 0, err)
	}
	return deleted, err
}

// DeleteAll deletes the selected part of the tree rooted at the node,
// children before their parents, and returns the number of nodes deleted.
func (n *FileNode) DeleteAll(ctx context.Context, selector Selector) (int, error) {
	if n.name.IsRoot() {
		return 0, fmt.Errorf("%w: delete the root", ErrUnsupportedOperation)
	}
	return n.deleteTree(ctx, selector, 0)
}

func (n *FileNode) deleteTree(ctx context.Context, selector Selector, depth int) (int, error) {
	t, err := n.Type(ctx)
	if err != nil || t == Imaginary {
		return 0, err
	}

	count := 0
	if t == Folder && selector.includes(depth+1) {
		children, err := n.ListChildren(ctx)
		if err != nil {
			return count, err
		}
		for _, child := range children {
			deleted, err := child.(*FileNode).deleteTree(ctx, selector, depth+1)
			count += deleted
			if err != nil {
				return count, err
			}
		}
	}

	ok, err := n.Delete(ctx)
	if ok {
		count++
	}
	return count, err
}

// CopyFrom copies src into the node. A single file copied within the same
// session onto a file or a missing path is done with a server-side link;
// everything else is streamed, recursing into folders as far as selector
// allows.
func (n *FileNode) CopyFrom(ctx context.Context, src Node, selector Selector) error {
	srcType, err := src.Type(ctx)
	if err != nil {
		return err
	}
	if srcType == Imaginary {
		return fmt.Errorf("copy %s: %w", src.Name().Path(), common.ErrNotFound)
	}
	if source, ok := src.(*FileNode); ok && source.session == n.session {
		if n.name.Equal(source.name) || (srcType == Folder && n.name.IsDescendantOf(source.name)) {
			return fmt.Errorf("%w: copy %s into itself", ErrInvalidArgument, source.path())
		}
	}

	if linked, err := n.tryLink(ctx, src, srcType, selector); linked || err != nil {
		return err
	}
	return n.copyTree(ctx, src, selector, 0)
}

func (n *FileNode) tryLink(ctx context.Context, src Node, srcType FileType, selector Selector) (bool, error) {
	source, ok := src.(*FileNode)
	if !ok || source.session != n.session || srcType != File || selector != SelectSelf {
		return false, nil
	}
	dstType, err := n.Type(ctx)
	if err != nil {
		return false, err
	}
	if dstType != File && dstType != Imaginary {
		return false, nil
	}

	err = n.session.withLock(func() error {
		if err := n.session.client.Link(ctx, n.path(), source.path()); err != nil {
			return fmt.Errorf("link %s to %s: %w", n.path(), source.path(), err)
		}
		n.detachLocked()
		return nil
	})
	n.session.recordMutation(ctx, audit.EventObjectLinked, source.path(), n.path(), 0, err)
	return true, err
}

func (n *FileNode) copyTree(ctx context.Context, src Node, selector Selector, depth int) error {
	srcType, err := src.Type(ctx)
	if err != nil {
		return err
	}

	switch srcType {
	case File:
		return n.copyContent(ctx, src)
	case Folder:
		if err := n.CreateFolder(ctx); err != nil {
			return err
		}
		if !selector.includes(depth + 1) {
			return nil
		}
		children, err := src.ListChildren(ctx)
		if err != nil {
			return err
		}
		for _, child := range children {
			name, err := n.name.Child(child.Name().BaseName(), FileOrFolder)
			if err != nil {
				return err
			}
			if err := n.session.Node(name).copyTree(ctx, child, selector, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (n *FileNode) copyContent(ctx context.Context, src Node) error {
	r, err := src.OpenReader(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := n.OpenWriter(ctx, false)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		if aborter, ok := w.(interface{ CloseWithError(error) error }); ok {
			_ = aborter.CloseWithError(err)
		} else {
			_ = w.Close()
		}
		return fmt.Errorf("copy %s to %s: %w", src.Name().Path(), n.path(), err)
	}
	return w.Close()
}
