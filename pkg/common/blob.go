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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// BlobAttrs is the metadata a flat object store keeps for one key.
type BlobAttrs struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	ContentType  string
	MD5          []byte
	Metadata     map[string]string
}

// BlobStore is the key/value surface of a flat object store such as an S3
// bucket or a blob container. Missing keys are reported with errors that
// satisfy IsNotFound.
type BlobStore interface {
	// StatBlob returns the attributes stored for key.
	StatBlob(ctx context.Context, key string) (*BlobAttrs, error)

	// ReadBlob opens key for reading from offset to the end.
	ReadBlob(ctx context.Context, key string, offset int64) (io.ReadCloser, error)

	// WriteBlob stores the content of r at key with the content type and
	// metadata of attrs.
	WriteBlob(ctx context.Context, key string, r io.Reader, attrs BlobAttrs) error

	// CopyBlob copies src to dst server side. A non-nil attrs replaces the
	// content type and metadata of the copy.
	CopyBlob(ctx context.Context, dst, src string, attrs *BlobAttrs) error

	// DeleteBlob removes key.
	DeleteBlob(ctx context.Context, key string) error

	// ListBlobs lists the keys directly under prefix using "/" as the
	// delimiter. Deeper keys are rolled up into prefixes.
	ListBlobs(ctx context.Context, prefix string) (blobs []BlobAttrs, prefixes []string, err error)

	// SignBlob returns a URL granting method on key for ttl.
	SignBlob(ctx context.Context, key, method string, ttl time.Duration) (string, error)

	// Close releases the store's transport.
	Close() error
}

// BlobClient implements Client on top of a BlobStore. Directories are
// zero-byte marker objects whose key ends in "/" with DirectoryContentType;
// a prefix that has children but no marker is treated as a directory too.
//
// A nil *BlobClient reports ErrNotConfigured from every call, so store
// clients can embed one and bind it in Configure.
type BlobClient struct {
	store   BlobStore
	keys    KeyMapper
	baseURL string
}

var _ Client = (*BlobClient)(nil)

// NewBlobClient binds store. Paths are mapped below keys' prefix and
// unsigned URLs are formed under baseURL.
func NewBlobClient(store BlobStore, keys KeyMapper, baseURL string) *BlobClient {
	return &BlobClient{store: store, keys: keys, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (c *BlobClient) ready(ctx context.Context) error {
	if c == nil || c.store == nil {
		return ErrNotConfigured
	}
	return ctx.Err()
}

// Keys returns the path to key mapping.
func (c *BlobClient) Keys() KeyMapper {
	return c.keys
}

func (c *BlobClient) fileInfo(p string, attrs *BlobAttrs) *ObjectInfo {
	return &ObjectInfo{
		Path:         p,
		Size:         attrs.Size,
		LastModified: attrs.LastModified,
		MD5:          attrs.MD5,
		ETag:         attrs.ETag,
		ContentType:  attrs.ContentType,
		Metadata:     CopyMetadata(attrs.Metadata),
	}
}

func dirInfo(p string, attrs *BlobAttrs) *ObjectInfo {
	info := &ObjectInfo{Path: p, Directory: true, ContentType: DirectoryContentType}
	if attrs != nil {
		info.LastModified = attrs.LastModified
		info.Metadata = CopyMetadata(attrs.Metadata)
	}
	return info
}

// Head resolves p as an object, then as a directory marker, then as an
// implicit directory.
func (c *BlobClient) Head(ctx context.Context, p string) (*ObjectInfo, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	p = CleanPath(p)
	if p == "/" {
		return dirInfo(p, nil), nil
	}

	attrs, err := c.store.StatBlob(ctx, c.keys.ObjectKey(p))
	switch {
	case err == nil && attrs.ContentType != DirectoryContentType:
		return c.fileInfo(p, attrs), nil
	case err != nil && !IsNotFound(err):
		return nil, fmt.Errorf("head %s: %w", p, err)
	}

	marker, err := c.store.StatBlob(ctx, c.keys.DirKey(p))
	if err == nil {
		return dirInfo(p, marker), nil
	}
	if !IsNotFound(err) {
		return nil, fmt.Errorf("head %s: %w", p, err)
	}

	blobs, prefixes, err := c.store.ListBlobs(ctx, c.keys.DirKey(p))
	if err != nil {
		return nil, fmt.Errorf("head %s: %w", p, err)
	}
	if len(blobs) > 0 || len(prefixes) > 0 {
		return dirInfo(p, nil), nil
	}
	return nil, NotFound("HEAD", p)
}

// Get opens the content of p.
func (c *BlobClient) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	info, err := c.Head(ctx, p)
	if err != nil {
		return nil, err
	}
	if info.Directory {
		return nil, NewStatusError("GET", info.Path, http.StatusBadRequest, ErrIsDirectory)
	}
	rc, err := c.store.ReadBlob(ctx, c.keys.ObjectKey(info.Path), 0)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", info.Path, err)
	}
	return rc, nil
}

// Put stores r at p. Flat stores need no parent directories.
func (c *BlobClient) Put(ctx context.Context, p string, r io.Reader, metadata map[string]string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	p = CleanPath(p)
	if p == "/" {
		return NewStatusError("PUT", p, http.StatusBadRequest, ErrIsDirectory)
	}
	attrs := BlobAttrs{ContentType: "application/octet-stream", Metadata: CopyMetadata(metadata)}
	if err := c.store.WriteBlob(ctx, c.keys.ObjectKey(p), r, attrs); err != nil {
		return fmt.Errorf("put %s: %w", p, err)
	}
	return nil
}

// PutMetadata rewrites the object (or directory marker) at p in place with
// the updated metadata.
func (c *BlobClient) PutMetadata(ctx context.Context, p string, update MetadataUpdate) error {
	info, err := c.Head(ctx, p)
	if err != nil {
		return err
	}

	key := c.keys.ObjectKey(info.Path)
	if info.Directory {
		key = c.keys.DirKey(info.Path)
		if _, err := c.store.StatBlob(ctx, key); IsNotFound(err) {
			return c.writeMarker(ctx, key, update.Apply(nil))
		}
	}
	attrs := &BlobAttrs{ContentType: info.ContentType, Metadata: update.Apply(info.Metadata)}
	if err := c.store.CopyBlob(ctx, key, key, attrs); err != nil {
		return fmt.Errorf("update metadata %s: %w", info.Path, err)
	}
	return nil
}

func (c *BlobClient) writeMarker(ctx context.Context, key string, metadata map[string]string) error {
	attrs := BlobAttrs{ContentType: DirectoryContentType, Metadata: metadata}
	return c.store.WriteBlob(ctx, key, bytes.NewReader(nil), attrs)
}

// PutDirectory writes a directory marker. An existing directory is left
// alone; an existing object at p is a conflict.
func (c *BlobClient) PutDirectory(ctx context.Context, p string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	p = CleanPath(p)
	if p == "/" {
		return nil
	}
	info, err := c.Head(ctx, p)
	switch {
	case err == nil && info.Directory:
		return nil
	case err == nil:
		return NewStatusError("PUT_DIRECTORY", p, http.StatusConflict, ErrNotDirectory)
	case !IsNotFound(err):
		return err
	}
	if err := c.writeMarker(ctx, c.keys.DirKey(p), nil); err != nil {
		return fmt.Errorf("put directory %s: %w", p, err)
	}
	return nil
}

// List returns the direct children of p sorted by path.
func (c *BlobClient) List(ctx context.Context, p string) ([]*ObjectInfo, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	p = CleanPath(p)
	prefix := c.keys.DirKey(p)

	blobs, prefixes, err := c.store.ListBlobs(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p, err)
	}

	infos := make([]*ObjectInfo, 0, len(blobs)+len(prefixes))
	seen := make(map[string]bool, len(blobs)+len(prefixes))
	for _, dir := range prefixes {
		child := c.keys.Path(dir)
		if !seen[child] {
			seen[child] = true
			infos = append(infos, dirInfo(child, nil))
		}
	}
	for i := range blobs {
		blob := &blobs[i]
		if blob.Key == prefix {
			continue
		}
		child := c.keys.Path(blob.Key)
		if seen[child] {
			continue
		}
		seen[child] = true
		if IsDirKey(blob.Key) || blob.ContentType == DirectoryContentType {
			infos = append(infos, dirInfo(child, blob))
		} else {
			infos = append(infos, c.fileInfo(child, blob))
		}
	}

	if len(infos) == 0 {
		info, err := c.Head(ctx, p)
		if err != nil {
			return nil, err
		}
		if !info.Directory {
			return nil, NewStatusError("LIST", p, http.StatusBadRequest, ErrNotDirectory)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// Delete removes the object or empty directory at p.
func (c *BlobClient) Delete(ctx context.Context, p string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	p = CleanPath(p)
	if p == "/" {
		return NewStatusError("DELETE", p, http.StatusBadRequest, errors.New("cannot delete the root"))
	}
	info, err := c.Head(ctx, p)
	if err != nil {
		return err
	}
	if !info.Directory {
		return c.deleteKey(ctx, p, c.keys.ObjectKey(p))
	}

	children, err := c.List(ctx, p)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return NewStatusError("DELETE", p, http.StatusConflict, ErrDirectoryNotEmpty)
	}
	err = c.deleteKey(ctx, p, c.keys.DirKey(p))
	if IsNotFound(err) {
		return nil
	}
	return err
}

func (c *BlobClient) deleteKey(ctx context.Context, p, key string) error {
	if err := c.store.DeleteBlob(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	return nil
}

// Move copies src to dst and removes src. Directories are moved child by
// child; a directory can't be moved below itself.
func (c *BlobClient) Move(ctx context.Context, src, dst string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	src, dst = CleanPath(src), CleanPath(dst)
	if src == dst {
		return nil
	}
	info, err := c.Head(ctx, src)
	if err != nil {
		return err
	}
	if !info.Directory {
		if err := c.store.CopyBlob(ctx, c.keys.ObjectKey(dst), c.keys.ObjectKey(src), nil); err != nil {
			return fmt.Errorf("move %s to %s: %w", src, dst, err)
		}
		return c.deleteKey(ctx, src, c.keys.ObjectKey(src))
	}

	if src == "/" || strings.HasPrefix(dst, src+"/") {
		return NewStatusError("MOVE", src, http.StatusBadRequest, fmt.Errorf("cannot move %s into itself", src))
	}
	if err := c.PutDirectory(ctx, dst); err != nil {
		return err
	}
	children, err := c.List(ctx, src)
	if err != nil {
		return err
	}
	for _, child := range children {
		name := child.Path[strings.LastIndex(child.Path, "/")+1:]
		if err := c.Move(ctx, child.Path, CleanPath(dst+"/"+name)); err != nil {
			return err
		}
	}
	err = c.store.DeleteBlob(ctx, c.keys.DirKey(src))
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("move %s to %s: %w", src, dst, err)
	}
	return nil
}

// Link copies src to dst server side.
func (c *BlobClient) Link(ctx context.Context, dst, src string) error {
	info, err := c.Head(ctx, src)
	if err != nil {
		return err
	}
	if info.Directory {
		return NewStatusError("LINK", info.Path, http.StatusBadRequest, ErrIsDirectory)
	}
	dst = CleanPath(dst)
	if err := c.store.CopyBlob(ctx, c.keys.ObjectKey(dst), c.keys.ObjectKey(info.Path), nil); err != nil {
		return fmt.Errorf("link %s to %s: %w", dst, info.Path, err)
	}
	return nil
}

// OpenRange opens p at offset. offset may equal the size, which yields an
// empty channel.
func (c *BlobClient) OpenRange(ctx context.Context, p string, offset int64) (RangeReader, error) {
	info, err := c.Head(ctx, p)
	if err != nil {
		return nil, err
	}
	if info.Directory {
		return nil, NewStatusError("GET_RANGE", info.Path, http.StatusBadRequest, ErrIsDirectory)
	}
	switch {
	case offset < 0 || offset > info.Size:
		return nil, NewStatusError("GET_RANGE", info.Path, http.StatusRequestedRangeNotSatisfiable, ErrInvalidOffset)
	case offset == info.Size:
		return EmptyRange(offset), nil
	}
	rc, err := c.store.ReadBlob(ctx, c.keys.ObjectKey(info.Path), offset)
	if err != nil {
		return nil, fmt.Errorf("get range %s: %w", info.Path, err)
	}
	return NewRangeReader(rc, offset, info.Size-offset), nil
}

// SignURL delegates to the store's presigner.
func (c *BlobClient) SignURL(ctx context.Context, p, method string, ttl time.Duration) (string, error) {
	if err := c.ready(ctx); err != nil {
		return "", err
	}
	p = CleanPath(p)
	signed, err := c.store.SignBlob(ctx, c.keys.ObjectKey(p), strings.ToUpper(method), ttl)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", p, err)
	}
	return signed, nil
}

// BaseURL returns the public endpoint objects are addressed under.
func (c *BlobClient) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

// Close closes the store.
func (c *BlobClient) Close() error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Close()
}
