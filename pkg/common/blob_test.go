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
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeBlob struct {
	data  []byte
	attrs BlobAttrs
}

// fakeBlobStore is a flat key/value store with delimiter listing.
type fakeBlobStore struct {
	mu     sync.Mutex
	blobs  map[string]*fakeBlob
	closed bool
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: map[string]*fakeBlob{}}
}

func (s *fakeBlobStore) StatBlob(_ context.Context, key string) (*BlobAttrs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, NotFound("stat", key)
	}
	attrs := b.attrs
	return &attrs, nil
}

func (s *fakeBlobStore) ReadBlob(_ context.Context, key string, offset int64) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, NotFound("read", key)
	}
	return io.NopCloser(bytes.NewReader(b.data[offset:])), nil
}

func (s *fakeBlobStore) WriteBlob(_ context.Context, key string, r io.Reader, attrs BlobAttrs) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs.Key = key
	attrs.Size = int64(len(data))
	attrs.LastModified = time.Unix(1700000000, 0)
	s.blobs[key] = &fakeBlob{data: data, attrs: attrs}
	return nil
}

func (s *fakeBlobStore) CopyBlob(_ context.Context, dst, src string, attrs *BlobAttrs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[src]
	if !ok {
		return NotFound("copy", src)
	}
	cp := &fakeBlob{data: b.data, attrs: b.attrs}
	cp.attrs.Key = dst
	cp.attrs.Metadata = CopyMetadata(b.attrs.Metadata)
	if attrs != nil {
		cp.attrs.ContentType = attrs.ContentType
		cp.attrs.Metadata = CopyMetadata(attrs.Metadata)
	}
	s.blobs[dst] = cp
	return nil
}

func (s *fakeBlobStore) DeleteBlob(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return NotFound("delete", key)
	}
	delete(s.blobs, key)
	return nil
}

func (s *fakeBlobStore) ListBlobs(_ context.Context, prefix string) ([]BlobAttrs, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var blobs []BlobAttrs
	prefixes := map[string]bool{}
	for key, b := range s.blobs {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if i := strings.Index(rest, "/"); i >= 0 && i < len(rest)-1 {
			prefixes[prefix+rest[:i+1]] = true
			continue
		}
		blobs = append(blobs, b.attrs)
	}
	out := make([]string, 0, len(prefixes))
	for p := range prefixes {
		out = append(out, p)
	}
	sort.Strings(out)
	return blobs, out, nil
}

func (s *fakeBlobStore) SignBlob(_ context.Context, key, method string, _ time.Duration) (string, error) {
	return "https://signed.example/" + key + "?method=" + method, nil
}

func (s *fakeBlobStore) Close() error {
	s.closed = true
	return nil
}

func newBlobClient(t *testing.T) (*BlobClient, *fakeBlobStore) {
	t.Helper()
	store := newFakeBlobStore()
	return NewBlobClient(store, NewKeyMapper("root"), "https://bucket.example/"), store
}

func TestBlobClientUnconfigured(t *testing.T) {
	var c *BlobClient
	if _, err := c.Head(context.Background(), "/a"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Head() error = %v, want ErrNotConfigured", err)
	}
	if c.BaseURL() != "" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestBlobClientPutGetHead(t *testing.T) {
	ctx := context.Background()
	c, store := newBlobClient(t)

	if err := c.Put(ctx, "/user/stor/a.txt", strings.NewReader("hello"), map[string]string{"m-k": "v"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, ok := store.blobs["root/user/stor/a.txt"]; !ok {
		t.Fatalf("object not stored under the key prefix: %v", store.blobs)
	}

	info, err := c.Head(ctx, "/user/stor/a.txt")
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if info.Directory || info.Size != 5 || info.Metadata["m-k"] != "v" {
		t.Errorf("Head() = %+v", info)
	}

	dir, err := c.Head(ctx, "/user/stor")
	if err != nil || !dir.Directory {
		t.Errorf("Head(implicit dir) = %+v, %v", dir, err)
	}
	if _, err := c.Head(ctx, "/user/stor/nope"); !IsNotFound(err) {
		t.Errorf("Head(missing) error = %v", err)
	}

	rc, err := c.Get(ctx, "/user/stor/a.txt")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "hello" {
		t.Errorf("Get() = %q", data)
	}
	if _, err := c.Get(ctx, "/user"); !errors.Is(err, ErrIsDirectory) {
		t.Errorf("Get(dir) error = %v", err)
	}
}

func TestBlobClientDirectories(t *testing.T) {
	ctx := context.Background()
	c, store := newBlobClient(t)

	if err := c.PutDirectory(ctx, "/d"); err != nil {
		t.Fatalf("PutDirectory() error = %v", err)
	}
	marker, ok := store.blobs["root/d/"]
	if !ok || marker.attrs.ContentType != DirectoryContentType {
		t.Fatalf("directory marker missing: %v", store.blobs)
	}
	if err := c.PutDirectory(ctx, "/d"); err != nil {
		t.Errorf("PutDirectory(existing) error = %v", err)
	}

	_ = c.Put(ctx, "/d/b", strings.NewReader("b"), nil)
	_ = c.Put(ctx, "/d/a", strings.NewReader("a"), nil)
	_ = c.Put(ctx, "/d/sub/c", strings.NewReader("c"), nil)
	if err := c.PutDirectory(ctx, "/d/a"); StatusCode(err) != http.StatusConflict {
		t.Errorf("PutDirectory(over file) error = %v", err)
	}

	infos, err := c.List(ctx, "/d")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var got []string
	for _, info := range infos {
		got = append(got, info.Path)
	}
	if strings.Join(got, ",") != "/d/a,/d/b,/d/sub" || !infos[2].Directory {
		t.Errorf("List() = %v", got)
	}

	empty, err := c.List(ctx, "/d/sub/..")
	if err != nil || len(empty) != 3 {
		t.Errorf("List(cleaned path) = %v, %v", empty, err)
	}
	if _, err := c.List(ctx, "/d/a"); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("List(file) error = %v", err)
	}
	if _, err := c.List(ctx, "/missing"); !IsNotFound(err) {
		t.Errorf("List(missing) error = %v", err)
	}

	if err := c.Delete(ctx, "/d"); !errors.Is(err, ErrDirectoryNotEmpty) {
		t.Errorf("Delete(non-empty) error = %v", err)
	}
	for _, p := range []string{"/d/a", "/d/b", "/d/sub/c"} {
		if err := c.Delete(ctx, p); err != nil {
			t.Fatalf("Delete(%s) error = %v", p, err)
		}
	}
	if err := c.Delete(ctx, "/d"); err != nil {
		t.Errorf("Delete(empty dir) error = %v", err)
	}
	if _, err := c.Head(ctx, "/d"); !IsNotFound(err) {
		t.Errorf("directory still present: %v", err)
	}
	if err := c.Delete(ctx, "/"); err == nil {
		t.Error("Delete(/) should fail")
	}
}

func TestBlobClientPutMetadata(t *testing.T) {
	ctx := context.Background()
	c, _ := newBlobClient(t)
	_ = c.Put(ctx, "/f", strings.NewReader("x"), map[string]string{"m-a": "1"})

	err := c.PutMetadata(ctx, "/f", MetadataUpdate{Set: map[string]string{"m-b": "2"}, Remove: []string{"m-a"}})
	if err != nil {
		t.Fatalf("PutMetadata() error = %v", err)
	}
	info, _ := c.Head(ctx, "/f")
	if _, ok := info.Metadata["m-a"]; ok || info.Metadata["m-b"] != "2" || info.Size != 1 {
		t.Errorf("Head() after update = %+v", info)
	}

	_ = c.Put(ctx, "/implicit/child", strings.NewReader("x"), nil)
	if err := c.PutMetadata(ctx, "/implicit", MetadataUpdate{Set: map[string]string{"m-d": "1"}}); err != nil {
		t.Fatalf("PutMetadata(implicit dir) error = %v", err)
	}
	dir, _ := c.Head(ctx, "/implicit")
	if !dir.Directory || dir.Metadata["m-d"] != "1" {
		t.Errorf("Head(dir) = %+v", dir)
	}
}

func TestBlobClientMoveAndLink(t *testing.T) {
	ctx := context.Background()
	c, _ := newBlobClient(t)
	_ = c.Put(ctx, "/src/a", strings.NewReader("a"), map[string]string{"m-k": "v"})
	_ = c.Put(ctx, "/src/sub/b", strings.NewReader("b"), nil)

	if err := c.Link(ctx, "/copy", "/src/a"); err != nil {
		t.Fatalf("Link() error = %v", err)
	}
	linked, err := c.Head(ctx, "/copy")
	if err != nil || linked.Metadata["m-k"] != "v" {
		t.Errorf("Head(link) = %+v, %v", linked, err)
	}
	if err := c.Link(ctx, "/x", "/src"); !errors.Is(err, ErrIsDirectory) {
		t.Errorf("Link(dir) error = %v", err)
	}

	if err := c.Move(ctx, "/src", "/src/inner"); err == nil {
		t.Error("moving a directory into itself should fail")
	}
	if err := c.Move(ctx, "/src", "/dst"); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	for _, p := range []string{"/dst/a", "/dst/sub/b"} {
		if _, err := c.Head(ctx, p); err != nil {
			t.Errorf("Head(%s) after move = %v", p, err)
		}
	}
	if _, err := c.Head(ctx, "/src"); !IsNotFound(err) {
		t.Errorf("source still present after move: %v", err)
	}
}

func TestBlobClientOpenRangeAndSign(t *testing.T) {
	ctx := context.Background()
	c, store := newBlobClient(t)
	_ = c.Put(ctx, "/f", strings.NewReader("0123456789"), nil)

	rr, err := c.OpenRange(ctx, "/f", 7)
	if err != nil {
		t.Fatalf("OpenRange() error = %v", err)
	}
	data, _ := io.ReadAll(rr)
	if string(data) != "789" || rr.Offset() != 7 || rr.Length() != 3 {
		t.Errorf("range = %q off %d len %d", data, rr.Offset(), rr.Length())
	}
	end, err := c.OpenRange(ctx, "/f", 10)
	if err != nil || end.Length() != 0 {
		t.Errorf("OpenRange(size) = %v, %v", end, err)
	}
	if _, err := c.OpenRange(ctx, "/f", 11); StatusCode(err) != http.StatusRequestedRangeNotSatisfiable {
		t.Errorf("OpenRange(past end) error = %v", err)
	}

	signed, err := c.SignURL(ctx, "/f", "get", time.Minute)
	if err != nil || signed != "https://signed.example/root/f?method=GET" {
		t.Errorf("SignURL() = %q, %v", signed, err)
	}
	if c.BaseURL() != "https://bucket.example" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
	if err := c.Close(); err != nil || !store.closed {
		t.Errorf("Close() = %v, closed %v", err, store.closed)
	}
}
