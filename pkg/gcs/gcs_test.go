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

//go:build gcpstorage

package gcs

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

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/jeremyhahn/go-mantavfs/pkg/common"
)

type fakeClient struct {
	mu      sync.Mutex
	objects map[string]*storage.ObjectAttrs
	data    map[string][]byte
	signed  []*storage.SignedURLOptions
	closed  bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string]*storage.ObjectAttrs{}, data: map[string][]byte{}}
}

func (c *fakeClient) Bucket(string) gcsBucket { return &fakeBucket{c: c} }
func (c *fakeClient) Close() error            { c.closed = true; return nil }

type fakeBucket struct{ c *fakeClient }

func (b *fakeBucket) Object(name string) gcsObject { return &fakeObject{c: b.c, name: name} }

func (b *fakeBucket) Objects(_ context.Context, q *storage.Query) gcsIterator {
	b.c.mu.Lock()
	defer b.c.mu.Unlock()
	var names []string
	for name := range b.c.objects {
		if strings.HasPrefix(name, q.Prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	it := &fakeIterator{}
	seen := map[string]bool{}
	for _, name := range names {
		rest := name[len(q.Prefix):]
		if i := strings.Index(rest, q.Delimiter); q.Delimiter != "" && i >= 0 && i < len(rest)-1 {
			p := q.Prefix + rest[:i+1]
			if !seen[p] {
				seen[p] = true
				it.items = append(it.items, &storage.ObjectAttrs{Prefix: p})
			}
			continue
		}
		attrs := *b.c.objects[name]
		it.items = append(it.items, &attrs)
	}
	return it
}

func (b *fakeBucket) SignedURL(name string, opts *storage.SignedURLOptions) (string, error) {
	b.c.mu.Lock()
	defer b.c.mu.Unlock()
	b.c.signed = append(b.c.signed, opts)
	return "https://storage.googleapis.com/bucket/" + name + "?X-Goog-Signature=sig", nil
}

type fakeIterator struct {
	items []*storage.ObjectAttrs
	err   error
}

func (it *fakeIterator) Next() (*storage.ObjectAttrs, error) {
	if it.err != nil {
		return nil, it.err
	}
	if len(it.items) == 0 {
		return nil, iterator.Done
	}
	next := it.items[0]
	it.items = it.items[1:]
	return next, nil
}

type fakeObject struct {
	c    *fakeClient
	name string
}

type fakeWriter struct {
	bytes.Buffer
	o     *fakeObject
	attrs storage.ObjectAttrs
}

func (w *fakeWriter) Close() error {
	w.o.c.mu.Lock()
	defer w.o.c.mu.Unlock()
	attrs := w.attrs
	attrs.Name = w.o.name
	attrs.Size = int64(w.Len())
	attrs.Etag = "etag-" + w.o.name
	attrs.Updated = time.Unix(1700000000, 0)
	w.o.c.objects[w.o.name] = &attrs
	w.o.c.data[w.o.name] = append([]byte(nil), w.Bytes()...)
	return nil
}

func (o *fakeObject) NewWriter(_ context.Context, attrs storage.ObjectAttrs) io.WriteCloser {
	return &fakeWriter{o: o, attrs: attrs}
}

func (o *fakeObject) NewRangeReader(_ context.Context, offset int64) (io.ReadCloser, error) {
	o.c.mu.Lock()
	defer o.c.mu.Unlock()
	data, ok := o.c.data[o.name]
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	return io.NopCloser(bytes.NewReader(data[offset:])), nil
}

func (o *fakeObject) Delete(context.Context) error {
	o.c.mu.Lock()
	defer o.c.mu.Unlock()
	if _, ok := o.c.objects[o.name]; !ok {
		return storage.ErrObjectNotExist
	}
	delete(o.c.objects, o.name)
	delete(o.c.data, o.name)
	return nil
}

func (o *fakeObject) Attrs(context.Context) (*storage.ObjectAttrs, error) {
	o.c.mu.Lock()
	defer o.c.mu.Unlock()
	attrs, ok := o.c.objects[o.name]
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	cp := *attrs
	return &cp, nil
}

func (o *fakeObject) CopyFrom(_ context.Context, src gcsObject, attrs *storage.ObjectAttrs) error {
	o.c.mu.Lock()
	defer o.c.mu.Unlock()
	from := src.(*fakeObject)
	srcAttrs, ok := o.c.objects[from.name]
	if !ok {
		return storage.ErrObjectNotExist
	}
	cp := *srcAttrs
	cp.Name = o.name
	if attrs != nil {
		cp.ContentType = attrs.ContentType
		cp.Metadata = attrs.Metadata
	}
	o.c.objects[o.name] = &cp
	o.c.data[o.name] = o.c.data[from.name]
	return nil
}

func newTestGCS(prefix string) (*GCS, *fakeClient) {
	fake := newFakeClient()
	g := New()
	g.bind(fake, "bucket", common.NewKeyMapper(prefix), defaultEndpoint+"/bucket")
	return g, fake
}

func TestConfigure(t *testing.T) {
	if err := New().Configure(map[string]string{}); !errors.Is(err, common.ErrBucketNotSet) {
		t.Errorf("Configure(empty) = %v, want ErrBucketNotSet", err)
	}

	orig := gcsNewClient
	t.Cleanup(func() { gcsNewClient = orig })

	var gotOpts int
	gcsNewClient = func(_ context.Context, opts ...option.ClientOption) (gcsClient, error) {
		gotOpts = len(opts)
		return newFakeClient(), nil
	}
	g := New()
	if err := g.Configure(map[string]string{"bucket": "b", "prefix": "fs", "endpoint": "http://localhost:4443/storage/v1/"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if gotOpts != 2 {
		t.Errorf("client options = %d, want endpoint and no-auth", gotOpts)
	}
	if got := g.BaseURL(); got != "https://storage.googleapis.com/b/fs" {
		t.Errorf("BaseURL() = %q", got)
	}

	gcsNewClient = func(context.Context, ...option.ClientOption) (gcsClient, error) {
		return nil, errors.New("no credentials")
	}
	if err := New().Configure(map[string]string{"bucket": "b"}); err == nil {
		t.Error("Configure() should surface client creation failures")
	}
}

func TestPutGetHead(t *testing.T) {
	ctx := context.Background()
	g, fake := newTestGCS("root")

	if err := g.Put(ctx, "/a/b.txt", strings.NewReader("hello"), map[string]string{"m-k": "v"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, ok := fake.objects["root/a/b.txt"]; !ok {
		t.Fatal("object not written under the prefix")
	}

	info, err := g.Head(ctx, "/a/b.txt")
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if info.Size != 5 || info.ContentType != "application/octet-stream" || info.Metadata["m-k"] != "v" {
		t.Errorf("Head() = %+v", info)
	}

	rc, err := g.Get(ctx, "/a/b.txt")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "hello" {
		t.Errorf("Get() = %q", data)
	}

	dir, err := g.Head(ctx, "/a")
	if err != nil || !dir.Directory {
		t.Errorf("Head(implicit dir) = %+v, %v", dir, err)
	}
	if _, err := g.Head(ctx, "/zzz"); !common.IsNotFound(err) {
		t.Errorf("Head(missing) error = %v", err)
	}
	if code := common.StatusCode(wrap("GET", "k", storage.ErrObjectNotExist)); code != http.StatusNotFound {
		t.Errorf("wrap() status = %d", code)
	}
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGCS("")
	_ = g.PutDirectory(ctx, "/d")
	_ = g.Put(ctx, "/d/x", strings.NewReader("x"), nil)
	_ = g.Put(ctx, "/d/y/z", strings.NewReader("z"), nil)

	infos, err := g.List(ctx, "/d")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 2 || infos[0].Path != "/d/x" || !infos[1].Directory {
		t.Errorf("List() = %+v", infos)
	}

	if err := g.Delete(ctx, "/d/x"); err != nil {
		t.Errorf("Delete(file) error = %v", err)
	}
	if err := g.Delete(ctx, "/d/x"); !common.IsNotFound(err) {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

func TestListIteratorError(t *testing.T) {
	g := New()
	g.bind(errClient{}, "bucket", common.NewKeyMapper(""), "")
	if _, _, err := g.ListBlobs(context.Background(), ""); err == nil || err.Error() != "permission denied" {
		t.Errorf("ListBlobs() error = %v", err)
	}
}

type errClient struct{}

func (errClient) Bucket(string) gcsBucket { return errBucket{} }
func (errClient) Close() error            { return nil }

type errBucket struct{}

func (errBucket) Object(string) gcsObject { return nil }
func (errBucket) Objects(context.Context, *storage.Query) gcsIterator {
	return &fakeIterator{err: errors.New("permission denied")}
}
func (errBucket) SignedURL(string, *storage.SignedURLOptions) (string, error) { return "", nil }

func TestMetadataMoveLink(t *testing.T) {
	ctx := context.Background()
	g, fake := newTestGCS("")
	_ = g.Put(ctx, "/f", strings.NewReader("data"), map[string]string{"m-a": "1"})

	err := g.PutMetadata(ctx, "/f", common.MetadataUpdate{Remove: []string{"m-a"}, Set: map[string]string{"m-b": "2"}})
	if err != nil {
		t.Fatalf("PutMetadata() error = %v", err)
	}
	if md := fake.objects["f"].Metadata; md["m-b"] != "2" || md["m-a"] != "" {
		t.Errorf("metadata = %v", md)
	}

	if err := g.Link(ctx, "/linked", "/f"); err != nil {
		t.Fatalf("Link() error = %v", err)
	}
	if string(fake.data["linked"]) != "data" || fake.objects["linked"].Metadata["m-b"] != "2" {
		t.Error("link did not copy content and metadata")
	}

	if err := g.Move(ctx, "/f", "/moved"); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if _, ok := fake.objects["f"]; ok {
		t.Error("source survived the move")
	}
}

func TestOpenRange(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGCS("")
	_ = g.Put(ctx, "/f", strings.NewReader("0123456789"), nil)

	rr, err := g.OpenRange(ctx, "/f", 7)
	if err != nil {
		t.Fatalf("OpenRange() error = %v", err)
	}
	defer rr.Close()
	data, _ := io.ReadAll(rr)
	if string(data) != "789" || rr.Offset() != 7 {
		t.Errorf("range = %q at %d", data, rr.Offset())
	}
}

func TestSignURL(t *testing.T) {
	ctx := context.Background()
	g, fake := newTestGCS("root")
	base := time.Unix(1700000000, 0)
	g.now = func() time.Time { return base }

	signed, err := g.SignURL(ctx, "/user/stor/a", "put", 30*time.Minute)
	if err != nil {
		t.Fatalf("SignURL() error = %v", err)
	}
	if signed != "https://storage.googleapis.com/bucket/root/user/stor/a?X-Goog-Signature=sig" {
		t.Errorf("SignURL() = %q", signed)
	}
	opts := fake.signed[0]
	if opts.Method != http.MethodPut || !opts.Expires.Equal(base.Add(30*time.Minute)) || opts.Scheme != storage.SigningSchemeV4 {
		t.Errorf("SignedURLOptions = %+v", opts)
	}

	if _, err := g.SignURL(ctx, "/a", "OPTIONS", time.Minute); !errors.Is(err, common.ErrSigningUnsupported) {
		t.Errorf("SignURL(OPTIONS) error = %v", err)
	}
}

func TestClose(t *testing.T) {
	g, fake := newTestGCS("")
	if err := g.Close(); err != nil || !fake.closed {
		t.Errorf("Close() = %v, closed = %v", err, fake.closed)
	}
	if err := New().Close(); err != nil {
		t.Errorf("Close() on unconfigured client = %v", err)
	}
}
