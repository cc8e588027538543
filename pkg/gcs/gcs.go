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

// Package gcs stores the filesystem in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/jeremyhahn/go-mantavfs/pkg/common"
)

const defaultEndpoint = "https://storage.googleapis.com"

// Small internal interfaces to enable unit tests without real GCS.
type gcsObject interface {
	NewWriter(ctx context.Context, attrs storage.ObjectAttrs) io.WriteCloser
	NewRangeReader(ctx context.Context, offset int64) (io.ReadCloser, error)
	Delete(ctx context.Context) error
	Attrs(ctx context.Context) (*storage.ObjectAttrs, error)
	CopyFrom(ctx context.Context, src gcsObject, attrs *storage.ObjectAttrs) error
}

type gcsBucket interface {
	Object(name string) gcsObject
	Objects(ctx context.Context, query *storage.Query) gcsIterator
	SignedURL(name string, opts *storage.SignedURLOptions) (string, error)
}

type gcsIterator interface {
	Next() (*storage.ObjectAttrs, error)
}

type gcsClient interface {
	Bucket(name string) gcsBucket
	Close() error
}

type clientWrapper struct{ *storage.Client }
type bucketWrapper struct{ *storage.BucketHandle }
type objectWrapper struct{ *storage.ObjectHandle }

func (c clientWrapper) Bucket(name string) gcsBucket { return bucketWrapper{c.Client.Bucket(name)} }
func (b bucketWrapper) Object(name string) gcsObject {
	return objectWrapper{b.BucketHandle.Object(name)}
}
func (b bucketWrapper) Objects(ctx context.Context, query *storage.Query) gcsIterator {
	return b.BucketHandle.Objects(ctx, query)
}

func (o objectWrapper) NewWriter(ctx context.Context, attrs storage.ObjectAttrs) io.WriteCloser {
	w := o.ObjectHandle.NewWriter(ctx)
	w.ContentType = attrs.ContentType
	w.Metadata = attrs.Metadata
	return w
}
func (o objectWrapper) NewRangeReader(ctx context.Context, offset int64) (io.ReadCloser, error) {
	return o.ObjectHandle.NewRangeReader(ctx, offset, -1)
}
func (o objectWrapper) CopyFrom(ctx context.Context, src gcsObject, attrs *storage.ObjectAttrs) error {
	handle, ok := src.(objectWrapper)
	if !ok {
		return fmt.Errorf("gcs: cannot copy from %T", src)
	}
	copier := o.ObjectHandle.CopierFrom(handle.ObjectHandle)
	if attrs != nil {
		copier.ObjectAttrs = *attrs
	}
	_, err := copier.Run(ctx)
	return err
}

var gcsNewClient = func(ctx context.Context, opts ...option.ClientOption) (gcsClient, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return clientWrapper{client}, nil
}

// GCS is a store client backed by a Google Cloud Storage bucket.
type GCS struct {
	*common.BlobClient

	client gcsClient
	bucket string
	now    func() time.Time
}

// New creates an unconfigured GCS client.
func New() *GCS {
	return &GCS{now: time.Now}
}

// Configure sets up the backend with the necessary settings.
//   - bucket: bucket name (required)
//   - prefix: key prefix the filesystem root maps to
//   - credentialsFile: service account JSON (default application credentials)
//   - endpoint: alternate API endpoint such as an emulator; disables authentication
//   - baseURL: public endpoint (default https://storage.googleapis.com/<bucket>)
func (g *GCS) Configure(settings map[string]string) error {
	bucket := settings["bucket"]
	if bucket == "" {
		return common.ErrBucketNotSet
	}

	var opts []option.ClientOption
	if file := settings["credentialsFile"]; file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	if endpoint := settings["endpoint"]; endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}

	client, err := gcsNewClient(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("create gcs client: %w", err)
	}

	keys := common.NewKeyMapper(settings["prefix"])
	baseURL := settings["baseURL"]
	if baseURL == "" {
		baseURL = defaultEndpoint + "/" + bucket
		if p := strings.TrimSuffix(keys.Prefix(), "/"); p != "" {
			baseURL += "/" + p
		}
	}
	g.bind(client, bucket, keys, baseURL)
	return nil
}

func (g *GCS) bind(client gcsClient, bucket string, keys common.KeyMapper, baseURL string) {
	g.client = client
	g.bucket = bucket
	if g.now == nil {
		g.now = time.Now
	}
	g.BlobClient = common.NewBlobClient(g, keys, baseURL)
}

func (g *GCS) object(key string) gcsObject {
	return g.client.Bucket(g.bucket).Object(key)
}

func wrap(op, key string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return common.NewStatusError(op, key, http.StatusNotFound, err)
	}
	return err
}

func blobAttrs(attrs *storage.ObjectAttrs) common.BlobAttrs {
	return common.BlobAttrs{
		Key:          attrs.Name,
		Size:         attrs.Size,
		LastModified: attrs.Updated,
		ETag:         attrs.Etag,
		ContentType:  attrs.ContentType,
		MD5:          attrs.MD5,
		Metadata:     attrs.Metadata,
	}
}

// StatBlob implements common.BlobStore.
func (g *GCS) StatBlob(ctx context.Context, key string) (*common.BlobAttrs, error) {
	attrs, err := g.object(key).Attrs(ctx)
	if err != nil {
		return nil, wrap("HEAD", key, err)
	}
	out := blobAttrs(attrs)
	return &out, nil
}

// ReadBlob implements common.BlobStore.
func (g *GCS) ReadBlob(ctx context.Context, key string, offset int64) (io.ReadCloser, error) {
	rc, err := g.object(key).NewRangeReader(ctx, offset)
	if err != nil {
		return nil, wrap("GET", key, err)
	}
	return rc, nil
}

// WriteBlob implements common.BlobStore. The upload is committed by Close.
func (g *GCS) WriteBlob(ctx context.Context, key string, r io.Reader, attrs common.BlobAttrs) error {
	w := g.object(key).NewWriter(ctx, storage.ObjectAttrs{
		ContentType: attrs.ContentType,
		Metadata:    attrs.Metadata,
	})
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// CopyBlob implements common.BlobStore with a server side rewrite.
func (g *GCS) CopyBlob(ctx context.Context, dst, src string, attrs *common.BlobAttrs) error {
	var objAttrs *storage.ObjectAttrs
	if attrs != nil {
		objAttrs = &storage.ObjectAttrs{ContentType: attrs.ContentType, Metadata: attrs.Metadata}
	}
	return wrap("COPY", src, g.object(dst).CopyFrom(ctx, g.object(src), objAttrs))
}

// DeleteBlob implements common.BlobStore.
func (g *GCS) DeleteBlob(ctx context.Context, key string) error {
	return wrap("DELETE", key, g.object(key).Delete(ctx))
}

// ListBlobs implements common.BlobStore.
func (g *GCS) ListBlobs(ctx context.Context, prefix string) ([]common.BlobAttrs, []string, error) {
	var blobs []common.BlobAttrs
	var prefixes []string

	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	for {
		attrs, err := it.Next()
		if err == iterator.Done { //nolint:err113 // iterator.Done is the standard sentinel error for GCS iterators
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if attrs.Prefix != "" {
			prefixes = append(prefixes, attrs.Prefix)
			continue
		}
		blobs = append(blobs, blobAttrs(attrs))
	}
	return blobs, prefixes, nil
}

// SignBlob implements common.BlobStore with a V4 signed URL.
func (g *GCS) SignBlob(_ context.Context, key, method string, ttl time.Duration) (string, error) {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodHead:
	default:
		return "", fmt.Errorf("%w: method %s", common.ErrSigningUnsupported, method)
	}
	return g.client.Bucket(g.bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:  method,
		Expires: g.now().Add(ttl),
		Scheme:  storage.SigningSchemeV4,
	})
}

// Close closes the underlying storage client.
func (g *GCS) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

var (
	_ common.Client    = (*GCS)(nil)
	_ common.BlobStore = (*GCS)(nil)
)
