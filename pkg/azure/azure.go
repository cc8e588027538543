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

//go:build azureblob

//nolint:gocritic // Style suggestions not critical for Azure storage implementation

// Package azure stores the filesystem in an Azure Blob Storage container.
package azure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/jeremyhahn/go-mantavfs/pkg/common"
)

// BlobAPI is the per-blob surface the backend uses.
type BlobAPI interface {
	Upload(ctx context.Context, r io.Reader, attrs common.BlobAttrs) error
	Download(ctx context.Context, offset int64) (io.ReadCloser, error)
	Delete(ctx context.Context) error
	GetProperties(ctx context.Context) (*common.BlobAttrs, error)
	SetMetadata(ctx context.Context, metadata map[string]string) error
	URL() url.URL
}

// ContainerAPI is the container surface the backend uses.
type ContainerAPI interface {
	NewBlockBlob(name string) BlobAPI
	ListBlobsHierarchy(ctx context.Context, prefix string) ([]common.BlobAttrs, []string, error)
}

type containerWrapper struct{ azblob.ContainerURL }
type blobWrapper struct {
	azblob.BlockBlobURL
	name string
}

// Function variables to enable unit testing without real network I/O.
var (
	azureUploadFn = func(ctx context.Context, r io.Reader, b azblob.BlockBlobURL, o azblob.UploadStreamToBlockBlobOptions) error {
		_, err := azblob.UploadStreamToBlockBlob(ctx, r, b, o)
		return err
	}
	azureDownloadFn = func(ctx context.Context, b azblob.BlockBlobURL, offset int64) (io.ReadCloser, error) {
		resp, err := b.Download(ctx, offset, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
		if err != nil {
			return nil, err
		}
		return resp.Body(azblob.RetryReaderOptions{MaxRetryRequests: 3}), nil
	}
)

func (c containerWrapper) NewBlockBlob(name string) BlobAPI {
	return blobWrapper{BlockBlobURL: c.ContainerURL.NewBlockBlobURL(name), name: name}
}

func (c containerWrapper) ListBlobsHierarchy(ctx context.Context, prefix string) ([]common.BlobAttrs, []string, error) {
	var blobs []common.BlobAttrs
	var prefixes []string
	marker := azblob.Marker{}

	for marker.NotDone() {
		resp, err := c.ContainerURL.ListBlobsHierarchySegment(ctx, marker, "/", azblob.ListBlobsSegmentOptions{
			Prefix:  prefix,
			Details: azblob.BlobListingDetails{Metadata: true},
		})
		if err != nil {
			return nil, nil, err
		}
		for _, p := range resp.Segment.BlobPrefixes {
			prefixes = append(prefixes, p.Name)
		}
		for _, item := range resp.Segment.BlobItems {
			attrs := common.BlobAttrs{
				Key:          item.Name,
				LastModified: item.Properties.LastModified,
				ETag:         strings.Trim(string(item.Properties.Etag), `"`),
				MD5:          item.Properties.ContentMD5,
				Metadata:     decodeMetadata(item.Metadata),
			}
			if item.Properties.ContentLength != nil {
				attrs.Size = *item.Properties.ContentLength
			}
			if item.Properties.ContentType != nil {
				attrs.ContentType = *item.Properties.ContentType
			}
			blobs = append(blobs, attrs)
		}
		marker = resp.NextMarker
	}
	return blobs, prefixes, nil
}

func (b blobWrapper) Upload(ctx context.Context, r io.Reader, attrs common.BlobAttrs) error {
	return azureUploadFn(ctx, r, b.BlockBlobURL, azblob.UploadStreamToBlockBlobOptions{
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{ContentType: attrs.ContentType},
		Metadata:        encodeMetadata(attrs.Metadata),
	})
}

func (b blobWrapper) Download(ctx context.Context, offset int64) (io.ReadCloser, error) {
	return azureDownloadFn(ctx, b.BlockBlobURL, offset)
}

func (b blobWrapper) Delete(ctx context.Context) error {
	_, err := b.BlockBlobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{})
	return err
}

func (b blobWrapper) GetProperties(ctx context.Context) (*common.BlobAttrs, error) {
	props, err := b.BlockBlobURL.GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return nil, err
	}
	return &common.BlobAttrs{
		Key:          b.name,
		Size:         props.ContentLength(),
		LastModified: props.LastModified(),
		ETag:         strings.Trim(string(props.ETag()), `"`),
		ContentType:  props.ContentType(),
		MD5:          props.ContentMD5(),
		Metadata:     decodeMetadata(props.NewMetadata()),
	}, nil
}

func (b blobWrapper) SetMetadata(ctx context.Context, metadata map[string]string) error {
	_, err := b.BlockBlobURL.SetMetadata(ctx, encodeMetadata(metadata), azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	return err
}

func (b blobWrapper) URL() url.URL {
	return b.BlockBlobURL.URL()
}

// Azure is a store client backed by an Azure Blob Storage container.
type Azure struct {
	*common.BlobClient

	container     ContainerAPI
	credential    azblob.StorageAccountCredential
	containerName string
	protocol      azblob.SASProtocol
	now           func() time.Time
}

// New creates an unconfigured Azure client.
func New() *Azure {
	return &Azure{now: time.Now}
}

// NewWithContainer binds an existing container implementation. Signing
// requires credential; pass nil to disable it.
func NewWithContainer(container ContainerAPI, credential azblob.StorageAccountCredential, containerName, prefix, baseURL string) *Azure {
	a := &Azure{
		container:     container,
		credential:    credential,
		containerName: containerName,
		protocol:      azblob.SASProtocolHTTPS,
		now:           time.Now,
	}
	a.BlobClient = common.NewBlobClient(a, common.NewKeyMapper(prefix), baseURL)
	return a
}

// Configure sets up the backend with the necessary settings.
// Required settings:
//   - accountName: Azure storage account name
//   - accountKey: Azure storage account key
//   - containerName: Azure blob container name
//
// Optional settings:
//   - endpoint: Custom endpoint URL (for Azurite, etc.)
//   - prefix: key prefix the filesystem root maps to
//   - baseURL: public endpoint (defaults to the container URL)
func (a *Azure) Configure(settings map[string]string) error {
	accountName := settings["accountName"]
	accountKey := settings["accountKey"]
	containerName := settings["containerName"]

	if accountName == "" || accountKey == "" || containerName == "" {
		return common.ErrAccountNotSet
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return err
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	var raw string
	if ep := strings.TrimSuffix(settings["endpoint"], "/"); ep != "" {
		raw = fmt.Sprintf("%s/%s", ep, containerName)
	} else {
		raw = fmt.Sprintf("https://%s.blob.core.windows.net/%s", accountName, containerName)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}

	keys := common.NewKeyMapper(settings["prefix"])
	baseURL := settings["baseURL"]
	if baseURL == "" {
		baseURL = raw
		if p := strings.TrimSuffix(keys.Prefix(), "/"); p != "" {
			baseURL += "/" + p
		}
	}

	a.container = containerWrapper{azblob.NewContainerURL(*u, pipeline)}
	a.credential = credential
	a.containerName = containerName
	a.protocol = azblob.SASProtocolHTTPS
	if u.Scheme == "http" {
		a.protocol = azblob.SASProtocolHTTPSandHTTP
	}
	if a.now == nil {
		a.now = time.Now
	}
	a.BlobClient = common.NewBlobClient(a, keys, baseURL)
	return nil
}

func isNotFound(err error) bool {
	var serr azblob.StorageError
	if errors.As(err, &serr) {
		if serr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
			return true
		}
		if resp := serr.Response(); resp != nil && resp.StatusCode == http.StatusNotFound {
			return true
		}
	}
	return false
}

func wrap(op, key string, err error) error {
	if err != nil && isNotFound(err) {
		return common.NewStatusError(op, key, http.StatusNotFound, err)
	}
	return err
}

// StatBlob implements common.BlobStore.
func (a *Azure) StatBlob(ctx context.Context, key string) (*common.BlobAttrs, error) {
	attrs, err := a.container.NewBlockBlob(key).GetProperties(ctx)
	if err != nil {
		return nil, wrap("HEAD", key, err)
	}
	return attrs, nil
}

// ReadBlob implements common.BlobStore.
func (a *Azure) ReadBlob(ctx context.Context, key string, offset int64) (io.ReadCloser, error) {
	rc, err := a.container.NewBlockBlob(key).Download(ctx, offset)
	if err != nil {
		return nil, wrap("GET", key, err)
	}
	return rc, nil
}

// WriteBlob implements common.BlobStore.
func (a *Azure) WriteBlob(ctx context.Context, key string, r io.Reader, attrs common.BlobAttrs) error {
	return a.container.NewBlockBlob(key).Upload(ctx, r, attrs)
}

// CopyBlob implements common.BlobStore. An in-place copy only rewrites the
// metadata; other copies stream the content through the client.
func (a *Azure) CopyBlob(ctx context.Context, dst, src string, attrs *common.BlobAttrs) error {
	source := a.container.NewBlockBlob(src)
	if dst == src {
		if attrs == nil {
			return nil
		}
		return wrap("COPY", src, source.SetMetadata(ctx, attrs.Metadata))
	}

	props, err := source.GetProperties(ctx)
	if err != nil {
		return wrap("COPY", src, err)
	}
	if attrs != nil {
		props.ContentType = attrs.ContentType
		props.Metadata = attrs.Metadata
	}
	rc, err := source.Download(ctx, 0)
	if err != nil {
		return wrap("COPY", src, err)
	}
	defer func() { _ = rc.Close() }()
	return a.container.NewBlockBlob(dst).Upload(ctx, rc, *props)
}

// DeleteBlob implements common.BlobStore.
func (a *Azure) DeleteBlob(ctx context.Context, key string) error {
	return wrap("DELETE", key, a.container.NewBlockBlob(key).Delete(ctx))
}

// ListBlobs implements common.BlobStore.
func (a *Azure) ListBlobs(ctx context.Context, prefix string) ([]common.BlobAttrs, []string, error) {
	return a.container.ListBlobsHierarchy(ctx, prefix)
}

// SignBlob implements common.BlobStore with a blob SAS.
func (a *Azure) SignBlob(_ context.Context, key, method string, ttl time.Duration) (string, error) {
	var perms azblob.BlobSASPermissions
	switch method {
	case http.MethodGet, http.MethodHead:
		perms.Read = true
	case http.MethodPut:
		perms.Create = true
		perms.Write = true
	case http.MethodDelete:
		perms.Delete = true
	default:
		return "", fmt.Errorf("%w: method %s", common.ErrSigningUnsupported, method)
	}
	if a.credential == nil {
		return "", fmt.Errorf("%w: no account key", common.ErrSigningUnsupported)
	}

	sas, err := azblob.BlobSASSignatureValues{
		Protocol:      a.protocol,
		ExpiryTime:    a.now().UTC().Add(ttl),
		ContainerName: a.containerName,
		BlobName:      key,
		Permissions:   perms.String(),
	}.NewSASQueryParameters(a.credential)
	if err != nil {
		return "", err
	}
	u := a.container.NewBlockBlob(key).URL()
	u.RawQuery = sas.Encode()
	return u.String(), nil
}

// Close is a no-op; the pipeline holds no resources that need releasing.
func (a *Azure) Close() error {
	return nil
}

// Azure metadata names must be C# identifiers, so characters outside
// [A-Za-z0-9] are stored as "_" followed by two hex digits.
func encodeMetadata(in map[string]string) azblob.Metadata {
	if in == nil {
		return nil
	}
	out := make(azblob.Metadata, len(in))
	for k, v := range in {
		out[encodeKey(k)] = v
	}
	return out
}

func decodeMetadata(in azblob.Metadata) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[decodeKey(k)] = v
	}
	return out
}

func encodeKey(k string) string {
	var b strings.Builder
	for i := 0; i < len(k); i++ {
		c := k[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "_%02x", c)
	}
	return b.String()
}

func decodeKey(k string) string {
	var b strings.Builder
	for i := 0; i < len(k); i++ {
		if k[i] == '_' && i+2 < len(k) {
			if n, err := strconv.ParseUint(k[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(n))
				i += 2
				continue
			}
		}
		b.WriteByte(k[i])
	}
	return b.String()
}

var (
	_ common.Client    = (*Azure)(nil)
	_ common.BlobStore = (*Azure)(nil)
)
