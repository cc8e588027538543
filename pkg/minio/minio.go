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

//go:build minio

//nolint:staticcheck // Using v1 SDK

// Package minio stores the filesystem in a MinIO bucket. MinIO speaks the
// S3 protocol, so the backend drives it with the AWS SDK.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/jeremyhahn/go-mantavfs/pkg/common"
)

// MinIO is a store client backed by a MinIO bucket.
type MinIO struct {
	*common.BlobClient

	svc    s3iface.S3API
	bucket string
}

// New creates an unconfigured MinIO client.
func New() *MinIO {
	return &MinIO{}
}

// NewWithAPI binds an existing S3 API implementation.
func NewWithAPI(svc s3iface.S3API, bucket, prefix, baseURL string) *MinIO {
	m := &MinIO{svc: svc, bucket: bucket}
	m.BlobClient = common.NewBlobClient(m, common.NewKeyMapper(prefix), baseURL)
	return m
}

// Configure sets up the backend with the necessary settings.
// Required settings:
//   - bucket: the MinIO bucket name
//   - endpoint: MinIO server endpoint (e.g., "http://localhost:9000")
//   - accessKey: MinIO access key
//   - secretKey: MinIO secret key
//
// Optional settings:
//   - region: AWS region (defaults to "us-east-1")
//   - prefix: key prefix the filesystem root maps to
//   - baseURL: public endpoint (defaults to endpoint/bucket)
func (m *MinIO) Configure(settings map[string]string) error {
	bucket := settings["bucket"]
	if bucket == "" {
		return common.ErrBucketNotSet
	}

	endpoint := strings.TrimSuffix(settings["endpoint"], "/")
	if endpoint == "" {
		return common.ErrEndpointNotSet
	}

	accessKey := settings["accessKey"]
	if accessKey == "" {
		return common.ErrAccessKeyNotSet
	}

	secretKey := settings["secretKey"]
	if secretKey == "" {
		return common.ErrSecretKeyNotSet
	}

	region := settings["region"]
	if region == "" {
		region = "us-east-1"
	}

	cfg := &aws.Config{
		Region:           aws.String(region),
		Endpoint:         aws.String(endpoint),
		S3ForcePathStyle: aws.Bool(true), // MinIO requires path-style addressing
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return err
	}

	keys := common.NewKeyMapper(settings["prefix"])
	baseURL := settings["baseURL"]
	if baseURL == "" {
		baseURL = endpoint + "/" + bucket
		if p := strings.TrimSuffix(keys.Prefix(), "/"); p != "" {
			baseURL += "/" + p
		}
	}

	m.svc = s3.New(sess)
	m.bucket = bucket
	m.BlobClient = common.NewBlobClient(m, keys, baseURL)
	return nil
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	var reqErr awserr.RequestFailure
	return errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound
}

func wrap(op, key string, err error) error {
	if err != nil && isNotFound(err) {
		return common.NewStatusError(op, key, http.StatusNotFound, err)
	}
	return err
}

// StatBlob implements common.BlobStore.
func (m *MinIO) StatBlob(ctx context.Context, key string) (*common.BlobAttrs, error) {
	out, err := m.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrap("HEAD", key, err)
	}
	return &common.BlobAttrs{
		Key:          key,
		Size:         aws.Int64Value(out.ContentLength),
		LastModified: aws.TimeValue(out.LastModified),
		ETag:         strings.Trim(aws.StringValue(out.ETag), `"`),
		ContentType:  aws.StringValue(out.ContentType),
		Metadata:     fromAWSMetadata(out.Metadata),
	}, nil
}

// ReadBlob implements common.BlobStore.
func (m *MinIO) ReadBlob(ctx context.Context, key string, offset int64) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	}
	if offset > 0 {
		input.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
	}
	result, err := m.svc.GetObjectWithContext(ctx, input)
	if err != nil {
		return nil, wrap("GET", key, err)
	}
	return result.Body, nil
}

// WriteBlob implements common.BlobStore.
func (m *MinIO) WriteBlob(ctx context.Context, key string, r io.Reader, attrs common.BlobAttrs) error {
	body, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	input := &s3.PutObjectInput{
		Bucket:   aws.String(m.bucket),
		Key:      aws.String(key),
		Body:     aws.ReadSeekCloser(body),
		Metadata: toAWSMetadata(attrs.Metadata),
	}
	if attrs.ContentType != "" {
		input.ContentType = aws.String(attrs.ContentType)
	}
	_, err := m.svc.PutObjectWithContext(ctx, input)
	return err
}

// CopyBlob implements common.BlobStore.
func (m *MinIO) CopyBlob(ctx context.Context, dst, src string, attrs *common.BlobAttrs) error {
	input := &s3.CopyObjectInput{
		Bucket:     aws.String(m.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String((&url.URL{Path: m.bucket + "/" + src}).EscapedPath()),
	}
	if attrs != nil {
		input.MetadataDirective = aws.String(s3.MetadataDirectiveReplace)
		input.Metadata = toAWSMetadata(attrs.Metadata)
		if attrs.ContentType != "" {
			input.ContentType = aws.String(attrs.ContentType)
		}
	}
	_, err := m.svc.CopyObjectWithContext(ctx, input)
	return wrap("COPY", src, err)
}

// DeleteBlob implements common.BlobStore.
func (m *MinIO) DeleteBlob(ctx context.Context, key string) error {
	_, err := m.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	return wrap("DELETE", key, err)
}

// ListBlobs implements common.BlobStore.
func (m *MinIO) ListBlobs(ctx context.Context, prefix string) ([]common.BlobAttrs, []string, error) {
	var blobs []common.BlobAttrs
	var prefixes []string
	var continuationToken *string

	for {
		input := &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: continuationToken,
		}

		result, err := m.svc.ListObjectsV2WithContext(ctx, input)
		if err != nil {
			return nil, nil, err
		}

		for _, obj := range result.Contents {
			if obj.Key == nil {
				continue
			}
			blobs = append(blobs, common.BlobAttrs{
				Key:          *obj.Key,
				Size:         aws.Int64Value(obj.Size),
				LastModified: aws.TimeValue(obj.LastModified),
				ETag:         strings.Trim(aws.StringValue(obj.ETag), `"`),
			})
		}
		for _, cp := range result.CommonPrefixes {
			if cp.Prefix != nil {
				prefixes = append(prefixes, *cp.Prefix)
			}
		}

		if !aws.BoolValue(result.IsTruncated) {
			break
		}
		continuationToken = result.NextContinuationToken
	}
	return blobs, prefixes, nil
}

// SignBlob implements common.BlobStore with a presigned request.
func (m *MinIO) SignBlob(_ context.Context, key, method string, ttl time.Duration) (string, error) {
	bucket, k := aws.String(m.bucket), aws.String(key)

	var req *request.Request
	switch method {
	case http.MethodGet:
		req, _ = m.svc.GetObjectRequest(&s3.GetObjectInput{Bucket: bucket, Key: k})
	case http.MethodPut:
		req, _ = m.svc.PutObjectRequest(&s3.PutObjectInput{Bucket: bucket, Key: k})
	case http.MethodDelete:
		req, _ = m.svc.DeleteObjectRequest(&s3.DeleteObjectInput{Bucket: bucket, Key: k})
	case http.MethodHead:
		req, _ = m.svc.HeadObjectRequest(&s3.HeadObjectInput{Bucket: bucket, Key: k})
	default:
		return "", fmt.Errorf("%w: method %s", common.ErrSigningUnsupported, method)
	}
	return req.Presign(ttl)
}

// Close is a no-op; the session holds no resources that need releasing.
func (m *MinIO) Close() error {
	return nil
}

// The v1 SDK canonicalizes user metadata keys (X-Amz-Meta-M-Color), so keys
// are lowercased on the way back.
func fromAWSMetadata(in map[string]*string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = aws.StringValue(v)
	}
	return out
}

func toAWSMetadata(in map[string]string) map[string]*string {
	if in == nil {
		return nil
	}
	return aws.StringMap(in)
}

var (
	_ common.Client    = (*MinIO)(nil)
	_ common.BlobStore = (*MinIO)(nil)
)
