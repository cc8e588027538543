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

//go:build awss3

// Package s3 stores the filesystem in an Amazon S3 (or S3 compatible)
// bucket using the AWS SDK v2.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jeremyhahn/go-mantavfs/pkg/common"
)

const defaultRegion = "us-east-1"

// API is the subset of the S3 client the backend calls.
type API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Presigner is the subset of s3.PresignClient used for signed URLs.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignDeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignHeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3 is a store client backed by an S3 bucket.
type S3 struct {
	*common.BlobClient

	api       API
	presigner Presigner
	bucket    string
}

// New returns an unconfigured client. Every call fails with
// common.ErrNotConfigured until Configure succeeds.
func New() *S3 {
	return &S3{}
}

// NewWithAPI binds an existing API implementation.
func NewWithAPI(api API, presigner Presigner, bucket, prefix, baseURL string) *S3 {
	s := &S3{api: api, presigner: presigner, bucket: bucket}
	s.BlobClient = common.NewBlobClient(s, common.NewKeyMapper(prefix), baseURL)
	return s
}

// Configure creates the SDK client. Recognized settings:
//   - bucket: bucket name (required)
//   - region: AWS region (default us-east-1)
//   - endpoint: custom endpoint for S3 compatible stores; enables path-style addressing
//   - accessKey, secretKey: static credentials (default credential chain otherwise)
//   - prefix: key prefix the filesystem root maps to
//   - baseURL: public endpoint (default derived from bucket, region and endpoint)
//   - retries: maximum retries per request
//   - timeout: HTTP client timeout ("20s" or milliseconds)
func (s *S3) Configure(settings map[string]string) error {
	bucket := settings["bucket"]
	if bucket == "" {
		return common.ErrBucketNotSet
	}
	region := settings["region"]
	if region == "" {
		region = defaultRegion
	}
	endpoint := strings.TrimSuffix(settings["endpoint"], "/")

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	accessKey, secretKey := settings["accessKey"], settings["secretKey"]
	switch {
	case accessKey != "" && secretKey != "":
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, settings["sessionToken"])))
	case accessKey != "":
		return common.ErrSecretKeyNotSet
	case secretKey != "":
		return common.ErrAccessKeyNotSet
	}
	if v := settings["retries"]; v != "" {
		retries, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid retries %q: %w", v, err)
		}
		opts = append(opts, config.WithRetryMaxAttempts(retries+1))
	}
	if v := settings["timeout"]; v != "" {
		timeout, err := parseTimeout(v)
		if err != nil {
			return err
		}
		opts = append(opts, config.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(timeout)))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	keys := common.NewKeyMapper(settings["prefix"])
	baseURL := settings["baseURL"]
	if baseURL == "" {
		baseURL = bucketURL(bucket, region, endpoint)
		if p := strings.TrimSuffix(keys.Prefix(), "/"); p != "" {
			baseURL += "/" + p
		}
	}

	s.api = client
	s.presigner = s3.NewPresignClient(client)
	s.bucket = bucket
	s.BlobClient = common.NewBlobClient(s, keys, baseURL)
	return nil
}

func parseTimeout(v string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", v, err)
	}
	return d, nil
}

func bucketURL(bucket, region, endpoint string) string {
	if endpoint != "" {
		return endpoint + "/" + bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
}

// Bucket returns the configured bucket name.
func (s *S3) Bucket() string {
	return s.bucket
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	var response *awshttp.ResponseError
	return errors.As(err, &noSuchKey) ||
		errors.As(err, &notFound) ||
		(errors.As(err, &response) && response.HTTPStatusCode() == http.StatusNotFound)
}

func wrap(op, key string, err error) error {
	if isNotFound(err) {
		return common.NewStatusError(op, key, http.StatusNotFound, err)
	}
	return err
}

func trimETag(etag *string) string {
	return strings.Trim(aws.ToString(etag), `"`)
}

// StatBlob implements common.BlobStore.
func (s *S3) StatBlob(ctx context.Context, key string) (*common.BlobAttrs, error) {
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrap("HEAD", key, err)
	}
	return &common.BlobAttrs{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		ETag:         trimETag(out.ETag),
		ContentType:  aws.ToString(out.ContentType),
		Metadata:     out.Metadata,
	}, nil
}

// ReadBlob implements common.BlobStore.
func (s *S3) ReadBlob(ctx context.Context, key string, offset int64) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if offset > 0 {
		input.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
	}
	out, err := s.api.GetObject(ctx, input)
	if err != nil {
		return nil, wrap("GET", key, err)
	}
	return out.Body, nil
}

// WriteBlob implements common.BlobStore. Request signing needs a seekable
// body, so other readers are buffered first.
func (s *S3) WriteBlob(ctx context.Context, key string, r io.Reader, attrs common.BlobAttrs) error {
	body, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	input := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     body,
		Metadata: attrs.Metadata,
	}
	if attrs.ContentType != "" {
		input.ContentType = aws.String(attrs.ContentType)
	}
	_, err := s.api.PutObject(ctx, input)
	return err
}

// CopyBlob implements common.BlobStore.
func (s *S3) CopyBlob(ctx context.Context, dst, src string, attrs *common.BlobAttrs) error {
	source := (&url.URL{Path: s.bucket + "/" + src}).EscapedPath()
	input := &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(source),
	}
	if attrs != nil {
		input.MetadataDirective = types.MetadataDirectiveReplace
		input.Metadata = attrs.Metadata
		if input.Metadata == nil {
			input.Metadata = map[string]string{}
		}
		if attrs.ContentType != "" {
			input.ContentType = aws.String(attrs.ContentType)
		}
	}
	_, err := s.api.CopyObject(ctx, input)
	return wrap("COPY", src, err)
}

// DeleteBlob implements common.BlobStore.
func (s *S3) DeleteBlob(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return wrap("DELETE", key, err)
}

// ListBlobs implements common.BlobStore.
func (s *S3) ListBlobs(ctx context.Context, prefix string) ([]common.BlobAttrs, []string, error) {
	var blobs []common.BlobAttrs
	var prefixes []string

	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, nil, err
		}
		for _, obj := range page.Contents {
			blobs = append(blobs, common.BlobAttrs{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         trimETag(obj.ETag),
			})
		}
		for _, cp := range page.CommonPrefixes {
			prefixes = append(prefixes, aws.ToString(cp.Prefix))
		}
	}
	return blobs, prefixes, nil
}

// SignBlob implements common.BlobStore with SigV4 query signing.
func (s *S3) SignBlob(ctx context.Context, key, method string, ttl time.Duration) (string, error) {
	bucket, k := aws.String(s.bucket), aws.String(key)
	expires := s3.WithPresignExpires(ttl)

	var req *v4.PresignedHTTPRequest
	var err error
	switch method {
	case http.MethodGet:
		req, err = s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: bucket, Key: k}, expires)
	case http.MethodPut:
		req, err = s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{Bucket: bucket, Key: k}, expires)
	case http.MethodDelete:
		req, err = s.presigner.PresignDeleteObject(ctx, &s3.DeleteObjectInput{Bucket: bucket, Key: k}, expires)
	case http.MethodHead:
		req, err = s.presigner.PresignHeadObject(ctx, &s3.HeadObjectInput{Bucket: bucket, Key: k}, expires)
	default:
		return "", fmt.Errorf("%w: method %s", common.ErrSigningUnsupported, method)
	}
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// Close is a no-op; the SDK holds no resources that need releasing.
func (s *S3) Close() error {
	return nil
}

var (
	_ common.Client    = (*S3)(nil)
	_ common.BlobStore = (*S3)(nil)
)
