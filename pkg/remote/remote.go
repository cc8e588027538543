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

// Package remote is a store client for another mantavfs gateway. It maps
// each client operation onto the gateway's REST API, so a session can mount
// a filesystem that is served from elsewhere.
package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
	"github.com/jeremyhahn/go-mantavfs/pkg/common"
	"golang.org/x/time/rate"
)

const (
	// APIPrefix is the gateway's API root.
	APIPrefix = "/api/v1"

	// DefaultTimeout bounds one HTTP exchange, body included.
	DefaultTimeout = 30 * time.Second

	// attributePrefix is how custom metadata keys travel as headers.
	attributePrefix = "M-"

	maxErrorBody = 64 * 1024
)

// Remote is a store client backed by a gateway's REST API.
type Remote struct {
	endpoint   string
	httpClient *http.Client
	retry      RetryConfig
	limiter    *rate.Limiter
	logger     adapters.Logger
	closed     atomic.Bool
}

// New returns an unconfigured client.
func New() *Remote {
	return &Remote{
		retry:  DefaultRetryConfig(),
		logger: adapters.NewNoOpLogger(),
	}
}

// Configure applies settings. Recognized keys:
//   - url: the gateway root, e.g. https://gw:8080 (required)
//   - timeout: per-request timeout as a Go duration (default 30s)
//   - retries: attempts after the first for idempotent requests (default 3)
//   - rateLimit, rateBurst: client-side requests per second and burst
//   - caFile: PEM bundle trusted for the gateway's certificate
//   - insecureSkipVerify: "true" disables certificate verification
//   - tlsCiphers: comma separated IANA cipher suite names
//   - maxConnections: connections per host
//   - bufferSize: transport read and write buffer size in bytes
func (r *Remote) Configure(settings map[string]string) error {
	endpoint := strings.TrimSuffix(settings["url"], "/")
	if endpoint == "" {
		return common.ErrEndpointNotSet
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid gateway url %q", endpoint)
	}

	timeout := DefaultTimeout
	if v := settings["timeout"]; v != "" {
		if timeout, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid timeout %q: %w", v, err)
		}
	}

	retry := DefaultRetryConfig()
	if v := settings["retries"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid retries %q", v)
		}
		retry.MaxRetries = n
	}

	var limiter *rate.Limiter
	if v := settings["rateLimit"]; v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return fmt.Errorf("invalid rateLimit %q", v)
		}
		burst := int(math.Ceil(rps))
		if b := settings["rateBurst"]; b != "" {
			if burst, err = strconv.Atoi(b); err != nil || burst <= 0 {
				return fmt.Errorf("invalid rateBurst %q", b)
			}
		}
		if rps > 0 {
			limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if v := settings["maxConnections"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid maxConnections %q", v)
		}
		transport.MaxConnsPerHost = n
		transport.MaxIdleConnsPerHost = n
	}
	if v := settings["bufferSize"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid bufferSize %q", v)
		}
		transport.ReadBufferSize = n
		transport.WriteBufferSize = n
	}
	ciphers, err := parseCipherSuites(settings["tlsCiphers"])
	if err != nil {
		return err
	}
	if u.Scheme == "https" {
		tlsConfig, err := buildTLSConfig(settings["caFile"], settings["insecureSkipVerify"] == "true")
		if err != nil {
			return err
		}
		tlsConfig.CipherSuites = ciphers
		transport.TLSClientConfig = tlsConfig
	}

	r.endpoint = endpoint
	r.httpClient = &http.Client{Transport: transport, Timeout: timeout}
	r.retry = retry
	r.limiter = limiter
	return nil
}

// parseCipherSuites maps a comma separated list of IANA cipher suite names
// to their IDs. Only the TLS 1.2 suites are configurable.
func parseCipherSuites(list string) ([]uint16, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	known := make(map[string]uint16)
	for _, cs := range tls.CipherSuites() {
		known[cs.Name] = cs.ID
	}
	var ids []uint16
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("unsupported cipher suite %q", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func buildTLSConfig(caFile string, insecure bool) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: insecure} // #nosec G402 -- opt-in
	if caFile == "" {
		return cfg, nil
	}
	pem, err := os.ReadFile(caFile) // #nosec G304 -- operator supplied path
	if err != nil {
		return nil, fmt.Errorf("read caFile: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("caFile %s holds no certificates", caFile)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

// SetLogger sets the logger used for retries and request diagnostics.
func (r *Remote) SetLogger(logger adapters.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Endpoint returns the configured gateway root.
func (r *Remote) Endpoint() string {
	return r.endpoint
}

func (r *Remote) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.closed.Load() {
		return common.ErrClientClosed
	}
	if r.httpClient == nil {
		return common.ErrNotConfigured
	}
	return nil
}

func (r *Remote) route(route, p string) string {
	return r.endpoint + APIPrefix + route + (&url.URL{Path: common.CleanPath(p)}).EscapedPath()
}

// do sends the request produced by build. Retryable requests are rebuilt
// for each attempt; build must therefore not consume a one-shot body when
// retryable is set.
func (r *Remote) do(ctx context.Context, op, p string, retryable bool, build func() (*http.Request, error)) (*http.Response, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	cfg := r.retry
	if !retryable {
		cfg.MaxRetries = 0
	}

	return withRetry(ctx, cfg, func() (*http.Response, error) {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		req, err := build()
		if err != nil {
			return nil, err
		}
		if id := adapters.RequestIDFromContext(ctx); id != "" {
			req.Header.Set(adapters.RequestIDHeader, id)
		}
		resp, err := r.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", op, p, err)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			defer func() { _ = resp.Body.Close() }()
			return nil, statusError(op, p, resp)
		}
		return resp, nil
	}, func(attempt int, err error, backoff time.Duration) {
		r.logger.Warn(ctx, "retrying gateway request",
			adapters.Field{Key: "op", Value: op},
			adapters.Field{Key: "path", Value: p},
			adapters.Field{Key: "attempt", Value: attempt},
			adapters.Field{Key: "backoff", Value: backoff.String()},
			adapters.Field{Key: "error", Value: err.Error()})
	})
}

func (r *Remote) send(ctx context.Context, op, method, target, p string, retryable bool, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, err
		}
	}
	return r.do(ctx, op, p, retryable, func() (*http.Request, error) {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rd)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	})
}

// exec sends a request and discards the response body.
func (r *Remote) exec(ctx context.Context, op, method, target, p string, retryable bool, body any) error {
	resp, err := r.send(ctx, op, method, target, p, retryable, body)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func decode(resp *http.Response, v any) error {
	defer func() { _ = resp.Body.Close() }()
	return json.NewDecoder(resp.Body).Decode(v)
}

// Head returns the metadata of p. Custom metadata arrives as "M-" headers.
func (r *Remote) Head(ctx context.Context, p string) (*common.ObjectInfo, error) {
	p = common.CleanPath(p)
	resp, err := r.send(ctx, "HEAD", http.MethodHead, r.route("/fs", p), p, true, nil)
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()
	return infoFromHeaders(p, resp.Header), nil
}

func infoFromHeaders(p string, h http.Header) *common.ObjectInfo {
	info := &common.ObjectInfo{
		Path:        p,
		ContentType: h.Get("Content-Type"),
		ETag:        strings.Trim(h.Get("ETag"), `"`),
	}
	info.Directory = info.ContentType == common.DirectoryContentType
	if !info.Directory {
		info.Size, _ = strconv.ParseInt(h.Get("Content-Length"), 10, 64)
		if sum, err := hex.DecodeString(info.ETag); err == nil && len(sum) == 16 {
			info.MD5 = sum
		}
	}
	if lm := h.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			info.LastModified = t
		}
	}
	for k, values := range h {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "m-") && len(values) > 0 {
			if info.Metadata == nil {
				info.Metadata = make(map[string]string)
			}
			info.Metadata[lk] = values[0]
		}
	}
	return info
}

// Get opens the content of p.
func (r *Remote) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	p = common.CleanPath(p)
	resp, err := r.send(ctx, "GET", http.MethodGet, r.route("/fs", p), p, true, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Put uploads the content of rd. Keys of metadata with the "m-" prefix are
// sent as attribute headers; other keys are not carried by the gateway.
// Uploads are not retried since rd cannot be replayed.
func (r *Remote) Put(ctx context.Context, p string, rd io.Reader, metadata map[string]string) error {
	p = common.CleanPath(p)
	resp, err := r.do(ctx, "PUT", p, false, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.route("/fs", p), rd)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		for k, v := range metadata {
			if name, ok := attributeName(k); ok {
				req.Header.Set(attributePrefix+name, v)
			}
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// attributeName strips the storage prefix from a metadata key.
func attributeName(key string) (string, bool) {
	lk := strings.ToLower(key)
	if !strings.HasPrefix(lk, "m-") || len(lk) == 2 {
		return "", false
	}
	return lk[2:], true
}

type attributeRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PutMetadata applies update one attribute at a time. p is checked first
// so an empty update still reports a missing path.
func (r *Remote) PutMetadata(ctx context.Context, p string, update common.MetadataUpdate) error {
	p = common.CleanPath(p)
	if _, err := r.Head(ctx, p); err != nil {
		return err
	}

	keys := make([]string, 0, len(update.Set))
	for k := range update.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name, ok := attributeName(k)
		if !ok {
			return &common.ValidationError{Field: "metadata", Message: fmt.Sprintf("key %q lacks the m- prefix", k)}
		}
		err := r.exec(ctx, "PUT_METADATA", http.MethodPut, r.route("/attrs", p), p, true,
			attributeRequest{Key: name, Value: update.Set[k]})
		if err != nil {
			return err
		}
	}

	for _, k := range update.Remove {
		name, ok := attributeName(k)
		if !ok {
			return &common.ValidationError{Field: "metadata", Message: fmt.Sprintf("key %q lacks the m- prefix", k)}
		}
		target := r.route("/attrs", p) + "?" + url.Values{"key": {name}}.Encode()
		if err := r.exec(ctx, "PUT_METADATA", http.MethodDelete, target, p, true, nil); err != nil {
			return err
		}
	}
	return nil
}

// PutDirectory creates the directory at p.
func (r *Remote) PutDirectory(ctx context.Context, p string) error {
	p = common.CleanPath(p)
	return r.exec(ctx, "PUT_DIRECTORY", http.MethodPost, r.route("/mkdir", p), p, true, nil)
}

type listEntry struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"modTime"`
	IsDir       bool      `json:"isDir"`
	ContentType string    `json:"contentType"`
	ETag        string    `json:"etag"`
}

type listResponse struct {
	Path    string      `json:"path"`
	Entries []listEntry `json:"entries"`
}

// List returns the children of the directory at p.
func (r *Remote) List(ctx context.Context, p string) ([]*common.ObjectInfo, error) {
	p = common.CleanPath(p)
	resp, err := r.send(ctx, "LIST", http.MethodGet, r.route("/list", p), p, true, nil)
	if err != nil {
		return nil, err
	}
	var body listResponse
	if err := decode(resp, &body); err != nil {
		return nil, fmt.Errorf("LIST %s: decode response: %w", p, err)
	}

	infos := make([]*common.ObjectInfo, 0, len(body.Entries))
	for _, e := range body.Entries {
		infos = append(infos, &common.ObjectInfo{
			Path:         e.Path,
			Directory:    e.IsDir,
			Size:         e.Size,
			LastModified: e.ModTime,
			ContentType:  e.ContentType,
			ETag:         e.ETag,
		})
	}
	return infos, nil
}

// Delete removes the object or empty directory at p.
func (r *Remote) Delete(ctx context.Context, p string) error {
	p = common.CleanPath(p)
	return r.exec(ctx, "DELETE", http.MethodDelete, r.route("/fs", p), p, false, nil)
}

type transferRequest struct {
	To       string `json:"to"`
	Selector string `json:"selector,omitempty"`
}

// Move renames src to dst.
func (r *Remote) Move(ctx context.Context, src, dst string) error {
	src, dst = common.CleanPath(src), common.CleanPath(dst)
	if src == dst {
		_, err := r.Head(ctx, src)
		return err
	}
	return r.exec(ctx, "MOVE", http.MethodPost, r.route("/rename", src), src, false, transferRequest{To: dst})
}

// Link copies the file src to dst on the gateway.
func (r *Remote) Link(ctx context.Context, dst, src string) error {
	src, dst = common.CleanPath(src), common.CleanPath(dst)
	info, err := r.Head(ctx, src)
	if err != nil {
		return err
	}
	if info.Directory {
		return common.NewStatusError("LINK", src, http.StatusBadRequest, common.ErrIsDirectory)
	}
	return r.exec(ctx, "LINK", http.MethodPost, r.route("/copy", src), src, false,
		transferRequest{To: dst, Selector: "self"})
}

// OpenRange reads p from offset with a single-range request. Opening at the
// end of the object yields an empty channel.
func (r *Remote) OpenRange(ctx context.Context, p string, offset int64) (common.RangeReader, error) {
	p = common.CleanPath(p)
	if offset < 0 {
		return nil, common.NewStatusError("GET_RANGE", p, http.StatusRequestedRangeNotSatisfiable, common.ErrInvalidOffset)
	}

	resp, err := r.do(ctx, "GET_RANGE", p, true, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.route("/fs", p), nil)
		if err != nil {
			return nil, err
		}
		if offset > 0 {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
		}
		return req, nil
	})
	if errors.Is(err, common.ErrInvalidOffset) {
		info, herr := r.Head(ctx, p)
		if herr == nil && !info.Directory && info.Size == offset {
			return common.EmptyRange(offset), nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusOK && offset > 0 {
		if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("GET_RANGE %s: skip to %d: %w", p, offset, err)
		}
		if resp.ContentLength >= 0 {
			resp.ContentLength -= offset
		}
	}
	length := resp.ContentLength
	if length < 0 {
		length = 0
	}
	return common.NewRangeReader(resp.Body, offset, length), nil
}

type urlResponse struct {
	URL string `json:"url"`
}

// SignURL asks the gateway for the node's URL. The gateway signs with its
// own key and lifetime, so only GET is supported and ttl is not forwarded.
func (r *Remote) SignURL(ctx context.Context, p, method string, _ time.Duration) (string, error) {
	if !strings.EqualFold(method, http.MethodGet) {
		return "", fmt.Errorf("%s via gateway: %w", method, common.ErrSigningUnsupported)
	}
	p = common.CleanPath(p)
	resp, err := r.send(ctx, "SIGN", http.MethodGet, r.route("/url", p), p, true, nil)
	if err != nil {
		return "", err
	}
	var body urlResponse
	if err := decode(resp, &body); err != nil {
		return "", fmt.Errorf("SIGN %s: decode response: %w", p, err)
	}
	return body.URL, nil
}

// BaseURL returns the gateway's file route, under which object paths are
// directly readable.
func (r *Remote) BaseURL() string {
	return r.endpoint + APIPrefix + "/fs"
}

// Close releases idle connections. Later calls fail with ErrClientClosed.
func (r *Remote) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if r.httpClient != nil {
		r.httpClient.CloseIdleConnections()
	}
	return nil
}
