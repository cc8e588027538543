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

// Package memory provides an in-memory implementation of the store client.
// Directories are real entries, as they are on the remote store, and parent
// directories are created on demand. This is useful for testing, development,
// and scenarios where persistence is not required.
package memory

import (
	"bytes"
	"context"
	"crypto/md5" // #nosec G501 -- content digest, not a security boundary
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeremyhahn/go-mantavfs/pkg/common"
)

// DefaultBaseURL is used when no baseURL setting is configured.
const DefaultBaseURL = "memory://"

// entry represents a stored object or directory.
type entry struct {
	dir      bool
	data     []byte
	md5      []byte
	modified time.Time
	metadata map[string]string
}

// Memory is a store client that keeps objects in memory.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	baseURL string
	signer  *common.URLSigner
	closed  bool
	calls   map[string]int
	now     func() time.Time
}

// New creates a new in-memory client holding only the root directory.
func New() *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		baseURL: DefaultBaseURL,
		signer:  common.NewURLSigner(""),
		calls:   make(map[string]int),
		now:     time.Now,
	}
	m.entries["/"] = &entry{dir: true, modified: m.now()}
	return m
}

// Configure applies settings. Recognized keys:
//   - baseURL: public endpoint used for unsigned and signed URLs
//   - signingKey: HMAC key for signed URLs (random when empty)
func (m *Memory) Configure(settings map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v := settings["baseURL"]; v != "" {
		m.baseURL = v
	}
	if v := settings["signingKey"]; v != "" {
		m.signer = common.NewURLSigner(v)
	}
	return nil
}

// Calls returns how many times op was invoked ("HEAD", "LIST", ...).
func (m *Memory) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (m *Memory) TotalCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// begin records op and checks the context and closed state. Callers hold mu.
func (m *Memory) begin(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	m.calls[op]++
	if m.closed {
		return common.ErrClientClosed
	}
	return nil
}

// Head returns the metadata stored for p.
func (m *Memory) Head(ctx context.Context, p string) (*common.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "HEAD"); err != nil {
		return nil, err
	}

	p = common.CleanPath(p)
	e, ok := m.entries[p]
	if !ok {
		return nil, common.NotFound("HEAD", p)
	}
	return e.info(p), nil
}

// Get opens the content of p.
func (m *Memory) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "GET"); err != nil {
		return nil, err
	}

	p = common.CleanPath(p)
	e, ok := m.entries[p]
	if !ok {
		return nil, common.NotFound("GET", p)
	}
	if e.dir {
		return nil, common.NewStatusError("GET", p, http.StatusBadRequest, common.ErrIsDirectory)
	}

	// Return a copy of the data to prevent mutation
	dataCopy := make([]byte, len(e.data))
	copy(dataCopy, e.data)
	return io.NopCloser(bytes.NewReader(dataCopy)), nil
}

// Put stores the content of r at p, creating parent directories.
func (m *Memory) Put(ctx context.Context, p string, r io.Reader, metadata map[string]string) error {
	// Read outside the lock so streaming writers do not block other callers
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "PUT"); err != nil {
		return err
	}

	p = common.CleanPath(p)
	if e, ok := m.entries[p]; ok && e.dir {
		return common.NewStatusError("PUT", p, http.StatusConflict, common.ErrIsDirectory)
	}
	if err := m.mkdirAll(path.Dir(p)); err != nil {
		return err
	}

	sum := md5.Sum(data) // #nosec G401 -- content digest
	m.entries[p] = &entry{
		data:     data,
		md5:      sum[:],
		modified: m.now(),
		metadata: common.CopyMetadata(metadata),
	}
	return nil
}

// PutMetadata merges update into the metadata of p.
func (m *Memory) PutMetadata(ctx context.Context, p string, update common.MetadataUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "PUT_METADATA"); err != nil {
		return err
	}

	p = common.CleanPath(p)
	e, ok := m.entries[p]
	if !ok {
		return common.NotFound("PUT_METADATA", p)
	}
	e.metadata = update.Apply(e.metadata)
	return nil
}

// PutDirectory creates p and any missing parents.
func (m *Memory) PutDirectory(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "PUT_DIRECTORY"); err != nil {
		return err
	}
	return m.mkdirAll(common.CleanPath(p))
}

// mkdirAll creates p and its parents. Callers hold mu.
func (m *Memory) mkdirAll(p string) error {
	if e, ok := m.entries[p]; ok {
		if !e.dir {
			return common.NewStatusError("PUT_DIRECTORY", p, http.StatusConflict, common.ErrNotDirectory)
		}
		return nil
	}
	if p != "/" {
		if err := m.mkdirAll(path.Dir(p)); err != nil {
			return err
		}
	}
	m.entries[p] = &entry{dir: true, modified: m.now()}
	return nil
}

// List returns the direct children of p sorted by name.
func (m *Memory) List(ctx context.Context, p string) ([]*common.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "LIST"); err != nil {
		return nil, err
	}

	p = common.CleanPath(p)
	e, ok := m.entries[p]
	if !ok {
		return nil, common.NotFound("LIST", p)
	}
	if !e.dir {
		return nil, common.NewStatusError("LIST", p, http.StatusBadRequest, common.ErrNotDirectory)
	}

	children := m.children(p)
	infos := make([]*common.ObjectInfo, 0, len(children))
	for _, child := range children {
		infos = append(infos, m.entries[child].info(child))
	}
	return infos, nil
}

// children returns the sorted paths directly under dir. Callers hold mu.
func (m *Memory) children(dir string) []string {
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}
	var out []string
	for k := range m.entries {
		if k == dir || !strings.HasPrefix(k, prefix) {
			continue
		}
		if strings.Contains(k[len(prefix):], "/") {
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Delete removes a file or an empty directory.
func (m *Memory) Delete(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "DELETE"); err != nil {
		return err
	}

	p = common.CleanPath(p)
	e, ok := m.entries[p]
	if !ok {
		return common.NotFound("DELETE", p)
	}
	if p == "/" {
		return common.NewStatusError("DELETE", p, http.StatusForbidden, fmt.Errorf("cannot delete root"))
	}
	if e.dir && len(m.children(p)) > 0 {
		return common.NewStatusError("DELETE", p, http.StatusConflict, common.ErrDirectoryNotEmpty)
	}
	delete(m.entries, p)
	return nil
}

// Move renames src to dst. Directories are moved with everything under them.
func (m *Memory) Move(ctx context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "MOVE"); err != nil {
		return err
	}

	src = common.CleanPath(src)
	dst = common.CleanPath(dst)
	e, ok := m.entries[src]
	if !ok {
		return common.NotFound("MOVE", src)
	}
	if src == dst {
		return nil
	}
	if e.dir && strings.HasPrefix(dst, src+"/") {
		return common.NewStatusError("MOVE", dst, http.StatusBadRequest, fmt.Errorf("cannot move %s into itself", src))
	}
	if existing, ok := m.entries[dst]; ok && existing.dir {
		return common.NewStatusError("MOVE", dst, http.StatusConflict, common.ErrIsDirectory)
	}
	if err := m.mkdirAll(path.Dir(dst)); err != nil {
		return err
	}

	moved := map[string]*entry{dst: e}
	if e.dir {
		for k, v := range m.entries {
			if strings.HasPrefix(k, src+"/") {
				moved[dst+k[len(src):]] = v
				delete(m.entries, k)
			}
		}
	}
	delete(m.entries, src)
	for k, v := range moved {
		m.entries[k] = v
	}
	return nil
}

// Link makes dst a copy of the file at src.
func (m *Memory) Link(ctx context.Context, dst, src string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "LINK"); err != nil {
		return err
	}

	src = common.CleanPath(src)
	dst = common.CleanPath(dst)
	e, ok := m.entries[src]
	if !ok {
		return common.NotFound("LINK", src)
	}
	if e.dir {
		return common.NewStatusError("LINK", src, http.StatusBadRequest, common.ErrIsDirectory)
	}
	if err := m.mkdirAll(path.Dir(dst)); err != nil {
		return err
	}

	// Objects are immutable once written, so the link shares the content
	m.entries[dst] = &entry{
		data:     e.data,
		md5:      e.md5,
		modified: m.now(),
		metadata: common.CopyMetadata(e.metadata),
	}
	return nil
}

// OpenRange opens p at offset.
func (m *Memory) OpenRange(ctx context.Context, p string, offset int64) (common.RangeReader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "GET_RANGE"); err != nil {
		return nil, err
	}

	p = common.CleanPath(p)
	e, ok := m.entries[p]
	if !ok {
		return nil, common.NotFound("GET_RANGE", p)
	}
	if e.dir {
		return nil, common.NewStatusError("GET_RANGE", p, http.StatusBadRequest, common.ErrIsDirectory)
	}

	size := int64(len(e.data))
	switch {
	case offset < 0 || offset > size:
		return nil, common.NewStatusError("GET_RANGE", p, http.StatusRequestedRangeNotSatisfiable, common.ErrInvalidOffset)
	case offset == size:
		return common.EmptyRange(offset), nil
	}
	return common.NewRangeReader(io.NopCloser(bytes.NewReader(e.data[offset:])), offset, size-offset), nil
}

// SignURL returns an HMAC-signed URL under the base URL.
func (m *Memory) SignURL(ctx context.Context, p, method string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, "SIGN"); err != nil {
		return "", err
	}
	return m.signer.Sign(m.baseURL, common.CleanPath(p), method, ttl), nil
}

// Signer exposes the URL signer so a gateway can verify the URLs it produced.
func (m *Memory) Signer() *common.URLSigner {
	return m.signer
}

// BaseURL returns the configured public endpoint.
func (m *Memory) BaseURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.baseURL
}

// Close marks the client closed. Further calls fail with ErrClientClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (e *entry) info(p string) *common.ObjectInfo {
	info := &common.ObjectInfo{
		Path:         p,
		Directory:    e.dir,
		LastModified: e.modified,
		Metadata:     common.CopyMetadata(e.metadata),
	}
	if e.dir {
		info.ContentType = common.DirectoryContentType
		return info
	}
	info.Size = int64(len(e.data))
	info.MD5 = append([]byte(nil), e.md5...)
	info.ETag = hex.EncodeToString(e.md5)
	info.ContentType = "application/octet-stream"
	return info
}

var _ common.Client = (*Memory)(nil)
