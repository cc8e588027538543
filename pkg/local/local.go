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

package local

import (
	"context"
	"crypto/md5" // #nosec G501 -- content digest, not a security boundary
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
	"github.com/jeremyhahn/go-mantavfs/pkg/common"
)

const (
	metadataSuffix = ".metadata.json"
	tempPrefix     = ".mantavfs-upload-"
)

// sidecar is the JSON document stored next to each object.
type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	MD5         string            `json:"md5,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Local is a store client that keeps objects in a directory on the local
// disk, with custom metadata in JSON sidecar files.
type Local struct {
	path    string
	baseURL string
	signer  *common.URLSigner
	logger  adapters.Logger
}

// New creates a new, unconfigured Local client.
func New() *Local {
	return &Local{
		logger: adapters.NewNoOpLogger(),
	}
}

// Configure sets up the client.
// Settings:
//   - path: The directory that holds the store (required)
//   - baseURL: Public endpoint used to build URLs (optional, default file://<path>)
//   - signingKey: HMAC key for signed URLs (optional, random when empty)
func (l *Local) Configure(settings map[string]string) error {
	l.path = settings["path"]
	if l.path == "" {
		return common.ErrPathNotSet
	}

	abs, err := filepath.Abs(l.path)
	if err != nil {
		return err
	}
	l.path = abs

	// Ensure directory exists
	if err := os.MkdirAll(l.path, 0750); err != nil {
		return err
	}

	l.baseURL = settings["baseURL"]
	if l.baseURL == "" {
		l.baseURL = "file://" + filepath.ToSlash(l.path)
	}
	l.signer = common.NewURLSigner(settings["signingKey"])
	return nil
}

// SetLogger sets the logger used for diagnostics.
func (l *Local) SetLogger(logger adapters.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// GetPath returns the store directory.
func (l *Local) GetPath() string {
	return l.path
}

// Signer exposes the URL signer so a gateway can verify the URLs it produced.
func (l *Local) Signer() *common.URLSigner {
	return l.signer
}

func (l *Local) check(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if l.path == "" {
		return common.ErrNotConfigured
	}
	return nil
}

// fsPath maps a store path to a path on disk. CleanPath strips any ".."
// so the result always stays under the root.
func (l *Local) fsPath(p string) string {
	return filepath.Join(l.path, filepath.FromSlash(common.CleanPath(p)))
}

// Head returns the metadata stored for p.
func (l *Local) Head(ctx context.Context, p string) (*common.ObjectInfo, error) {
	if err := l.check(ctx); err != nil {
		return nil, err
	}

	p = common.CleanPath(p)
	fi, err := os.Stat(l.fsPath(p))
	if err != nil {
		return nil, l.translate("HEAD", p, err)
	}
	return l.info(p, fi)
}

// Get opens the content of p.
func (l *Local) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := l.check(ctx); err != nil {
		return nil, err
	}

	p = common.CleanPath(p)
	fp := l.fsPath(p)
	fi, err := os.Stat(fp)
	if err != nil {
		return nil, l.translate("GET", p, err)
	}
	if fi.IsDir() {
		return nil, common.NewStatusError("GET", p, http.StatusBadRequest, common.ErrIsDirectory)
	}

	file, err := os.Open(fp) // #nosec G304 -- path is confined to the store root by fsPath
	if err != nil {
		return nil, l.translate("GET", p, err)
	}
	l.logger.Debug(ctx, "local get", adapters.Field{Key: "path", Value: p})
	return file, nil
}

// Put writes r to a temporary file and renames it into place, so readers
// never observe a partial object.
func (l *Local) Put(ctx context.Context, p string, r io.Reader, metadata map[string]string) error {
	if err := l.check(ctx); err != nil {
		return err
	}

	p = common.CleanPath(p)
	fp := l.fsPath(p)
	if fi, err := os.Stat(fp); err == nil && fi.IsDir() {
		return common.NewStatusError("PUT", p, http.StatusConflict, common.ErrIsDirectory)
	}
	if err := l.mkdirAll(p, filepath.Dir(fp)); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(fp), tempPrefix)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	hash := md5.New() // #nosec G401 -- content digest
	size, err := io.Copy(io.MultiWriter(tmp, hash), r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err := os.Rename(tmp.Name(), fp); err != nil {
		return err
	}

	sc := &sidecar{
		ContentType: "application/octet-stream",
		MD5:         hex.EncodeToString(hash.Sum(nil)),
		Metadata:    common.CopyMetadata(metadata),
	}
	if err := l.saveSidecar(fp, sc); err != nil {
		return err
	}

	l.logger.Debug(ctx, "local put",
		adapters.Field{Key: "path", Value: p},
		adapters.Field{Key: "size", Value: size},
	)
	return nil
}

// PutMetadata merges update into the sidecar of p.
func (l *Local) PutMetadata(ctx context.Context, p string, update common.MetadataUpdate) error {
	if err := l.check(ctx); err != nil {
		return err
	}

	p = common.CleanPath(p)
	fp := l.fsPath(p)
	if _, err := os.Stat(fp); err != nil {
		return l.translate("PUT_METADATA", p, err)
	}

	sc, err := l.loadSidecar(fp)
	if err != nil {
		return err
	}
	sc.Metadata = update.Apply(sc.Metadata)
	return l.saveSidecar(fp, sc)
}

// PutDirectory creates p and any missing parents.
func (l *Local) PutDirectory(ctx context.Context, p string) error {
	if err := l.check(ctx); err != nil {
		return err
	}
	p = common.CleanPath(p)
	return l.mkdirAll(p, l.fsPath(p))
}

func (l *Local) mkdirAll(p, dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		if errors.Is(err, syscall.ENOTDIR) {
			return common.NewStatusError("PUT_DIRECTORY", p, http.StatusConflict, common.ErrNotDirectory)
		}
		return err
	}
	return nil
}

// List returns the direct children of p.
func (l *Local) List(ctx context.Context, p string) ([]*common.ObjectInfo, error) {
	if err := l.check(ctx); err != nil {
		return nil, err
	}

	p = common.CleanPath(p)
	fp := l.fsPath(p)
	fi, err := os.Stat(fp)
	if err != nil {
		return nil, l.translate("LIST", p, err)
	}
	if !fi.IsDir() {
		return nil, common.NewStatusError("LIST", p, http.StatusBadRequest, common.ErrNotDirectory)
	}

	entries, err := os.ReadDir(fp)
	if err != nil {
		return nil, l.translate("LIST", p, err)
	}

	infos := make([]*common.ObjectInfo, 0, len(entries))
	for _, de := range entries {
		if isInternal(de.Name()) {
			continue
		}
		child := strings.TrimSuffix(p, "/") + "/" + de.Name()
		cfi, err := de.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		info, err := l.info(child, cfi)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Delete removes a file or an empty directory together with its sidecar.
func (l *Local) Delete(ctx context.Context, p string) error {
	if err := l.check(ctx); err != nil {
		return err
	}

	p = common.CleanPath(p)
	if p == "/" {
		return common.NewStatusError("DELETE", p, http.StatusForbidden, fmt.Errorf("cannot delete root"))
	}
	fp := l.fsPath(p)
	fi, err := os.Stat(fp)
	if err != nil {
		return l.translate("DELETE", p, err)
	}

	if fi.IsDir() {
		entries, err := os.ReadDir(fp)
		if err != nil {
			return err
		}
		for _, de := range entries {
			if !isInternal(de.Name()) {
				return common.NewStatusError("DELETE", p, http.StatusConflict, common.ErrDirectoryNotEmpty)
			}
		}
		if err := os.RemoveAll(fp); err != nil {
			return err
		}
	} else if err := os.Remove(fp); err != nil {
		return l.translate("DELETE", p, err)
	}

	if err := os.Remove(fp + metadataSuffix); err != nil && !os.IsNotExist(err) {
		l.logger.Warn(ctx, "failed to remove metadata sidecar",
			adapters.Field{Key: "path", Value: p},
			adapters.Field{Key: "error", Value: err.Error()},
		)
	}
	return nil
}

// Move renames src to dst.
func (l *Local) Move(ctx context.Context, src, dst string) error {
	if err := l.check(ctx); err != nil {
		return err
	}

	src = common.CleanPath(src)
	dst = common.CleanPath(dst)
	sfp, dfp := l.fsPath(src), l.fsPath(dst)

	sfi, err := os.Stat(sfp)
	if err != nil {
		return l.translate("MOVE", src, err)
	}
	if src == dst {
		return nil
	}
	if sfi.IsDir() && strings.HasPrefix(dst, src+"/") {
		return common.NewStatusError("MOVE", dst, http.StatusBadRequest, fmt.Errorf("cannot move %s into itself", src))
	}
	if dfi, err := os.Stat(dfp); err == nil && dfi.IsDir() {
		return common.NewStatusError("MOVE", dst, http.StatusConflict, common.ErrIsDirectory)
	}
	if err := l.mkdirAll(dst, filepath.Dir(dfp)); err != nil {
		return err
	}

	if err := os.Rename(sfp, dfp); err != nil {
		return err
	}
	if err := os.Rename(sfp+metadataSuffix, dfp+metadataSuffix); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Link hard-links dst to src, falling back to a byte copy when the
// filesystem refuses the link.
func (l *Local) Link(ctx context.Context, dst, src string) error {
	if err := l.check(ctx); err != nil {
		return err
	}

	src = common.CleanPath(src)
	dst = common.CleanPath(dst)
	sfp, dfp := l.fsPath(src), l.fsPath(dst)

	sfi, err := os.Stat(sfp)
	if err != nil {
		return l.translate("LINK", src, err)
	}
	if sfi.IsDir() {
		return common.NewStatusError("LINK", src, http.StatusBadRequest, common.ErrIsDirectory)
	}
	if err := l.mkdirAll(dst, filepath.Dir(dfp)); err != nil {
		return err
	}

	_ = os.Remove(dfp)
	if err := os.Link(sfp, dfp); err != nil {
		l.logger.Debug(ctx, "hard link failed, copying",
			adapters.Field{Key: "src", Value: src},
			adapters.Field{Key: "error", Value: err.Error()},
		)
		if err := copyFile(sfp, dfp); err != nil {
			return err
		}
	}

	sc, err := l.loadSidecar(sfp)
	if err != nil {
		return err
	}
	return l.saveSidecar(dfp, sc)
}

// OpenRange opens p positioned at offset.
func (l *Local) OpenRange(ctx context.Context, p string, offset int64) (common.RangeReader, error) {
	if err := l.check(ctx); err != nil {
		return nil, err
	}

	p = common.CleanPath(p)
	fp := l.fsPath(p)
	fi, err := os.Stat(fp)
	if err != nil {
		return nil, l.translate("GET_RANGE", p, err)
	}
	if fi.IsDir() {
		return nil, common.NewStatusError("GET_RANGE", p, http.StatusBadRequest, common.ErrIsDirectory)
	}

	size := fi.Size()
	switch {
	case offset < 0 || offset > size:
		return nil, common.NewStatusError("GET_RANGE", p, http.StatusRequestedRangeNotSatisfiable, common.ErrInvalidOffset)
	case offset == size:
		return common.EmptyRange(offset), nil
	}

	file, err := os.Open(fp) // #nosec G304 -- path is confined to the store root by fsPath
	if err != nil {
		return nil, l.translate("GET_RANGE", p, err)
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, err
	}
	return common.NewRangeReader(file, offset, size-offset), nil
}

// SignURL returns an HMAC-signed URL under the base URL.
func (l *Local) SignURL(ctx context.Context, p, method string, ttl time.Duration) (string, error) {
	if err := l.check(ctx); err != nil {
		return "", err
	}
	return l.signer.Sign(l.baseURL, common.CleanPath(p), method, ttl), nil
}

// BaseURL returns the public endpoint.
func (l *Local) BaseURL() string {
	return l.baseURL
}

// Close is a no-op; the local client holds no open resources.
func (l *Local) Close() error {
	return nil
}

func (l *Local) info(p string, fi os.FileInfo) (*common.ObjectInfo, error) {
	info := &common.ObjectInfo{
		Path:         p,
		Directory:    fi.IsDir(),
		LastModified: fi.ModTime(),
	}

	sc, err := l.loadSidecar(l.fsPath(p))
	if err != nil {
		return nil, err
	}
	info.Metadata = sc.Metadata

	if fi.IsDir() {
		info.ContentType = common.DirectoryContentType
		return info, nil
	}

	info.Size = fi.Size()
	info.ContentType = sc.ContentType
	if sc.MD5 != "" {
		if sum, err := hex.DecodeString(sc.MD5); err == nil {
			info.MD5 = sum
			info.ETag = sc.MD5
		}
	}
	return info, nil
}

// loadSidecar returns an empty sidecar when none exists.
func (l *Local) loadSidecar(fp string) (*sidecar, error) {
	data, err := os.ReadFile(fp + metadataSuffix) // #nosec G304 -- path is confined to the store root by fsPath
	if err != nil {
		if os.IsNotExist(err) {
			return &sidecar{}, nil
		}
		return nil, err
	}

	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("corrupt metadata for %s: %w", fp, err)
	}
	return &sc, nil
}

func (l *Local) saveSidecar(fp string, sc *sidecar) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return err
	}
	return os.WriteFile(fp+metadataSuffix, data, 0600)
}

func (l *Local) translate(op, p string, err error) error {
	if os.IsNotExist(err) {
		return common.NotFound(op, p)
	}
	if os.IsPermission(err) {
		return common.NewStatusError(op, p, http.StatusForbidden, err)
	}
	return err
}

func isInternal(name string) bool {
	return strings.HasSuffix(name, metadataSuffix) || strings.HasPrefix(name, tempPrefix)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- path is confined to the store root by fsPath
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

var _ common.Client = (*Local)(nil)
