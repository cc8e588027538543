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

package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
	"github.com/jeremyhahn/go-mantavfs/pkg/common"
	"github.com/jeremyhahn/go-mantavfs/pkg/server/middleware"
	"github.com/jeremyhahn/go-mantavfs/pkg/version"
	"github.com/jeremyhahn/go-mantavfs/pkg/vfs"
)

// AttributeHeaderPrefix marks request headers that are stored as custom
// attributes after an upload.
const AttributeHeaderPrefix = "M-"

// SignatureVerifier checks the query of a signed URL.
type SignatureVerifier interface {
	Verify(path, method string, query url.Values) error
}

// Handler serves the gateway routes from a single session.
type Handler struct {
	session       *vfs.Session
	logger        adapters.Logger
	verifier      SignatureVerifier
	enforceWrites bool
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithWritePolicyEnforced rejects mutations of nodes the session's
// WritePolicy reports as not writeable with 403.
func WithWritePolicyEnforced() HandlerOption {
	return func(h *Handler) { h.enforceWrites = true }
}

// WithVerifier overrides the verifier used for /signed routes.
func WithVerifier(v SignatureVerifier) HandlerOption {
	return func(h *Handler) { h.verifier = v }
}

// NewHandler creates a Handler. When the session's client can verify its own
// signed URLs, /signed routes are served.
func NewHandler(session *vfs.Session, logger adapters.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = session.Logger()
	}
	h := &Handler{
		session:  session,
		logger:   logger,
		verifier: verifierOf(session.Client()),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func verifierOf(client common.Client) SignatureVerifier {
	for client != nil {
		if s, ok := client.(interface{ Signer() *common.URLSigner }); ok {
			if signer := s.Signer(); signer != nil {
				return signer
			}
			return nil
		}
		u, ok := client.(interface{ Unwrap() common.Client })
		if !ok {
			return nil
		}
		client = u.Unwrap()
	}
	return nil
}

// node resolves the route's path parameter. "/~~" is replaced with the
// session's home directory.
func (h *Handler) node(c *gin.Context) (*vfs.FileNode, bool) {
	p := c.Param("path")
	if p == "" {
		p = vfs.Separator
	}
	if err := common.ValidatePath(p); err != nil {
		RespondWithStoreError(c, err)
		return nil, false
	}
	if p == "/~~" || strings.HasPrefix(p, "/~~/") {
		p = h.session.HomeDirectory() + strings.TrimPrefix(p, "/~~")
	}
	return h.session.NodeAt(p), true
}

func (h *Handler) requireWriteable(c *gin.Context, node *vfs.FileNode) bool {
	if !h.enforceWrites || node.IsWriteable() {
		return true
	}
	_ = c.Error(fmt.Errorf("%s is read-only", node.Name().Path())) // #nosec G104 -- gin.Context.Error only appends
	RespondWithError(c, http.StatusForbidden, node.Name().Path()+" is read-only")
	return false
}

// HealthCheck reports whether the session is open.
func (h *Handler) HealthCheck(c *gin.Context) {
	cfg := h.session.Config()
	resp := HealthResponse{
		Status:       "healthy",
		Version:      version.Get(),
		Backend:      cfg.BackendName(),
		Home:         h.session.HomeDirectory(),
		Capabilities: h.session.Capabilities().List(),
	}
	if h.session.IsClosed() {
		resp.Status = "closed"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetFile streams a file. A single "Range: bytes=" range is honored with
// a 206 response.
func (h *Handler) GetFile(c *gin.Context) {
	node, ok := h.node(c)
	if !ok {
		return
	}
	h.serveContent(c, node)
}

// HeadFile returns a file's headers without its body.
func (h *Handler) HeadFile(c *gin.Context) {
	node, ok := h.node(c)
	if !ok {
		return
	}
	info, err := node.Info(c.Request.Context())
	if err != nil {
		RespondWithStoreError(c, err)
		return
	}
	setObjectHeaders(c, info)
	c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
	c.Status(http.StatusOK)
}

func (h *Handler) serveContent(c *gin.Context, node *vfs.FileNode) {
	ctx := c.Request.Context()
	info, err := node.Info(ctx)
	if err != nil {
		RespondWithStoreError(c, err)
		return
	}
	if info.Directory {
		RespondWithStoreError(c, fmt.Errorf("read %s: %w", info.Path, common.ErrIsDirectory))
		return
	}
	setObjectHeaders(c, info)

	start, end, partial, err := parseRange(c.GetHeader("Range"), info.Size)
	if err != nil {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", info.Size))
		RespondWithStoreError(c, err)
		return
	}

	if !partial {
		rc, err := node.OpenReader(ctx)
		if err != nil {
			RespondWithStoreError(c, err)
			return
		}
		defer rc.Close()
		c.DataFromReader(http.StatusOK, info.Size, contentTypeOf(info), rc, nil)
		return
	}

	reader, err := node.OpenRandomAccess(ctx, vfs.ModeRead)
	if err != nil {
		RespondWithStoreError(c, err)
		return
	}
	defer reader.Close()
	if err := reader.SeekTo(start); err != nil {
		RespondWithStoreError(c, err)
		return
	}
	length := end - start + 1
	c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, info.Size))
	c.DataFromReader(http.StatusPartialContent, length, contentTypeOf(info), io.LimitReader(reader, length), nil)
}

// PutFile uploads the request body. Headers prefixed with "M-" are stored
// as attributes once the upload completes.
func (h *Handler) PutFile(c *gin.Context) {
	node, ok := h.node(c)
	if !ok || !h.requireWriteable(c, node) {
		return
	}
	h.upload(c, node)
}

func (h *Handler) upload(c *gin.Context, node *vfs.FileNode) {
	ctx := c.Request.Context()
	w, err := node.OpenWriter(ctx, false)
	if err != nil {
		RespondWithStoreError(c, err)
		return
	}
	n, err := io.Copy(w, c.Request.Body)
	if err != nil {
		if aborter, ok := w.(interface{ CloseWithError(error) error }); ok {
			_ = aborter.CloseWithError(err)
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondWithError(c, http.StatusRequestEntityTooLarge, "request entity too large")
			return
		}
		RespondWithStoreError(c, err)
		return
	}
	if err := w.Close(); err != nil {
		RespondWithStoreError(c, err)
		return
	}

	for key, values := range c.Request.Header {
		if !strings.HasPrefix(key, AttributeHeaderPrefix) || len(values) == 0 {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(key, AttributeHeaderPrefix))
		if err := node.SetAttribute(ctx, name, values[0]); err != nil {
			RespondWithStoreError(c, err)
			return
		}
	}

	h.logger.Debug(ctx, "file uploaded", append(middleware.RequestIDFields(ctx),
		adapters.Field{Key: "path", Value: node.Name().Path()},
		adapters.Field{Key: "bytes", Value: n})...)
	RespondWithSuccess(c, http.StatusCreated, "file uploaded", gin.H{"path": node.Name().Path(), "bytes": n})
}

// DeleteFile removes a file or empty directory. With ?selector=children or
// ?selector=all the tree below the node is removed first.
func (h *Handler) DeleteFile(c *gin.Context) {
	node, ok := h.node(c)
	if !ok || !h.requireWriteable(c, node) {
		return
	}
	selector, ok := vfs.ParseSelector(c.Query("selector"))
	if !ok {
		RespondWithError(c, http.StatusBadRequest, "selector must be self, children or all")
		return
	}

	ctx := c.Request.Context()
	if selector != vfs.SelectSelf {
		n, err := node.DeleteAll(ctx, selector)
		if err != nil {
			RespondWithStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, DeleteResponse{Path: node.Name().Path(), Selector: selector.String(), Deleted: n})
		return
	}

	deleted, err := node.Delete(ctx)
	switch {
	case err != nil:
		RespondWithStoreError(c, err)
	case !deleted:
		RespondWithStoreError(c, common.NotFound("delete", node.Name().Path()))
	default:
		c.Status(http.StatusNoContent)
	}
}

// ListDirectory returns the children of a directory.
func (h *Handler) ListDirectory(c *gin.Context) {
	node, ok := h.node(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	t, err := node.Type(ctx)
	if err == nil && t == vfs.Imaginary {
		err = common.NotFound("list", node.Name().Path())
	}
	if err != nil {
		RespondWithStoreError(c, err)
		return
	}
	children, err := node.ListChildren(ctx)
	if err != nil {
		RespondWithStoreError(c, err)
		return
	}

	entries := make([]*vfs.FileInfo, 0, len(children))
	for _, child := range children {
		fi, err := child.Stat(ctx)
		if common.IsNotFound(err) {
			continue
		}
		if err != nil {
			RespondWithStoreError(c, err)
			return
		}
		entries = append(entries, fi)
	}
	c.JSON(http.StatusOK, ListResponse{Path: node.Name().Path(), Entries: entries, Count: len(entries)})
}

// StatNode returns a node's FileInfo.
func (h *Handler) StatNode(c *gin.Context) {
	node, ok := h.node(c)
	if !ok {
		return
	}
	fi, err := node.Stat(c.Request.Context())
	if err != nil {
		RespondWithStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, fi)
}

// CreateFolder creates a directory.
func (h *Handler) CreateFolder(c *gin.Context) {
	node, ok := h.node(c)
	if !ok || !h.requireWriteable(c, node) {
		return
	}
	if err := node.CreateFolder(c.Request.Context()); err != nil {
		RespondWithStoreError(c, err)
		return
	}
	RespondWithSuccess(c, http.StatusCreated, "folder created", gin.H{"path": node.Name().Path()})
}

// Rename moves a node. An existing target must be a file that the source
// file can replace.
func (h *Handler) Rename(c *gin.Context) {
	node, ok := h.node(c)
	if !ok || !h.requireWriteable(c, node) {
		return
	}
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	target, ok := h.target(c, req.To)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	exists, err := target.Exists(ctx)
	if err != nil {
		RespondWithStoreError(c, err)
		return
	}
	if exists && !node.Name().Equal(target.Name()) && !node.CanRenameTo(ctx, target) {
		RespondWithStoreError(c, fmt.Errorf("rename %s to %s: %w", node.Name().Path(), target.Name().Path(), common.ErrIsDirectory))
		return
	}
	if err := node.Rename(ctx, target); err != nil {
		RespondWithStoreError(c, err)
		return
	}
	RespondWithSuccess(c, http.StatusOK, "renamed", gin.H{"from": node.Name().Path(), "to": target.Name().Path()})
}

// Copy copies a node, recursing as far as the request's selector allows.
func (h *Handler) Copy(c *gin.Context) {
	src, ok := h.node(c)
	if !ok {
		return
	}
	var req CopyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	selector, ok := vfs.ParseSelector(req.Selector)
	if !ok {
		RespondWithError(c, http.StatusBadRequest, "selector must be self, children or all")
		return
	}
	dst, ok := h.target(c, req.To)
	if !ok || !h.requireWriteable(c, dst) {
		return
	}
	if err := dst.CopyFrom(c.Request.Context(), src, selector); err != nil {
		RespondWithStoreError(c, err)
		return
	}
	RespondWithSuccess(c, http.StatusCreated, "copied", gin.H{"from": src.Name().Path(), "to": dst.Name().Path(), "selector": selector.String()})
}

func (h *Handler) target(c *gin.Context, to string) (*vfs.FileNode, bool) {
	if err := common.ValidatePath(to); err != nil {
		RespondWithStoreError(c, err)
		return nil, false
	}
	node, err := h.session.Resolve(to)
	if err != nil {
		RespondWithStoreError(c, err)
		return nil, false
	}
	return node, true
}

// GetAttributes returns a node's custom attributes.
func (h *Handler) GetAttributes(c *gin.Context) {
	node, ok := h.node(c)
	if !ok {
		return
	}
	attrs, err := node.Attributes(c.Request.Context())
	if err != nil {
		RespondWithStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, AttributesResponse{Path: node.Name().Path(), Attributes: attrs})
}

// SetAttribute stores one custom attribute.
func (h *Handler) SetAttribute(c *gin.Context) {
	node, ok := h.node(c)
	if !ok || !h.requireWriteable(c, node) {
		return
	}
	var req AttributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := node.SetAttribute(c.Request.Context(), req.Key, req.Value); err != nil {
		RespondWithStoreError(c, err)
		return
	}
	RespondWithSuccess(c, http.StatusOK, "attribute set", gin.H{"path": node.Name().Path(), "key": req.Key})
}

// RemoveAttribute deletes the attribute named by ?key=.
func (h *Handler) RemoveAttribute(c *gin.Context) {
	node, ok := h.node(c)
	if !ok || !h.requireWriteable(c, node) {
		return
	}
	key := c.Query("key")
	if err := node.RemoveAttribute(c.Request.Context(), key); err != nil {
		RespondWithStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PublicURL returns the node's public or signed URL.
func (h *Handler) PublicURL(c *gin.Context) {
	node, ok := h.node(c)
	if !ok {
		return
	}
	u, err := node.PublicURI(c.Request.Context())
	if err != nil {
		RespondWithStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, URLResponse{Path: node.Name().Path(), URL: u})
}

// Signed serves URLs produced by the session's client. HEAD accepts a GET
// signature.
func (h *Handler) Signed(c *gin.Context) {
	if h.verifier == nil {
		RespondWithStoreError(c, common.ErrSigningUnsupported)
		return
	}
	node, ok := h.node(c)
	if !ok {
		return
	}

	method := c.Request.Method
	query := c.Request.URL.Query()
	err := h.verifier.Verify(node.Name().Path(), method, query)
	if err != nil && method == http.MethodHead {
		err = h.verifier.Verify(node.Name().Path(), http.MethodGet, query)
	}
	if err != nil {
		h.logger.Warn(c.Request.Context(), "signed url rejected", append(middleware.RequestIDFields(c.Request.Context()),
			adapters.Field{Key: "path", Value: node.Name().Path()},
			adapters.Field{Key: "method", Value: method},
			adapters.Field{Key: "error", Value: err.Error()})...)
		RespondWithStoreError(c, err)
		return
	}

	switch method {
	case http.MethodGet:
		h.serveContent(c, node)
	case http.MethodHead:
		h.HeadFile(c)
	case http.MethodPut:
		h.upload(c, node)
	case http.MethodDelete:
		deleted, err := node.Delete(c.Request.Context())
		switch {
		case err != nil:
			RespondWithStoreError(c, err)
		case !deleted:
			RespondWithStoreError(c, common.NotFound("delete", node.Name().Path()))
		default:
			c.Status(http.StatusNoContent)
		}
	default:
		RespondWithError(c, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func setObjectHeaders(c *gin.Context, info *common.ObjectInfo) {
	c.Header("Content-Type", contentTypeOf(info))
	c.Header("Accept-Ranges", "bytes")
	if info.ETag != "" {
		c.Header("ETag", `"`+strings.Trim(info.ETag, `"`)+`"`)
	}
	if !info.LastModified.IsZero() {
		c.Header("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	}
	for k, v := range info.Metadata {
		if strings.HasPrefix(strings.ToLower(k), vfs.MetadataPrefix) {
			c.Header(k, v)
		}
	}
}

func contentTypeOf(info *common.ObjectInfo) string {
	if info.ContentType != "" {
		return info.ContentType
	}
	return "application/octet-stream"
}

// parseRange parses a single "bytes=" range against size. partial is false
// when header is empty.
func parseRange(header string, size int64) (start, end int64, partial bool, err error) {
	if header == "" {
		return 0, size - 1, false, nil
	}
	byteRange, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(byteRange, ",") {
		return 0, 0, false, fmt.Errorf("%w: unsupported range %q", vfs.ErrInvalidArgument, header)
	}
	first, last, ok := strings.Cut(byteRange, "-")
	if !ok {
		return 0, 0, false, fmt.Errorf("%w: malformed range %q", vfs.ErrInvalidArgument, header)
	}

	if first == "" {
		n, perr := strconv.ParseInt(last, 10, 64)
		if perr != nil || n <= 0 {
			return 0, 0, false, fmt.Errorf("%w: malformed range %q", vfs.ErrInvalidArgument, header)
		}
		if n > size {
			n = size
		}
		if n == 0 {
			return 0, 0, false, fmt.Errorf("range %q: %w", header, common.ErrInvalidOffset)
		}
		return size - n, size - 1, true, nil
	}

	start, perr := strconv.ParseInt(first, 10, 64)
	if perr != nil || start < 0 {
		return 0, 0, false, fmt.Errorf("%w: malformed range %q", vfs.ErrInvalidArgument, header)
	}
	if start >= size {
		return 0, 0, false, fmt.Errorf("range %q: %w", header, common.ErrInvalidOffset)
	}
	end = size - 1
	if last != "" {
		end, perr = strconv.ParseInt(last, 10, 64)
		if perr != nil || end < start {
			return 0, 0, false, fmt.Errorf("%w: malformed range %q", vfs.ErrInvalidArgument, header)
		}
		if end >= size {
			end = size - 1
		}
	}
	return start, end, true, nil
}
