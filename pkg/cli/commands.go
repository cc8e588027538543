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

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
	"github.com/jeremyhahn/go-mantavfs/pkg/common"
	"github.com/jeremyhahn/go-mantavfs/pkg/vfs"
)

// CommandContext holds the context for executing commands.
type CommandContext struct {
	Session *vfs.Session
	Config  *Config

	// In and Out replace stdin and stdout when a command reads or
	// writes "-".
	In  io.Reader
	Out io.Writer

	logCloser io.Closer
}

// NewCommandContext validates cfg and mounts a filesystem session over
// the configured backend.
func NewCommandContext(cfg *Config, opts ...vfs.SessionOption) (*CommandContext, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	logger, closer := adapters.NewLogger(cfg.LogConfig())
	opts = append([]vfs.SessionOption{vfs.WithLogger(logger)}, opts...)
	session, err := vfs.Open(cfg.SessionConfig(), opts...)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	ctx := NewCommandContextWithSession(session, cfg)
	ctx.logCloser = closer
	return ctx, nil
}

// NewCommandContextWithSession wraps an existing session.
func NewCommandContextWithSession(session *vfs.Session, cfg *Config) *CommandContext {
	if cfg == nil {
		cfg = &Config{OutputFormat: string(FormatText)}
	}
	return &CommandContext{
		Session: session,
		Config:  cfg,
		In:      os.Stdin,
		Out:     os.Stdout,
	}
}

// Close closes the session and the log file, if any.
func (ctx *CommandContext) Close() error {
	err := ctx.Session.Close()
	if ctx.logCloser != nil {
		if cerr := ctx.logCloser.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (ctx *CommandContext) node(p string) (*vfs.FileNode, error) {
	return ctx.Session.Resolve(p)
}

// PutCommand uploads a local file to target and sets attrs on the new
// object. If filePath is empty or "-", reads from In.
func (ctx *CommandContext) PutCommand(target, filePath string, attrs map[string]string) (int64, error) {
	var reader io.Reader
	if filePath == "" || filePath == "-" {
		reader = ctx.In
	} else {
		file, err := os.Open(filePath) // #nosec G304 -- User-provided path for CLI file operations, intended behavior
		if err != nil {
			return 0, err
		}
		defer func() { _ = file.Close() }()
		reader = file
	}

	node, err := ctx.node(target)
	if err != nil {
		return 0, err
	}

	ctxBg := context.Background()
	w, err := node.OpenWriter(ctxBg, false)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, reader)
	if err != nil {
		if cw, ok := w.(interface{ CloseWithError(error) error }); ok {
			_ = cw.CloseWithError(err)
		} else {
			_ = w.Close()
		}
		return n, err
	}
	if err := w.Close(); err != nil {
		return n, err
	}

	for key, value := range attrs {
		if err := node.SetAttribute(ctxBg, key, value); err != nil {
			return n, err
		}
	}
	return n, nil
}

// GetCommand downloads source to outputPath, or to Out when outputPath is
// empty or "-". A positive offset or length reads a byte range through a
// random access reader; length <= 0 reads to the end.
func (ctx *CommandContext) GetCommand(source, outputPath string, offset, length int64) (int64, error) {
	node, err := ctx.node(source)
	if err != nil {
		return 0, err
	}

	ctxBg := context.Background()
	var reader io.Reader
	if offset > 0 || length > 0 {
		ra, err := node.OpenRandomAccess(ctxBg, vfs.ModeRead)
		if err != nil {
			return 0, err
		}
		defer func() { _ = ra.Close() }()
		if offset > 0 {
			if err := ra.SeekTo(offset); err != nil {
				return 0, err
			}
		}
		reader = ra
		if length > 0 {
			reader = io.LimitReader(ra, length)
		}
	} else {
		rc, err := node.OpenReader(ctxBg)
		if err != nil {
			return 0, err
		}
		defer func() { _ = rc.Close() }()
		reader = rc
	}

	var writer io.Writer
	if outputPath == "" || outputPath == "-" {
		writer = ctx.Out
	} else {
		file, err := os.Create(outputPath) // #nosec G304 -- User-provided path for CLI file operations, intended behavior
		if err != nil {
			return 0, err
		}
		defer func() { _ = file.Close() }()
		writer = file
	}

	return io.Copy(writer, reader)
}

// ListCommand describes the children of dir. Children removed while
// listing are skipped.
func (ctx *CommandContext) ListCommand(dir string) ([]*vfs.FileInfo, error) {
	node, err := ctx.node(dir)
	if err != nil {
		return nil, err
	}

	ctxBg := context.Background()
	children, err := node.ListChildren(ctxBg)
	if err != nil {
		return nil, err
	}
	entries := make([]*vfs.FileInfo, 0, len(children))
	for _, child := range children {
		info, err := child.Stat(ctxBg)
		if common.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, info)
	}
	return entries, nil
}

// StatCommand describes a single node.
func (ctx *CommandContext) StatCommand(p string) (*vfs.FileInfo, error) {
	node, err := ctx.node(p)
	if err != nil {
		return nil, err
	}
	return node.Stat(context.Background())
}

// AttributesCommand returns the user attributes of a node.
func (ctx *CommandContext) AttributesCommand(p string) (map[string]string, error) {
	node, err := ctx.node(p)
	if err != nil {
		return nil, err
	}
	return node.Attributes(context.Background())
}

// SetAttributeCommand sets one user attribute.
func (ctx *CommandContext) SetAttributeCommand(p, key, value string) error {
	if key == "" {
		return ErrAttributeKeyRequired
	}
	node, err := ctx.node(p)
	if err != nil {
		return err
	}
	return node.SetAttribute(context.Background(), key, value)
}

// RemoveAttributeCommand removes one user attribute.
func (ctx *CommandContext) RemoveAttributeCommand(p, key string) error {
	if key == "" {
		return ErrAttributeKeyRequired
	}
	node, err := ctx.node(p)
	if err != nil {
		return err
	}
	return node.RemoveAttribute(context.Background(), key)
}

// DeleteCommand deletes p. With an empty selector only p itself is
// deleted and a non-empty directory fails; otherwise the selected tree is
// removed depth first. It returns the number of nodes deleted.
func (ctx *CommandContext) DeleteCommand(p, selector string) (int, error) {
	node, err := ctx.node(p)
	if err != nil {
		return 0, err
	}

	ctxBg := context.Background()
	if selector == "" {
		deleted, err := node.Delete(ctxBg)
		if err != nil {
			return 0, err
		}
		if !deleted {
			return 0, fmt.Errorf("%s: %w", node.Name().Path(), ErrNothingDeleted)
		}
		return 1, nil
	}

	sel, ok := vfs.ParseSelector(selector)
	if !ok {
		return 0, ErrInvalidSelector
	}
	return node.DeleteAll(ctxBg, sel)
}

// MoveCommand renames src to dst. An existing dst must be a file.
func (ctx *CommandContext) MoveCommand(src, dst string) error {
	from, err := ctx.node(src)
	if err != nil {
		return err
	}
	to, err := ctx.node(dst)
	if err != nil {
		return err
	}

	ctxBg := context.Background()
	exists, err := to.Exists(ctxBg)
	if err != nil {
		return err
	}
	if exists && !from.Name().Equal(to.Name()) && !from.CanRenameTo(ctxBg, to) {
		return fmt.Errorf("%s to %s: %w", from.Name().Path(), to.Name().Path(), ErrCannotRename)
	}
	return from.Rename(ctxBg, to)
}

// CopyCommand copies src to dst, recursing as far as selector allows.
func (ctx *CommandContext) CopyCommand(src, dst, selector string) error {
	sel, ok := vfs.ParseSelector(selector)
	if !ok {
		return ErrInvalidSelector
	}
	from, err := ctx.node(src)
	if err != nil {
		return err
	}
	to, err := ctx.node(dst)
	if err != nil {
		return err
	}
	return to.CopyFrom(context.Background(), from, sel)
}

// MkdirCommand creates a directory and any missing parents.
func (ctx *CommandContext) MkdirCommand(p string) error {
	node, err := ctx.node(p)
	if err != nil {
		return err
	}
	return node.CreateFolder(context.Background())
}

// URLCommand returns a URL that reads p without session credentials.
func (ctx *CommandContext) URLCommand(p string) (string, error) {
	node, err := ctx.node(p)
	if err != nil {
		return "", err
	}
	return node.PublicURI(context.Background())
}

// ConfigCommand returns the current configuration.
func (ctx *CommandContext) ConfigCommand() *Config {
	return ctx.Config
}
