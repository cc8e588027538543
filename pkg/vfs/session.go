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

package vfs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
	"github.com/jeremyhahn/go-mantavfs/pkg/audit"
	"github.com/jeremyhahn/go-mantavfs/pkg/common"
	"github.com/jeremyhahn/go-mantavfs/pkg/factory"
	"github.com/jeremyhahn/go-mantavfs/pkg/metrics"
)

// homeAlias is expanded to the home directory by Resolve.
const homeAlias = "~~"

// Session is one mounted filesystem. It owns a single store client and a
// mutex that serializes every node operation that reaches the network:
// attach, list, attribute reads and writes, rename, delete, folder creation,
// link copies, URL signing and opening random access channels. Read and
// write streams are not serialized.
type Session struct {
	mu sync.Mutex

	client  common.Client
	config  Config
	options Options
	home    string

	logger    adapters.Logger
	audit     audit.AuditLogger
	policy    WritePolicy
	collector *metrics.Collector

	closeOnce sync.Once
	closed    atomic.Bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger adapters.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditLogger records every mutation made through the session.
func WithAuditLogger(auditLogger audit.AuditLogger) SessionOption {
	return func(s *Session) {
		if auditLogger != nil {
			s.audit = auditLogger
		}
	}
}

// WithWritePolicy replaces DefaultWritePolicy.
func WithWritePolicy(policy WritePolicy) SessionOption {
	return func(s *Session) {
		if policy != nil {
			s.policy = policy
		}
	}
}

// WithMetrics instruments the session's client with collector.
func WithMetrics(collector *metrics.Collector) SessionOption {
	return func(s *Session) {
		s.collector = collector
	}
}

// Open mounts a filesystem. An explicit cfg is imported into the session's
// option bag; a nil cfg is derived from MANTA_* environment variables. The
// store client is created through the backend factory.
func Open(cfg *Config, opts ...SessionOption) (*Session, error) {
	if cfg == nil {
		var err error
		if cfg, err = ConfigFromEnv(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := factory.NewClient(cfg.BackendName(), cfg.ClientSettings())
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.BackendName(), err)
	}
	session, err := NewSession(client, cfg, opts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return session, nil
}

// NewSession mounts a filesystem over an existing client. The session takes
// ownership of the client and closes it on Close.
func NewSession(client common.Client, cfg *Config, opts ...SessionOption) (*Session, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client is nil", ErrInvalidArgument)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	options, err := ImportConfig(cfg)
	if err != nil {
		return nil, err
	}

	s := &Session{
		client:  client,
		config:  *cfg,
		options: options,
		home:    cfg.Home(),
		logger:  adapters.NewNoOpLogger(),
		audit:   audit.NewNoOpAuditLogger(),
		policy:  DefaultWritePolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if l, ok := client.(interface{ SetLogger(adapters.Logger) }); ok {
		l.SetLogger(s.logger)
	}
	if s.collector != nil {
		s.client = metrics.Instrument(s.client, s.collector)
	}
	return s, nil
}

// Close releases the store client. It is safe to call more than once.
// Errors from the client are logged and not returned.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if err := s.client.Close(); err != nil {
			s.logger.Warn(context.Background(), "error closing store client",
				adapters.Field{Key: "error", Value: err.Error()})
		}
	})
	return nil
}

// IsClosed reports whether Close has been called.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Node returns the node for name. No network call is made.
func (s *Session) Node(name PathName) *FileNode {
	return &FileNode{session: s, name: name}
}

// NodeAt returns the node for an absolute or relative path.
func (s *Session) NodeAt(p string) *FileNode {
	return s.Node(PathName{scheme: Scheme, path: Normalize(p), kind: FileOrFolder})
}

// Resolve parses uri and returns its node. A leading "~~" segment is
// replaced with the home directory.
func (s *Session) Resolve(uri string) (*FileNode, error) {
	name, err := ParsePathName(uri)
	if err != nil {
		return nil, err
	}
	p := name.Path()
	if p == Separator+homeAlias || strings.HasPrefix(p, Separator+homeAlias+Separator) {
		name.path = Normalize(s.home + strings.TrimPrefix(p, Separator+homeAlias))
	}
	return s.Node(name), nil
}

// Root returns the root node.
func (s *Session) Root() *FileNode {
	return s.Node(PathName{scheme: Scheme, path: Separator, kind: Folder})
}

// HomeDirectory returns the absolute home directory path.
func (s *Session) HomeDirectory() string {
	return s.home
}

// homeLeaf is the name the root lists: the home directory without its
// leading separator.
func (s *Session) homeLeaf() string {
	return strings.TrimPrefix(s.home, Separator)
}

// Client returns the store client.
func (s *Session) Client() common.Client {
	return s.client
}

// Config returns a copy of the session configuration.
func (s *Session) Config() Config {
	return s.config
}

// Options returns a copy of the imported option bag.
func (s *Session) Options() Options {
	return s.options.Clone()
}

// Logger returns the session logger.
func (s *Session) Logger() adapters.Logger {
	return s.logger
}

// Capabilities returns the operations the session supports.
func (s *Session) Capabilities() CapabilitySet {
	return Capabilities()
}

// withLock runs fn holding the session mutex.
func (s *Session) withLock(fn func() error) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *Session) recordMutation(ctx context.Context, eventType audit.EventType, path, target string, n int64, err error) {
	if auditErr := s.audit.LogMutation(ctx, eventType, path, target, n, err); auditErr != nil {
		s.logger.Warn(ctx, "audit log failed", adapters.Field{Key: "error", Value: auditErr.Error()})
	}
}
