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

// Package audit records filesystem mutations made through a session or the
// HTTP gateway.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EventType represents the type of audit event
type EventType string

const (
	// EventObjectCreated indicates an object was written
	EventObjectCreated EventType = "OBJECT_CREATED"

	// EventObjectDeleted indicates an object or empty directory was deleted
	EventObjectDeleted EventType = "OBJECT_DELETED"

	// EventObjectAccessed indicates an object was read
	EventObjectAccessed EventType = "OBJECT_ACCESSED"

	// EventObjectMoved indicates an object was renamed
	EventObjectMoved EventType = "OBJECT_MOVED"

	// EventObjectLinked indicates a server-side link copy
	EventObjectLinked EventType = "OBJECT_LINKED"

	// EventDirectoryCreated indicates a directory was created
	EventDirectoryCreated EventType = "DIRECTORY_CREATED"

	// EventMetadataUpdated indicates custom attributes were changed
	EventMetadataUpdated EventType = "OBJECT_METADATA_UPDATED"

	// EventListObjects indicates a directory was listed
	EventListObjects EventType = "LIST_OBJECTS"
)

// Result represents the outcome of an audited operation
type Result string

const (
	// ResultSuccess indicates the operation succeeded
	ResultSuccess Result = "SUCCESS"

	// ResultFailure indicates the operation failed
	ResultFailure Result = "FAILURE"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	// ID uniquely identifies the event
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`
	EventType EventType `json:"event_type"`

	// Path is the filesystem path the operation targeted
	Path string `json:"path,omitempty"`

	// Target is the destination path for moves and links
	Target string `json:"target,omitempty"`

	Action       string `json:"action"`
	Result       Result `json:"result"`
	ErrorMessage string `json:"error_message,omitempty"`

	// RequestID correlates gateway requests with session mutations
	RequestID string `json:"request_id,omitempty"`

	IPAddress        string         `json:"ip_address,omitempty"`
	Method           string         `json:"method,omitempty"`
	StatusCode       int            `json:"status_code,omitempty"`
	BytesTransferred int64          `json:"bytes_transferred,omitempty"`
	Duration         time.Duration  `json:"duration,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// AuditLogger defines the interface for audit logging
type AuditLogger interface {
	// LogEvent logs a generic audit event
	LogEvent(ctx context.Context, event *AuditEvent) error

	// LogMutation logs a filesystem mutation. target is empty unless the
	// operation has a destination.
	LogMutation(ctx context.Context, eventType EventType, path, target string, bytesTransferred int64, err error) error

	// SetLevel sets the minimum audit level (for filtering)
	SetLevel(level adapters.LogLevel)

	// GetLevel returns the current audit level
	GetLevel() adapters.LogLevel
}

// OutputFormat specifies the format for audit log output
type OutputFormat string

const (
	// FormatJSON outputs audit logs in JSON format
	FormatJSON OutputFormat = "json"

	// FormatText outputs audit logs in human-readable text format
	FormatText OutputFormat = "text"
)

// Config holds configuration for the audit logger
type Config struct {
	Enabled bool
	Format  OutputFormat

	// Level drops events below it. Reads and listings are recorded at
	// debug, mutations at info and failures at warn.
	Level adapters.LogLevel

	// Output receives the trail. Ignored when File is set.
	Output io.Writer

	// File writes the trail to a size-rotated file instead of Output.
	File       string
	MaxSizeMB  int
	MaxBackups int

	IncludeMetadata bool
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		Format:          FormatJSON,
		Level:           adapters.InfoLevel,
		Output:          os.Stdout,
		IncludeMetadata: true,
	}
}

// DefaultAuditLogger implements AuditLogger using slog
type DefaultAuditLogger struct {
	config *Config
	logger *slog.Logger
	level  adapters.LogLevel
}

// NewDefaultAuditLogger creates a new audit logger with default configuration
func NewDefaultAuditLogger() AuditLogger {
	return NewAuditLogger(DefaultConfig())
}

// NewAuditLogger creates a new audit logger with the specified configuration
func NewAuditLogger(config *Config) AuditLogger {
	if config == nil {
		config = DefaultConfig()
	}
	out := config.Output
	if config.File != "" {
		out = &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    max(config.MaxSizeMB, 1),
			MaxBackups: config.MaxBackups,
			Compress:   true,
		}
	}
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var handler slog.Handler
	switch config.Format {
	case FormatText:
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	return &DefaultAuditLogger{
		config: config,
		logger: slog.New(handler),
		level:  config.Level,
	}
}

// LogEvent logs a generic audit event
func (a *DefaultAuditLogger) LogEvent(ctx context.Context, event *AuditEvent) error {
	if !a.config.Enabled || event == nil {
		return nil
	}
	level := levelFor(event)
	if level < a.level {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = adapters.RequestIDFromContext(ctx)
	}

	attrs := []slog.Attr{
		slog.String("id", event.ID),
		slog.Time("timestamp", event.Timestamp),
		slog.String("event_type", string(event.EventType)),
		slog.String("action", event.Action),
		slog.String("result", string(event.Result)),
	}
	if event.Path != "" {
		attrs = append(attrs, slog.String("path", event.Path))
	}
	if event.Target != "" {
		attrs = append(attrs, slog.String("target", event.Target))
	}
	if event.ErrorMessage != "" {
		attrs = append(attrs, slog.String("error", event.ErrorMessage))
	}
	if event.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", event.RequestID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.Method != "" {
		attrs = append(attrs, slog.String("method", event.Method))
	}
	if event.StatusCode > 0 {
		attrs = append(attrs, slog.Int("status_code", event.StatusCode))
	}
	if event.BytesTransferred > 0 {
		attrs = append(attrs, slog.Int64("bytes_transferred", event.BytesTransferred))
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", event.Duration))
	}
	if a.config.IncludeMetadata && len(event.Metadata) > 0 {
		metadataJSON, _ := json.Marshal(event.Metadata) //nolint:errcheck // marshaling simple map types is safe
		attrs = append(attrs, slog.String("metadata", string(metadataJSON)))
	}

	a.logger.LogAttrs(ctx, slogLevel(level), "Audit event: "+event.Action, attrs...)
	return nil
}

func levelFor(event *AuditEvent) adapters.LogLevel {
	switch {
	case event.Result == ResultFailure:
		return adapters.WarnLevel
	case event.EventType == EventObjectAccessed, event.EventType == EventListObjects:
		return adapters.DebugLevel
	default:
		return adapters.InfoLevel
	}
}

func slogLevel(level adapters.LogLevel) slog.Level {
	switch level {
	case adapters.DebugLevel:
		return slog.LevelDebug
	case adapters.WarnLevel:
		return slog.LevelWarn
	case adapters.ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogMutation logs a filesystem mutation
func (a *DefaultAuditLogger) LogMutation(ctx context.Context, eventType EventType, path, target string, bytesTransferred int64, err error) error {
	event := &AuditEvent{
		Timestamp:        time.Now(),
		EventType:        eventType,
		Path:             path,
		Target:           target,
		Action:           actionFor(eventType),
		Result:           ResultSuccess,
		BytesTransferred: bytesTransferred,
	}
	if err != nil {
		event.Result = ResultFailure
		event.ErrorMessage = err.Error()
	}
	return a.LogEvent(ctx, event)
}

func actionFor(eventType EventType) string {
	switch eventType {
	case EventObjectCreated:
		return "put_object"
	case EventObjectDeleted:
		return "delete"
	case EventObjectAccessed:
		return "get_object"
	case EventObjectMoved:
		return "move"
	case EventObjectLinked:
		return "link"
	case EventDirectoryCreated:
		return "put_directory"
	case EventMetadataUpdated:
		return "update_metadata"
	case EventListObjects:
		return "list"
	default:
		return "modify"
	}
}

// SetLevel sets the minimum audit level
func (a *DefaultAuditLogger) SetLevel(level adapters.LogLevel) {
	a.level = level
}

// GetLevel returns the current audit level
func (a *DefaultAuditLogger) GetLevel() adapters.LogLevel {
	return a.level
}

// NoOpAuditLogger discards all events
type NoOpAuditLogger struct {
	level adapters.LogLevel
}

// NewNoOpAuditLogger creates a new no-op audit logger
func NewNoOpAuditLogger() AuditLogger {
	return &NoOpAuditLogger{level: adapters.InfoLevel}
}

func (n *NoOpAuditLogger) LogEvent(ctx context.Context, event *AuditEvent) error { return nil }
func (n *NoOpAuditLogger) LogMutation(ctx context.Context, eventType EventType, path, target string, bytesTransferred int64, err error) error {
	return nil
}
func (n *NoOpAuditLogger) SetLevel(level adapters.LogLevel) { n.level = level }
func (n *NoOpAuditLogger) GetLevel() adapters.LogLevel      { return n.level }
