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
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
	"github.com/jeremyhahn/go-mantavfs/pkg/audit"
	"github.com/jeremyhahn/go-mantavfs/pkg/metrics"
	"github.com/jeremyhahn/go-mantavfs/pkg/server"
	"github.com/jeremyhahn/go-mantavfs/pkg/server/middleware"
	"github.com/jeremyhahn/go-mantavfs/pkg/vfs"
)

// Server is the HTTP gateway in front of a filesystem session.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	handler    *Handler
	config     *ServerConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	// Host is the hostname to bind to (default: "0.0.0.0")
	Host string

	// Port is the port to listen on (default: 8080)
	Port int

	// EnableCORS enables CORS middleware
	EnableCORS bool

	// CORSOrigins lists the origins CORS admits; empty admits any
	CORSOrigins []string

	// EnableLogging enables request logging middleware
	EnableLogging bool

	// EnableRateLimit enables rate limiting middleware
	EnableRateLimit bool

	// RateLimitConfig is the rate limiting configuration
	RateLimitConfig *middleware.RateLimitConfig

	// EnableSecurityHeaders enables security headers middleware
	EnableSecurityHeaders bool

	// SecurityHeadersConfig is the security headers configuration
	SecurityHeadersConfig *middleware.SecurityHeadersConfig

	// EnableRequestID enables request ID middleware
	EnableRequestID bool

	// MaxRequestSize is the maximum request body size in bytes
	MaxRequestSize int64

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Mode sets the Gin mode: "debug", "release", or "test" (default: "release")
	Mode string

	// Logger is the pluggable logger adapter (default: DefaultLogger)
	Logger adapters.Logger

	// TLSConfig enables HTTPS, and mutual TLS when it names a client CA
	TLSConfig *adapters.TLSConfig

	// AuditLogger records gateway requests (default: JSON to stdout)
	AuditLogger audit.AuditLogger

	// EnableAudit enables audit logging (default: true)
	EnableAudit bool

	// Metrics, when set, is exposed at /metrics
	Metrics *metrics.Collector

	// EnforceWritePolicy rejects mutations the session's WritePolicy
	// reports as not writeable
	EnforceWritePolicy bool
}

// DefaultServerConfig returns a ServerConfig with sensible defaults
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:                  server.DefaultHost,
		Port:                  server.DefaultPort,
		EnableCORS:            true,
		EnableLogging:         true,
		EnableRateLimit:       false,
		RateLimitConfig:       middleware.DefaultRateLimitConfig(),
		EnableSecurityHeaders: true,
		SecurityHeadersConfig: middleware.DefaultSecurityHeadersConfig(),
		EnableRequestID:       true,
		MaxRequestSize:        server.MaxUploadSize,
		ReadTimeout:           server.DefaultReadTimeout,
		WriteTimeout:          server.DefaultWriteTimeout,
		IdleTimeout:           server.DefaultIdleTimeout,
		Mode:                  gin.ReleaseMode,
		Logger:                adapters.NewDefaultLogger(),
		AuditLogger:           audit.NewDefaultAuditLogger(),
		EnableAudit:           true,
	}
}

// NewServer creates a gateway serving session.
func NewServer(session *vfs.Session, config *ServerConfig) (*Server, error) {
	if session == nil {
		return nil, errors.New("rest: session is required")
	}
	if config == nil {
		config = DefaultServerConfig()
	}
	if config.Logger == nil {
		config.Logger = adapters.NewDefaultLogger()
	}
	if config.AuditLogger == nil {
		if config.EnableAudit {
			config.AuditLogger = audit.NewDefaultAuditLogger()
		} else {
			config.AuditLogger = audit.NewNoOpAuditLogger()
		}
	}

	gin.SetMode(config.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ErrorHandlingMiddleware(config.Logger))

	// Middleware order: request ID → rate limit → security headers → CORS → audit → logging → size limit
	if config.EnableRequestID {
		router.Use(middleware.RequestIDMiddleware())
	}
	if config.EnableRateLimit {
		router.Use(middleware.RateLimitMiddleware(config.RateLimitConfig, config.Logger))
	}
	if config.EnableSecurityHeaders {
		router.Use(middleware.SecurityHeadersMiddleware(config.SecurityHeadersConfig))
	}
	if config.EnableCORS {
		router.Use(CORSMiddleware(config.CORSOrigins...))
	}
	if config.EnableAudit {
		router.Use(audit.AuditMiddleware(config.AuditLogger))
	}
	if config.EnableLogging {
		router.Use(LoggingMiddleware(config.Logger))
	}
	if config.MaxRequestSize > 0 {
		router.Use(RequestSizeLimitMiddleware(config.MaxRequestSize))
	}

	var opts []HandlerOption
	if config.EnforceWritePolicy {
		opts = append(opts, WithWritePolicyEnforced())
	}
	handler := NewHandler(session, config.Logger, opts...)
	var metricsHandler http.Handler
	if config.Metrics != nil {
		metricsHandler = config.Metrics.Handler()
	}
	SetupRoutes(router, handler, metricsHandler)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           router,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: server.DefaultReadHeaderTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		MaxHeaderBytes:    server.MaxHeaderBytes,
	}

	return &Server{
		router:     router,
		httpServer: httpServer,
		handler:    handler,
		config:     config,
	}, nil
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln, wrapping it in TLS when configured. It returns nil
// after a graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	ctx := context.Background()
	var err error
	if s.config.TLSConfig != nil && s.config.TLSConfig.Enabled() {
		tlsConfig, buildErr := s.config.TLSConfig.Build()
		if buildErr != nil {
			_ = ln.Close()
			return buildErr
		}
		s.httpServer.TLSConfig = tlsConfig

		s.config.Logger.Info(ctx, "Starting gateway with TLS",
			adapters.Field{Key: "address", Value: ln.Addr().String()},
			adapters.Field{Key: "mtls", Value: s.config.TLSConfig.ClientCAFile != ""},
		)
		// Certificates come from TLSConfig
		err = s.httpServer.ServeTLS(ln, "", "")
	} else {
		s.config.Logger.Info(ctx, "Starting gateway",
			adapters.Field{Key: "address", Value: ln.Addr().String()},
		)
		err = s.httpServer.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.config.Logger.Info(ctx, "Shutting down gateway")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the underlying Gin router (useful for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Handler returns the HTTP handler
func (s *Server) Handler() *Handler {
	return s.handler
}

// Address returns the server address
func (s *Server) Address() string {
	return s.httpServer.Addr
}
