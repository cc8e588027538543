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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
	"github.com/jeremyhahn/go-mantavfs/pkg/audit"
	"github.com/jeremyhahn/go-mantavfs/pkg/cli"
	"github.com/jeremyhahn/go-mantavfs/pkg/metrics"
	"github.com/jeremyhahn/go-mantavfs/pkg/server"
	"github.com/jeremyhahn/go-mantavfs/pkg/server/middleware"
	restserver "github.com/jeremyhahn/go-mantavfs/pkg/server/rest"
	"github.com/jeremyhahn/go-mantavfs/pkg/vfs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the filesystem over HTTP",
	Long: `Start the HTTP gateway. Files are read and written under /api/v1/fs,
signed URLs are served under /signed and Prometheus metrics under /metrics.`,
	Example: `  mantavfs serve --backend memory --user demo --url http://localhost:8080/signed
  mantavfs serve --backend local --backend-path /srv/store --port 9090 --tls-cert c.pem --tls-key k.pem`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runServe(cmd); err != nil {
			printError(cmd, err)
			return err
		}
		return nil
	},
}

func registerServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("host", server.DefaultHost, "address to bind")
	cmd.Flags().Int("port", server.DefaultPort, "port to listen on")
	cmd.Flags().String("tls-cert", "", "TLS certificate file")
	cmd.Flags().String("tls-key", "", "TLS private key file")
	cmd.Flags().String("tls-client-ca", "", "CA bundle for client certificates (enables mutual TLS)")
	cmd.Flags().Float64("rate-limit", 0, "requests per second per client IP (0 disables)")
	cmd.Flags().Int("rate-burst", 0, "rate limit burst (default twice the rate)")
	cmd.Flags().Bool("audit", true, "write an audit trail of mutating requests to stdout")
	cmd.Flags().String("audit-format", "json", "audit trail format (json, text)")
	cmd.Flags().String("audit-file", "", "write the audit trail to a rotated file instead of stdout")
	cmd.Flags().Bool("audit-reads", false, "also audit reads and listings")
	cmd.Flags().Bool("metrics", true, "expose Prometheus metrics at /metrics")
	cmd.Flags().Bool("enforce-write-policy", false, "only allow writes under ~~/public and ~~/stor")
	cmd.Flags().StringSlice("cors-origin", nil, "origins allowed by CORS (repeatable, default any)")
}

func runServe(cmd *cobra.Command) error {
	flags := cmd.Flags()
	host, _ := flags.GetString("host")                  //nolint:errcheck // flags are validated by cobra
	port, _ := flags.GetInt("port")                     //nolint:errcheck // flags are validated by cobra
	certFile, _ := flags.GetString("tls-cert")          //nolint:errcheck // flags are validated by cobra
	keyFile, _ := flags.GetString("tls-key")            //nolint:errcheck // flags are validated by cobra
	clientCA, _ := flags.GetString("tls-client-ca")     //nolint:errcheck // flags are validated by cobra
	rate, _ := flags.GetFloat64("rate-limit")           //nolint:errcheck // flags are validated by cobra
	burst, _ := flags.GetInt("rate-burst")              //nolint:errcheck // flags are validated by cobra
	auditEnabled, _ := flags.GetBool("audit")           //nolint:errcheck // flags are validated by cobra
	auditFormat, _ := flags.GetString("audit-format")   //nolint:errcheck // flags are validated by cobra
	auditFile, _ := flags.GetString("audit-file")       //nolint:errcheck // flags are validated by cobra
	auditReads, _ := flags.GetBool("audit-reads")       //nolint:errcheck // flags are validated by cobra
	metricsEnabled, _ := flags.GetBool("metrics")       //nolint:errcheck // flags are validated by cobra
	enforce, _ := flags.GetBool("enforce-write-policy") //nolint:errcheck // flags are validated by cobra
	origins, _ := flags.GetStringSlice("cors-origin")   //nolint:errcheck // flags are validated by cobra

	auditLogger := audit.NewNoOpAuditLogger()
	if auditEnabled {
		level := adapters.InfoLevel
		if auditReads {
			level = adapters.DebugLevel
		}
		auditLogger = audit.NewAuditLogger(&audit.Config{
			Enabled:    true,
			Format:     audit.OutputFormat(auditFormat),
			Level:      level,
			Output:     cmd.OutOrStdout(),
			File:       auditFile,
			MaxSizeMB:  100,
			MaxBackups: 10,
		})
	}

	opts := []vfs.SessionOption{vfs.WithAuditLogger(auditLogger)}
	var collector *metrics.Collector
	if metricsEnabled {
		var err error
		if collector, err = metrics.NewCollector(nil); err != nil {
			return fmt.Errorf("create metrics collector: %w", err)
		}
		opts = append(opts, vfs.WithMetrics(collector))
	}

	ctx, err := cli.NewCommandContext(globalConfig, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = ctx.Close() }()
	logger := ctx.Session.Logger()

	config := restserver.DefaultServerConfig()
	config.Host = host
	config.Port = port
	config.Logger = logger
	config.AuditLogger = auditLogger
	config.EnableAudit = auditEnabled
	config.Metrics = collector
	config.EnforceWritePolicy = enforce
	config.CORSOrigins = origins
	if rate > 0 {
		if burst <= 0 {
			burst = int(2 * rate)
		}
		config.EnableRateLimit = true
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = rate
		limits.Burst = burst
		limits.PerIP = true
		config.RateLimitConfig = limits
	}
	if certFile != "" || keyFile != "" {
		config.TLSConfig = &adapters.TLSConfig{
			CertFile:     certFile,
			KeyFile:      keyFile,
			ClientCAFile: clientCA,
		}
		config.SecurityHeadersConfig.EnableHSTS = true
	}

	srv, err := restserver.NewServer(ctx.Session, config)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	logger.Info(sigCtx, "filesystem mounted",
		adapters.Field{Key: "backend", Value: globalConfig.Backend},
		adapters.Field{Key: "home", Value: ctx.Session.HomeDirectory()},
		adapters.Field{Key: "tls", Value: config.TLSConfig != nil})

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("gateway error: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errChan
}
