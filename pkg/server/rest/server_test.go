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
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-mantavfs/pkg/adapters"
	"github.com/jeremyhahn/go-mantavfs/pkg/metrics"
	"github.com/jeremyhahn/go-mantavfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultServerConfig(t *testing.T) {
	config := DefaultServerConfig()
	assert.Equal(t, "0.0.0.0", config.Host)
	assert.Equal(t, 8080, config.Port)
	assert.True(t, config.EnableAudit)
	assert.False(t, config.EnableRateLimit)
	assert.False(t, config.EnforceWritePolicy)
	assert.Nil(t, config.TLSConfig)
}

func TestNewServerNilConfig(t *testing.T) {
	g := newGateway(t, nil)
	server, err := NewServer(g.session, nil)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", server.Address())
	assert.NotNil(t, server.Handler())
}

func TestMetricsEndpoint(t *testing.T) {
	collector, err := metrics.NewCollector(nil)
	require.NoError(t, err)

	config := testConfig()
	config.Metrics = collector
	g := newGateway(t, config, vfs.WithMetrics(collector))
	g.put("/user/stor/a", "abc")

	w := g.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mantavfs_store_operations_total")

	g = newGateway(t, nil)
	assert.Equal(t, http.StatusNotFound, g.do(http.MethodGet, "/metrics", nil).Code)
}

func TestServeAndShutdown(t *testing.T) {
	config := testConfig()
	config.EnableRateLimit = true
	g := newGateway(t, config)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- g.server.Serve(ln) }()

	base := "http://" + ln.Addr().String()
	req, err := http.NewRequest(http.MethodPut, base+"/api/v1/fs/user/stor/live.txt", strings.NewReader("live"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(base + "/api/v1/fs/user/stor/live.txt")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "live", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, g.server.Shutdown(ctx))
	assert.NoError(t, <-done)
}

func TestServeRejectsBadTLS(t *testing.T) {
	config := testConfig()
	config.TLSConfig = &adapters.TLSConfig{CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"}
	g := newGateway(t, config)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.ErrorIs(t, g.server.Serve(ln), adapters.ErrInvalidCertificate)
}
