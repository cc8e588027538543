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

// Package metrics exposes Prometheus metrics for object store calls made on
// behalf of a filesystem session.
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jeremyhahn/go-mantavfs/pkg/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status label values.
const (
	StatusSuccess  = "success"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

// Config represents metrics configuration
type Config struct {
	Namespace string
	Subsystem string

	// Labels are attached to every series as constant labels.
	Labels map[string]string
}

// OperationMetrics is a point-in-time summary of one operation type.
type OperationMetrics struct {
	Count         int64         `json:"count"`
	Errors        int64         `json:"errors"`
	NotFound      int64         `json:"not_found"`
	TotalDuration time.Duration `json:"total_duration"`
	TotalBytes    int64         `json:"total_bytes"`
	LastOperation time.Time     `json:"last_operation"`
}

// Collector records store operations into a private Prometheus registry.
type Collector struct {
	mu       sync.RWMutex
	registry *prometheus.Registry

	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesCounter      *prometheus.CounterVec
	openReaders       prometheus.Gauge

	operations map[string]*OperationMetrics
}

// NewCollector creates a collector. A nil config uses the "mantavfs"
// namespace.
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{Namespace: "mantavfs"}
	}

	c := &Collector{
		registry:   prometheus.NewRegistry(),
		operations: make(map[string]*OperationMetrics),
	}

	constLabels := prometheus.Labels(config.Labels)
	c.operationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "store_operations_total",
		Help:        "Object store calls by operation and status.",
		ConstLabels: constLabels,
	}, []string{"operation", "status"})
	c.operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "store_operation_duration_seconds",
		Help:        "Latency of object store calls.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"operation"})
	c.bytesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "store_bytes_total",
		Help:        "Bytes transferred to and from the object store.",
		ConstLabels: constLabels,
	}, []string{"direction"})
	c.openReaders = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "open_readers",
		Help:        "Read and ranged read channels currently open.",
		ConstLabels: constLabels,
	})

	for _, collector := range []prometheus.Collector{
		c.operationCounter, c.operationDuration, c.bytesCounter, c.openReaders,
	} {
		if err := c.registry.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return c, nil
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordOperation records one store call.
func (c *Collector) RecordOperation(operation string, duration time.Duration, err error) {
	status := statusOf(err)
	c.operationCounter.WithLabelValues(operation, status).Inc()
	c.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.operation(operation)
	m.Count++
	m.TotalDuration += duration
	m.LastOperation = time.Now()
	switch status {
	case StatusError:
		m.Errors++
	case StatusNotFound:
		m.NotFound++
	}
}

// RecordBytes adds n bytes to direction ("in" for reads, "out" for writes)
// and to the operation's byte total.
func (c *Collector) RecordBytes(operation, direction string, n int64) {
	if n <= 0 {
		return
	}
	c.bytesCounter.WithLabelValues(direction).Add(float64(n))

	c.mu.Lock()
	c.operation(operation).TotalBytes += n
	c.mu.Unlock()
}

func (c *Collector) readerOpened() { c.openReaders.Inc() }
func (c *Collector) readerClosed() { c.openReaders.Dec() }

func (c *Collector) operation(name string) *OperationMetrics {
	m, ok := c.operations[name]
	if !ok {
		m = &OperationMetrics{}
		c.operations[name] = m
	}
	return m
}

// Snapshot returns a copy of the per-operation summaries.
func (c *Collector) Snapshot() map[string]OperationMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]OperationMetrics, len(c.operations))
	for k, v := range c.operations {
		out[k] = *v
	}
	return out
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case common.IsNotFound(err):
		return StatusNotFound
	default:
		return StatusError
	}
}
