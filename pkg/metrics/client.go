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

package metrics

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jeremyhahn/go-mantavfs/pkg/common"
)

// InstrumentedClient decorates a common.Client and records every call.
type InstrumentedClient struct {
	client    common.Client
	collector *Collector
}

// Instrument wraps client so its calls are recorded by collector.
func Instrument(client common.Client, collector *Collector) *InstrumentedClient {
	return &InstrumentedClient{client: client, collector: collector}
}

// Unwrap returns the decorated client.
func (c *InstrumentedClient) Unwrap() common.Client {
	return c.client
}

func (c *InstrumentedClient) observe(operation string, start time.Time, err error) {
	c.collector.RecordOperation(operation, time.Since(start), err)
}

func (c *InstrumentedClient) Head(ctx context.Context, path string) (*common.ObjectInfo, error) {
	start := time.Now()
	info, err := c.client.Head(ctx, path)
	c.observe("head", start, err)
	return info, err
}

func (c *InstrumentedClient) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := c.client.Get(ctx, path)
	c.observe("get", start, err)
	if err != nil {
		return nil, err
	}
	return c.countReader("get", rc), nil
}

func (c *InstrumentedClient) Put(ctx context.Context, path string, r io.Reader, metadata map[string]string) error {
	start := time.Now()
	counter := &countingReader{r: r}
	err := c.client.Put(ctx, path, counter, metadata)
	c.observe("put", start, err)
	c.collector.RecordBytes("put", "out", counter.n)
	return err
}

func (c *InstrumentedClient) PutMetadata(ctx context.Context, path string, update common.MetadataUpdate) error {
	start := time.Now()
	err := c.client.PutMetadata(ctx, path, update)
	c.observe("put_metadata", start, err)
	return err
}

func (c *InstrumentedClient) PutDirectory(ctx context.Context, path string) error {
	start := time.Now()
	err := c.client.PutDirectory(ctx, path)
	c.observe("put_directory", start, err)
	return err
}

func (c *InstrumentedClient) List(ctx context.Context, path string) ([]*common.ObjectInfo, error) {
	start := time.Now()
	infos, err := c.client.List(ctx, path)
	c.observe("list", start, err)
	return infos, err
}

func (c *InstrumentedClient) Delete(ctx context.Context, path string) error {
	start := time.Now()
	err := c.client.Delete(ctx, path)
	c.observe("delete", start, err)
	return err
}

func (c *InstrumentedClient) Move(ctx context.Context, src, dst string) error {
	start := time.Now()
	err := c.client.Move(ctx, src, dst)
	c.observe("move", start, err)
	return err
}

func (c *InstrumentedClient) Link(ctx context.Context, dst, src string) error {
	start := time.Now()
	err := c.client.Link(ctx, dst, src)
	c.observe("link", start, err)
	return err
}

func (c *InstrumentedClient) OpenRange(ctx context.Context, path string, offset int64) (common.RangeReader, error) {
	start := time.Now()
	rr, err := c.client.OpenRange(ctx, path, offset)
	c.observe("get_range", start, err)
	if err != nil {
		return nil, err
	}
	return &countingRange{RangeReader: rr, counter: c.countReader("get_range", rr)}, nil
}

func (c *InstrumentedClient) SignURL(ctx context.Context, path, method string, ttl time.Duration) (string, error) {
	start := time.Now()
	signed, err := c.client.SignURL(ctx, path, method, ttl)
	c.observe("sign", start, err)
	return signed, err
}

func (c *InstrumentedClient) BaseURL() string {
	return c.client.BaseURL()
}

func (c *InstrumentedClient) Close() error {
	return c.client.Close()
}

func (c *InstrumentedClient) countReader(operation string, rc io.ReadCloser) *countingReadCloser {
	c.collector.readerOpened()
	return &countingReadCloser{rc: rc, collector: c.collector, operation: operation}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.n += int64(n)
	return n, err
}

type countingReadCloser struct {
	rc        io.ReadCloser
	collector *Collector
	operation string
	n         int64
	once      sync.Once
}

func (r *countingReadCloser) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	r.n += int64(n)
	return n, err
}

func (r *countingReadCloser) Close() error {
	err := r.rc.Close()
	r.once.Do(func() {
		r.collector.readerClosed()
		r.collector.RecordBytes(r.operation, "in", r.n)
	})
	return err
}

type countingRange struct {
	common.RangeReader
	counter *countingReadCloser
}

func (r *countingRange) Read(p []byte) (int, error) { return r.counter.Read(p) }
func (r *countingRange) Close() error               { return r.counter.Close() }

var _ common.Client = (*InstrumentedClient)(nil)
