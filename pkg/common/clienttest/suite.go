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

// Package clienttest is a conformance suite for store clients.
package clienttest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/jeremyhahn/go-mantavfs/pkg/common"
)

// Suite runs the conformance tests against Client. Root is a directory
// the suite may freely populate; it defaults to "/clienttest".
type Suite struct {
	Client common.Client
	Root   string
}

// Run executes every test as a subtest of t.
func (s *Suite) Run(t *testing.T) {
	if s.Root == "" {
		s.Root = "/clienttest"
	}
	t.Run("PutGetHead", s.testPutGetHead)
	t.Run("Metadata", s.testMetadata)
	t.Run("List", s.testList)
	t.Run("Delete", s.testDelete)
	t.Run("MoveAndLink", s.testMoveAndLink)
	t.Run("OpenRange", s.testOpenRange)
	t.Run("ContextCancellation", s.testContextCancellation)
	t.Run("ConcurrentOperations", s.testConcurrentOperations)
	t.Run("LargeObject", s.testLargeObject)
}

func (s *Suite) path(t *testing.T, rel string) string {
	return fmt.Sprintf("%s/%s/%s", s.Root, strings.ReplaceAll(t.Name(), "/", "_"), rel)
}

func (s *Suite) put(t *testing.T, p, content string, metadata map[string]string) {
	t.Helper()
	if err := s.Client.Put(context.Background(), p, strings.NewReader(content), metadata); err != nil {
		t.Fatalf("Put(%s) failed: %v", p, err)
	}
}

func (s *Suite) read(t *testing.T, p string) string {
	t.Helper()
	rc, err := s.Client.Get(context.Background(), p)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", p, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading %s failed: %v", p, err)
	}
	return string(data)
}

func (s *Suite) testPutGetHead(t *testing.T) {
	ctx := context.Background()
	p := s.path(t, "dir/a.txt")
	s.put(t, p, "hello", nil)

	if got := s.read(t, p); got != "hello" {
		t.Errorf("Get() = %q, want hello", got)
	}

	info, err := s.Client.Head(ctx, p)
	if err != nil {
		t.Fatalf("Head() failed: %v", err)
	}
	if info.Directory || info.Size != 5 || info.Path != p {
		t.Errorf("Head() = %+v", info)
	}

	parent, err := s.Client.Head(ctx, s.path(t, "dir"))
	if err != nil || !parent.Directory {
		t.Errorf("parent should be an implicit directory: %+v, %v", parent, err)
	}

	if _, err := s.Client.Head(ctx, s.path(t, "missing")); !common.IsNotFound(err) {
		t.Errorf("Head(missing) error = %v, want not found", err)
	}
	if _, err := s.Client.Get(ctx, s.path(t, "missing")); !common.IsNotFound(err) {
		t.Errorf("Get(missing) error = %v, want not found", err)
	}

	// Overwrite replaces content
	s.put(t, p, "bye", nil)
	if got := s.read(t, p); got != "bye" {
		t.Errorf("Get() after overwrite = %q", got)
	}
}

func (s *Suite) testMetadata(t *testing.T) {
	ctx := context.Background()
	p := s.path(t, "f")
	s.put(t, p, "x", map[string]string{"m-a": "1", "m-b": "2"})

	err := s.Client.PutMetadata(ctx, p, common.MetadataUpdate{
		Set:    map[string]string{"m-c": "3"},
		Remove: []string{"m-a"},
	})
	if err != nil {
		t.Fatalf("PutMetadata() failed: %v", err)
	}

	info, err := s.Client.Head(ctx, p)
	if err != nil {
		t.Fatalf("Head() failed: %v", err)
	}
	if _, ok := info.Metadata["m-a"]; ok {
		t.Errorf("removed key still present: %v", info.Metadata)
	}
	if info.Metadata["m-b"] != "2" || info.Metadata["m-c"] != "3" {
		t.Errorf("metadata = %v", info.Metadata)
	}
	if got := s.read(t, p); got != "x" {
		t.Errorf("content changed by metadata update: %q", got)
	}

	if err := s.Client.PutMetadata(ctx, s.path(t, "missing"), common.MetadataUpdate{}); !common.IsNotFound(err) {
		t.Errorf("PutMetadata(missing) error = %v", err)
	}
}

func (s *Suite) testList(t *testing.T) {
	ctx := context.Background()
	s.put(t, s.path(t, "d/b"), "b", nil)
	s.put(t, s.path(t, "d/a"), "a", nil)
	s.put(t, s.path(t, "d/sub/c"), "c", nil)
	if err := s.Client.PutDirectory(ctx, s.path(t, "d/empty")); err != nil {
		t.Fatalf("PutDirectory() failed: %v", err)
	}

	infos, err := s.Client.List(ctx, s.path(t, "d"))
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	var got []string
	for _, info := range infos {
		name := info.Path[strings.LastIndex(info.Path, "/")+1:]
		if info.Directory {
			name += "/"
		}
		got = append(got, name)
	}
	if strings.Join(got, ",") != "a,b,empty/,sub/" {
		t.Errorf("List() = %v, want a,b,empty/,sub/", got)
	}

	if _, err := s.Client.List(ctx, s.path(t, "d/a")); !errors.Is(err, common.ErrNotDirectory) {
		t.Errorf("List(file) error = %v, want ErrNotDirectory", err)
	}
	if _, err := s.Client.List(ctx, s.path(t, "nope")); !common.IsNotFound(err) {
		t.Errorf("List(missing) error = %v, want not found", err)
	}
}

func (s *Suite) testDelete(t *testing.T) {
	ctx := context.Background()
	dir := s.path(t, "d")
	s.put(t, dir+"/f", "x", nil)

	if err := s.Client.Delete(ctx, dir); !errors.Is(err, common.ErrDirectoryNotEmpty) {
		t.Errorf("Delete(non-empty) error = %v, want ErrDirectoryNotEmpty", err)
	}
	if err := s.Client.Delete(ctx, dir+"/f"); err != nil {
		t.Fatalf("Delete(file) failed: %v", err)
	}
	if err := s.Client.Delete(ctx, dir); err != nil {
		t.Fatalf("Delete(empty dir) failed: %v", err)
	}
	if _, err := s.Client.Head(ctx, dir); !common.IsNotFound(err) {
		t.Errorf("directory still present after delete: %v", err)
	}
	if err := s.Client.Delete(ctx, dir); !common.IsNotFound(err) {
		t.Errorf("Delete(missing) error = %v, want not found", err)
	}
}

func (s *Suite) testMoveAndLink(t *testing.T) {
	ctx := context.Background()
	src := s.path(t, "src")
	s.put(t, src, "payload", map[string]string{"m-k": "v"})

	linked := s.path(t, "copies/linked")
	if err := s.Client.Link(ctx, linked, src); err != nil {
		t.Fatalf("Link() failed: %v", err)
	}
	info, err := s.Client.Head(ctx, linked)
	if err != nil || info.Metadata["m-k"] != "v" {
		t.Errorf("Head(linked) = %+v, %v", info, err)
	}
	if got := s.read(t, linked); got != "payload" {
		t.Errorf("linked content = %q", got)
	}

	moved := s.path(t, "moved/dst")
	if err := s.Client.Move(ctx, src, moved); err != nil {
		t.Fatalf("Move() failed: %v", err)
	}
	if _, err := s.Client.Head(ctx, src); !common.IsNotFound(err) {
		t.Errorf("source still present after move: %v", err)
	}
	if got := s.read(t, moved); got != "payload" {
		t.Errorf("moved content = %q", got)
	}
	if err := s.Client.Move(ctx, s.path(t, "missing"), s.path(t, "x")); !common.IsNotFound(err) {
		t.Errorf("Move(missing) error = %v, want not found", err)
	}
}

func (s *Suite) testOpenRange(t *testing.T) {
	ctx := context.Background()
	p := s.path(t, "digits")
	s.put(t, p, "0123456789", nil)

	tests := []struct {
		offset int64
		want   string
	}{
		{0, "0123456789"},
		{4, "456789"},
		{10, ""},
	}
	for _, tt := range tests {
		rr, err := s.Client.OpenRange(ctx, p, tt.offset)
		if err != nil {
			t.Fatalf("OpenRange(%d) failed: %v", tt.offset, err)
		}
		data, err := io.ReadAll(rr)
		_ = rr.Close()
		if err != nil {
			t.Fatalf("reading range at %d failed: %v", tt.offset, err)
		}
		if string(data) != tt.want || rr.Offset() != tt.offset || rr.Length() != int64(len(tt.want)) {
			t.Errorf("OpenRange(%d) = %q (offset %d, length %d)", tt.offset, data, rr.Offset(), rr.Length())
		}
	}

	if _, err := s.Client.OpenRange(ctx, p, 11); !errors.Is(err, common.ErrInvalidOffset) {
		t.Errorf("OpenRange(past end) error = %v, want ErrInvalidOffset", err)
	}
}

func (s *Suite) testContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Client.Head(ctx, s.Root); !errors.Is(err, context.Canceled) {
		t.Errorf("Head(canceled) error = %v", err)
	}
	if err := s.Client.Put(ctx, s.path(t, "f"), strings.NewReader("x"), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Put(canceled) error = %v", err)
	}
}

func (s *Suite) testConcurrentOperations(t *testing.T) {
	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := s.path(t, fmt.Sprintf("w%d", i))
			content := fmt.Sprintf("worker-%d", i)
			if err := s.Client.Put(context.Background(), p, strings.NewReader(content), nil); err != nil {
				errs <- err
				return
			}
			rc, err := s.Client.Get(context.Background(), p)
			if err != nil {
				errs <- err
				return
			}
			data, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(data) != content {
				errs <- fmt.Errorf("%s: got %q, want %q", p, data, content)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func (s *Suite) testLargeObject(t *testing.T) {
	p := s.path(t, "large.bin")
	data := bytes.Repeat([]byte("0123456789abcdef"), 64*1024)
	if err := s.Client.Put(context.Background(), p, bytes.NewReader(data), nil); err != nil {
		t.Fatalf("Put(large) failed: %v", err)
	}

	rr, err := s.Client.OpenRange(context.Background(), p, int64(len(data))-16)
	if err != nil {
		t.Fatalf("OpenRange(tail) failed: %v", err)
	}
	defer func() { _ = rr.Close() }()
	tail, _ := io.ReadAll(rr)
	if string(tail) != "0123456789abcdef" {
		t.Errorf("tail = %q", tail)
	}
}
