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

package memory

import (
	"bytes"
	"context"
	"crypto/md5" // #nosec G501
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-mantavfs/pkg/common"
	"github.com/jeremyhahn/go-mantavfs/pkg/common/clienttest"
)

func TestConfigure(t *testing.T) {
	client := New()
	if err := client.Configure(nil); err != nil {
		t.Fatalf("Configure(nil) returned error: %v", err)
	}
	if err := client.Configure(map[string]string{"baseURL": "http://gw:8080", "signingKey": "k"}); err != nil {
		t.Fatalf("Configure() returned error: %v", err)
	}
	if got := client.BaseURL(); got != "http://gw:8080" {
		t.Errorf("BaseURL() = %q", got)
	}
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	client := New()

	testData := []byte("hello world")
	if err := client.Put(ctx, "/user/stor/a.txt", bytes.NewReader(testData), map[string]string{"m-k": "v"}); err != nil {
		t.Fatalf("Put() returned error: %v", err)
	}

	reader, err := client.Get(ctx, "/user/stor/a.txt")
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("io.ReadAll() returned error: %v", err)
	}
	if !bytes.Equal(data, testData) {
		t.Fatalf("Get() returned wrong data: got %q, want %q", data, testData)
	}

	info, err := client.Head(ctx, "/user/stor/a.txt")
	if err != nil {
		t.Fatalf("Head() returned error: %v", err)
	}
	sum := md5.Sum(testData) // #nosec G401
	if info.Size != int64(len(testData)) || info.Directory || !bytes.Equal(info.MD5, sum[:]) {
		t.Errorf("Head() = %+v", info)
	}
	if info.Metadata["m-k"] != "v" {
		t.Errorf("Head() metadata = %v", info.Metadata)
	}

	// Parents were created
	for _, dir := range []string{"/user", "/user/stor"} {
		info, err := client.Head(ctx, dir)
		if err != nil || !info.Directory {
			t.Errorf("Head(%s) = %+v, %v; want directory", dir, info, err)
		}
	}
}

func TestHeadRootAndMissing(t *testing.T) {
	ctx := context.Background()
	client := New()

	root, err := client.Head(ctx, "/")
	if err != nil || !root.Directory {
		t.Fatalf("Head(/) = %+v, %v", root, err)
	}

	_, err = client.Head(ctx, "/nope")
	if !common.IsNotFound(err) {
		t.Errorf("Head(missing) error = %v, want not found", err)
	}
	if client.Calls("HEAD") != 2 {
		t.Errorf("Calls(HEAD) = %d, want 2", client.Calls("HEAD"))
	}
}

func TestGetDirectoryFails(t *testing.T) {
	ctx := context.Background()
	client := New()
	_ = client.PutDirectory(ctx, "/user")

	_, err := client.Get(ctx, "/user")
	if !errors.Is(err, common.ErrIsDirectory) {
		t.Errorf("Get(dir) error = %v, want ErrIsDirectory", err)
	}
	if err := client.Put(ctx, "/user", strings.NewReader("x"), nil); !errors.Is(err, common.ErrIsDirectory) {
		t.Errorf("Put over dir error = %v, want ErrIsDirectory", err)
	}
}

func TestPutDirectoryOverFile(t *testing.T) {
	ctx := context.Background()
	client := New()
	_ = client.Put(ctx, "/a/file", strings.NewReader("x"), nil)

	err := client.PutDirectory(ctx, "/a/file/sub")
	if !errors.Is(err, common.ErrNotDirectory) {
		t.Errorf("PutDirectory under file error = %v, want ErrNotDirectory", err)
	}
	if err := client.PutDirectory(ctx, "/a"); err != nil {
		t.Errorf("PutDirectory(existing) = %v, want nil", err)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	client := New()
	_ = client.Put(ctx, "/user/stor/b.txt", strings.NewReader("b"), nil)
	_ = client.Put(ctx, "/user/stor/a.txt", strings.NewReader("a"), nil)
	_ = client.PutDirectory(ctx, "/user/stor/dir")
	_ = client.Put(ctx, "/user/stor/dir/nested.txt", strings.NewReader("n"), nil)

	infos, err := client.List(ctx, "/user/stor")
	if err != nil {
		t.Fatalf("List() returned error: %v", err)
	}

	var got []string
	for _, info := range infos {
		got = append(got, info.Path)
	}
	want := []string{"/user/stor/a.txt", "/user/stor/b.txt", "/user/stor/dir"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("List() = %v, want %v", got, want)
	}
	if !infos[2].Directory {
		t.Errorf("dir entry should be a directory")
	}

	if _, err := client.List(ctx, "/missing"); !common.IsNotFound(err) {
		t.Errorf("List(missing) error = %v", err)
	}
	if _, err := client.List(ctx, "/user/stor/a.txt"); !errors.Is(err, common.ErrNotDirectory) {
		t.Errorf("List(file) error = %v", err)
	}

	rootList, err := client.List(ctx, "/")
	if err != nil || len(rootList) != 1 || rootList[0].Path != "/user" {
		t.Errorf("List(/) = %v, %v", rootList, err)
	}
}

func TestPutMetadata(t *testing.T) {
	ctx := context.Background()
	client := New()
	_ = client.Put(ctx, "/f", strings.NewReader("x"), map[string]string{"m-a": "1", "m-b": "2"})

	err := client.PutMetadata(ctx, "/f", common.MetadataUpdate{
		Set:    map[string]string{"m-c": "3"},
		Remove: []string{"m-a"},
	})
	if err != nil {
		t.Fatalf("PutMetadata() returned error: %v", err)
	}

	info, _ := client.Head(ctx, "/f")
	if _, ok := info.Metadata["m-a"]; ok || info.Metadata["m-b"] != "2" || info.Metadata["m-c"] != "3" {
		t.Errorf("metadata after update = %v", info.Metadata)
	}

	if err := client.PutMetadata(ctx, "/missing", common.MetadataUpdate{}); !common.IsNotFound(err) {
		t.Errorf("PutMetadata(missing) error = %v", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	client := New()
	_ = client.Put(ctx, "/d/f", strings.NewReader("x"), nil)

	err := client.Delete(ctx, "/d")
	if !errors.Is(err, common.ErrDirectoryNotEmpty) {
		t.Errorf("Delete(non-empty) error = %v", err)
	}
	if common.StatusCode(err) != http.StatusConflict {
		t.Errorf("Delete(non-empty) status = %d", common.StatusCode(err))
	}

	if err := client.Delete(ctx, "/d/f"); err != nil {
		t.Fatalf("Delete(file) error = %v", err)
	}
	if err := client.Delete(ctx, "/d"); err != nil {
		t.Fatalf("Delete(empty dir) error = %v", err)
	}
	if err := client.Delete(ctx, "/d"); !common.IsNotFound(err) {
		t.Errorf("Delete(missing) error = %v", err)
	}
	if err := client.Delete(ctx, "/"); err == nil {
		t.Error("Delete(/) should fail")
	}
}

func TestMove(t *testing.T) {
	ctx := context.Background()
	client := New()
	_ = client.Put(ctx, "/src/a", strings.NewReader("a"), nil)
	_ = client.Put(ctx, "/src/sub/b", strings.NewReader("b"), nil)

	if err := client.Move(ctx, "/src", "/dst/moved"); err != nil {
		t.Fatalf("Move() error = %v", err)
	}

	for _, p := range []string{"/dst/moved/a", "/dst/moved/sub/b"} {
		if _, err := client.Head(ctx, p); err != nil {
			t.Errorf("Head(%s) after move = %v", p, err)
		}
	}
	if _, err := client.Head(ctx, "/src/a"); !common.IsNotFound(err) {
		t.Errorf("source still present after move")
	}

	if err := client.Move(ctx, "/dst", "/dst/moved/inner"); err == nil {
		t.Error("moving a directory into itself should fail")
	}
	if err := client.Move(ctx, "/missing", "/x"); !common.IsNotFound(err) {
		t.Errorf("Move(missing) error = %v", err)
	}
}

func TestLink(t *testing.T) {
	ctx := context.Background()
	client := New()
	_ = client.Put(ctx, "/a", strings.NewReader("content"), map[string]string{"m-x": "1"})

	if err := client.Link(ctx, "/b/link", "/a"); err != nil {
		t.Fatalf("Link() error = %v", err)
	}

	reader, err := client.Get(ctx, "/b/link")
	if err != nil {
		t.Fatalf("Get(link) error = %v", err)
	}
	data, _ := io.ReadAll(reader)
	if string(data) != "content" {
		t.Errorf("link content = %q", data)
	}

	_ = client.PutDirectory(ctx, "/dir")
	if err := client.Link(ctx, "/c", "/dir"); !errors.Is(err, common.ErrIsDirectory) {
		t.Errorf("Link(dir) error = %v", err)
	}
}

func TestOpenRange(t *testing.T) {
	ctx := context.Background()
	client := New()
	_ = client.Put(ctx, "/f", strings.NewReader("0123456789"), nil)

	rr, err := client.OpenRange(ctx, "/f", 4)
	if err != nil {
		t.Fatalf("OpenRange() error = %v", err)
	}
	defer rr.Close()
	if rr.Offset() != 4 || rr.Length() != 6 {
		t.Errorf("Offset/Length = %d/%d, want 4/6", rr.Offset(), rr.Length())
	}
	data, _ := io.ReadAll(rr)
	if string(data) != "456789" {
		t.Errorf("range content = %q", data)
	}

	end, err := client.OpenRange(ctx, "/f", 10)
	if err != nil || end.Length() != 0 {
		t.Errorf("OpenRange(size) = %v, %v", end, err)
	}

	_, err = client.OpenRange(ctx, "/f", 11)
	if common.StatusCode(err) != http.StatusRequestedRangeNotSatisfiable {
		t.Errorf("OpenRange(past end) error = %v", err)
	}
}

func TestSignURL(t *testing.T) {
	ctx := context.Background()
	client := New()
	_ = client.Configure(map[string]string{"baseURL": "http://gw", "signingKey": "key"})

	signed, err := client.SignURL(ctx, "/user/stor/a", "GET", time.Hour)
	if err != nil {
		t.Fatalf("SignURL() error = %v", err)
	}
	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	if u.Path != "/user/stor/a" {
		t.Errorf("signed path = %q", u.Path)
	}
	if err := client.Signer().Verify("/user/stor/a", "GET", u.Query()); err != nil {
		t.Errorf("Verify() = %v", err)
	}
}

func TestContextAndClose(t *testing.T) {
	client := New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Head(ctx, "/"); !errors.Is(err, context.Canceled) {
		t.Errorf("Head(canceled) error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := client.Head(context.Background(), "/"); !errors.Is(err, common.ErrClientClosed) {
		t.Errorf("Head after Close error = %v", err)
	}
	if client.TotalCalls() != 1 {
		t.Errorf("TotalCalls() = %d, want 1", client.TotalCalls())
	}
}

func TestConformance(t *testing.T) {
	suite := &clienttest.Suite{Client: New()}
	suite.Run(t)
}
