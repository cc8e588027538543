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
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-mantavfs/pkg/common"
	"github.com/jeremyhahn/go-mantavfs/pkg/version"
	"github.com/jeremyhahn/go-mantavfs/pkg/vfs"
)

func sampleEntries() []*vfs.FileInfo {
	modified := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return []*vfs.FileInfo{
		vfs.NewFileInfo(&common.ObjectInfo{Path: "/user/stor/a.txt", Size: 2048, LastModified: modified, ContentType: "text/plain", ETag: "abc"}, true),
		vfs.NewFileInfo(&common.ObjectInfo{Path: "/user/stor/dir", Directory: true, LastModified: modified}, true),
	}
}

func TestFormatOperationResult(t *testing.T) {
	ok := &OperationResult{Success: true, Message: "done"}
	if got := FormatOperationResult(ok, FormatText); got != "done\n" {
		t.Errorf("text = %q", got)
	}
	if got := FormatOperationResult(&OperationResult{Success: true}, FormatText); got != "Operation completed successfully\n" {
		t.Errorf("text without message = %q", got)
	}

	table := FormatOperationResult(ok, FormatTable)
	if !strings.Contains(table, "SUCCESS") || !strings.Contains(table, "done") {
		t.Errorf("table = %q", table)
	}

	var decoded OperationResult
	if err := json.Unmarshal([]byte(FormatOperationResult(ok, FormatJSON)), &decoded); err != nil {
		t.Fatalf("json output is not valid JSON: %v", err)
	}
	if !decoded.Success || decoded.Message != "done" {
		t.Errorf("json = %+v", decoded)
	}
}

func TestFormatError(t *testing.T) {
	err := errors.New("boom")
	if got := FormatError(err, FormatText); got != "Error: boom\n" {
		t.Errorf("text = %q", got)
	}
	if got := FormatError(err, FormatTable); !strings.Contains(got, "FAILED") || !strings.Contains(got, "boom") {
		t.Errorf("table = %q", got)
	}
	if got := FormatError(err, FormatJSON); !strings.Contains(got, `"error": "boom"`) {
		t.Errorf("json = %q", got)
	}
}

func TestFormatListResult(t *testing.T) {
	entries := sampleEntries()

	text := FormatListResult("/user/stor", entries, FormatText)
	if !strings.Contains(text, "a.txt") || !strings.Contains(text, "2.0 KiB") || !strings.Contains(text, "dir/") {
		t.Errorf("text = %q", text)
	}

	table := FormatListResult("/user/stor", entries, FormatTable)
	if !strings.Contains(table, "Total: 2 entries") || !strings.Contains(table, "2025-01-02 03:04:05") {
		t.Errorf("table = %q", table)
	}

	var decoded struct {
		Path    string `json:"path"`
		Count   int    `json:"count"`
		Entries []struct {
			Name  string `json:"name"`
			IsDir bool   `json:"isDir"`
		} `json:"entries"`
	}
	if err := json.Unmarshal([]byte(FormatListResult("/user/stor", entries, FormatJSON)), &decoded); err != nil {
		t.Fatalf("json output is not valid JSON: %v", err)
	}
	if decoded.Path != "/user/stor" || decoded.Count != 2 || decoded.Entries[0].Name != "a.txt" || !decoded.Entries[1].IsDir {
		t.Errorf("json = %+v", decoded)
	}

	if got := FormatListResult("/empty", nil, FormatText); got != "No entries found\n" {
		t.Errorf("empty text = %q", got)
	}
}

func TestFormatStatResult(t *testing.T) {
	file := sampleEntries()[0]

	text := FormatStatResult(file, FormatText)
	for _, want := range []string{"Path: /user/stor/a.txt", "Type: file", "Content Type: text/plain", "ETag: abc"} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q: %q", want, text)
		}
	}

	dir := FormatStatResult(sampleEntries()[1], FormatTable)
	if !strings.Contains(dir, "directory") || strings.Contains(dir, "ETag") {
		t.Errorf("table = %q", dir)
	}

	if got := FormatStatResult(file, FormatJSON); !strings.Contains(got, `"path": "/user/stor/a.txt"`) {
		t.Errorf("json = %q", got)
	}
}

func TestFormatAttributesResult(t *testing.T) {
	attrs := map[string]string{"b": "2", "a": "1"}
	if got := FormatAttributesResult("/f", attrs, FormatText); got != "a=1\nb=2\n" {
		t.Errorf("text = %q", got)
	}
	if got := FormatAttributesResult("/f", nil, FormatText); got != "No attributes\n" {
		t.Errorf("empty text = %q", got)
	}
	if got := FormatAttributesResult("/f", nil, FormatJSON); !strings.Contains(got, `"attributes": {}`) {
		t.Errorf("empty json = %q", got)
	}
	if got := FormatAttributesResult("/f", attrs, FormatTable); !strings.Contains(got, "Attribute") {
		t.Errorf("table = %q", got)
	}
}

func TestFormatVersionResult(t *testing.T) {
	info := version.GetInfo()
	if got := FormatVersionResult(info, FormatText); !strings.HasPrefix(got, "mantavfs "+info.Version) {
		t.Errorf("text = %q", got)
	}
	if got := FormatVersionResult(info, FormatJSON); !strings.Contains(got, `"go_version"`) {
		t.Errorf("json = %q", got)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.size); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestWrapText(t *testing.T) {
	if got := wrapText("short", 10); len(got) != 1 {
		t.Errorf("wrapText(short) = %v", got)
	}
	if got := wrapText("aaaaaaaaaabbbbb", 10); len(got) != 2 || got[1] != "bbbbb" {
		t.Errorf("hard wrap = %v", got)
	}
	if got := wrapText("one two three four", 9); strings.Join(got, "|") != "one two|three|four" {
		t.Errorf("word wrap = %v", got)
	}
}
