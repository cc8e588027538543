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

package common

import (
	"io"
	"strings"
	"testing"
	"time"
)

func TestObjectInfoClone(t *testing.T) {
	orig := &ObjectInfo{
		Path:         "/user/stor/a.txt",
		Size:         3,
		LastModified: time.Now(),
		MD5:          []byte{1, 2, 3},
		Metadata:     map[string]string{"m-color": "blue"},
	}

	c := orig.Clone()
	c.Metadata["m-color"] = "red"
	c.MD5[0] = 9

	if orig.Metadata["m-color"] != "blue" {
		t.Errorf("clone shares metadata map with original")
	}
	if orig.MD5[0] != 1 {
		t.Errorf("clone shares md5 slice with original")
	}

	var nilInfo *ObjectInfo
	if nilInfo.Clone() != nil {
		t.Errorf("Clone of nil should be nil")
	}
}

func TestMetadataUpdateApply(t *testing.T) {
	base := map[string]string{"m-a": "1", "m-b": "2"}
	update := MetadataUpdate{
		Set:    map[string]string{"m-c": "3", "m-a": "10"},
		Remove: []string{"m-b"},
	}

	got := update.Apply(base)

	if got["m-a"] != "10" || got["m-c"] != "3" {
		t.Errorf("Apply() = %v, missing set keys", got)
	}
	if _, ok := got["m-b"]; ok {
		t.Errorf("Apply() = %v, removed key still present", got)
	}
	if base["m-a"] != "1" {
		t.Errorf("Apply() modified its input")
	}

	empty := MetadataUpdate{Set: map[string]string{"m-x": "y"}}.Apply(nil)
	if empty["m-x"] != "y" {
		t.Errorf("Apply(nil) = %v", empty)
	}
}

func TestRangeReader(t *testing.T) {
	rr := NewRangeReader(io.NopCloser(strings.NewReader("world")), 6, 5)
	if rr.Offset() != 6 || rr.Length() != 5 {
		t.Fatalf("Offset/Length = %d/%d, want 6/5", rr.Offset(), rr.Length())
	}
	data, err := io.ReadAll(rr)
	if err != nil || string(data) != "world" {
		t.Errorf("ReadAll = %q, %v", data, err)
	}

	empty := EmptyRange(42)
	n, err := empty.Read(make([]byte, 4))
	if n != 0 || err != io.EOF {
		t.Errorf("EmptyRange.Read = %d, %v; want 0, EOF", n, err)
	}
	if empty.Length() != 0 || empty.Offset() != 42 {
		t.Errorf("EmptyRange Offset/Length = %d/%d", empty.Offset(), empty.Length())
	}
}
