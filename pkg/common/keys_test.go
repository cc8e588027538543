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

import "testing"

func TestCleanPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "/"},
		{"/", "/"},
		{"a/b", "/a/b"},
		{"/a//b/", "/a/b"},
		{"/a/../b", "/b"},
	}

	for _, tt := range tests {
		if got := CleanPath(tt.input); got != tt.want {
			t.Errorf("CleanPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestKeyMapper(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		path    string
		object  string
		dir     string
		mapBack string
	}{
		{"no prefix", "", "/user/stor/f.txt", "user/stor/f.txt", "user/stor/f.txt/", "/user/stor/f.txt"},
		{"no prefix root", "", "/", "", "", "/"},
		{"prefix", "/mnt/data/", "/user/stor", "mnt/data/user/stor", "mnt/data/user/stor/", "/user/stor"},
		{"prefix root", "mnt", "/", "mnt/", "mnt/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewKeyMapper(tt.prefix)
			if got := m.ObjectKey(tt.path); got != tt.object {
				t.Errorf("ObjectKey(%q) = %q, want %q", tt.path, got, tt.object)
			}
			if got := m.DirKey(tt.path); got != tt.dir {
				t.Errorf("DirKey(%q) = %q, want %q", tt.path, got, tt.dir)
			}
			if got := m.Path(tt.dir); got != tt.mapBack {
				t.Errorf("Path(%q) = %q, want %q", tt.dir, got, tt.mapBack)
			}
		})
	}
}

func TestIsDirKey(t *testing.T) {
	if !IsDirKey("a/b/") {
		t.Error("a/b/ should be a directory key")
	}
	if IsDirKey("a/b") {
		t.Error("a/b should not be a directory key")
	}
}
