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

package vfs

// WritePolicy decides whether a path may be written by callers.
type WritePolicy interface {
	IsWriteable(name PathName, home string) bool
}

// WritePolicyFunc adapts a function to WritePolicy.
type WritePolicyFunc func(name PathName, home string) bool

// IsWriteable calls f.
func (f WritePolicyFunc) IsWriteable(name PathName, home string) bool {
	return f(name, home)
}

// HomeWritePolicy follows the Manta home layout: the root and the home
// directory itself are read-only and only the listed children of home are
// writeable. Paths further down are reported as not writeable.
type HomeWritePolicy struct {
	WriteableDirs []string
}

// DefaultWritePolicy allows writes to <home>/public and <home>/stor.
func DefaultWritePolicy() WritePolicy {
	return HomeWritePolicy{WriteableDirs: []string{"public", "stor"}}
}

// IsWriteable implements WritePolicy.
func (p HomeWritePolicy) IsWriteable(name PathName, home string) bool {
	path := name.Path()
	if path == Separator || path == home {
		return false
	}
	for _, dir := range p.WriteableDirs {
		if path == Normalize(home+Separator+dir) {
			return true
		}
	}
	return false
}

// AllowAll reports every path except the root as writeable.
var AllowAll WritePolicy = WritePolicyFunc(func(name PathName, _ string) bool {
	return !name.IsRoot()
})
