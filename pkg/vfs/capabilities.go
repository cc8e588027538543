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

import "sort"

// Capability names an operation a filesystem may support.
type Capability string

const (
	CapAttributes        Capability = "attributes"
	CapCreate            Capability = "create"
	CapDelete            Capability = "delete"
	CapGetType           Capability = "get-type"
	CapGetLastModified   Capability = "get-last-modified"
	CapListChildren      Capability = "list-children"
	CapReadContent       Capability = "read-content"
	CapRename            Capability = "rename"
	CapRandomAccessRead  Capability = "random-access-read"
	CapURI               Capability = "uri"
	CapWriteContent      Capability = "write-content"
	CapAppendContent     Capability = "append-content"
	CapRandomAccessWrite Capability = "random-access-write"
	CapTruncate          Capability = "truncate"
)

// CapabilitySet is an immutable set of capabilities.
type CapabilitySet struct {
	caps map[Capability]struct{}
}

var supported = NewCapabilitySet(
	CapAttributes,
	CapCreate,
	CapDelete,
	CapGetType,
	CapGetLastModified,
	CapListChildren,
	CapReadContent,
	CapRename,
	CapRandomAccessRead,
	CapURI,
	CapWriteContent,
)

// NewCapabilitySet builds a set from caps.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := CapabilitySet{caps: make(map[Capability]struct{}, len(caps))}
	for _, c := range caps {
		set.caps[c] = struct{}{}
	}
	return set
}

// Capabilities returns the operations supported by every session. Append,
// random access write and truncate are deliberately absent.
func Capabilities() CapabilitySet {
	return supported
}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s.caps[c]
	return ok
}

// List returns the capabilities in sorted order.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s.caps))
	for c := range s.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
