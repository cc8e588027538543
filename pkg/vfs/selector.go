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

// Selector chooses which part of a tree an operation applies to.
type Selector int

const (
	// SelectSelf selects only the node itself.
	SelectSelf Selector = iota

	// SelectSelfAndChildren selects the node and its direct children.
	SelectSelfAndChildren

	// SelectAll selects the node and all of its descendants.
	SelectAll
)

// includes reports whether nodes depth levels below the starting node are
// selected.
func (s Selector) includes(depth int) bool {
	switch s {
	case SelectSelf:
		return depth == 0
	case SelectSelfAndChildren:
		return depth <= 1
	default:
		return true
	}
}

func (s Selector) String() string {
	switch s {
	case SelectSelf:
		return "self"
	case SelectSelfAndChildren:
		return "children"
	default:
		return "all"
	}
}

// ParseSelector converts "self", "children" or "all".
func ParseSelector(s string) (Selector, bool) {
	switch s {
	case "self", "":
		return SelectSelf, true
	case "children":
		return SelectSelfAndChildren, true
	case "all", "recursive":
		return SelectAll, true
	default:
		return SelectSelf, false
	}
}
