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

// Package vfs exposes an object store as a hierarchical virtual filesystem.
//
// A Session owns one store client and serializes every network-touching node
// operation through a single mutex. Nodes are created lazily from path names
// and attach on first use by issuing a HEAD request; a missing object is a
// normal state (Imaginary) rather than an error. Directory listings of the
// root are synthesized from the configured home directory, custom attributes
// are namespaced with the "m-" metadata prefix, and random access reads are
// served by ranged GET requests that are reopened on every seek.
//
// Paths are addressed with the manta scheme:
//
//	manta:///user/stor/reports/2025.csv
package vfs
