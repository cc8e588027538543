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

// Package factory builds object store clients by backend name. Cloud
// backends register themselves from build-tagged files.
package factory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jeremyhahn/go-mantavfs/pkg/common"
)

// ClientCreator is a function that creates a configured store client.
type ClientCreator func(settings map[string]string) (common.Client, error)

var (
	registryMu     sync.RWMutex
	clientRegistry = make(map[string]ClientCreator)
)

// configurable is a store client that takes its settings after
// construction.
type configurable interface {
	common.Client
	Configure(settings map[string]string) error
}

// register adds a backend whose zero client comes from newClient.
func register[T configurable](backendType string, newClient func() T) {
	RegisterClient(backendType, func(settings map[string]string) (common.Client, error) {
		client := newClient()
		if err := client.Configure(settings); err != nil {
			return nil, &ConfigError{Backend: backendType, Err: err}
		}
		return client, nil
	})
}

// RegisterClient registers a client creator under backendType.
func RegisterClient(backendType string, creator ClientCreator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	clientRegistry[backendType] = creator
}

// NewClient creates a new store client for the given backend type.
func NewClient(backendType string, settings map[string]string) (common.Client, error) {
	registryMu.RLock()
	creator, exists := clientRegistry[backendType]
	registryMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownBackend, backendType, Backends())
	}
	if settings == nil {
		settings = map[string]string{}
	}
	return creator(settings)
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(clientRegistry))
	for name := range clientRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
