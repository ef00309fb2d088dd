// Package prefs persists view preferences in a small local key-value store.
package prefs

import (
	"fmt"
	"sync"
)

// KV is a string-keyed local store scoped to one user profile.
type KV interface {
	// Get returns the value stored under key and whether it exists.
	Get(key string) (string, bool, error)
	// Set writes all entries together.
	Set(entries map[string]string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the KV backend named by backend. For the file backend a
// corrupt file yields a usable store together with an error wrapping
// ErrCorrupt.
func Open(backend, path string) (KV, error) {
	switch backend {
	case BackendFile, "":
		k, err := NewFileKV(path)
		if k == nil {
			return nil, err
		}
		return k, err
	case BackendSQLite:
		k, err := NewSQLiteKV(path)
		if err != nil {
			return nil, err
		}
		return k, nil
	case BackendMemory:
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown prefs backend %q", backend)
	}
}

// MemoryKV keeps entries for the lifetime of the process.
type MemoryKV struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{m: make(map[string]string)}
}

func (k *MemoryKV) Get(key string) (string, bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	v, ok := k.m[key]
	return v, ok, nil
}

func (k *MemoryKV) Set(entries map[string]string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, v := range entries {
		k.m[key] = v
	}
	return nil
}

func (k *MemoryKV) Close() error { return nil }
