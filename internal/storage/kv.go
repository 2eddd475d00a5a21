// Package storage persists normalized analysis results in per-identity
// local storage with bounded retention. The persistence medium is an
// injected key-value port so the store works the same over an on-disk
// directory or an in-memory fake.
package storage

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var errWriteDisabled = errors.New("medium is not writable")

// KeyValue is the persistence port the store writes through. Values are
// JSON-encoded strings. Get reports presence explicitly so a missing key
// is not an error.
type KeyValue interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	Keys(prefix string) ([]string, error)
}

// MemoryKV is an in-memory KeyValue, used by tests and as a scratch
// medium. FailWrites makes every Set fail, for exercising the
// storage-unavailable path.
type MemoryKV struct {
	mu         sync.RWMutex
	data       map[string]string
	FailWrites bool
}

// NewMemoryKV creates an empty in-memory medium
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

// Get returns the value for key and whether it was present
func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores value under key
func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errWriteDisabled
	}
	m.data[key] = value
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (m *MemoryKV) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys returns all keys starting with prefix, sorted
func (m *MemoryKV) Keys(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored keys
func (m *MemoryKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
