package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store used by tests and the REPL's dry-run
// mode. Values survive only as long as the process.
type Memory struct {
	mu      sync.RWMutex
	strings map[string]string
	lists   map[string][]string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		strings: make(map[string]string),
		lists:   make(map[string][]string),
	}
}

// GetString returns the value for key, or "" if the key is absent
func (m *Memory) GetString(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.strings[key], nil
}

// SetString writes the value for key
func (m *Memory) SetString(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings[key] = value
	return nil
}

// GetStringList returns a copy of the list for key, or nil if absent
func (m *Memory) GetStringList(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	values, ok := m.lists[key]
	if !ok {
		return nil, nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out, nil
}

// SetStringList writes a copy of the list for key
func (m *Memory) SetStringList(_ context.Context, key string, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]string, len(values))
	copy(stored, values)
	m.lists[key] = stored
	return nil
}

// Close is a no-op for the in-memory store
func (m *Memory) Close() error {
	return nil
}
