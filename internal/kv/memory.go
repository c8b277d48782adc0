package kv

import (
	"context"
	"sync"
)

// Memory is a process-local Store. It backs tests and dry runs.
type Memory struct {
	mu       sync.RWMutex
	items    map[string][]byte
	watchers watchers
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return clone(v), ok, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	old := m.items[key]
	m.items[key] = clone(value)
	m.mu.Unlock()

	m.watchers.publish(Change{Key: key, Old: old, New: clone(value)})
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	old, ok := m.items[key]
	delete(m.items, key)
	m.mu.Unlock()

	if ok {
		m.watchers.publish(Change{Key: key, Old: old})
	}
	return nil
}

func (m *Memory) Watch(fn func(Change)) func() {
	return m.watchers.add(fn)
}

func (m *Memory) Close() error { return nil }
