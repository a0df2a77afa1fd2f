package storage

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Values do not survive a restart; intended
// for tests and local development.
type Memory struct {
	mu   sync.Mutex
	vals map[string]int64
}

func NewMemory() *Memory {
	return &Memory{vals: map[string]int64{}}
}

func (m *Memory) GetInt64(_ context.Context, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	return v, ok, nil
}

func (m *Memory) SetInt64(_ context.Context, key string, v int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = v
	return nil
}

func (m *Memory) Close() error { return nil }
