package store

import (
	"context"
	"sync"

	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
)

// MemoryStates is an in process drivers.StateStore
type MemoryStates struct {
	mu     sync.RWMutex
	states map[drivers.StateKey]interface{}
}

func NewMemoryStates() *MemoryStates {
	return &MemoryStates{states: make(map[drivers.StateKey]interface{})}
}

func (m *MemoryStates) SaveState(ctx context.Context, key drivers.StateKey, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[key] = value
	return nil
}

func (m *MemoryStates) LoadState(ctx context.Context, key drivers.StateKey) (interface{}, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.states[key]
	return v, ok, nil
}
