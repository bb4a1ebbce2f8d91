// Package storage holds the byte-level persistence adapters a note store
// saves its namespaces through.
package storage

import (
	"context"
	"slices"
	"sync"
)

// Memory keeps namespaces in a map. It is the adapter for tests and for
// throwaway sessions.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
	// Saves counts Save calls per namespace.
	saves map[string]int
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte), saves: make(map[string]int)}
}

func (m *Memory) Load(ctx context.Context, namespace string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.data[namespace]), nil
}

func (m *Memory) Save(ctx context.Context, namespace string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[namespace] = slices.Clone(data)
	m.saves[namespace]++
	return nil
}

// SaveCount reports how many times namespace has been saved.
func (m *Memory) SaveCount(namespace string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[namespace]
}
