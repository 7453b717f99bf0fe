// Package persistence provides an in-memory StateRepository for tests
// and the demo CLI. The production implementation is the sqlite
// subpackage.
package persistence

import (
	"context"
	"sync"

	"github.com/vistagrid/vistagrid/internal/domain/repository"
)

type memoryEntry struct {
	value   []byte
	purpose repository.Purpose
}

// MemoryStateRepository keeps state in process memory.
type MemoryStateRepository struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

var _ repository.StateRepository = (*MemoryStateRepository)(nil)

// NewMemoryStateRepository creates an empty repository.
func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{entries: make(map[string]memoryEntry)}
}

// Store implements repository.StateRepository.
func (r *MemoryStateRepository) Store(_ context.Context, key string, value []byte, purpose repository.Purpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = memoryEntry{value: append([]byte(nil), value...), purpose: purpose}
	return nil
}

// Retrieve implements repository.StateRepository.
func (r *MemoryStateRepository) Retrieve(_ context.Context, key string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Remove implements repository.StateRepository.
func (r *MemoryStateRepository) Remove(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	return nil
}
