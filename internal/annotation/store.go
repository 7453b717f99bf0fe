// Package annotation defines the annotation-store collaborator
// contract consumed during layout transitions, plus an in-memory
// implementation used by tests and the demo CLI.
package annotation

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/vistagrid/vistagrid/internal/domain/entity"
)

// Annotation is a user-authored graphical marker tied to the viewport
// and image it was captured on. Payload is opaque tool state.
type Annotation struct {
	ID         string
	ToolName   string
	ViewportID entity.ViewportID
	Payload    json.RawMessage
}

// Store is the external annotation store contract.
type Store interface {
	// All returns every annotation currently known to the store.
	All(ctx context.Context) ([]Annotation, error)
	// RemoveAll clears the store.
	RemoveAll(ctx context.Context) error
	// Add inserts an annotation against the given display surface.
	Add(ctx context.Context, ann Annotation, surface entity.SurfaceRef) error
}

// MemoryStore is a Store kept entirely in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	items []Annotation
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// All implements Store.
func (s *MemoryStore) All(_ context.Context) ([]Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Annotation(nil), s.items...), nil
}

// RemoveAll implements Store.
func (s *MemoryStore) RemoveAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	return nil
}

// Add implements Store. A missing ID gets a generated one.
func (s *MemoryStore) Add(_ context.Context, ann Annotation, _ entity.SurfaceRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ann.ID == "" {
		ann.ID = uuid.NewString()
	}
	s.items = append(s.items, ann)
	return nil
}

// Count returns the number of stored annotations.
func (s *MemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
