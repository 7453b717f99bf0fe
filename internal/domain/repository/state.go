// Package repository defines persistence ports consumed by the
// workstation. Implementations live under internal/infrastructure.
package repository

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("repository: key not found")

// Purpose tags stored values for auditing and selective removal.
type Purpose string

const (
	PurposeLayoutState  Purpose = "layout-state"
	PurposeSyncSettings Purpose = "sync-settings"
)

// StateRepository is the opaque persistence contract: keyed blobs,
// tagged with a purpose. Encryption and audit semantics belong to the
// implementation, not to callers.
type StateRepository interface {
	Store(ctx context.Context, key string, value []byte, purpose Purpose) error
	Retrieve(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}
