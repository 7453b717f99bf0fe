package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vistagrid/vistagrid/internal/domain/repository"
	"github.com/vistagrid/vistagrid/internal/logging"
)

type stateRepo struct {
	db *sql.DB
}

// NewStateRepository creates a SQLite-backed StateRepository.
func NewStateRepository(db *sql.DB) repository.StateRepository {
	return &stateRepo{db: db}
}

// Store implements repository.StateRepository.
func (r *stateRepo) Store(ctx context.Context, key string, value []byte, purpose repository.Purpose) error {
	log := logging.FromContext(ctx)
	if key == "" {
		return errors.New("state key cannot be empty")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workstation_state (key, value, purpose, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			purpose = excluded.purpose,
			updated_at = excluded.updated_at`,
		key, value, string(purpose), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store state %q: %w", key, err)
	}

	log.Debug().Str("key", key).Str("purpose", string(purpose)).Int("bytes", len(value)).Msg("state stored")
	return nil
}

// Retrieve implements repository.StateRepository.
func (r *stateRepo) Retrieve(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM workstation_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve state %q: %w", key, err)
	}
	return value, nil
}

// Remove implements repository.StateRepository.
func (r *stateRepo) Remove(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM workstation_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove state %q: %w", key, err)
	}
	return nil
}
