package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// StructuredStore persists the small JSON slices (genres, scores, problems)
// under fixed keys. Every write is a full-value overwrite; readers treat a
// missing key as (nil, nil), mirroring how absence is handled everywhere else
// in the adapter.
type StructuredStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// OpenStructured opens (creating if needed) the structured state file and
// applies its migrations.
func OpenStructured(path string, logger zerolog.Logger) (*StructuredStore, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if err := RunMigrations(db, "state", "up"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate state db: %w", err)
	}
	return &StructuredStore{db: db, logger: logger}, nil
}

// Get returns the value stored under key, or (nil, nil) when absent.
func (s *StructuredStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Put overwrites the value stored under key.
func (s *StructuredStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Delete removes a single key. Missing keys are not an error.
func (s *StructuredStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Clear removes every key. Only the full reset uses this.
func (s *StructuredStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv`); err != nil {
		return fmt.Errorf("clear kv: %w", err)
	}
	return nil
}

func (s *StructuredStore) Close() error {
	return s.db.Close()
}
