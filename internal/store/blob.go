package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BlobStore holds uploaded audio payloads in their own sqlite file, apart
// from the structured state. OpenBlob is open-or-reuse: callers asking for
// the same path share a single handle, so the file is only ever opened once
// per process.
type BlobStore struct {
	path   string
	db     *sql.DB
	logger zerolog.Logger
}

var (
	blobMu      sync.Mutex
	blobHandles = map[string]*BlobStore{}
)

// OpenBlob opens (creating if needed) the asset file at path, or returns the
// already-open handle for it.
func OpenBlob(path string, logger zerolog.Logger) (*BlobStore, error) {
	blobMu.Lock()
	defer blobMu.Unlock()

	if bs, ok := blobHandles[path]; ok {
		return bs, nil
	}

	db, err := openSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open assets db: %w", err)
	}
	if err := RunMigrations(db, "assets", "up"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate assets db: %w", err)
	}

	bs := &BlobStore{path: path, db: db, logger: logger}
	blobHandles[path] = bs
	return bs, nil
}

// Get returns the payload stored under key, or ("", nil, nil) when absent.
func (b *BlobStore) Get(ctx context.Context, key string) (string, []byte, error) {
	var (
		mime string
		data []byte
	)
	err := b.db.QueryRowContext(ctx, `SELECT mime, data FROM assets WHERE key = ?`, key).Scan(&mime, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("get asset %s: %w", key, err)
	}
	return mime, data, nil
}

// Put overwrites the payload stored under key.
func (b *BlobStore) Put(ctx context.Context, key, mime string, data []byte) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO assets (key, mime, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET mime = excluded.mime, data = excluded.data, updated_at = excluded.updated_at`,
		key, mime, data, now)
	if err != nil {
		return fmt.Errorf("put asset %s: %w", key, err)
	}
	return nil
}

// Delete removes one asset. Missing keys are not an error.
func (b *BlobStore) Delete(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM assets WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete asset %s: %w", key, err)
	}
	return nil
}

// Clear removes every asset. Only the full reset uses this.
func (b *BlobStore) Clear(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM assets`); err != nil {
		return fmt.Errorf("clear assets: %w", err)
	}
	return nil
}

// Keys lists the stored asset keys.
func (b *BlobStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT key FROM assets ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan asset key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close releases the shared handle and forgets it, so a later OpenBlob
// reopens the file.
func (b *BlobStore) Close() error {
	blobMu.Lock()
	delete(blobHandles, b.path)
	blobMu.Unlock()
	return b.db.Close()
}
