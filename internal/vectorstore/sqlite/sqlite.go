// Package sqlite stores indexes as rows of a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"pdfrag/internal/vectorindex"
	"pdfrag/internal/vectorstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS indexes (
	key        TEXT PRIMARY KEY,
	embedder   TEXT NOT NULL,
	dimension  INTEGER NOT NULL,
	passages   INTEGER NOT NULL,
	payload    BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Storage keeps one row per cache key. Each save replaces the row in a
// single statement, so a reader sees either the old or the new index.
type Storage struct {
	db   *sql.DB
	path string
}

var _ vectorstore.Storage = (*Storage)(nil)

// NewStorage opens (or creates) the database at path. ":memory:" is accepted.
func NewStorage(path string) (*Storage, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Storage{db: db, path: path}, nil
}

// Path returns the database path.
func (s *Storage) Path() string { return s.path }

func (s *Storage) Close() error { return s.db.Close() }

func (s *Storage) Load(ctx context.Context, key string) (*vectorindex.Index, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM indexes WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vectorstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading index %s: %w", key, err)
	}
	return vectorindex.Decode(payload)
}

func (s *Storage) Save(ctx context.Context, key string, idx *vectorindex.Index) error {
	payload, err := idx.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO indexes (key, embedder, dimension, passages, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			embedder = excluded.embedder,
			dimension = excluded.dimension,
			passages = excluded.passages,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, key, idx.Embedder(), idx.Dimension(), idx.Len(), payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("saving index %s: %w", key, err)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM indexes WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting index %s: %w", key, err)
	}
	return nil
}
