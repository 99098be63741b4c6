// Package file stores each index as one file in a directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pdfrag/internal/vectorindex"
	"pdfrag/internal/vectorstore"
)

// Storage writes indexes to <dir>/<key>. Writes go to a temporary file in the
// same directory and are renamed into place, so readers never see a partial file.
type Storage struct {
	dir string
}

var _ vectorstore.Storage = (*Storage)(nil)

// NewStorage creates the directory if needed.
func NewStorage(dir string) (*Storage, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Dir returns the cache directory.
func (s *Storage) Dir() string { return s.dir }

func (s *Storage) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid cache key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}

func (s *Storage) Load(_ context.Context, key string) (*vectorindex.Index, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, vectorstore.ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	idx, err := vectorindex.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return idx, nil
}

func (s *Storage) Save(_ context.Context, key string, idx *vectorindex.Index) (err error) {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	data, err := idx.MarshalBinary()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing index: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing index: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing index: %w", err)
	}
	if err = os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("replacing %s: %w", p, err)
	}
	return nil
}

func (s *Storage) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", p, err)
	}
	return nil
}

func (s *Storage) Close() error { return nil }
