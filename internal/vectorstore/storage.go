// Package vectorstore persists built vector indexes under cache keys.
package vectorstore

import (
	"context"
	"errors"

	"pdfrag/internal/vectorindex"
)

// ErrNotFound is returned by Load when no index is stored under the key.
var ErrNotFound = errors.New("index not found")

// Storage persists vector indexes. Load returns ErrNotFound on a miss and an
// error wrapping domain.ErrIndex when the stored payload cannot be used.
type Storage interface {
	Load(ctx context.Context, key string) (*vectorindex.Index, error)
	Save(ctx context.Context, key string, idx *vectorindex.Index) error
	Delete(ctx context.Context, key string) error
	Close() error
}
