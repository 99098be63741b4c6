// Package cache builds vector indexes for documents and reuses persisted ones.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"pdfrag/internal/domain"
	"pdfrag/internal/vectorindex"
	"pdfrag/internal/vectorstore"
)

// KeyMode selects how cache keys are derived from a document path.
type KeyMode string

const (
	// KeyByName keys by file base name only. Editing a PDF in place keeps
	// serving the old index until it is invalidated.
	KeyByName KeyMode = "name"
	// KeyByContent adds a hash of the file bytes to the key.
	KeyByContent KeyMode = "content"
)

var tracer = otel.Tracer("pdfrag/cache")

// Options wires an IndexCache.
type Options struct {
	Store    vectorstore.Storage
	Loader   domain.Loader
	Chunker  domain.Chunker
	Embedder domain.Embedder
	KeyMode  KeyMode
	Logger   *slog.Logger
}

// IndexCache returns the vector index for a document, building and persisting
// it on a miss. Concurrent requests for the same key share one build, which
// is not canceled when one of the waiting callers gives up.
type IndexCache struct {
	store    vectorstore.Storage
	loader   domain.Loader
	chunker  domain.Chunker
	embedder domain.Embedder
	keyMode  KeyMode
	logger   *slog.Logger
	group    singleflight.Group

	// per-key locks around load, build and persist
	locks sync.Map
}

func New(opts Options) *IndexCache {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.KeyMode == "" {
		opts.KeyMode = KeyByName
	}
	return &IndexCache{
		store:    opts.Store,
		loader:   opts.Loader,
		chunker:  opts.Chunker,
		embedder: opts.Embedder,
		keyMode:  opts.KeyMode,
		logger:   opts.Logger,
	}
}

// Embedder returns the embedder used to build indexes.
func (c *IndexCache) Embedder() domain.Embedder { return c.embedder }

// Key returns the cache key for the document at path.
func (c *IndexCache) Key(path string) (string, error) {
	base := filepath.Base(path)
	if c.keyMode != KeyByContent {
		return "embeddings_" + base + ".idx", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrIngestion, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("%w: hashing %s: %v", domain.ErrIngestion, path, err)
	}
	return "embeddings_" + base + "-" + hex.EncodeToString(h.Sum(nil))[:16] + ".idx", nil
}

// GetOrBuild returns the cached index for path, building it when absent or
// unusable.
func (c *IndexCache) GetOrBuild(ctx context.Context, path string) (*vectorindex.Index, error) {
	key, err := c.Key(path)
	if err != nil {
		return nil, err
	}
	return c.wait(ctx, key, key, func(bctx context.Context) (*vectorindex.Index, error) {
		return c.getOrBuild(bctx, key, path)
	})
}

// Rebuild builds the index for path and overwrites any cached entry. A load
// or build already running for the same key finishes first.
func (c *IndexCache) Rebuild(ctx context.Context, path string) (*vectorindex.Index, error) {
	key, err := c.Key(path)
	if err != nil {
		return nil, err
	}
	return c.wait(ctx, "rebuild:"+key, key, func(bctx context.Context) (*vectorindex.Index, error) {
		return c.build(bctx, key, path)
	})
}

// wait joins the flight named flight, running fn under the lock for key.
// The flight runs detached from ctx; a caller whose ctx ends returns alone.
func (c *IndexCache) wait(ctx context.Context, flight, key string, fn func(context.Context) (*vectorindex.Index, error)) (*vectorindex.Index, error) {
	bctx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flight, func() (any, error) {
		unlock := c.lock(key)
		defer unlock()
		return fn(bctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("shared index build", "key", key)
		}
		return res.Val.(*vectorindex.Index), nil
	}
}

func (c *IndexCache) lock(key string) func() {
	v, _ := c.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Invalidate removes the cached index for path.
func (c *IndexCache) Invalidate(ctx context.Context, path string) error {
	key, err := c.Key(path)
	if err != nil {
		return err
	}
	unlock := c.lock(key)
	defer unlock()
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: invalidate %s: %v", domain.ErrIndex, key, err)
	}
	c.logger.Info("cache entry removed", "key", key)
	return nil
}

func (c *IndexCache) getOrBuild(ctx context.Context, key, path string) (*vectorindex.Index, error) {
	ctx, span := tracer.Start(ctx, "cache.load")
	span.SetAttributes(attribute.String("cache.key", key))
	idx, err := c.store.Load(ctx, key)
	span.End()

	switch {
	case err == nil && idx.Embedder() == c.embedder.Name():
		c.logger.Debug("cache hit", "key", key, "passages", idx.Len())
		return idx, nil
	case err == nil:
		c.logger.Warn("cached index built by another embedder, rebuilding",
			"key", key, "cached", idx.Embedder(), "active", c.embedder.Name())
	case errors.Is(err, vectorstore.ErrNotFound):
		c.logger.Debug("cache miss", "key", key)
	case errors.Is(err, domain.ErrIndex):
		c.logger.Warn("cached index unusable, rebuilding", "key", key, "err", err)
	default:
		return nil, fmt.Errorf("%w: load %s: %v", domain.ErrIndex, key, err)
	}
	return c.build(ctx, key, path)
}

func (c *IndexCache) build(ctx context.Context, key, path string) (idx *vectorindex.Index, err error) {
	ctx, span := tracer.Start(ctx, "cache.build")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	doc, err := c.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	passages, err := c.chunker.Chunk(ctx, doc)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		return nil, fmt.Errorf("%w: %s produced no passages", domain.ErrIngestion, filepath.Base(path))
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if errors.Is(err, domain.ErrEmbedding) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
	}
	if len(vectors) != len(passages) {
		return nil, fmt.Errorf("%w: got %d vectors for %d passages", domain.ErrEmbedding, len(vectors), len(passages))
	}

	idx, err = vectorindex.Build(c.embedder.Name(), passages, vectors)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("index.passages", idx.Len()), attribute.Int("index.dimension", idx.Dimension()))

	if err := c.store.Save(ctx, key, idx); err != nil {
		c.logger.Warn("failed to persist index", "key", key, "err", err)
	} else {
		c.logger.Info("index built", "key", key, "passages", idx.Len(), "embedder", idx.Embedder())
	}
	return idx, nil
}
