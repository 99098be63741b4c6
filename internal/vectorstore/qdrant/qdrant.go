// Package qdrant stores each index as a Qdrant collection, one point per
// passage. The collection is reached through an alias named after the cache
// key; every Save writes a new collection and moves the alias in one update.
//
// Collections use cosine distance, for which Qdrant normalizes stored
// vectors. A loaded index therefore holds unit vectors and its scores match
// the saved index only up to float rounding.
package qdrant

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"pdfrag/internal/domain"
	"pdfrag/internal/vectorindex"
	"pdfrag/internal/vectorstore"
)

const (
	DefaultHost   = "localhost"
	DefaultPort   = 6334
	DefaultPrefix = "pdfrag_"
)

// client is the part of *qdrant.Client the store uses.
type client interface {
	ListAliases(ctx context.Context) ([]*qdrant.AliasDescription, error)
	UpdateAliases(ctx context.Context, actions []*qdrant.AliasOperations) error
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Scroll(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	Close() error
}

type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
	// Prefix is prepended to collection names.
	Prefix string
}

// Storage persists indexes in Qdrant over gRPC.
type Storage struct {
	client client
	prefix string
}

var _ vectorstore.Storage = (*Storage)(nil)

func NewStorage(cfg Config) (*Storage, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}
	return newStorage(c, cfg.Prefix), nil
}

func newStorage(c client, prefix string) *Storage {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Storage{client: c, prefix: prefix}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Collection returns the alias name used for key.
func (s *Storage) Collection(key string) string {
	return s.prefix + unsafeChars.ReplaceAllString(key, "_")
}

func (s *Storage) Close() error { return s.client.Close() }

// target returns the collection the alias currently points at, or "".
func (s *Storage) target(ctx context.Context, alias string) (string, error) {
	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return "", fmt.Errorf("qdrant: list aliases: %w", err)
	}
	for _, a := range aliases {
		if a.GetAliasName() == alias {
			return a.GetCollectionName(), nil
		}
	}
	return "", nil
}

// Save writes idx into a new collection and then points the key's alias at
// it. Readers see either the previous index or the new one.
func (s *Storage) Save(ctx context.Context, key string, idx *vectorindex.Index) error {
	alias := s.Collection(key)
	name := alias + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(idx.Dimension()),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	}); err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", name, err)
	}

	wait := true
	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Wait:           &wait,
		Points:         toPoints(idx),
	}); err != nil {
		_ = s.client.DeleteCollection(ctx, name)
		return fmt.Errorf("qdrant: upsert into %s: %w", name, err)
	}

	previous, err := s.target(ctx, alias)
	if err != nil {
		_ = s.client.DeleteCollection(ctx, name)
		return err
	}
	ops := []*qdrant.AliasOperations{qdrant.NewAliasCreate(alias, name)}
	if previous != "" {
		ops = append([]*qdrant.AliasOperations{qdrant.NewAliasDelete(alias)}, ops...)
	}
	if err := s.client.UpdateAliases(ctx, ops); err != nil {
		_ = s.client.DeleteCollection(ctx, name)
		return fmt.Errorf("qdrant: switch alias %s: %w", alias, err)
	}

	if previous != "" {
		if err := s.client.DeleteCollection(ctx, previous); err != nil {
			return fmt.Errorf("qdrant: drop previous collection %s: %w", previous, err)
		}
	}
	return nil
}

func (s *Storage) Load(ctx context.Context, key string) (*vectorindex.Index, error) {
	name, err := s.target(ctx, s.Collection(key))
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, vectorstore.ErrNotFound
	}

	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: name, Exact: &exact})
	if err != nil {
		return nil, fmt.Errorf("qdrant: count %s: %w", name, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: collection %s is empty", domain.ErrIndex, name)
	}
	limit := uint32(n)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: name,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: scroll %s: %w", name, err)
	}
	return fromPoints(points)
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	alias := s.Collection(key)
	name, err := s.target(ctx, alias)
	if err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	if err := s.client.UpdateAliases(ctx, []*qdrant.AliasOperations{qdrant.NewAliasDelete(alias)}); err != nil {
		return fmt.Errorf("qdrant: delete alias %s: %w", alias, err)
	}
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("qdrant: drop collection %s: %w", name, err)
	}
	return nil
}

func toPoints(idx *vectorindex.Index) []*qdrant.PointStruct {
	passages := idx.Passages()
	vectors := idx.Vectors()
	pts := make([]*qdrant.PointStruct, len(passages))
	for i, p := range passages {
		pts[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"text":           p.Text,
				"document_id":    p.DocumentID,
				"page":           p.Page,
				"seq":            p.Seq,
				"embedder":       idx.Embedder(),
				"format_version": vectorindex.FormatVersion,
			}),
		}
	}
	return pts
}

// fromPoints rebuilds an index from scrolled points, restoring passage order by seq.
func fromPoints(points []*qdrant.RetrievedPoint) (*vectorindex.Index, error) {
	type entry struct {
		passage domain.Passage
		vector  []float32
	}
	entries := make([]entry, 0, len(points))
	var embedder string
	for _, pt := range points {
		payload := pt.GetPayload()
		if v := payload["format_version"].GetIntegerValue(); v != vectorindex.FormatVersion {
			return nil, fmt.Errorf("%w: unsupported format version %d", domain.ErrIndex, v)
		}
		name := payload["embedder"].GetStringValue()
		if embedder == "" {
			embedder = name
		} else if name != embedder {
			return nil, fmt.Errorf("%w: mixed embedders %q and %q", domain.ErrIndex, embedder, name)
		}
		vec := pointVector(pt.GetVectors().GetVector())
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: point %s has no vector", domain.ErrIndex, pt.GetId().GetUuid())
		}
		entries = append(entries, entry{
			passage: domain.Passage{
				ID:         pt.GetId().GetUuid(),
				DocumentID: payload["document_id"].GetStringValue(),
				Text:       payload["text"].GetStringValue(),
				Page:       int(payload["page"].GetIntegerValue()),
				Seq:        int(payload["seq"].GetIntegerValue()),
			},
			vector: vec,
		})
	}
	sort.SliceStable(entries, func(a, b int) bool { return entries[a].passage.Seq < entries[b].passage.Seq })

	passages := make([]domain.Passage, len(entries))
	vectors := make([][]float32, len(entries))
	for i, e := range entries {
		passages[i] = e.passage
		vectors[i] = e.vector
	}
	return vectorindex.Build(embedder, passages, vectors)
}

func pointVector(v *qdrant.VectorOutput) []float32 {
	if d := v.GetDense(); d != nil {
		return d.GetData()
	}
	return v.GetData()
}
