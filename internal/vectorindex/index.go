// Package vectorindex holds the passages of one document together with their
// embeddings and answers exact cosine nearest-neighbour queries over them.
package vectorindex

import (
	"fmt"
	"sort"

	"github.com/viant/vec/search"

	"pdfrag/internal/domain"
)

// Index is read-only after Build.
type Index struct {
	embedder  string
	dimension int
	passages  []domain.Passage
	vectors   [][]float32
	mags      []float32
}

// Build constructs an index from parallel passage and vector slices. The
// slices must have equal length; a mismatch is a programming error and panics.
func Build(embedder string, passages []domain.Passage, vectors [][]float32) (*Index, error) {
	if len(passages) != len(vectors) {
		panic(fmt.Sprintf("vectorindex: %d passages but %d vectors", len(passages), len(vectors)))
	}
	if len(passages) == 0 {
		return nil, fmt.Errorf("%w: cannot build an empty index", domain.ErrIndex)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length vectors", domain.ErrIndex)
	}
	mags := make([]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: inconsistent vector dims %d vs %d", domain.ErrIndex, len(v), dim)
		}
		mags[i] = search.Float32s(v).Magnitude()
	}
	return &Index{
		embedder:  embedder,
		dimension: dim,
		passages:  append([]domain.Passage(nil), passages...),
		vectors:   append([][]float32(nil), vectors...),
		mags:      mags,
	}, nil
}

// Embedder names the embedder that produced the vectors.
func (i *Index) Embedder() string { return i.embedder }

// Dimension returns the vector size.
func (i *Index) Dimension() int { return i.dimension }

// Len returns the number of passages.
func (i *Index) Len() int { return len(i.passages) }

// Passages returns a copy of the indexed passages in insertion order.
func (i *Index) Passages() []domain.Passage {
	return append([]domain.Passage(nil), i.passages...)
}

// Vectors returns the indexed vectors in insertion order. The slices are
// shared with the index and must not be modified.
func (i *Index) Vectors() [][]float32 {
	return append([][]float32(nil), i.vectors...)
}

// Search returns at most k passages ordered by descending cosine similarity.
// Equal scores keep insertion order.
func (i *Index) Search(query []float32, k int) ([]domain.Hit, error) {
	if len(query) != i.dimension {
		return nil, fmt.Errorf("%w: query dim %d != index dim %d", domain.ErrIndex, len(query), i.dimension)
	}
	if k <= 0 {
		return nil, nil
	}
	qm := search.Float32s(query).Magnitude()
	hits := make([]domain.Hit, len(i.passages))
	for j := range i.passages {
		hits[j] = domain.Hit{Passage: i.passages[j], Score: similarity(i.vectors[j], query, i.mags[j], qm)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either has no magnitude.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return similarity(a, b, search.Float32s(a).Magnitude(), search.Float32s(b).Magnitude())
}

func similarity(v, q []float32, vm, qm float32) float64 {
	if vm == 0 || qm == 0 {
		return 0
	}
	return 1 - float64(search.Float32s(v).CosineDistance(q))
}
