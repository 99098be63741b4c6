// Package retriever finds the passages of an index most relevant to a question.
package retriever

import (
	"context"
	"errors"
	"fmt"

	"pdfrag/internal/domain"
	"pdfrag/internal/vectorindex"
)

// DefaultK is the number of passages retrieved per question.
const DefaultK = 3

// Retriever embeds questions and searches an index with them.
type Retriever struct {
	embedder domain.Embedder
}

func New(embedder domain.Embedder) *Retriever {
	return &Retriever{embedder: embedder}
}

// Retrieve returns up to k passages ordered by descending relevance. k <= 0
// uses DefaultK. The index must have been built by the same embedder.
func (r *Retriever) Retrieve(ctx context.Context, idx *vectorindex.Index, question string, k int) ([]domain.Passage, error) {
	hits, err := r.Search(ctx, idx, question, k)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Passage, len(hits))
	for i, h := range hits {
		out[i] = h.Passage
	}
	return out, nil
}

// Search is Retrieve with similarity scores.
func (r *Retriever) Search(ctx context.Context, idx *vectorindex.Index, question string, k int) ([]domain.Hit, error) {
	if k <= 0 {
		k = DefaultK
	}
	if idx.Embedder() != r.embedder.Name() {
		return nil, fmt.Errorf("%w: index built by %q, active embedder is %q", domain.ErrIndex, idx.Embedder(), r.embedder.Name())
	}
	query, err := r.embedder.Embed(ctx, question)
	if err != nil {
		if errors.Is(err, domain.ErrEmbedding) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: embed question: %v", domain.ErrEmbedding, err)
	}
	if isZero(query) {
		return lexicalSearch(idx.Passages(), question, k), nil
	}
	return idx.Search(query, k)
}
