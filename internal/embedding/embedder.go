// Package embedding holds helpers shared by the embedder implementations in
// its subpackages.
package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"pdfrag/internal/domain"
)

// RateLimited throttles calls to the wrapped embedder. Every text counts as one request.
type RateLimited struct {
	inner   domain.Embedder
	limiter *rate.Limiter
}

// WithRateLimit wraps e so that at most rps texts per second are embedded.
// A non-positive rps returns e unchanged.
func WithRateLimit(e domain.Embedder, rps float64, burst int) domain.Embedder {
	if rps <= 0 {
		return e
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{inner: e, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Name() string   { return r.inner.Name() }
func (r *RateLimited) Dimension() int { return r.inner.Dimension() }

func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit: %v", domain.ErrEmbedding, err)
	}
	return r.inner.Embed(ctx, text)
}

func (r *RateLimited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := r.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}
