package chunker

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"pdfrag/internal/domain"
	"pdfrag/internal/vectorindex"
)

// DefaultBreakpointPercentile is the distance percentile above which a topic shift is assumed.
const DefaultBreakpointPercentile = 95.0

// SemanticChunker groups consecutive sentences and starts a new passage
// wherever the embedding distance between neighbouring groups is unusually large.
type SemanticChunker struct {
	embedder   domain.Embedder
	buffer     int
	percentile float64
}

// NewSemanticChunker creates a chunker that embeds sentence groups with embedder.
// buffer is the number of neighbouring sentences joined on each side.
func NewSemanticChunker(embedder domain.Embedder, buffer int, percentile float64) *SemanticChunker {
	if buffer < 0 {
		buffer = 1
	}
	if percentile <= 0 || percentile > 100 {
		percentile = DefaultBreakpointPercentile
	}
	return &SemanticChunker{embedder: embedder, buffer: buffer, percentile: percentile}
}

func (c *SemanticChunker) Chunk(ctx context.Context, doc domain.Document) ([]domain.Passage, error) {
	var passages []domain.Passage
	seq := 0
	for _, page := range doc.Pages {
		groups, err := c.splitPage(ctx, page.Text)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page.Number, err)
		}
		for _, text := range groups {
			passages = append(passages, domain.Passage{
				ID:         passageID(doc.ID, seq),
				DocumentID: doc.ID,
				Text:       text,
				Page:       page.Number,
				Seq:        seq,
			})
			seq++
		}
	}
	return passages, nil
}

func (c *SemanticChunker) splitPage(ctx context.Context, text string) ([]string, error) {
	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		return sentences, nil
	}

	combined := make([]string, len(sentences))
	for i := range sentences {
		lo := max(0, i-c.buffer)
		hi := min(len(sentences), i+c.buffer+1)
		combined[i] = strings.Join(sentences[lo:hi], " ")
	}
	vectors, err := c.embedder.EmbedBatch(ctx, combined)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(combined) {
		return nil, fmt.Errorf("%w: got %d vectors for %d sentence groups", domain.ErrEmbedding, len(vectors), len(combined))
	}

	distances := make([]float64, len(vectors)-1)
	for i := 0; i+1 < len(vectors); i++ {
		distances[i] = 1 - vectorindex.Cosine(vectors[i], vectors[i+1])
	}
	threshold := percentile(distances, c.percentile)

	var out []string
	start := 0
	for i, d := range distances {
		if d > threshold {
			out = append(out, strings.Join(sentences[start:i+1], " "))
			start = i + 1
		}
	}
	if start < len(sentences) {
		out = append(out, strings.Join(sentences[start:], " "))
	}
	return out, nil
}

// percentile uses linear interpolation between closest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}
