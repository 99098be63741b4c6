package domain

import (
	"context"
	"iter"
	"strings"
)

// Page is the extracted text of a single PDF page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Document is a PDF loaded into the system. It is immutable once loaded.
type Document struct {
	ID    string
	Path  string
	Pages []Page
}

// Text joins the page texts with blank lines.
func (d Document) Text() string {
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Passage is a contiguous span of document text indexed as one retrieval unit.
// Page is 1-based; zero means the page is unknown.
type Passage struct {
	ID         string
	DocumentID string
	Text       string
	Page       int
	Seq        int
}

// HasPage reports whether the passage carries a page reference.
func (p Passage) HasPage() bool { return p.Page > 0 }

// Hit represents a matching passage with its similarity score.
type Hit struct {
	Passage Passage
	Score   float64
}

// Loader extracts the text of a document stored at path.
type Loader interface {
	Load(ctx context.Context, path string) (Document, error)
}

// Chunker splits documents into passages suitable for retrieval indexing.
type Chunker interface {
	Chunk(ctx context.Context, doc Document) ([]Passage, error)
}

// Embedder converts free text into a numeric vector representation.
// The same text must always produce the same vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator is the generative model used to synthesize answers.
type Generator interface {
	// Generate returns the complete answer for prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// GenerateStream yields the answer in chunks. The sequence is finite
	// and can be ranged over only once.
	GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error]
}
