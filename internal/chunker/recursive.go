package chunker

import (
	"context"
	"strings"
	"unicode/utf8"

	"pdfrag/internal/domain"
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveChunker produces passages of at most chunkSize characters with
// chunkOverlap characters shared between neighbours. It cuts at paragraph
// breaks first, then line breaks, then spaces, and only then mid-word.
type RecursiveChunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewRecursiveChunker creates a fixed-window chunker. Non-positive sizes fall
// back to the defaults; an overlap not smaller than the size is reduced.
func NewRecursiveChunker(chunkSize, chunkOverlap int) *RecursiveChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}
	return &RecursiveChunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

func (c *RecursiveChunker) Chunk(_ context.Context, doc domain.Document) ([]domain.Passage, error) {
	var passages []domain.Passage
	seq := 0
	for _, page := range doc.Pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		for _, text := range c.split(page.Text, c.separators) {
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

func (c *RecursiveChunker) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			sep = ""
			rest = nil
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
	} else {
		for _, p := range strings.Split(text, sep) {
			if p != "" {
				pieces = append(pieces, p)
			}
		}
	}

	var out, small []string
	for _, p := range pieces {
		if utf8.RuneCountInString(p) < c.chunkSize {
			small = append(small, p)
			continue
		}
		if len(small) > 0 {
			out = append(out, c.merge(small, sep)...)
			small = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
		} else {
			out = append(out, c.split(p, rest)...)
		}
	}
	if len(small) > 0 {
		out = append(out, c.merge(small, sep)...)
	}
	return out
}

// merge joins small pieces into windows no longer than chunkSize, carrying
// up to chunkOverlap characters of trailing pieces into the next window.
func (c *RecursiveChunker) merge(pieces []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)
	joinLen := func(n int) int {
		if n > 0 {
			return sepLen
		}
		return 0
	}

	var out, window []string
	total := 0
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n+joinLen(len(window)) > c.chunkSize && len(window) > 0 {
			if s := strings.TrimSpace(strings.Join(window, sep)); s != "" {
				out = append(out, s)
			}
			for total > c.chunkOverlap || (total > 0 && total+n+joinLen(len(window)) > c.chunkSize) {
				total -= utf8.RuneCountInString(window[0]) + joinLen(len(window)-1)
				window = window[1:]
			}
		}
		window = append(window, p)
		total += n + joinLen(len(window)-1)
	}
	if s := strings.TrimSpace(strings.Join(window, sep)); s != "" {
		out = append(out, s)
	}
	return out
}
