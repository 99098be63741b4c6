package chunker

import (
	"context"
	"strings"

	"pdfrag/internal/domain"
)

// SentenceChunker splits text into sentence-based passages with overlap.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 || overlapSentences >= sentencesPerChunk {
		overlapSentences = 0
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
	}
}

func (c *SentenceChunker) Chunk(_ context.Context, doc domain.Document) ([]domain.Passage, error) {
	var passages []domain.Passage
	seq := 0
	for _, page := range doc.Pages {
		sentences := splitSentences(page.Text)
		i := 0
		for i < len(sentences) {
			end := min(i+c.sentencesPerChunk, len(sentences))
			passages = append(passages, domain.Passage{
				ID:         passageID(doc.ID, seq),
				DocumentID: doc.ID,
				Text:       strings.Join(sentences[i:end], " "),
				Page:       page.Number,
				Seq:        seq,
			})
			seq++
			if end == len(sentences) {
				break
			}
			i = end - c.overlapSentences
		}
	}
	return passages, nil
}
