// Package synth turns retrieved passages into an answer with page citations.
package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"pdfrag/internal/domain"
)

// MaxSources bounds how many top passages are cited.
const MaxSources = 2

const promptTemplate = `Use the following context to answer the question.
If you don't know the answer, just say "I don't know" - don't make up an answer.
Keep your response concise (3-4 sentences).

Context: %s
Question: %s

Helpful Answer:`

// Answer is the generated answer and the pages it draws on.
type Answer struct {
	Text    string
	Sources []string
}

// Synthesizer prompts a generative model with retrieved passages.
type Synthesizer struct {
	gen    domain.Generator
	logger *slog.Logger
}

func New(gen domain.Generator, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{gen: gen, logger: logger}
}

// Prompt renders the answering prompt for question over passages.
func Prompt(passages []domain.Passage, question string) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		source := p.DocumentID
		if p.HasPage() {
			source += " (page " + strconv.Itoa(p.Page) + ")"
		}
		parts[i] = "Content: " + p.Text + "\nSource: " + source
	}
	return fmt.Sprintf(promptTemplate, strings.Join(parts, "\n\n"), question)
}

// Sources cites the pages of the first MaxSources passages in retrieval
// order, once per page. Passages without a page are skipped.
func Sources(passages []domain.Passage) []string {
	if len(passages) > MaxSources {
		passages = passages[:MaxSources]
	}
	sources := []string{}
	seen := make(map[int]bool, len(passages))
	for _, p := range passages {
		if !p.HasPage() || seen[p.Page] {
			continue
		}
		seen[p.Page] = true
		sources = append(sources, "Page "+strconv.Itoa(p.Page))
	}
	return sources
}

// Synthesize makes one non-streaming model call and returns its answer.
func (s *Synthesizer) Synthesize(ctx context.Context, passages []domain.Passage, question string) (Answer, error) {
	prompt := Prompt(passages, question)
	s.logger.Debug("generating answer", "passages", len(passages), "prompt_chars", len(prompt))
	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, generationErr(err)
	}
	return Answer{Text: strings.TrimSpace(text), Sources: Sources(passages)}, nil
}

// DisplayPrompt is the prompt of the streamed display call, which restates
// an already generated answer.
func DisplayPrompt(question, answer string) string {
	return question + " Context: " + answer
}

// Stream writes a streamed rendition of answer to w as chunks arrive. It is
// for display only. On failure the chunks written so far stay written.
func (s *Synthesizer) Stream(ctx context.Context, question, answer string, w io.Writer) error {
	for chunk, err := range s.gen.GenerateStream(ctx, DisplayPrompt(question, answer)) {
		if err != nil {
			return generationErr(err)
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			return err
		}
	}
	return nil
}

func generationErr(err error) error {
	if errors.Is(err, domain.ErrGeneration) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrGeneration, err)
}
