package synth

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/domain"
)

type fakeGenerator struct {
	answer  string
	chunks  []string
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.answer, g.err
}

func (g *fakeGenerator) GenerateStream(_ context.Context, prompt string) iter.Seq2[string, error] {
	g.prompts = append(g.prompts, prompt)
	return func(yield func(string, error) bool) {
		for _, c := range g.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if g.err != nil {
			yield("", g.err)
		}
	}
}

func passages(pages ...int) []domain.Passage {
	out := make([]domain.Passage, len(pages))
	for i, p := range pages {
		out[i] = domain.Passage{DocumentID: "resume.pdf", Text: "text " + string(rune('a'+i)), Page: p, Seq: i}
	}
	return out
}

func TestSources(t *testing.T) {
	tests := []struct {
		name  string
		pages []int
		want  []string
	}{
		{"same page deduplicated", []int{1, 1, 2}, []string{"Page 1"}},
		{"only first two", []int{2, 1, 3}, []string{"Page 2", "Page 1"}},
		{"page-less skipped", []int{0, 4, 5}, []string{"Page 4"}},
		{"no pages", []int{0, 0}, []string{}},
		{"empty", nil, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sources(passages(tc.pages...)))
		})
	}
}

func TestPrompt(t *testing.T) {
	p := Prompt(passages(1, 0), "What are the key skills mentioned?")
	assert.Contains(t, p, `just say "I don't know"`)
	assert.Contains(t, p, "(3-4 sentences)")
	assert.Contains(t, p, "Content: text a\nSource: resume.pdf (page 1)\n\nContent: text b\nSource: resume.pdf\n")
	assert.True(t, strings.HasSuffix(p, "Question: What are the key skills mentioned?\n\nHelpful Answer:"))
}

func TestSynthesize(t *testing.T) {
	gen := &fakeGenerator{answer: "  The key skills are Python and Go.\n"}
	ans, err := New(gen, nil).Synthesize(context.Background(), passages(1, 1), "skills?")
	require.NoError(t, err)
	assert.Equal(t, "The key skills are Python and Go.", ans.Text)
	assert.Equal(t, []string{"Page 1"}, ans.Sources)
	require.Len(t, gen.prompts, 1)
}

func TestSynthesize_Failure(t *testing.T) {
	_, err := New(&fakeGenerator{err: errors.New("connection refused")}, nil).Synthesize(context.Background(), passages(1), "q")
	assert.ErrorIs(t, err, domain.ErrGeneration)
}

func TestStream(t *testing.T) {
	gen := &fakeGenerator{chunks: []string{"Python", " and Go"}}
	var buf bytes.Buffer
	require.NoError(t, New(gen, nil).Stream(context.Background(), "skills?", "Python and Go.", &buf))
	assert.Equal(t, "Python and Go", buf.String())
	assert.Equal(t, []string{"skills? Context: Python and Go."}, gen.prompts)
}

func TestStream_PartialOutputKept(t *testing.T) {
	gen := &fakeGenerator{chunks: []string{"Pyth"}, err: errors.New("reset")}
	var buf bytes.Buffer
	err := New(gen, nil).Stream(context.Background(), "q", "a", &buf)
	assert.ErrorIs(t, err, domain.ErrGeneration)
	assert.Equal(t, "Pyth", buf.String())
}
