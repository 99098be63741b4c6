package cli

import (
	"bytes"
	"context"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"pdfrag/internal/cache"
	"pdfrag/internal/chunker"
	"pdfrag/internal/config"
	"pdfrag/internal/embedding/hashing"
	"pdfrag/internal/loader/pdf"
	"pdfrag/internal/service"
	"pdfrag/internal/vectorstore/memory"
)

type textRunner struct{ out string }

func (r textRunner) Run(context.Context, string, ...string) ([]byte, error) {
	return []byte(r.out), nil
}

var contentRe = regexp.MustCompile(`Content: (.*)\nSource:`)

// fakeGenerator echoes the first retrieved passage, or the first prompt line
// when the prompt has no context.
type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if m := contentRe.FindStringSubmatch(prompt); m != nil {
		return "From the document: " + m[1], nil
	}
	first, _, _ := strings.Cut(strings.TrimSpace(prompt), "\n")
	return "Generated for: " + first, nil
}

func (g *fakeGenerator) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		out, _ := g.Generate(ctx, prompt)
		for _, w := range strings.SplitAfter(out, " ") {
			if !yield(w, nil) {
				return
			}
		}
	}
}

const docText = "Skills: Python, Go. Experience: 3 years at Acme.\n\fEducation: BSc Computer Science.\n\f"

type testEnv struct {
	store *memory.Storage
	gen   *fakeGenerator
	pdf   string
}

// setupTestPipeline swaps the pipeline factory for one backed by an
// in-memory store, the hashing embedder and a fake pdftotext.
func setupTestPipeline(t *testing.T, text string) *testEnv {
	t.Helper()
	env := &testEnv{store: memory.NewStorage(), gen: &fakeGenerator{}}
	env.pdf = filepath.Join(t.TempDir(), "resume.pdf")
	require.NoError(t, os.WriteFile(env.pdf, []byte("%PDF-1.4"), 0o644))

	orig := buildPipeline
	buildPipeline = func(cfg *config.AppConfig, logger *slog.Logger) (*service.Pipeline, func() error, error) {
		c := cache.New(cache.Options{
			Store:    env.store,
			Loader:   pdf.NewWithRunner(textRunner{out: text}),
			Chunker:  chunker.NewRecursiveChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap),
			Embedder: hashing.NewEmbedder(128),
			Logger:   logger,
		})
		p := service.New(service.Options{Cache: c, Generator: env.gen, K: cfg.Retrieval.K, Logger: logger})
		return p, func() error { return nil }, nil
	}
	origTerm := stdinIsTerminal
	stdinIsTerminal = func() bool { return false }
	t.Cleanup(func() {
		buildPipeline = orig
		stdinIsTerminal = origTerm
	})
	return env
}

func resetFlags() {
	cfgFile, verbose = "", false
	askJSON, askStream = false, false
	chatWatch, chatStream = false, false
	analyzeJD, analyzeJSON = "", false
	summarySentences = 3
	interviewTitle, interviewLevel, interviewSkills = "", "", ""
	interviewCount = 10
}

// execute runs the root command with a config path that does not exist, so
// defaults apply and nothing is written to the home directory.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...))
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}
