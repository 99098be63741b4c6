// Package service answers questions about PDF documents. Every entry point
// is a failure boundary: errors come back inside results, never as panics.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pdfrag/internal/cache"
	"pdfrag/internal/domain"
	"pdfrag/internal/retriever"
	"pdfrag/internal/summarizer"
	"pdfrag/internal/synth"
)

var tracer = otel.Tracer("pdfrag/service")

// Status is the outcome of a pipeline call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// QueryResult is the answer to one question.
type QueryResult struct {
	Status  Status   `json:"status"`
	Answer  string   `json:"answer,omitempty"`
	Sources []string `json:"sources,omitempty"`
	Message string   `json:"message,omitempty"`
	// Kind tags the error class of a failed call.
	Kind  string `json:"kind,omitempty"`
	Trace *Trace `json:"raw_result,omitempty"`
}

// OK reports whether the call succeeded.
func (r QueryResult) OK() bool { return r.Status == StatusSuccess }

// Trace records what the answer was produced from.
type Trace struct {
	Query           string         `json:"query"`
	Result          string         `json:"result"`
	IndexKey        string         `json:"index_key"`
	Embedder        string         `json:"embedder"`
	SourceDocuments []TracePassage `json:"source_documents"`
}

// TracePassage is a retrieved passage with its similarity score.
type TracePassage struct {
	ID    string  `json:"id"`
	Page  int     `json:"page,omitempty"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

func failure(err error) QueryResult {
	return QueryResult{Status: StatusError, Message: err.Error(), Kind: domain.Kind(err)}
}

// Options wires a Pipeline.
type Options struct {
	Cache     *cache.IndexCache
	Generator domain.Generator
	// K is the number of passages retrieved per question.
	K      int
	Logger *slog.Logger
}

// Pipeline runs cache, retrieval and synthesis for one question at a time.
// It is safe for concurrent use.
type Pipeline struct {
	cache     *cache.IndexCache
	retriever *retriever.Retriever
	synth     *synth.Synthesizer
	gen       domain.Generator
	summary   *summarizer.Frequency
	validate  *validator.Validate
	k         int
	logger    *slog.Logger
}

func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.K <= 0 {
		opts.K = retriever.DefaultK
	}
	return &Pipeline{
		cache:     opts.Cache,
		retriever: retriever.New(opts.Cache.Embedder()),
		synth:     synth.New(opts.Generator, opts.Logger),
		gen:       opts.Generator,
		summary:   summarizer.NewFrequency(),
		validate:  validator.New(),
		k:         opts.K,
		logger:    opts.Logger,
	}
}

// Answer answers question from the document at path.
func (p *Pipeline) Answer(ctx context.Context, path, question string) QueryResult {
	ctx, span := tracer.Start(ctx, "pipeline.answer", trace.WithAttributes(attribute.String("document", path)))
	defer span.End()

	res, err := p.answer(ctx, path, question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn("answer failed", "document", path, "kind", domain.Kind(err), "err", err)
		return failure(err)
	}
	return res
}

func (p *Pipeline) answer(ctx context.Context, path, question string) (QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return QueryResult{}, errors.New("question is empty")
	}

	idx, err := p.cache.GetOrBuild(ctx, path)
	if err != nil {
		return QueryResult{}, err
	}
	key, _ := p.cache.Key(path)

	rctx, span := tracer.Start(ctx, "pipeline.retrieve")
	hits, err := p.retriever.Search(rctx, idx, question, p.k)
	span.End()
	if err != nil {
		return QueryResult{}, err
	}

	passages := make([]domain.Passage, len(hits))
	tr := &Trace{Query: question, IndexKey: key, Embedder: idx.Embedder(), SourceDocuments: make([]TracePassage, len(hits))}
	for i, h := range hits {
		passages[i] = h.Passage
		tr.SourceDocuments[i] = TracePassage{ID: h.Passage.ID, Page: h.Passage.Page, Text: h.Passage.Text, Score: h.Score}
	}

	sctx, span := tracer.Start(ctx, "pipeline.synthesize")
	ans, err := p.synth.Synthesize(sctx, passages, question)
	span.End()
	if err != nil {
		return QueryResult{}, err
	}
	tr.Result = ans.Text

	p.logger.Debug("answered", "document", path, "passages", len(passages), "sources", ans.Sources)
	return QueryResult{Status: StatusSuccess, Answer: ans.Text, Sources: ans.Sources, Trace: tr}, nil
}

// Stream writes a streamed restatement of answer to w for display.
func (p *Pipeline) Stream(ctx context.Context, question, answer string, w io.Writer) error {
	return p.synth.Stream(ctx, question, answer, w)
}

// Prepare builds or loads the index for path ahead of the first question.
func (p *Pipeline) Prepare(ctx context.Context, path string) error {
	_, err := p.cache.GetOrBuild(ctx, path)
	return err
}

// Overview returns an extractive summary of the document at path.
func (p *Pipeline) Overview(ctx context.Context, path string, maxSentences int) (string, error) {
	idx, err := p.cache.GetOrBuild(ctx, path)
	if err != nil {
		return "", err
	}
	return p.summary.Summarize(idx.Passages(), maxSentences), nil
}

// Invalidate drops the cached index for path.
func (p *Pipeline) Invalidate(ctx context.Context, path string) error {
	return p.cache.Invalidate(ctx, path)
}

// Rebuild re-indexes path, replacing the cached index.
func (p *Pipeline) Rebuild(ctx context.Context, path string) error {
	_, err := p.cache.Rebuild(ctx, path)
	return err
}

func (p *Pipeline) generate(ctx context.Context, name, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	out, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		if !errors.Is(err, domain.ErrGeneration) {
			err = fmt.Errorf("%w: %v", domain.ErrGeneration, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return strings.TrimSpace(out), nil
}
