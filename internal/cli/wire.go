package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pdfrag/internal/cache"
	"pdfrag/internal/chunker"
	"pdfrag/internal/config"
	"pdfrag/internal/domain"
	"pdfrag/internal/embedding"
	"pdfrag/internal/embedding/hashing"
	"pdfrag/internal/embedding/ollama"
	llm "pdfrag/internal/llm/ollama"
	"pdfrag/internal/loader/pdf"
	"pdfrag/internal/service"
	"pdfrag/internal/vectorstore"
	"pdfrag/internal/vectorstore/file"
	"pdfrag/internal/vectorstore/memory"
	"pdfrag/internal/vectorstore/qdrant"
	"pdfrag/internal/vectorstore/sqlite"
)

// buildPipeline assembles the pipeline for a command. Tests replace it.
var buildPipeline = Build

// Build assembles the components selected by cfg. The returned closer
// releases the index store.
func Build(cfg *config.AppConfig, logger *slog.Logger) (*service.Pipeline, func() error, error) {
	emb, err := buildEmbedder(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	ch, err := buildChunker(cfg, emb)
	if err != nil {
		return nil, nil, err
	}
	store, err := buildStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	gen := llm.NewLLMService(llm.LLMConfig{
		BaseURL:     cfg.Ollama.Host,
		Model:       cfg.Generator.Model,
		Timeout:     time.Duration(cfg.Generator.TimeoutSecs) * time.Second,
		Temperature: cfg.Generator.Temperature,
	})

	idxCache := cache.New(cache.Options{
		Store:    store,
		Loader:   pdf.New(),
		Chunker:  ch,
		Embedder: emb,
		KeyMode:  cache.KeyMode(cfg.Cache.KeyMode),
		Logger:   logger,
	})
	p := service.New(service.Options{
		Cache:     idxCache,
		Generator: gen,
		K:         cfg.Retrieval.K,
		Logger:    logger,
	})
	return p, store.Close, nil
}

func buildEmbedder(cfg *config.AppConfig, logger *slog.Logger) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "ollama", "":
		emb = ollama.NewClient(ollama.Config{
			BaseURL:    cfg.Ollama.Host,
			Path:       cfg.Embedder.Path,
			Model:      cfg.Embedder.Model,
			APIKey:     cfg.EmbedderAPIKey(),
			Timeout:    time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Embedder.MaxRetries,
			Logger:     logger,
		})
	case "hashing":
		emb = hashing.NewEmbedder(cfg.Embedder.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", domain.ErrConfiguration, cfg.Embedder.Type)
	}
	return embedding.WithRateLimit(emb, cfg.Embedder.RequestsPerSecond, cfg.Embedder.Burst), nil
}

func buildChunker(cfg *config.AppConfig, emb domain.Embedder) (domain.Chunker, error) {
	c := cfg.Chunker
	switch c.Type {
	case "recursive", "":
		return chunker.NewRecursiveChunker(c.ChunkSize, c.ChunkOverlap), nil
	case "semantic":
		return chunker.NewSemanticChunker(emb, c.BufferSize, c.BreakpointPercentile), nil
	case "sentence":
		return chunker.NewSentenceChunker(c.SentencesPerChunk, c.OverlapSentences), nil
	default:
		return nil, fmt.Errorf("%w: unknown chunker %q", domain.ErrConfiguration, c.Type)
	}
}

func buildStore(cfg *config.AppConfig) (vectorstore.Storage, error) {
	c := cfg.Cache
	switch c.Store {
	case "file", "":
		return file.NewStorage(c.Dir)
	case "sqlite":
		path := c.SQLite
		if path == "" {
			path = filepath.Join(c.Dir, "pdfrag.db")
		}
		return sqlite.NewStorage(path)
	case "qdrant":
		if c.Qdrant == nil {
			return nil, fmt.Errorf("%w: qdrant store selected without qdrant settings", domain.ErrConfiguration)
		}
		var apiKey string
		if c.Qdrant.APIKeyEnv != "" {
			apiKey = os.Getenv(c.Qdrant.APIKeyEnv)
		}
		return qdrant.NewStorage(qdrant.Config{
			Host:   c.Qdrant.Host,
			Port:   c.Qdrant.Port,
			APIKey: apiKey,
			UseTLS: c.Qdrant.UseTLS,
			Prefix: c.Qdrant.Prefix,
		})
	case "memory":
		return memory.NewStorage(), nil
	default:
		return nil, fmt.Errorf("%w: unknown index store %q", domain.ErrConfiguration, c.Store)
	}
}
