// Package ollama is an embeddings client for Ollama. It also accepts the
// OpenAI-compatible response shape, so it can be pointed at /v1/embeddings.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"pdfrag/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultPath    = "/api/embeddings"
	DefaultModel   = "nomic-embed-text"
	DefaultTimeout = 30 * time.Second
)

// Config configures the embeddings client.
type Config struct {
	BaseURL    string
	Path       string
	Model      string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
}

// Client implements domain.Embedder against an Ollama server.
type Client struct {
	url        string
	apiKey     string
	model      string
	client     *http.Client
	maxRetries int
	logger     *slog.Logger

	mu        sync.Mutex
	dimension int
}

var _ domain.Embedder = (*Client)(nil)

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		url:        cfg.BaseURL + cfg.Path,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		client:     &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger,
	}
}

// Name identifies the embedding model; it is recorded in persisted indexes.
func (c *Client) Name() string { return "ollama/" + c.model }

// Dimension returns the vector size observed on the first successful call, or 0.
func (c *Client) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt,omitempty"`
	Input  string `json:"input,omitempty"`
}

// Embed returns an embedding vector for the given text. Transport failures,
// 429 and 5xx responses are retried with backoff; every retry is logged.
// Malformed responses fail immediately.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	data, err := json.Marshal(embedRequest{Model: c.model, Prompt: text, Input: text})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrEmbedding, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("embedding request failed, retrying", "attempt", attempt, "err", lastErr)
		}
		payload, wait, err := c.post(ctx, data)
		if err == nil {
			return c.decode(payload)
		}
		lastErr = err
		if wait < 0 || attempt == c.maxRetries {
			break
		}
		if wait == 0 {
			wait = retryDelay(attempt)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, ctx.Err())
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, lastErr)
}

// EmbedBatch embeds texts one by one; Ollama has no batch endpoint.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// post sends one request. The returned wait is negative when the failure is
// not worth retrying, zero for the default backoff, or the server's Retry-After.
func (c *Client) post(ctx context.Context, body []byte) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, -1, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, -1, err
		}
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		var wait time.Duration
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			wait = time.Duration(secs) * time.Second
		}
		return nil, wait, fmt.Errorf("embeddings request failed: %s", resp.Status)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, -1, fmt.Errorf("embeddings request failed: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return payload, 0, nil
}

func (c *Client) decode(payload []byte) ([]float32, error) {
	var out struct {
		Embedding []float64 `json:"embedding"`
		Data      []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrEmbedding, err)
	}
	raw := out.Embedding
	if len(raw) == 0 && len(out.Data) > 0 {
		raw = out.Data[0].Embedding
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", domain.ErrEmbedding)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dimension == 0 {
		c.dimension = len(raw)
	} else if c.dimension != len(raw) {
		return nil, fmt.Errorf("%w: dimension changed from %d to %d", domain.ErrEmbedding, c.dimension, len(raw))
	}

	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
