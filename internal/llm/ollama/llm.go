// Package ollama provides a generative model adapter using Ollama's chat API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync/atomic"
	"time"

	"pdfrag/internal/domain"
)

// Ensure LLMService implements the interface.
var _ domain.Generator = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL  = "http://localhost:11434"
	DefaultLLMModel = "llama3.2"
)

var errStreamConsumed = errors.New("stream already consumed")

// LLMConfig holds configuration for the Ollama LLM service.
type LLMConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the LLM model to use (default: llama3.2).
	Model string

	// Timeout bounds a whole request. Zero means no client-side timeout.
	Timeout time.Duration

	// Temperature is passed through when positive.
	Temperature float64
}

// LLMService generates answers using Ollama.
type LLMService struct {
	client      *http.Client
	baseURL     string
	model       string
	temperature float64
}

// chatMessage is the Ollama chat message format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type options struct {
	Temperature float64 `json:"temperature,omitempty"`
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *options      `json:"options,omitempty"`
}

// chatResponse is one /api/chat response object; streaming sends one per line.
type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// NewLLMService creates a new Ollama LLM service.
func NewLLMService(cfg LLMConfig) *LLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	return &LLMService{
		client:      &http.Client{Timeout: cfg.Timeout},
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string { return s.model }

// Generate sends prompt as a single user message and returns the full reply.
// An empty reply is not an error.
func (s *LLMService) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := s.send(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrGeneration, err)
	}
	if chatResp.Error != "" {
		return "", fmt.Errorf("%w: ollama: %s", domain.ErrGeneration, chatResp.Error)
	}
	return chatResp.Message.Content, nil
}

// GenerateStream streams the reply to prompt. The request is issued when the
// sequence is first ranged over; ranging a second time yields an error.
func (s *LLMService) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	var used atomic.Bool
	return func(yield func(string, error) bool) {
		if used.Swap(true) {
			yield("", fmt.Errorf("%w: %w", domain.ErrGeneration, errStreamConsumed))
			return
		}
		resp, err := s.send(ctx, prompt, true)
		if err != nil {
			yield("", err)
			return
		}
		defer resp.Body.Close()

		dec := json.NewDecoder(resp.Body)
		for {
			var chunk chatResponse
			if err := dec.Decode(&chunk); err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				yield("", fmt.Errorf("%w: decode stream: %v", domain.ErrGeneration, err))
				return
			}
			if chunk.Error != "" {
				yield("", fmt.Errorf("%w: ollama: %s", domain.ErrGeneration, chunk.Error))
				return
			}
			if chunk.Message.Content != "" && !yield(chunk.Message.Content, nil) {
				return
			}
			if chunk.Done {
				return
			}
		}
	}
}

func (s *LLMService) send(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	reqBody := chatRequest{
		Model:    s.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   stream,
	}
	if s.temperature > 0 {
		reqBody.Options = &options{Temperature: s.temperature}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrGeneration, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", domain.ErrGeneration, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if err != nil {
			return nil, fmt.Errorf("%w: ollama error (status %d): failed to read response", domain.ErrGeneration, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: ollama error (status %d): %s", domain.ErrGeneration, resp.StatusCode, bytes.TrimSpace(body))
	}
	return resp, nil
}

// Ping validates the service is reachable by checking the /api/tags endpoint.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ollama: ping failed: %v", domain.ErrGeneration, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ollama: API returned status %d", domain.ErrGeneration, resp.StatusCode)
	}
	return nil
}
