package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/domain"
)

func newTestService(t *testing.T, h http.HandlerFunc) *LLMService {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return NewLLMService(LLMConfig{BaseURL: ts.URL, Model: "llama3.2", Temperature: 0.2})
}

func TestGenerate(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "llama3.2", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "hi", req.Messages[0].Content)
		require.NotNil(t, req.Options)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"hello"},"done":true}`))
	})
	out, err := s.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestGenerate_EmptyAnswerIsNotAnError(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":""},"done":true}`))
	})
	out, err := s.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
		}},
		{"malformed", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}},
		{"error field", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"error":"out of memory"}`))
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestService(t, tc.h).Generate(context.Background(), "hi")
			assert.ErrorIs(t, err, domain.ErrGeneration)
		})
	}
}

func TestGenerateStream(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		_, _ = w.Write([]byte(strings.Join([]string{
			`{"message":{"role":"assistant","content":"Py"},"done":false}`,
			`{"message":{"role":"assistant","content":"thon"},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true}`,
		}, "\n")))
	})

	stream := s.GenerateStream(context.Background(), "q")
	var parts []string
	for chunk, err := range stream {
		require.NoError(t, err)
		parts = append(parts, chunk)
	}
	assert.Equal(t, []string{"Py", "thon"}, parts)

	for _, err := range stream {
		assert.ErrorIs(t, err, errStreamConsumed)
	}
}

func TestGenerateStream_BrokenLine(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{\"message\":{\"content\":\"a\"}}\n{broken"))
	})
	var parts []string
	var lastErr error
	for chunk, err := range s.GenerateStream(context.Background(), "q") {
		if err != nil {
			lastErr = err
			continue
		}
		parts = append(parts, chunk)
	}
	assert.Equal(t, []string{"a"}, parts)
	assert.ErrorIs(t, lastErr, domain.ErrGeneration)
}

func TestGenerateStream_EarlyBreak(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{\"message\":{\"content\":\"a\"}}\n{\"message\":{\"content\":\"b\"}}\n"))
	})
	for chunk, err := range s.GenerateStream(context.Background(), "q") {
		require.NoError(t, err)
		assert.Equal(t, "a", chunk)
		break
	}
}

func TestPing(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, s.Ping(context.Background()))

	ts := httptest.NewServer(nil)
	ts.Close()
	assert.ErrorIs(t, NewLLMService(LLMConfig{BaseURL: ts.URL}).Ping(context.Background()), domain.ErrGeneration)
}
