package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc, retries int) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return NewClient(Config{BaseURL: ts.URL, Model: "test-model", MaxRetries: retries})
}

func TestEmbed_OllamaShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultPath, r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "hello", req.Prompt)
		_, _ = w.Write([]byte(`{"embedding":[0.5,0.25,1]}`))
	}, 0)

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25, 1}, vec)
	assert.Equal(t, 3, c.Dimension())
	assert.Equal(t, "ollama/test-model", c.Name())
}

func TestEmbed_OpenAIShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,2]}]}`))
	}, 0)
	vec, err := c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
}

func TestEmbed_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"embedding":[1]}`))
	}, 2)
	vec, err := c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
	assert.EqualValues(t, 2, calls.Load())
}

func TestEmbed_Failures(t *testing.T) {
	tests := []struct {
		name  string
		h     http.HandlerFunc
		calls int32
	}{
		{"client error is not retried", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}, 1},
		{"malformed json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}, 1},
		{"empty embedding", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"embedding":[]}`))
		}, 1},
		{"server error exhausts retries", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tc.h(w, r)
			}, 1)
			_, err := c.Embed(context.Background(), "x")
			assert.ErrorIs(t, err, domain.ErrEmbedding)
			assert.Equal(t, tc.calls, calls.Load())
		})
	}
}

func TestEmbed_DimensionDrift(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"embedding":[1,2]}`))
			return
		}
		_, _ = w.Write([]byte(`{"embedding":[1,2,3]}`))
	}, 0)
	_, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}

func TestEmbed_Unreachable(t *testing.T) {
	ts := httptest.NewServer(nil)
	ts.Close()
	c := NewClient(Config{BaseURL: ts.URL})
	_, err := c.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}
