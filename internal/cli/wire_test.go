package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/chunker"
	"pdfrag/internal/config"
	"pdfrag/internal/domain"
	"pdfrag/internal/embedding"
	"pdfrag/internal/vectorstore/file"
	"pdfrag/internal/vectorstore/memory"
	"pdfrag/internal/vectorstore/sqlite"
)

func testConfig(t *testing.T, yaml string) *config.AppConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml), false)
	require.NoError(t, err)
	return cfg
}

func TestBuildEmbedder(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"ollama default", "", "ollama/nomic-embed-text"},
		{"ollama model", "embedder: {type: ollama, model: mxbai-embed-large}", "ollama/mxbai-embed-large"},
		{"hashing", "embedder: {type: hashing, dimension: 64}", "hashing-64"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			emb, err := buildEmbedder(testConfig(t, tc.yaml), nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, emb.Name())
		})
	}
}

func TestBuildEmbedder_RateLimited(t *testing.T) {
	emb, err := buildEmbedder(testConfig(t, "embedder: {type: hashing, requests_per_second: 5, burst: 2}"), nil)
	require.NoError(t, err)
	_, ok := emb.(*embedding.RateLimited)
	assert.True(t, ok)
}

func TestBuildChunker(t *testing.T) {
	emb, err := buildEmbedder(testConfig(t, "embedder: {type: hashing}"), nil)
	require.NoError(t, err)

	ch, err := buildChunker(testConfig(t, ""), emb)
	require.NoError(t, err)
	assert.IsType(t, &chunker.RecursiveChunker{}, ch)

	ch, err = buildChunker(testConfig(t, "chunker: {type: semantic}"), emb)
	require.NoError(t, err)
	assert.IsType(t, &chunker.SemanticChunker{}, ch)

	ch, err = buildChunker(testConfig(t, "chunker: {type: sentence}"), emb)
	require.NoError(t, err)
	assert.IsType(t, &chunker.SentenceChunker{}, ch)

	cfg := testConfig(t, "")
	cfg.Chunker.Type = "paragraph"
	_, err = buildChunker(cfg, emb)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestBuildStore(t *testing.T) {
	dir := t.TempDir()

	cfg := testConfig(t, "cache: {store: file, dir: "+dir+"}")
	st, err := buildStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &file.Storage{}, st)

	cfg = testConfig(t, "cache: {store: sqlite, dir: "+dir+"}")
	st, err = buildStore(cfg)
	require.NoError(t, err)
	require.IsType(t, &sqlite.Storage{}, st)
	assert.Equal(t, filepath.Join(dir, "pdfrag.db"), st.(*sqlite.Storage).Path())
	require.NoError(t, st.Close())

	st, err = buildStore(testConfig(t, "cache: {store: memory}"))
	require.NoError(t, err)
	assert.IsType(t, &memory.Storage{}, st)

	cfg = testConfig(t, "")
	cfg.Cache.Store = "qdrant"
	_, err = buildStore(cfg)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	cfg.Cache.Store = "redis"
	_, err = buildStore(cfg)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestBuild(t *testing.T) {
	cfg := testConfig(t, "cache: {store: file, dir: "+t.TempDir()+"}\nembedder: {type: hashing}")
	p, closeFn, err := Build(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.NoError(t, closeFn())
}
