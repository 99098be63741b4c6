package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/domain"
	"pdfrag/internal/vectorindex"
	"pdfrag/internal/vectorstore"
)

func testIndex(t *testing.T, text string) *vectorindex.Index {
	t.Helper()
	idx, err := vectorindex.Build("test", []domain.Passage{
		{ID: "a", Text: text, Page: 1, Seq: 0},
		{ID: "b", Text: "second", Page: 2, Seq: 1},
	}, [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	return idx
}

func TestStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "cache")
	s, err := NewStorage(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())

	_, err = s.Load(ctx, "embeddings_resume.pdf.idx")
	require.ErrorIs(t, err, vectorstore.ErrNotFound)

	require.NoError(t, s.Save(ctx, "embeddings_resume.pdf.idx", testIndex(t, "first")))
	require.NoError(t, s.Save(ctx, "embeddings_resume.pdf.idx", testIndex(t, "replaced")))

	got, err := s.Load(ctx, "embeddings_resume.pdf.idx")
	require.NoError(t, err)
	assert.Equal(t, "replaced", got.Passages()[0].Text)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "embeddings_resume.pdf.idx", entries[0].Name())

	require.NoError(t, s.Delete(ctx, "embeddings_resume.pdf.idx"))
	require.NoError(t, s.Delete(ctx, "embeddings_resume.pdf.idx"))
	_, err = s.Load(ctx, "embeddings_resume.pdf.idx")
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)
}

func TestStorage_Corrupt(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStorage(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "k.idx"), []byte("{not json"), 0o644))

	_, err = s.Load(context.Background(), "k.idx")
	assert.ErrorIs(t, err, domain.ErrIndex)
}

func TestStorage_InvalidKey(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	require.NoError(t, err)
	for _, key := range []string{"", "../escape.idx", "a/b.idx", ".hidden"} {
		_, err := s.Load(context.Background(), key)
		assert.Error(t, err, key)
		assert.NotErrorIs(t, err, vectorstore.ErrNotFound, key)
	}
}
