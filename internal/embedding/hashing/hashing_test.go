package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	s := 0.0
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestEmbed_Deterministic(t *testing.T) {
	ctx := context.Background()
	a, err := NewEmbedder(64).Embed(ctx, "Skills: Python, Go.")
	require.NoError(t, err)
	b, err := NewEmbedder(64).Embed(ctx, "Skills: Python, Go.")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
}

func TestEmbed_NoTokens(t *testing.T) {
	vec, err := NewEmbedder(16).Embed(context.Background(), "the of ...")
	require.NoError(t, err)
	assert.Zero(t, norm(vec))
}

func TestEmbedBatch_Order(t *testing.T) {
	e := NewEmbedder(32)
	ctx := context.Background()
	texts := []string{"golang channels", "python decorators", "golang channels"}
	out, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, out[0], out[2])
	single, err := e.Embed(ctx, texts[1])
	require.NoError(t, err)
	assert.Equal(t, single, out[1])
}

func TestNameAndDefaults(t *testing.T) {
	e := NewEmbedder(0)
	assert.Equal(t, DefaultDimension, e.Dimension())
	assert.Equal(t, "hashing-512", e.Name())
}

func TestTokenize(t *testing.T) {
	e := NewEmbedder(8)
	assert.Equal(t, []string{"skills", "python", "go", "c++", "3", "years"},
		e.tokenize("Skills: Python, Go, C++ and 3 years"))
}
