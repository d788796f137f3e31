package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"literary-rag/internal/config"
	"literary-rag/internal/models"
)

type countingEmbedder struct {
	queries int
	docs    int
	fail    bool
}

func (c *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	c.docs++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (c *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	c.queries++
	if c.fail {
		return nil, errors.New("embedder down")
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestQueryCache_EmbedsOncePerText(t *testing.T) {
	inner := &countingEmbedder{}
	q := NewQueryCache(inner, time.Minute)
	ctx := context.Background()

	a, err := q.EmbedQuery(ctx, "θάλασσα")
	require.NoError(t, err)
	b, err := q.EmbedQuery(ctx, "θάλασσα")
	require.NoError(t, err)
	_, err = q.EmbedQuery(ctx, "ξωκλήσι")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 2, inner.queries)
}

func TestQueryCache_DoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{fail: true}
	q := NewQueryCache(inner, time.Minute)

	_, err := q.EmbedQuery(context.Background(), "x")
	require.Error(t, err)
	inner.fail = false
	_, err = q.EmbedQuery(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.queries)
}

func TestFunc(t *testing.T) {
	f := Func(&countingEmbedder{})
	v, err := f(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 1}, v)
}

func TestEmbedChunks(t *testing.T) {
	inner := &countingEmbedder{}
	vecs, err := EmbedChunks(context.Background(), inner, []models.Chunk{{Text: "a"}, {Text: "bb"}})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {2, 1}}, vecs)
	assert.Equal(t, 1, inner.docs)

	vecs, err = EmbedChunks(context.Background(), inner, nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(config.EmbeddingConfig{LLMConfig: config.LLMConfig{Provider: "word2vec"}})
	assert.Error(t, err)
}

func TestLazy_RetriesFailedBuild(t *testing.T) {
	l := NewLazy(config.EmbeddingConfig{LLMConfig: config.LLMConfig{Provider: "word2vec"}})
	_, err := l.EmbedQuery(context.Background(), "x")
	assert.Error(t, err)
	_, err = l.EmbedDocuments(context.Background(), []string{"x"})
	assert.Error(t, err)
}
