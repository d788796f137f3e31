package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"literary-rag/internal/models"
)

type countingStore struct {
	upserts int
	closed  bool
}

func (s *countingStore) Search(ctx context.Context, collection, query string, opts SearchOptions) ([]models.Candidate, error) {
	return []models.Candidate{{ID: collection + ":" + query}}, nil
}

func (s *countingStore) Upsert(ctx context.Context, collection string, chunks []models.Chunk) error {
	s.upserts += len(chunks)
	return nil
}

func (s *countingStore) Count(ctx context.Context, collection string) (int, error) {
	return s.upserts, nil
}

func (s *countingStore) Close() error {
	s.closed = true
	return nil
}

func TestNormalize(t *testing.T) {
	got := SearchOptions{}.Normalize()
	assert.Equal(t, 10, got.K)
	assert.Equal(t, 10, got.FetchK)

	got = SearchOptions{K: 5, FetchK: 3, Lambda: 2, Diversity: MMR}.Normalize()
	assert.Equal(t, 5, got.FetchK)
	assert.Equal(t, 1.0, got.Lambda)

	got = SearchOptions{K: 5, FetchK: 50, Diversity: Similarity}.Normalize()
	assert.Equal(t, 5, got.FetchK)
}

func TestLazy_OpensOnFirstUse(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{}
	opens := 0
	l := NewLazy(func(ctx context.Context) (Store, error) {
		opens++
		return inner, nil
	})

	require.NoError(t, l.Close())
	assert.Zero(t, opens)

	require.NoError(t, l.Upsert(ctx, "poems", []models.Chunk{{ID: "a"}, {ID: "b"}}))
	n, err := l.Count(ctx, "poems")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := l.Search(ctx, "poems", "θάλασσα", DefaultSearchOptions())
	require.NoError(t, err)
	assert.Equal(t, "poems:θάλασσα", hits[0].ID)
	assert.Equal(t, 1, opens)

	require.NoError(t, l.Close())
	assert.True(t, inner.closed)
}

func TestLazy_RetriesFailedOpen(t *testing.T) {
	attempts := 0
	l := NewLazy(func(ctx context.Context) (Store, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("connection refused")
		}
		return &countingStore{}, nil
	})

	_, err := l.Search(context.Background(), "novels", "q", DefaultSearchOptions())
	assert.Error(t, err)
	_, err = l.Search(context.Background(), "novels", "q", DefaultSearchOptions())
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}
