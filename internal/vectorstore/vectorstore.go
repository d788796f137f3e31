// Package vectorstore defines the index contract shared by the chromem-go
// and pgvector backends, and the diversity re-selection both apply to their
// raw nearest neighbours.
package vectorstore

import (
	"context"

	"literary-rag/internal/lazy"
	"literary-rag/internal/models"
)

type Diversity int

const (
	// Similarity returns the K nearest chunks.
	Similarity Diversity = iota
	// MMR fetches FetchK nearest chunks and keeps K of them by maximal
	// marginal relevance.
	MMR
)

type SearchOptions struct {
	K         int
	FetchK    int
	Lambda    float64
	Diversity Diversity
}

// DefaultSearchOptions matches the candidate stage of the query pipeline.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{K: 10, FetchK: 20, Lambda: 0.5, Diversity: MMR}
}

// Normalize fills zero values and clamps the options into range.
func (o SearchOptions) Normalize() SearchOptions {
	if o.K <= 0 {
		o.K = 10
	}
	if o.Diversity == Similarity {
		o.FetchK = o.K
	}
	if o.FetchK < o.K {
		o.FetchK = o.K
	}
	o.Lambda = min(max(o.Lambda, 0), 1)
	return o
}

// Index answers similarity queries against one named collection.
type Index interface {
	Search(ctx context.Context, collection, query string, opts SearchOptions) ([]models.Candidate, error)
}

// Writer stores chunks, replacing chunks with the same ID.
type Writer interface {
	Upsert(ctx context.Context, collection string, chunks []models.Chunk) error
}

// Store is a backend that can both read and write.
type Store interface {
	Index
	Writer
	Count(ctx context.Context, collection string) (int, error)
	Close() error
}

// Lazy opens the wrapped store on first use. Close is a no-op when the
// store was never opened.
type Lazy struct {
	v *lazy.Value[Store]
}

var _ Store = (*Lazy)(nil)

func NewLazy(open func(ctx context.Context) (Store, error)) *Lazy {
	return &Lazy{v: lazy.New(open)}
}

// Get opens the store if needed.
func (l *Lazy) Get(ctx context.Context) (Store, error) {
	return l.v.Get(ctx)
}

func (l *Lazy) Search(ctx context.Context, collection, query string, opts SearchOptions) ([]models.Candidate, error) {
	s, err := l.v.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, collection, query, opts)
}

func (l *Lazy) Upsert(ctx context.Context, collection string, chunks []models.Chunk) error {
	s, err := l.v.Get(ctx)
	if err != nil {
		return err
	}
	return s.Upsert(ctx, collection, chunks)
}

func (l *Lazy) Count(ctx context.Context, collection string) (int, error) {
	s, err := l.v.Get(ctx)
	if err != nil {
		return 0, err
	}
	return s.Count(ctx, collection)
}

func (l *Lazy) Close() error {
	if !l.v.Ready() {
		return nil
	}
	s, err := l.v.Get(context.Background())
	if err != nil {
		return err
	}
	return s.Close()
}
