// Package retrieval runs the two stage search (diverse candidates, then
// rerank) over the genre collections and merges the results.
package retrieval

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"literary-rag/internal/models"
	"literary-rag/internal/vectorstore"
)

// Reranker scores candidates against the query and returns at most topN
// of them with updated scores.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []models.Candidate, topN int) ([]models.Candidate, error)
}

// RetryPolicy applies to each external call of a collection pipeline.
// Attempts counts the first try.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

type Options struct {
	// Collections lists the indexed collections in merge order.
	Collections []string
	Search      vectorstore.SearchOptions
	TopN        int
	// Timeout bounds one collection pipeline; zero means no bound.
	Timeout        time.Duration
	Retry          RetryPolicy
	RerankFallback bool
}

// DefaultOptions returns the settings the corpus was tuned with.
func DefaultOptions() Options {
	return Options{
		Collections: append([]string(nil), models.DefaultCollections...),
		Search:      vectorstore.DefaultSearchOptions(),
		TopN:        3,
		Timeout:     30 * time.Second,
		Retry:       RetryPolicy{Attempts: 1},
	}
}

type Coordinator struct {
	index    vectorstore.Index
	reranker Reranker
	opts     Options
	known    map[string]int
}

// New builds a coordinator. A nil reranker keeps the candidate order.
func New(index vectorstore.Index, reranker Reranker, opts Options) (*Coordinator, error) {
	if index == nil {
		return nil, errors.New("retrieval: index is required")
	}
	if len(opts.Collections) == 0 {
		return nil, errors.New("retrieval: no collections configured")
	}
	if opts.TopN <= 0 {
		opts.TopN = 3
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry.Attempts = 1
	}
	opts.Search = opts.Search.Normalize()

	known := make(map[string]int, len(opts.Collections))
	for i, name := range opts.Collections {
		if _, dup := known[name]; dup {
			return nil, fmt.Errorf("retrieval: collection %q configured twice", name)
		}
		known[name] = i
	}
	return &Coordinator{index: index, reranker: reranker, opts: opts, known: known}, nil
}

// Collections returns the configured collections in merge order.
func (c *Coordinator) Collections() []string {
	return slices.Clone(c.opts.Collections)
}

// Retrieve searches the selected collections. With one collection the full
// reranked top N is returned. With several, each contributes its best
// passage and the output follows the configured collection order, not the
// scores. In that mode a failing collection is dropped with a warning; the
// call fails only when every collection fails.
func (c *Coordinator) Retrieve(ctx context.Context, query string, collections []string) ([]models.Passage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	selected, err := c.resolve(collections)
	if err != nil {
		return nil, err
	}

	switch len(selected) {
	case 0:
		return nil, nil
	case 1:
		passages, err := c.pipeline(ctx, query, selected[0])
		if err != nil {
			return nil, err
		}
		return rank(passages), nil
	}

	results := make([][]models.Passage, len(selected))
	errs := make([]error, len(selected))
	var g errgroup.Group
	g.SetLimit(len(selected))
	for i, name := range selected {
		g.Go(func() error {
			results[i], errs[i] = c.pipeline(ctx, query, name)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var merged []models.Passage
	var failed []error
	for i, name := range selected {
		if errs[i] != nil {
			log.Warn().Err(errs[i]).Str("collection", name).Msg("Dropping collection from merge")
			failed = append(failed, errs[i])
			continue
		}
		if len(results[i]) > 0 {
			merged = append(merged, results[i][0])
		}
	}
	if len(failed) == len(selected) {
		return nil, errors.Join(failed...)
	}
	return rank(merged), nil
}

// resolve validates the names and returns them deduplicated in merge order.
func (c *Coordinator) resolve(collections []string) ([]string, error) {
	var unknown []string
	seen := map[string]bool{}
	var selected []string
	for _, name := range collections {
		name = strings.TrimSpace(name)
		if _, ok := c.known[name]; !ok {
			unknown = append(unknown, name)
			continue
		}
		if !seen[name] {
			seen[name] = true
			selected = append(selected, name)
		}
	}
	if len(unknown) > 0 {
		return nil, &UnknownCollectionError{Names: unknown}
	}
	slices.SortFunc(selected, func(a, b string) int {
		return cmp.Compare(c.known[a], c.known[b])
	})
	return selected, nil
}

// pipeline is the candidate stage followed by the rerank stage for one
// collection.
func (c *Coordinator) pipeline(ctx context.Context, query, collection string) ([]models.Passage, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	var candidates []models.Candidate
	err := c.retry(ctx, func(ctx context.Context) error {
		var err error
		candidates, err = c.index.Search(ctx, collection, query, c.opts.Search)
		return err
	})
	if err != nil {
		return nil, &CollectionUnavailableError{Collection: collection, Err: err}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	if c.reranker == nil {
		return passages(collection, candidates[:min(c.opts.TopN, len(candidates))], false), nil
	}

	var reranked []models.Candidate
	err = c.retry(ctx, func(ctx context.Context) error {
		var err error
		reranked, err = c.reranker.Rerank(ctx, query, candidates, c.opts.TopN)
		return err
	})
	if err != nil {
		if !c.opts.RerankFallback || ctx.Err() != nil {
			return nil, &RerankError{Collection: collection, Err: err}
		}
		log.Warn().Err(err).Str("collection", collection).Msg("Rerank failed, using candidate order")
		return passages(collection, candidates[:min(c.opts.TopN, len(candidates))], true), nil
	}
	return passages(collection, topByScore(candidates, reranked, c.opts.TopN), false), nil
}

// topByScore orders reranked candidates by descending score. Equal scores
// keep the candidate stage order.
func topByScore(candidates, reranked []models.Candidate, n int) []models.Candidate {
	pos := make(map[string]int, len(candidates))
	for i, cand := range candidates {
		if _, ok := pos[cand.ID]; !ok {
			pos[cand.ID] = i
		}
	}
	out := slices.Clone(reranked)
	slices.SortStableFunc(out, func(a, b models.Candidate) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(pos[a.ID], pos[b.ID])
	})
	return out[:min(n, len(out))]
}

func (c *Coordinator) retry(ctx context.Context, call func(context.Context) error) error {
	var policy backoff.BackOff = &backoff.ZeroBackOff{}
	if c.opts.Retry.Backoff > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = c.opts.Retry.Backoff
		exp.MaxElapsedTime = 0
		policy = exp
	}
	policy = backoff.WithMaxRetries(policy, uint64(c.opts.Retry.Attempts-1))

	return backoff.RetryNotify(func() error {
		return call(ctx)
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		log.Debug().Err(err).Dur("wait", wait).Msg("Retrying index call")
	})
}

func passages(collection string, candidates []models.Candidate, degraded bool) []models.Passage {
	out := make([]models.Passage, len(candidates))
	for i, cand := range candidates {
		out[i] = models.Passage{
			Text:       cand.Text,
			Title:      cand.Title,
			Score:      cand.Score,
			Collection: collection,
			Degraded:   degraded,
		}
	}
	return out
}

func rank(ps []models.Passage) []models.Passage {
	for i := range ps {
		ps[i].Rank = i + 1
	}
	return ps
}
