package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"literary-rag/internal/config"
	"literary-rag/internal/lazy"
	"literary-rag/internal/models"
)

// NewEmbedder creates the embedder named by cfg.Provider ("ollama" or "openai").
func NewEmbedder(cfg config.EmbeddingConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating embedder")

	var client embeddings.EmbedderClient
	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama: %w", err)
		}
		client = llm
	case "openai":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// Lazy defers building the embedder until the first call. A failed build is
// retried on the next call.
type Lazy struct {
	v *lazy.Value[embeddings.Embedder]
}

var _ embeddings.Embedder = (*Lazy)(nil)

func NewLazy(cfg config.EmbeddingConfig) *Lazy {
	return &Lazy{v: lazy.New(func(ctx context.Context) (embeddings.Embedder, error) {
		return NewEmbedder(cfg)
	})}
}

func (l *Lazy) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e, err := l.v.Get(ctx)
	if err != nil {
		return nil, err
	}
	return e.EmbedDocuments(ctx, texts)
}

func (l *Lazy) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e, err := l.v.Get(ctx)
	if err != nil {
		return nil, err
	}
	return e.EmbedQuery(ctx, text)
}

// QueryCache memoizes query embeddings, so one question searched across
// several collections is embedded once.
type QueryCache struct {
	next  embeddings.Embedder
	cache *cache.Cache
}

var _ embeddings.Embedder = (*QueryCache)(nil)

func NewQueryCache(next embeddings.Embedder, ttl time.Duration) *QueryCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &QueryCache{next: next, cache: cache.New(ttl, 2*ttl)}
}

func (q *QueryCache) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if v, ok := q.cache.Get(text); ok {
		return v.([]float32), nil
	}
	vec, err := q.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	q.cache.SetDefault(text, vec)
	return vec, nil
}

func (q *QueryCache) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return q.next.EmbedDocuments(ctx, texts)
}

// Func adapts an embedder to the function type chromem-go calls for queries.
func Func(e embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.EmbedQuery(ctx, text)
	}
}

// EmbedChunks embeds the chunk texts in one batch, in chunk order.
func EmbedChunks(ctx context.Context, e embeddings.Embedder, chunks []models.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks to embed")
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := e.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	return vectors, nil
}
