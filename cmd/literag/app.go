package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"literary-rag/internal/chromemdb"
	"literary-rag/internal/chunker"
	"literary-rag/internal/config"
	"literary-rag/internal/db"
	"literary-rag/internal/embedding"
	"literary-rag/internal/llmservice"
	"literary-rag/internal/parser"
	"literary-rag/internal/prompt"
	"literary-rag/internal/rag"
	"literary-rag/internal/rerank"
	"literary-rag/internal/retrieval"
	"literary-rag/internal/vectorstore"
)

// app holds the shared handles of one command run. Clients are created on
// first use, so a command only connects to what it needs.
type app struct {
	cfg      *config.Config
	embedder embeddings.Embedder
	store    *vectorstore.Lazy
}

func newApp(cfg *config.Config) *app {
	a := &app{
		cfg:      cfg,
		embedder: embedding.NewQueryCache(embedding.NewLazy(cfg.Embedding), cfg.Embedding.CacheTTL),
	}
	a.store = vectorstore.NewLazy(a.openStore)
	return a
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) openStore(ctx context.Context) (vectorstore.Store, error) {
	vs := a.cfg.VectorStore
	switch vs.Backend {
	case "pgvector":
		sqldb, err := db.ConnectDB(&vs.Database)
		if err != nil {
			return nil, err
		}
		bunDB := db.NewDB(sqldb, vs.Database.Debug)
		if err := db.InitDB(ctx, bunDB, vs.Database.Dimensions); err != nil {
			bunDB.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return db.NewStore(bunDB, a.embedder), nil
	default:
		m, err := chromemdb.NewVectorDBManager(vs.Path, vs.InMemory, vs.Compress, vs.EncryptionKey, a.embedder)
		if err != nil {
			return nil, err
		}
		if vs.InMemory && vs.ExportFile != "" {
			if _, err := os.Stat(vs.ExportFile); err == nil {
				if err := m.Import(ctx, vs.ExportFile); err != nil {
					return nil, err
				}
				log.Info().Str("file", vs.ExportFile).Msg("Imported vector database")
			} else if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
		return m, nil
	}
}

// chromem returns the chromem-go manager, or an error for other backends.
func (a *app) chromem(ctx context.Context) (*chromemdb.VectorDBManager, error) {
	s, err := a.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	m, ok := s.(*chromemdb.VectorDBManager)
	if !ok {
		return nil, fmt.Errorf("%s backend does not support export", a.cfg.VectorStore.Backend)
	}
	return m, nil
}

func (a *app) walkOptions() (parser.WalkOptions, error) {
	c := a.cfg.Corpus
	chapters, err := parser.NewChapterSplitter(c.ChapterMarkers, c.IntroTitle)
	if err != nil {
		return parser.WalkOptions{}, err
	}
	return parser.WalkOptions{
		DefaultTheme:       c.DefaultTheme,
		TypeCollections:    c.TypeCollections,
		ChapterCollections: c.ChapterCollections,
		Chapters:           chapters,
	}, nil
}

func (a *app) chunker() (*chunker.Set, error) {
	count, err := chunker.NewCounter(a.cfg.Chunking.Tokenizer)
	if err != nil {
		return nil, err
	}
	return chunker.NewSet(a.cfg.Chunking.Profiles, count)
}

func (a *app) reranker() retrieval.Reranker {
	rc := a.cfg.Rerank
	if rc.Disabled {
		return nil
	}
	model := llmservice.NewLazyModel(func(ctx context.Context) (llms.Model, error) {
		return llmservice.NewHelperModel(ctx, rc.LLMConfig)
	})
	return rerank.New(model,
		rerank.WithRateLimit(rc.RequestsPerSecond, rc.Burst),
		rerank.WithMaxPassageChars(rc.MaxPassageChars),
	)
}

func (a *app) coordinator() (*retrieval.Coordinator, error) {
	r := a.cfg.Retrieval
	return retrieval.New(a.store, a.reranker(), retrieval.Options{
		Collections: r.Collections,
		Search: vectorstore.SearchOptions{
			K:         r.K,
			FetchK:    r.FetchK,
			Lambda:    r.Lambda,
			Diversity: vectorstore.MMR,
		},
		TopN:           r.TopN,
		Timeout:        r.Timeout,
		Retry:          retrieval.RetryPolicy{Attempts: r.RetryAttempts, Backoff: r.RetryBackoff},
		RerankFallback: r.RerankFallback,
	})
}

// generator builds the generation client; backend overrides the configured
// one when set.
func (a *app) generator(backend string) (*llmservice.Generator, error) {
	gc := a.cfg.LLM
	if backend != "" {
		gc.Backend = backend
	}
	c, err := llmservice.ConfigFrom(gc)
	if err != nil {
		return nil, err
	}
	return llmservice.New(c)
}

func (a *app) rag(backend string) (*rag.RAG, *retrieval.Coordinator, error) {
	coord, err := a.coordinator()
	if err != nil {
		return nil, nil, err
	}
	gen, err := a.generator(backend)
	if err != nil {
		return nil, nil, err
	}
	tmpl := prompt.NewTemplate(a.cfg.LLM.SystemPrompt, a.cfg.LLM.ContextualizeInstructions)
	return rag.NewRAG(coord, gen, tmpl), coord, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
