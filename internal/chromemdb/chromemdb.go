package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"literary-rag/internal/embedding"
	"literary-rag/internal/helper"
	"literary-rag/internal/models"
	"literary-rag/internal/vectorstore"
)

// metadata keys stored next to the chunk metadata
const (
	metaTitle      = "title"
	metaYear       = "year"
	metaChunkIndex = "chunk_index"
)

var _ vectorstore.Store = (*VectorDBManager)(nil)

// VectorDBManager keeps one chromem-go collection per genre.
type VectorDBManager struct {
	db            *chromem.DB
	embedder      embeddings.Embedder
	embedFunc     chromem.EmbeddingFunc
	dbPath        string
	compress      bool
	encryptionKey string

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

// NewVectorDBManager opens the database at dbPath, or an in-memory one.
func NewVectorDBManager(dbPath string, inMemory, compress bool, encryptionKey string, embedder embeddings.Embedder) (*VectorDBManager, error) {
	var db *chromem.DB
	if inMemory {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(dbPath); err != nil {
			return nil, fmt.Errorf("failed to create database folder: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &VectorDBManager{
		db:            db,
		embedder:      embedder,
		embedFunc:     embedding.Func(embedder),
		dbPath:        dbPath,
		compress:      compress,
		encryptionKey: encryptionKey,
		collections:   map[string]*chromem.Collection{},
	}, nil
}

// GetOrCreateCollection returns the named collection, creating it if needed.
func (m *VectorDBManager) GetOrCreateCollection(name string) (*chromem.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[name]; ok {
		return c, nil
	}
	c, err := m.db.GetOrCreateCollection(name, map[string]string{"genre": name}, m.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection %s: %w", name, err)
	}
	m.collections[name] = c
	return c, nil
}

// Upsert embeds the chunks and writes them; chunks with a known ID replace
// the stored version.
func (m *VectorDBManager) Upsert(ctx context.Context, collection string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	c, err := m.GetOrCreateCollection(collection)
	if err != nil {
		return err
	}
	vectors, err := embedding.EmbedChunks(ctx, m.embedder, chunks)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, ch := range chunks {
		meta := ch.Metadata.Map()
		meta[metaTitle] = ch.Title
		meta[metaYear] = strconv.Itoa(ch.Year)
		meta[metaChunkIndex] = strconv.Itoa(ch.ChunkIndex)
		docs[i] = chromem.Document{
			ID:        ch.ID,
			Content:   ch.Text,
			Metadata:  meta,
			Embedding: vectors[i],
		}
	}

	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	log.Debug().Str("collection", collection).Int("chunks", len(docs)).Msg("Upserted chunks")
	return nil
}

// Search runs the candidate stage against one collection. An empty
// collection yields no candidates.
func (m *VectorDBManager) Search(ctx context.Context, collection, query string, opts vectorstore.SearchOptions) ([]models.Candidate, error) {
	opts = opts.Normalize()
	c, err := m.GetOrCreateCollection(collection)
	if err != nil {
		return nil, err
	}
	n := c.Count()
	if n == 0 {
		log.Warn().Str("collection", collection).Msg("Collection is empty")
		return nil, nil
	}

	queryEmbedding, err := m.embedFunc(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := c.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryEmbedding,
		NResults:       min(opts.FetchK, n),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	candidates := make([]models.Candidate, len(results))
	for i, r := range results {
		candidates[i] = models.Candidate{
			ID:        r.ID,
			Text:      r.Content,
			Title:     r.Metadata[metaTitle],
			Metadata:  models.MetadataFromMap(r.Metadata),
			Score:     float64(r.Similarity),
			Embedding: r.Embedding,
		}
	}
	return vectorstore.Select(queryEmbedding, candidates, opts), nil
}

func (m *VectorDBManager) Count(ctx context.Context, collection string) (int, error) {
	c, err := m.GetOrCreateCollection(collection)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

// DeleteCollection drops a collection and its documents.
func (m *VectorDBManager) DeleteCollection(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	if err := m.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// Reset drops the named collections so the next ingest starts empty.
func (m *VectorDBManager) Reset(ctx context.Context, collections []string) error {
	for _, name := range collections {
		if err := m.DeleteCollection(name); err != nil {
			return err
		}
	}
	return nil
}

// Export writes the given collections (all when none are named) to a
// single file, encrypted when the manager has a key.
func (m *VectorDBManager) Export(ctx context.Context, filePath string, collections ...string) error {
	if filePath == "" {
		return fmt.Errorf("export file path is required")
	}
	log.Debug().
		Str("file", filePath).
		Strs("collections", collections).
		Bool("compress", m.compress).
		Bool("encrypted", m.encryptionKey != "").
		Msg("Exporting collections")
	if err := m.db.ExportToFile(filePath, m.compress, m.encryptionKey, collections...); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads collections written by Export.
func (m *VectorDBManager) Import(ctx context.Context, filePath string, collections ...string) error {
	if err := m.db.ImportFromFile(filePath, m.encryptionKey, collections...); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	m.mu.Lock()
	m.collections = map[string]*chromem.Collection{}
	m.mu.Unlock()
	return nil
}

func (m *VectorDBManager) Close() error { return nil }
