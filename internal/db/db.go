package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"literary-rag/internal/config"
	"literary-rag/internal/embedding"
	"literary-rag/internal/models"
	"literary-rag/internal/vectorstore"
)

// Passage is one stored chunk.
type Passage struct {
	bun.BaseModel `bun:"table:passages,alias:p"`
	ID            string          `bun:"id,pk"`
	Collection    string          `bun:"collection,notnull"`
	Title         string          `bun:"title"`
	Year          int             `bun:"year"`
	Type          string          `bun:"type"`
	Theme         string          `bun:"theme"`
	Chapter       string          `bun:"chapter"`
	ChapterIndex  int             `bun:"chapter_index"`
	Source        string          `bun:"source"`
	ChunkIndex    int             `bun:"chunk_index"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Distance      float64         `bun:"distance,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a pool with the configured driver: "pgdriver" (bun's own)
// or "postgres" (lib/pq). The connection is established lazily.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	switch strings.ToLower(cfg.Driver) {
	case "", "pgdriver":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	case "postgres", "pq":
		return sql.Open("postgres", cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// InitDB creates the pgvector extension, the passages table and its indexes.
func InitDB(ctx context.Context, db *bun.DB, dimensions int) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*Passage)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create passages table: %w", err)
	}
	if dimensions > 0 {
		q := fmt.Sprintf("ALTER TABLE passages ALTER COLUMN embedding TYPE vector(%d)", dimensions)
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to set vector size: %w", err)
		}
	}
	_, err := db.NewCreateIndex().
		Model((*Passage)(nil)).
		Index("passages_collection_idx").
		Column("collection").
		IfNotExists().
		Exec(ctx)
	return err
}

// DropPassages drops the passages table.
func DropPassages(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*Passage)(nil)).IfExists().Exec(ctx)
	return err
}

var _ vectorstore.Store = (*Store)(nil)

// Store is the pgvector backed index. All genres share one table and are
// told apart by the collection column.
type Store struct {
	db       *bun.DB
	embedder embeddings.Embedder
}

func NewStore(db *bun.DB, embedder embeddings.Embedder) *Store {
	return &Store{db: db, embedder: embedder}
}

func (s *Store) Upsert(ctx context.Context, collection string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	vectors, err := embedding.EmbedChunks(ctx, s.embedder, chunks)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	rows := make([]Passage, len(chunks))
	for i, c := range chunks {
		rows[i] = passageFromChunk(collection, c, vectors[i])
	}

	_, err = s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("collection = EXCLUDED.collection").
		Set("title = EXCLUDED.title").
		Set("year = EXCLUDED.year").
		Set("type = EXCLUDED.type").
		Set("theme = EXCLUDED.theme").
		Set("chapter = EXCLUDED.chapter").
		Set("source = EXCLUDED.source").
		Set("chunk_index = EXCLUDED.chunk_index").
		Set("content = EXCLUDED.content").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store passages: %w", err)
	}
	log.Debug().Str("collection", collection).Int("chunks", len(rows)).Msg("Upserted passages")
	return nil
}

// Search orders by cosine distance and re-selects with MMR when asked.
func (s *Store) Search(ctx context.Context, collection, query string, opts vectorstore.SearchOptions) ([]models.Candidate, error) {
	opts = opts.Normalize()
	queryEmbedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var rows []Passage
	err = s.db.NewSelect().
		Model(&rows).
		ColumnExpr("p.*").
		ColumnExpr("p.embedding <=> ? AS distance", pgvector.NewVector(queryEmbedding)).
		Where("p.collection = ?", collection).
		OrderExpr("distance").
		Limit(opts.FetchK).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search passages: %w", err)
	}

	candidates := make([]models.Candidate, len(rows))
	for i, r := range rows {
		candidates[i] = r.candidate()
	}
	return vectorstore.Select(queryEmbedding, candidates, opts), nil
}

func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	return s.db.NewSelect().Model((*Passage)(nil)).Where("collection = ?", collection).Count(ctx)
}

// Reset deletes every passage of the named collections.
func (s *Store) Reset(ctx context.Context, collections []string) error {
	if len(collections) == 0 {
		return nil
	}
	_, err := s.db.NewDelete().
		Model((*Passage)(nil)).
		Where("collection IN (?)", bun.In(collections)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset passages: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func passageFromChunk(collection string, c models.Chunk, vector []float32) Passage {
	return Passage{
		ID:           c.ID,
		Collection:   collection,
		Title:        c.Title,
		Year:         c.Year,
		Type:         c.Metadata.Type,
		Theme:        c.Metadata.Theme,
		Chapter:      c.Metadata.Chapter,
		ChapterIndex: c.Metadata.ChapterIndex,
		Source:       c.Metadata.Source,
		ChunkIndex:   c.ChunkIndex,
		Content:      c.Text,
		Embedding:    pgvector.NewVector(vector),
	}
}

func (p Passage) candidate() models.Candidate {
	return models.Candidate{
		ID:    p.ID,
		Text:  p.Content,
		Title: p.Title,
		Metadata: models.Metadata{
			Type:         p.Type,
			Theme:        p.Theme,
			Collection:   p.Collection,
			Chapter:      p.Chapter,
			ChapterIndex: p.ChapterIndex,
			Source:       p.Source,
		},
		Score:     1 - p.Distance,
		Embedding: p.Embedding.Slice(),
	}
}
