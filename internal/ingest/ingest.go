// Package ingest turns a corpus folder into indexed chunks.
package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"literary-rag/internal/models"
	"literary-rag/internal/parser"
	"literary-rag/internal/vectorstore"
)

type Chunker interface {
	Chunk(doc models.Document) ([]models.Chunk, error)
}

// Stats summarizes one ingestion run.
type Stats struct {
	Documents   int
	Chunks      int
	Collections map[string]int
	Failures    []parser.FileError
}

// CollectionNames returns the collections that received chunks, sorted.
func (s *Stats) CollectionNames() []string {
	names := make([]string, 0, len(s.Collections))
	for name := range s.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Pipeline struct {
	chunker Chunker
	writer  vectorstore.Writer
	walk    parser.WalkOptions
}

// New returns an ingestion pipeline. A nil writer chunks without storing
// anything.
func New(chunker Chunker, writer vectorstore.Writer, walk parser.WalkOptions) *Pipeline {
	return &Pipeline{chunker: chunker, writer: writer, walk: walk}
}

// Run walks root and indexes every document found.
func (p *Pipeline) Run(ctx context.Context, root string) (*Stats, error) {
	res, err := parser.Walk(root, p.walk)
	if err != nil {
		return nil, err
	}
	stats, err := p.Ingest(ctx, res.Documents)
	if stats != nil {
		stats.Failures = append(res.Failures, stats.Failures...)
	}
	return stats, err
}

// Ingest chunks and stores the documents one at a time, so an interrupted
// run keeps what it already wrote. A document that cannot be chunked is
// recorded as a failure; a storage error stops the run.
func (p *Pipeline) Ingest(ctx context.Context, docs []models.Document) (*Stats, error) {
	stats := &Stats{Collections: make(map[string]int)}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		chunks, err := p.chunker.Chunk(doc)
		if err != nil {
			log.Warn().Err(err).Str("source", doc.Metadata.Source).Msg("Skipping document")
			stats.Failures = append(stats.Failures, parser.FileError{Path: doc.Metadata.Source, Err: err})
			continue
		}
		if len(chunks) == 0 {
			continue
		}

		collection := doc.Metadata.Collection
		if p.writer != nil {
			if err := p.writer.Upsert(ctx, collection, chunks); err != nil {
				return stats, fmt.Errorf("failed to store %s: %w", doc.Metadata.Source, err)
			}
		}

		stats.Documents++
		stats.Chunks += len(chunks)
		stats.Collections[collection] += len(chunks)
		log.Debug().
			Str("collection", collection).
			Str("title", doc.Title).
			Str("chapter", doc.Metadata.Chapter).
			Int("chunks", len(chunks)).
			Msg("Indexed document")
	}

	log.Info().
		Int("documents", stats.Documents).
		Int("chunks", stats.Chunks).
		Int("failures", len(stats.Failures)).
		Msg("Ingestion finished")
	return stats, nil
}
