package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"literary-rag/internal/helper"
	"literary-rag/internal/ingest"
	"literary-rag/internal/models"
	"literary-rag/internal/vectorstore"
)

var (
	ingestDryRun bool
	ingestPrint  bool
	ingestReset  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [corpus-dir]",
	Short: "Index the corpus into the vector store",
	Long: `Walks the corpus folder (<type>/<theme>/<file>), normalizes every text,
splits novels into chapters, chunks each document with the profile of its
genre and upserts the chunks into one collection per genre.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "chunk the corpus without storing anything")
	ingestCmd.Flags().BoolVar(&ingestPrint, "print", false, "print the chunks (implies --dry-run)")
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "empty the collections before indexing")
	rootCmd.AddCommand(ingestCmd)
}

type resetter interface {
	Reset(ctx context.Context, collections []string) error
}

// printWriter prints chunks instead of storing them.
type printWriter struct{}

func (printWriter) Upsert(ctx context.Context, collection string, chunks []models.Chunk) error {
	helper.PrettyPrint(chunks)
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	root := cfg.Corpus.Root
	if len(args) == 1 {
		root = args[0]
	}

	a := newApp(cfg)
	defer a.Close()

	walk, err := a.walkOptions()
	if err != nil {
		return err
	}
	splitter, err := a.chunker()
	if err != nil {
		return err
	}

	var writer vectorstore.Writer
	switch {
	case ingestPrint:
		writer = printWriter{}
	case ingestDryRun:
	default:
		writer = a.store
		if ingestReset {
			s, err := a.store.Get(ctx)
			if err != nil {
				return err
			}
			if r, ok := s.(resetter); ok {
				if err := r.Reset(ctx, cfg.Retrieval.Collections); err != nil {
					return err
				}
				log.Info().Strs("collections", cfg.Retrieval.Collections).Msg("Collections reset")
			}
		}
	}

	stats, err := ingest.New(splitter, writer, walk).Run(ctx, root)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if writer == a.store && cfg.VectorStore.InMemory && cfg.VectorStore.ExportFile != "" {
		m, err := a.chromem(ctx)
		if err != nil {
			return err
		}
		if err := m.Export(ctx, cfg.VectorStore.ExportFile); err != nil {
			return err
		}
	}

	cmd.Printf("Indexed %d documents into %d chunks\n", stats.Documents, stats.Chunks)
	for _, name := range stats.CollectionNames() {
		cmd.Printf("  %-10s %d\n", name, stats.Collections[name])
	}
	if len(stats.Failures) > 0 {
		cmd.Printf("Skipped %d files:\n", len(stats.Failures))
		for _, f := range stats.Failures {
			cmd.Printf("  %s\n", f.Error())
		}
	}
	return nil
}
