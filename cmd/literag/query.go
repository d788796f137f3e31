package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"literary-rag/internal/models"
	"literary-rag/internal/rag"
)

var (
	queryCollections  string
	queryBackend      string
	queryTemperature  float64
	queryNoContext    bool
	queryRetrieveOnly bool
	queryJSON         bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer one question",
	Long: `Retrieves passages from the selected collections, reranks them and asks
the configured language model. Collections are "all", "none" or a comma
separated list such as "novels,poems".`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryCollections, "collections", "all", "collections to search")
	queryCmd.Flags().StringVarP(&queryBackend, "backend", "b", "", "generation backend (openai, gemini, hosted)")
	queryCmd.Flags().Float64VarP(&queryTemperature, "temperature", "t", -1, "sampling temperature, negative for the configured one")
	queryCmd.Flags().BoolVar(&queryNoContext, "no-context", false, "answer without retrieved passages")
	queryCmd.Flags().BoolVar(&queryRetrieveOnly, "retrieve-only", false, "print the retrieved passages and stop")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	question := args[0]

	a := newApp(cfg)
	defer a.Close()

	pipeline, coord, err := a.rag(queryBackend)
	if err != nil {
		return err
	}
	collections := rag.ParseSelection(queryCollections, coord.Collections())

	if queryRetrieveOnly {
		contextText, passages, err := pipeline.Retrieve(ctx, question, collections)
		if err != nil {
			return fmt.Errorf("retrieval failed: %w", err)
		}
		if queryJSON {
			return printJSON(cmd, map[string]any{"context": contextText, "passages": passages})
		}
		printPassages(cmd, passages)
		return nil
	}

	temperature := cfg.LLM.Temperature
	if queryTemperature >= 0 {
		temperature = queryTemperature
	}
	session := rag.NewSession("cli", collections, cfg.Memory.Window, temperature)
	session.UseContext = !queryNoContext

	resp, err := pipeline.Query(ctx, session, question)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if queryJSON {
		return printJSON(cmd, resp)
	}

	cmd.Println(resp.Content)
	if len(resp.Passages) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		printPassages(cmd, resp.Passages)
	}
	return nil
}

func printPassages(cmd *cobra.Command, passages []models.Passage) {
	if len(passages) == 0 {
		cmd.Println("No passages found.")
		return
	}
	for _, p := range passages {
		degraded := ""
		if p.Degraded {
			degraded = " (not reranked)"
		}
		cmd.Printf("  [%d] %s (%s, %.2f)%s\n", p.Rank, p.Title, p.Collection, p.Score, degraded)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
