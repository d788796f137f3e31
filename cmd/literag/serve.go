package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"literary-rag/internal/rag"
	"literary-rag/internal/server"
)

var (
	serveAddr    string
	serveBackend string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides the config")
	serveCmd.Flags().StringVarP(&serveBackend, "backend", "b", "", "generation backend (openai, gemini, hosted)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg)
	defer a.Close()

	pipeline, coord, err := a.rag(serveBackend)
	if err != nil {
		return err
	}

	sessions := server.NewSessionStore(cfg.Memory.SessionTTL, func(id string) *rag.Session {
		return rag.NewSession(id, coord.Collections(), cfg.Memory.Window, cfg.LLM.Temperature)
	})

	sc := cfg.Server
	if serveAddr != "" {
		sc.Addr = serveAddr
	}
	err = server.NewServer(sc, pipeline, sessions, coord.Collections()).Start(ctx)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
