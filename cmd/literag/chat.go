package main

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"literary-rag/internal/rag"
)

var (
	chatCollections string
	chatBackend     string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Reads questions from standard input and keeps the recent exchanges as
conversation memory. Type /clear to forget the conversation, /context to
toggle retrieval and /exit to quit.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatCollections, "collections", "all", "collections to search")
	chatCmd.Flags().StringVarP(&chatBackend, "backend", "b", "", "generation backend (openai, gemini, hosted)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a := newApp(cfg)
	defer a.Close()

	pipeline, coord, err := a.rag(chatBackend)
	if err != nil {
		return err
	}
	session := rag.NewSession("chat", rag.ParseSelection(chatCollections, coord.Collections()), cfg.Memory.Window, cfg.LLM.Temperature)

	return chatLoop(ctx, cmd.InOrStdin(), cmd, session, func(ctx context.Context, question string) (string, error) {
		resp, err := pipeline.Query(ctx, session, question)
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	})
}

type askFunc func(ctx context.Context, question string) (string, error)

// chatLoop runs the read/answer loop until EOF or /exit. A failed question
// is reported and the loop goes on.
func chatLoop(ctx context.Context, in io.Reader, cmd *cobra.Command, session *rag.Session, ask askFunc) error {
	scanner := bufio.NewScanner(in)
	cmd.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "/exit", "/quit":
			return nil
		case "/clear":
			session.Memory.Clear()
			cmd.Println("Conversation cleared.")
		case "/context":
			session.UseContext = !session.UseContext
			cmd.Printf("Retrieval %s.\n", onOff(session.UseContext))
		default:
			answer, err := ask(ctx, line)
			if err != nil {
				cmd.PrintErrf("error: %v\n", err)
			} else {
				cmd.Println(answer)
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		cmd.Print("> ")
	}
	return scanner.Err()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
