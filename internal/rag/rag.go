package rag

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"literary-rag/internal/llmservice"
	"literary-rag/internal/memory"
	"literary-rag/internal/models"
	"literary-rag/internal/prompt"
)

type Retriever interface {
	Retrieve(ctx context.Context, query string, collections []string) ([]models.Passage, error)
}

type Generator interface {
	Generate(ctx context.Context, messages []llms.MessageContent, temperature float64) (string, error)
}

// Session is the per-conversation state of the query pipeline.
type Session struct {
	ID          string
	Collections []string
	UseContext  bool
	Temperature float64
	Memory      *memory.Window
}

// NewSession returns a session over all collections with retrieval on.
func NewSession(id string, collections []string, window int, temperature float64) *Session {
	return &Session{
		ID:          id,
		Collections: collections,
		UseContext:  true,
		Temperature: temperature,
		Memory:      memory.New(window),
	}
}

type RAG struct {
	retriever Retriever
	generator Generator
	template  prompt.Template
}

func NewRAG(retriever Retriever, generator Generator, tmpl prompt.Template) *RAG {
	return &RAG{retriever: retriever, generator: generator, template: tmpl}
}

// FormatContext renders the passages for the prompt, "" when there are none.
func FormatContext(passages []models.Passage) string {
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		parts = append(parts, models.ContextTitlePrefix+p.Title+"\n"+p.Text)
	}
	return strings.Join(parts, models.ContextSeparator)
}

// Retrieve returns the formatted context and the passages behind it.
func (r *RAG) Retrieve(ctx context.Context, query string, collections []string) (string, []models.Passage, error) {
	passages, err := r.retriever.Retrieve(ctx, query, collections)
	if err != nil {
		return "", nil, err
	}
	return FormatContext(passages), passages, nil
}

// Query answers one question in the session and records the exchange in
// its memory. Nothing is recorded when a step fails.
func (r *RAG) Query(ctx context.Context, s *Session, question string) (*models.PromptResponse, error) {
	if s == nil {
		return nil, errors.New("rag: nil session")
	}
	if s.Memory == nil {
		s.Memory = memory.New(memory.DefaultWindow)
	}

	var contextText string
	var passages []models.Passage
	if s.UseContext && len(s.Collections) > 0 {
		var err error
		contextText, passages, err = r.Retrieve(ctx, question, s.Collections)
		if err != nil {
			return nil, err
		}
	}

	messages, state, err := prompt.Build(r.template, s.Memory.Messages(), question, contextText)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("session", s.ID).
		Str("state", state.String()).
		Int("passages", len(passages)).
		Msg("Generating answer")

	answer, err := r.generator.Generate(ctx, messages, s.Temperature)
	if err != nil {
		return nil, err
	}

	s.Memory.AppendExchange(question, answer, &models.Settings{
		Backend:     r.backendName(),
		Collections: append([]string(nil), s.Collections...),
		UseContext:  s.UseContext,
		Temperature: s.Temperature,
	})

	return &models.PromptResponse{
		Query:    question,
		Context:  contextText,
		Content:  answer,
		State:    state.String(),
		Passages: passages,
	}, nil
}

func (r *RAG) backendName() string {
	if g, ok := r.generator.(interface{ Backend() llmservice.Backend }); ok {
		return g.Backend().String()
	}
	return ""
}

var selectionAliases = map[string]string{
	"novels":        models.CollectionNovels,
	"novel":         models.CollectionNovels,
	"μυθιστορήματα": models.CollectionNovels,
	"stories":       models.CollectionStories,
	"short stories": models.CollectionStories,
	"short_stories": models.CollectionStories,
	"διηγήματα":     models.CollectionStories,
	"articles":      models.CollectionArticles,
	"άρθρα":         models.CollectionArticles,
	"poems":         models.CollectionPoems,
	"ποιήματα":      models.CollectionPoems,
}

// ParseSelection turns a UI style choice into collection names. "all"
// selects every configured collection and "none" (or "") selects nothing.
// Anything else is a comma separated list; names without an alias are kept
// as given for the coordinator to reject.
func ParseSelection(s string, configured []string) []string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "all", "όλα":
		return append([]string(nil), configured...)
	case "", "none", "κανένα":
		return []string{}
	}

	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if alias, ok := selectionAliases[name]; ok {
			name = alias
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
