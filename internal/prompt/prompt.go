// Package prompt picks and renders the chat prompt for one question.
package prompt

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"literary-rag/internal/models"
)

// State is decided fresh for every question from the assembled context.
type State int

const (
	WithoutContext State = iota
	WithContext
)

func (s State) String() string {
	if s == WithContext {
		return "WITH_CONTEXT"
	}
	return "WITHOUT_CONTEXT"
}

// Select returns WithContext iff the context is non-empty.
func Select(context string) State {
	if context == "" {
		return WithoutContext
	}
	return WithContext
}

// Template holds the two prompts. Both share the system prompt, the
// history placeholder and the question; the context variant adds a final
// system message with the instructions and the passages.
type Template struct {
	withContext    prompts.ChatPromptTemplate
	withoutContext prompts.ChatPromptTemplate
}

func NewTemplate(systemPrompt, contextInstructions string) Template {
	system := prompts.NewSystemMessagePromptTemplate(systemPrompt, nil)
	history := prompts.MessagesPlaceholder{VariableName: "history"}
	question := prompts.NewHumanMessagePromptTemplate("{{.question}}", []string{"question"})
	contextBlock := prompts.NewSystemMessagePromptTemplate(
		contextInstructions+"\n\n{{.context}}",
		[]string{"context"},
	)

	return Template{
		withContext:    prompts.NewChatPromptTemplate([]prompts.MessageFormatter{system, history, question, contextBlock}),
		withoutContext: prompts.NewChatPromptTemplate([]prompts.MessageFormatter{system, history, question}),
	}
}

// DefaultTemplate uses the built-in Greek prompts.
func DefaultTemplate() Template {
	return NewTemplate(models.DefaultSystemPrompt, models.DefaultContextualizeInstructions)
}

// Build renders the prompt for the state selected by context.
func Build(t Template, history []llms.ChatMessage, question, context string) ([]llms.MessageContent, State, error) {
	state := Select(context)
	tmpl := t.withoutContext
	values := map[string]any{
		"history":  history,
		"question": question,
	}
	if state == WithContext {
		tmpl = t.withContext
		values["context"] = context
	}

	msgs, err := tmpl.FormatMessages(values)
	if err != nil {
		return nil, state, fmt.Errorf("failed to render %s prompt: %w", state, err)
	}

	out := make([]llms.MessageContent, len(msgs))
	for i, m := range msgs {
		out[i] = llms.TextParts(m.GetType(), m.GetContent())
	}
	return out, state, nil
}
