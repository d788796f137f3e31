// Package memory keeps the recent turns of one conversation.
package memory

import (
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"

	"literary-rag/internal/models"
)

const DefaultWindow = 10

// Window holds the last k user/assistant pairs. A user turn still waiting
// for its answer is kept but not counted.
type Window struct {
	mu    sync.Mutex
	k     int
	turns []models.Turn
}

// New returns a window of k pairs; k <= 0 keeps no completed pairs.
func New(k int) *Window {
	return &Window{k: max(k, 0)}
}

// Append adds a turn and evicts the oldest pairs beyond capacity.
func (w *Window) Append(turn models.Turn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = append(w.turns, turn)
	for w.pairs() > w.k {
		w.evictOldestPair()
	}
}

// AppendExchange records a question and its answer.
func (w *Window) AppendExchange(question, answer string, settings *models.Settings) {
	if settings != nil && settings.CreatedAt.IsZero() {
		settings.CreatedAt = time.Now()
	}
	w.Append(models.Turn{Role: models.RoleUser, Text: question})
	w.Append(models.Turn{Role: models.RoleAssistant, Text: answer, Settings: settings})
}

// History returns the turns oldest first.
func (w *Window) History() []models.Turn {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.Turn(nil), w.turns...)
}

// Messages returns the history as langchaingo chat messages.
func (w *Window) Messages() []llms.ChatMessage {
	history := w.History()
	out := make([]llms.ChatMessage, 0, len(history))
	for _, t := range history {
		if t.Role == models.RoleAssistant {
			out = append(out, llms.AIChatMessage{Content: t.Text})
		} else {
			out = append(out, llms.HumanChatMessage{Content: t.Text})
		}
	}
	return out
}

func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = nil
}

// Len returns the number of stored turns.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.turns)
}

func (w *Window) pairs() int {
	n := 0
	for _, t := range w.turns {
		if t.Role == models.RoleAssistant {
			n++
		}
	}
	return n
}

// evictOldestPair drops everything up to and including the first answer.
func (w *Window) evictOldestPair() {
	for i, t := range w.turns {
		if t.Role == models.RoleAssistant {
			w.turns = append([]models.Turn(nil), w.turns[i+1:]...)
			return
		}
	}
}
