package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"literary-rag/internal/models"
)

func TestWindow_EvictsOldestPair(t *testing.T) {
	w := New(2)
	for i := 1; i <= 3; i++ {
		w.AppendExchange(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), nil)
	}

	got := w.History()
	require.Len(t, got, 4)
	assert.Equal(t, []models.Turn{
		{Role: models.RoleUser, Text: "q2"},
		{Role: models.RoleAssistant, Text: "a2"},
		{Role: models.RoleUser, Text: "q3"},
		{Role: models.RoleAssistant, Text: "a3"},
	}, got)
}

func TestWindow_PendingQuestionNotCounted(t *testing.T) {
	w := New(1)
	w.AppendExchange("q1", "a1", nil)
	w.Append(models.Turn{Role: models.RoleUser, Text: "q2"})

	assert.Equal(t, 3, w.Len())

	w.Append(models.Turn{Role: models.RoleAssistant, Text: "a2"})
	got := w.History()
	require.Len(t, got, 2)
	assert.Equal(t, "q2", got[0].Text)
	assert.Equal(t, "a2", got[1].Text)
}

func TestWindow_ZeroKeepsNothing(t *testing.T) {
	w := New(0)
	w.AppendExchange("q", "a", nil)
	assert.Empty(t, w.History())
}

func TestWindow_HistoryIsACopy(t *testing.T) {
	w := New(2)
	w.AppendExchange("q", "a", nil)
	h := w.History()
	h[0].Text = "changed"
	assert.Equal(t, "q", w.History()[0].Text)
}

func TestWindow_SettingsStampedOnAnswer(t *testing.T) {
	w := New(2)
	w.AppendExchange("q", "a", &models.Settings{Backend: "gemini", Temperature: 0.7})

	h := w.History()
	assert.Nil(t, h[0].Settings)
	require.NotNil(t, h[1].Settings)
	assert.Equal(t, "gemini", h[1].Settings.Backend)
	assert.False(t, h[1].Settings.CreatedAt.IsZero())
}

func TestWindow_MessagesAndClear(t *testing.T) {
	w := New(DefaultWindow)
	w.AppendExchange("Ποιος έγραψε τη Φόνισσα;", "Ο Παπαδιαμάντης.", nil)

	msgs := w.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[0].GetType())
	assert.Equal(t, llms.ChatMessageTypeAI, msgs[1].GetType())
	assert.Equal(t, "Ο Παπαδιαμάντης.", msgs[1].GetContent())

	w.Clear()
	assert.Zero(t, w.Len())
	assert.Empty(t, w.Messages())
}
