package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func text(t *testing.T, m llms.MessageContent) string {
	t.Helper()
	require.Len(t, m.Parts, 1)
	part, ok := m.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func TestSelect(t *testing.T) {
	assert.Equal(t, WithoutContext, Select(""))
	assert.Equal(t, WithContext, Select("Τίτλος: Η Φόνισσα\nΉτο νύξ."))
	assert.Equal(t, WithContext, Select(" "))
	assert.Equal(t, "WITH_CONTEXT", WithContext.String())
	assert.Equal(t, "WITHOUT_CONTEXT", WithoutContext.String())
}

func TestBuild_WithoutContext(t *testing.T) {
	tmpl := NewTemplate("system prompt", "use these")
	history := []llms.ChatMessage{
		llms.HumanChatMessage{Content: "q1"},
		llms.AIChatMessage{Content: "a1"},
	}

	msgs, state, err := Build(tmpl, history, "q2", "")
	require.NoError(t, err)
	assert.Equal(t, WithoutContext, state)
	require.Len(t, msgs, 4)

	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, "system prompt", text(t, msgs[0]))
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)
	assert.Equal(t, "q1", text(t, msgs[1]))
	assert.Equal(t, llms.ChatMessageTypeAI, msgs[2].Role)
	assert.Equal(t, "a1", text(t, msgs[2]))
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[3].Role)
	assert.Equal(t, "q2", text(t, msgs[3]))
}

func TestBuild_WithContextAppendsAfterQuestion(t *testing.T) {
	tmpl := NewTemplate("system prompt", "use these")
	context := "Τίτλος: Η Φόνισσα\nΉτο νύξ."

	msgs, state, err := Build(tmpl, nil, "Ποια είναι η Φραγκογιαννού;", context)
	require.NoError(t, err)
	assert.Equal(t, WithContext, state)
	require.Len(t, msgs, 3)

	assert.Equal(t, "Ποια είναι η Φραγκογιαννού;", text(t, msgs[1]))
	last := msgs[2]
	assert.Equal(t, llms.ChatMessageTypeSystem, last.Role)
	assert.Equal(t, "use these\n\n"+context, text(t, last))
}

func TestBuild_QuestionIsNotATemplate(t *testing.T) {
	msgs, _, err := Build(DefaultTemplate(), nil, "τι σημαίνει {{.context}};", "")
	require.NoError(t, err)
	assert.Equal(t, "τι σημαίνει {{.context}};", text(t, msgs[len(msgs)-1]))
}
