package rerank

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"literary-rag/internal/models"
)

type fakeModel struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, m := range messages {
		for _, p := range m.Parts {
			if t, ok := p.(llms.TextContent); ok {
				f.prompts = append(f.prompts, t.Text)
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.answer}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func candidates(texts ...string) []models.Candidate {
	out := make([]models.Candidate, len(texts))
	for i, t := range texts {
		out[i] = models.Candidate{ID: t, Text: t}
	}
	return out
}

func ids(cs []models.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestParseRanking(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		n      int
		want   []int
	}{
		{"full", "[2] > [3] > [1]", 3, []int{1, 2, 0}},
		{"missing ids appended", "[3]", 4, []int{2, 0, 1, 3}},
		{"repeated and out of range", "[2] > [2] > [9] > [0] > [1]", 3, []int{1, 0, 2}},
		{"no ids", "I cannot rank these.", 2, []int{0, 1}},
		{"bare numbers", "3, 1, 2", 3, []int{2, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRanking(tt.answer, tt.n))
		})
	}
}

func TestRerank_OrdersAndTruncates(t *testing.T) {
	model := &fakeModel{answer: "[3] > [1] > [2] > [4]"}
	r := New(model, WithRateLimit(100, 1))

	got, err := r.Rerank(context.Background(), "Ποιος είναι ο Γιάννης;", candidates("a", "b", "c", "d"), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids(got))
	assert.Equal(t, 1.0, got[0].Score)
	assert.Greater(t, got[1].Score, got[2].Score)

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "Ποιος είναι ο Γιάννης;")
	assert.Contains(t, model.prompts[0], "[4] d")
	assert.Contains(t, model.prompts[0], "I will provide you with 4 passages")
}

func TestRerank_TruncatesPassages(t *testing.T) {
	model := &fakeModel{answer: "[1] > [2]"}
	r := New(model, WithMaxPassageChars(4))

	_, err := r.Rerank(context.Background(), "q", candidates("αβγδεζ", "x"), 1)
	require.NoError(t, err)
	assert.Contains(t, model.prompts[0], "[1] αβγδ\n")
	assert.NotContains(t, model.prompts[0], "αβγδε")
}

func TestRerank_ShortInputsSkipModel(t *testing.T) {
	model := &fakeModel{err: errors.New("should not be called")}
	r := New(model)

	got, err := r.Rerank(context.Background(), "q", nil, 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.Rerank(context.Background(), "q", candidates("only"), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, ids(got))
	assert.Empty(t, model.prompts)
}

func TestRerank_ModelError(t *testing.T) {
	r := New(&fakeModel{err: errors.New("429 too many requests")})
	_, err := r.Rerank(context.Background(), "q", candidates("a", "b"), 2)
	assert.Error(t, err)
}

func TestRerank_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(&fakeModel{answer: "[1]"}, WithRateLimit(0.001, 1))
	// the single burst token is consumed by the first call
	_, _ = r.Rerank(context.Background(), "q", candidates("a", "b"), 1)

	_, err := r.Rerank(ctx, "q", candidates("a", "b"), 1)
	assert.Error(t, err)
}
