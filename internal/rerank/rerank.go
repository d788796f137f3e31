// Package rerank orders retrieval candidates by asking a chat model for a
// listwise relevance ranking.
package rerank

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"golang.org/x/time/rate"

	"literary-rag/internal/models"
)

var numberRe = regexp.MustCompile(`\d+`)

// LLMReranker implements the listwise "[2] > [1] > [3]" ranking protocol.
type LLMReranker struct {
	model    llms.Model
	limiter  *rate.Limiter
	template prompts.PromptTemplate
	maxChars int
}

type Option func(*LLMReranker)

// WithRateLimit caps the calls made to the model.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(r *LLMReranker) {
		if requestsPerSecond > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), max(burst, 1))
		}
	}
}

// WithMaxPassageChars truncates each passage in the prompt.
func WithMaxPassageChars(n int) Option {
	return func(r *LLMReranker) { r.maxChars = n }
}

func New(model llms.Model, opts ...Option) *LLMReranker {
	r := &LLMReranker{
		model:    model,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		template: prompts.NewPromptTemplate(models.RerankPromptTemplate, []string{"num", "query", "passages"}),
		maxChars: 1500,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rerank returns the top n candidates, best first. Scores run from 1 for
// the first place down towards 0. Candidates the model leaves out are
// appended after the ranked ones in their original order.
func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []models.Candidate, n int) ([]models.Candidate, error) {
	if len(candidates) == 0 || n <= 0 {
		return nil, nil
	}
	if len(candidates) == 1 {
		out := []models.Candidate{candidates[0]}
		out[0].Score = 1
		return out, nil
	}

	prompt, err := r.template.Format(map[string]any{
		"num":      len(candidates),
		"query":    query,
		"passages": r.passages(candidates),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render rerank prompt: %w", err)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	answer, err := llms.GenerateFromSinglePrompt(ctx, r.model, prompt, llms.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("rerank model call failed: %w", err)
	}

	order := ParseRanking(answer, len(candidates))
	log.Debug().Str("answer", answer).Ints("order", order).Msg("Reranked candidates")

	total := float64(len(order))
	out := make([]models.Candidate, 0, min(n, len(order)))
	for pos, idx := range order {
		if pos == n {
			break
		}
		c := candidates[idx]
		c.Score = (total - float64(pos)) / total
		out = append(out, c)
	}
	return out, nil
}

func (r *LLMReranker) passages(candidates []models.Candidate) string {
	var b strings.Builder
	for i, c := range candidates {
		text := strings.Join(strings.Fields(c.Text), " ")
		if r.maxChars > 0 {
			if runes := []rune(text); len(runes) > r.maxChars {
				text = string(runes[:r.maxChars])
			}
		}
		fmt.Fprintf(&b, "[%d] %s\n", i+1, text)
	}
	return b.String()
}

// ParseRanking reads the 1-based identifiers out of a model answer and
// returns a full 0-based permutation of n items. Out of range and repeated
// identifiers are ignored; missing ones follow in ascending order.
func ParseRanking(answer string, n int) []int {
	seen := make([]bool, n)
	order := make([]int, 0, n)
	for _, m := range numberRe.FindAllString(answer, -1) {
		id, err := strconv.Atoi(m)
		if err != nil || id < 1 || id > n || seen[id-1] {
			continue
		}
		seen[id-1] = true
		order = append(order, id-1)
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			order = append(order, i)
		}
	}
	return order
}
