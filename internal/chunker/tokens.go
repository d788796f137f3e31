package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// The BPE ranks ship with the binary, so ingestion works offline.
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// TokenCounter measures text length in tokens.
type TokenCounter func(text string) int

// WordCounter counts whitespace separated words. Separators made only of
// whitespace count as zero, so joined segments never grow past the sum of
// their parts.
func WordCounter(text string) int {
	return len(strings.Fields(text))
}

// TiktokenCounter counts BPE tokens with the named encoding (cl100k_base for
// the OpenAI embedding and chat models).
func TiktokenCounter(encoding string) (TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encoding, err)
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}, nil
}

// NewCounter resolves a tokenizer name from the config. "words" selects
// WordCounter, anything else is taken as a tiktoken encoding.
func NewCounter(name string) (TokenCounter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "words", "whitespace":
		return WordCounter, nil
	default:
		return TiktokenCounter(name)
	}
}
