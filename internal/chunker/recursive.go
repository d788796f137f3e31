package chunker

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"literary-rag/internal/helper"
	"literary-rag/internal/models"
)

var _ textsplitter.TextSplitter = (*Splitter)(nil)

// Splitter cuts text recursively on a separator hierarchy and packs the
// pieces into token bounded, overlapping chunks. A word level and a
// character level fallback follow the profile separators, so no chunk
// exceeds MaxTokens as long as a single character fits.
type Splitter struct {
	profile    Profile
	count      TokenCounter
	separators []string
}

// New returns a splitter for the profile. A nil counter falls back to
// WordCounter.
func New(profile Profile, count TokenCounter) (*Splitter, error) {
	if err := profile.validate(); err != nil {
		return nil, err
	}
	if count == nil {
		count = WordCounter
	}

	var seps []string
	for _, sep := range profile.Separators {
		if sep != "" && sep != " " {
			seps = append(seps, sep)
		}
	}
	seps = append(seps, " ", "")

	return &Splitter{profile: profile, count: count, separators: seps}, nil
}

// SplitText returns the chunk texts in document order.
func (s *Splitter) SplitText(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return s.split(text, s.separators), nil
}

// Chunk splits the document body and tags every piece with the document
// metadata and its position.
func (s *Splitter) Chunk(doc models.Document) ([]models.Chunk, error) {
	texts, err := s.SplitText(doc.Body)
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, models.Chunk{
			ID:         helper.ChunkID(doc.Metadata.Source, doc.Metadata.ChapterIndex, i),
			Text:       text,
			Title:      doc.Title,
			Year:       doc.Year(),
			Metadata:   doc.Metadata,
			ChunkIndex: i,
		})
	}
	return chunks, nil
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitOn(text, separator) {
		if s.count(piece) < s.profile.MaxTokens {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good, separator)...)
			good = nil
		}
		if len(next) == 0 {
			final = append(final, strings.TrimSpace(piece))
		} else {
			final = append(final, s.split(piece, next)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good, separator)...)
	}
	return final
}

// merge packs in-budget pieces greedily. When a chunk is full the leading
// pieces are dropped until what is carried over fits in OverlapTokens.
func (s *Splitter) merge(pieces []string, separator string) []string {
	sepLen := s.count(separator)
	joinLen := func(current []string) int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	var (
		chunks  []string
		current []string
		total   int
	)
	for _, piece := range pieces {
		n := s.count(piece)
		if total+n+joinLen(current) > s.profile.MaxTokens && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > s.profile.OverlapTokens ||
				(total > 0 && total+n+joinLen(current) > s.profile.MaxTokens) {
				total -= s.count(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}
	if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitOn splits text on a literal separator, dropping empty pieces. The
// empty separator splits into characters.
func splitOn(text, separator string) []string {
	var parts []string
	if separator == "" {
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	for _, p := range strings.Split(text, separator) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
