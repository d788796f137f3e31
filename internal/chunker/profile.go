package chunker

import (
	"fmt"

	"literary-rag/internal/models"
)

// Profile is the chunking setup of one genre.
type Profile struct {
	MaxTokens     int      `yaml:"max_tokens"`
	OverlapTokens int      `yaml:"overlap_tokens"`
	Separators    []string `yaml:"separators"`
}

var (
	proseSeparators = []string{"\n\n", ".", "!", ";", "\n", "―"}
	shortSeparators = []string{".", "!", ";", "\n", "―"}
)

// DefaultProfiles returns the per-collection profiles used for the corpus.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		models.CollectionNovels:   {MaxTokens: 1000, OverlapTokens: 200, Separators: clone(proseSeparators)},
		models.CollectionStories:  {MaxTokens: 900, OverlapTokens: 100, Separators: clone(proseSeparators)},
		models.CollectionArticles: {MaxTokens: 600, OverlapTokens: 100, Separators: clone(shortSeparators)},
		models.CollectionPoems:    {MaxTokens: 500, OverlapTokens: 100, Separators: clone(shortSeparators)},
	}
}

func (p Profile) validate() error {
	if p.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", p.MaxTokens)
	}
	if p.OverlapTokens < 0 || p.OverlapTokens >= p.MaxTokens {
		return fmt.Errorf("overlap tokens must be in [0, %d), got %d", p.MaxTokens, p.OverlapTokens)
	}
	return nil
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}

// Set holds one splitter per collection.
type Set struct {
	splitters map[string]*Splitter
}

// NewSet builds a splitter for every profile.
func NewSet(profiles map[string]Profile, count TokenCounter) (*Set, error) {
	set := &Set{splitters: make(map[string]*Splitter, len(profiles))}
	for name, p := range profiles {
		s, err := New(p, count)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		set.splitters[name] = s
	}
	return set, nil
}

// Chunk splits a document with the profile of its collection.
func (s *Set) Chunk(doc models.Document) ([]models.Chunk, error) {
	sp, ok := s.splitters[doc.Metadata.Collection]
	if !ok {
		return nil, fmt.Errorf("no chunking profile for collection %q", doc.Metadata.Collection)
	}
	return sp.Chunk(doc)
}
