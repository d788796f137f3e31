package models

import (
	"strconv"
	"time"
)

// RawSource is one corpus file with the metadata encoded in its path.
type RawSource struct {
	Path  string
	Type  string
	Theme string
}

// Metadata travels with a document into every chunk cut from it.
// ChapterIndex is the 1-based position of a chapter in its novel, 0 when
// the document was not split.
type Metadata struct {
	Type         string `json:"type"`
	Theme        string `json:"theme"`
	Collection   string `json:"collection"`
	Chapter      string `json:"chapter"`
	ChapterIndex int    `json:"chapter_index"`
	Source       string `json:"source"`
}

// Map flattens the metadata for stores that only keep string maps.
func (m Metadata) Map() map[string]string {
	return map[string]string{
		"type":          m.Type,
		"theme":         m.Theme,
		"collection":    m.Collection,
		"chapter":       m.Chapter,
		"chapter_index": strconv.Itoa(m.ChapterIndex),
		"source":        m.Source,
	}
}

// MetadataFromMap is the inverse of Metadata.Map.
func MetadataFromMap(m map[string]string) Metadata {
	index, _ := strconv.Atoi(m["chapter_index"])
	return Metadata{
		Type:         m["type"],
		Theme:        m["theme"],
		Collection:   m["collection"],
		Chapter:      m["chapter"],
		ChapterIndex: index,
		Source:       m["source"],
	}
}

// Document is a normalized corpus text, or one chapter of a novel.
type Document struct {
	Title           string
	Body            string
	PublicationYear *int
	Metadata        Metadata
}

// Year returns the publication year, 0 when unknown.
func (d Document) Year() int {
	if d.PublicationYear == nil {
		return 0
	}
	return *d.PublicationYear
}

// Chunk is the unit of retrieval.
type Chunk struct {
	ID         string
	Text       string
	Title      string
	Year       int
	Metadata   Metadata
	ChunkIndex int
}

// Candidate is a hit of the candidate (similarity) stage.
type Candidate struct {
	ID        string
	Text      string
	Title     string
	Metadata  Metadata
	Score     float64
	Embedding []float32
}

// Passage is a retrieved and reranked piece of text.
type Passage struct {
	Text       string  `json:"text"`
	Title      string  `json:"title"`
	Score      float64 `json:"score"`
	Collection string  `json:"collection"`
	Rank       int     `json:"rank"`
	Degraded   bool    `json:"degraded,omitempty"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Settings is the snapshot of the options an answer was generated with.
type Settings struct {
	Backend     string    `json:"backend"`
	Collections []string  `json:"collections"`
	UseContext  bool      `json:"use_context"`
	Temperature float64   `json:"temperature"`
	CreatedAt   time.Time `json:"created_at"`
}

// Turn is one message of a conversation.
type Turn struct {
	Role     Role      `json:"role"`
	Text     string    `json:"text"`
	Settings *Settings `json:"settings,omitempty"`
}

// PromptResponse is the outcome of one question/answer cycle.
type PromptResponse struct {
	Query    string    `json:"query"`
	Context  string    `json:"context"`
	Content  string    `json:"content"`
	State    string    `json:"state"`
	Passages []Passage `json:"passages"`
}
