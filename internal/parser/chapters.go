package parser

import (
	"fmt"
	"regexp"
	"strings"

	"literary-rag/internal/models"
)

// Chapter is one titled section of a novel.
type Chapter struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// ChapterSplitter cuts a novel body at its chapter markers in a single pass.
// Headers that do not match a marker stay inside the surrounding chapter.
type ChapterSplitter struct {
	marker     *regexp.Regexp
	introTitle string
}

var defaultChapterSplitter = mustChapterSplitter(
	[]string{models.ChapterRegex, models.PrologueRegex, models.EpilogueRegex},
	models.IntroChapterTitle,
)

// NewChapterSplitter builds a splitter from marker patterns. Text before
// the first marker is emitted under introTitle.
func NewChapterSplitter(patterns []string, introTitle string) (*ChapterSplitter, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("at least one chapter marker is required")
	}
	re, err := regexp.Compile("(?:" + strings.Join(patterns, "|") + ")")
	if err != nil {
		return nil, fmt.Errorf("failed to compile chapter markers: %w", err)
	}
	if introTitle == "" {
		introTitle = models.IntroChapterTitle
	}
	return &ChapterSplitter{marker: re, introTitle: introTitle}, nil
}

func mustChapterSplitter(patterns []string, introTitle string) *ChapterSplitter {
	s, err := NewChapterSplitter(patterns, introTitle)
	if err != nil {
		panic(err)
	}
	return s
}

// SplitChapters splits a novel body with the default markers.
func SplitChapters(body string) []Chapter {
	return defaultChapterSplitter.Split(body)
}

// Split returns the chapters in order of appearance. Chapters left empty
// after trimming are dropped.
func (s *ChapterSplitter) Split(body string) []Chapter {
	locs := s.marker.FindAllStringIndex(body, -1)
	if len(locs) == 0 {
		if text := strings.TrimSpace(body); text != "" {
			return []Chapter{{Title: s.introTitle, Text: text}}
		}
		return nil
	}

	var chapters []Chapter
	if intro := strings.TrimSpace(body[:locs[0][0]]); intro != "" {
		chapters = append(chapters, Chapter{Title: s.introTitle, Text: intro})
	}
	for i, loc := range locs {
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		text := strings.TrimSpace(body[loc[1]:end])
		if text == "" {
			continue
		}
		chapters = append(chapters, Chapter{
			Title: strings.TrimSpace(body[loc[0]:loc[1]]),
			Text:  text,
		})
	}
	return chapters
}
