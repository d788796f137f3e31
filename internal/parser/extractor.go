package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"literary-rag/internal/models"
)

// ErrEmptySource is returned when a source holds no title or no body text.
var ErrEmptySource = errors.New("empty source")

var (
	yearRe      = regexp.MustCompile(models.YearRegex)
	yearStripRe = regexp.MustCompile(models.YearStripRegex)
	fnRe        = regexp.MustCompile(models.FnRegex)
	blankRunRe  = regexp.MustCompile(models.BlankRunRegex)
	decorRe     = regexp.MustCompile(models.DecorRegex)
)

// Extract normalizes one raw corpus text into a document. The first
// non-blank line is the title; the body ends at the first footnote line.
// Metadata is left for the caller to fill in.
func Extract(raw string) (*models.Document, error) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.TrimPrefix(raw, "\ufeff")

	lines := strings.Split(raw, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	lines = skipBlank(lines)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no readable lines", ErrEmptySource)
	}

	title, year := parseTitle(lines[0])
	lines = skipBlank(lines[1:])

	// some files repeat the title below the header
	if len(lines) > 0 && lines[0] == title {
		lines = lines[1:]
	}

	var bodyLines []string
	for _, line := range lines {
		if fnRe.MatchString(line) {
			break
		}
		bodyLines = append(bodyLines, line)
	}

	body := cleanBody(strings.Join(bodyLines, "\n"))
	if body == "" {
		return nil, fmt.Errorf("%w: no body text under %q", ErrEmptySource, title)
	}

	return &models.Document{
		Title:           title,
		Body:            body,
		PublicationYear: year,
	}, nil
}

// parseTitle pulls a 4-digit year out of the title line and strips the
// decoration around it.
func parseTitle(line string) (string, *int) {
	var year *int
	if m := yearRe.FindStringSubmatch(line); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil {
			year = &y
		}
	}
	title := strings.TrimSpace(yearStripRe.ReplaceAllString(line, " "))
	title = strings.NewReplacer("[", "", "]", "").Replace(title)
	return strings.Join(strings.Fields(title), " "), year
}

func cleanBody(text string) string {
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)
	text = decorRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, models.BracketArtifact, "")
	return strings.TrimSpace(text)
}

func skipBlank(lines []string) []string {
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	return lines
}
