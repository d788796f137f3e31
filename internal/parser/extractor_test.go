package parser

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_YearInParentheses(t *testing.T) {
	doc, err := Extract("Ο Έρωτας (1887)\n\nΉτο νύκτα.")
	require.NoError(t, err)

	assert.Equal(t, "Ο Έρωτας", doc.Title)
	require.NotNil(t, doc.PublicationYear)
	assert.Equal(t, 1887, *doc.PublicationYear)
	assert.Equal(t, 1887, doc.Year())
	assert.Equal(t, "Ήτο νύκτα.", doc.Body)
}

func TestExtract_NoYear(t *testing.T) {
	doc, err := Extract("Η Φόνισσα\nΗ γηραιά Χαδούλα.")
	require.NoError(t, err)

	assert.Equal(t, "Η Φόνισσα", doc.Title)
	assert.Nil(t, doc.PublicationYear)
	assert.Equal(t, 0, doc.Year())
}

func TestExtract_TitleBrackets(t *testing.T) {
	doc, err := Extract("[Στο Χριστό, στο Κάστρο] 1892\n\nΚείμενο.")
	require.NoError(t, err)

	assert.Equal(t, "Στο Χριστό, στο Κάστρο", doc.Title)
	require.NotNil(t, doc.PublicationYear)
	assert.Equal(t, 1892, *doc.PublicationYear)
}

func TestExtract_DropsDuplicateTitle(t *testing.T) {
	raw := "Όνειρο στο κύμα (1900)\n\n\nΌνειρο στο κύμα\n\nΉμην πτωχόπαις.\n"
	doc, err := Extract(raw)
	require.NoError(t, err)

	assert.Equal(t, "Ήμην πτωχόπαις.", doc.Body)
	assert.False(t, strings.HasPrefix(doc.Body, doc.Title))
}

func TestExtract_StopsAtFootnotes(t *testing.T) {
	raw := strings.Join([]string{
		"Τίτλος",
		"",
		"Πρώτη παράγραφος.",
		"Δεύτερη παράγραφος.",
		"1. Σημείωση πρώτη.",
		"Κείμενο μετά τη σημείωση.",
		"12. Σημείωση δεύτερη.",
	}, "\n")
	doc, err := Extract(raw)
	require.NoError(t, err)

	assert.Equal(t, "Πρώτη παράγραφος.\nΔεύτερη παράγραφος.", doc.Body)
	footnote := regexp.MustCompile(`(?m)^\d+\.`)
	assert.False(t, footnote.MatchString(doc.Body))
}

func TestExtract_NormalizesWhitespaceAndDecoration(t *testing.T) {
	raw := "Τίτλος\n\n  Α [παράγραφος]*.  \n\n\n\n   \nΒ παράγραφος. . τέλος\n\n"
	doc, err := Extract(raw)
	require.NoError(t, err)

	assert.Equal(t, "Α παράγραφος.\n\nΒ παράγραφος τέλος", doc.Body)
	assert.NotContains(t, doc.Body, "[")
	assert.NotContains(t, doc.Body, "*")
	assert.NotContains(t, doc.Body, "\n\n\n")
}

func TestExtract_LeadingBlankLinesAndCRLF(t *testing.T) {
	doc, err := Extract("\r\n\r\nΤίτλος (1901)\r\nΚείμενο.\r\n")
	require.NoError(t, err)

	assert.Equal(t, "Τίτλος", doc.Title)
	assert.Equal(t, "Κείμενο.", doc.Body)
}

func TestExtract_EmptySource(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"blank lines", "\n   \n\t\n"},
		{"title only", "Τίτλος (1890)\n\n"},
		{"only footnotes", "Τίτλος\n1. σημείωση"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Extract(tt.raw)
			assert.Nil(t, doc)
			assert.True(t, errors.Is(err, ErrEmptySource), "got %v", err)
		})
	}
}
