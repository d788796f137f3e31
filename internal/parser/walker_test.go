package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"literary-rag/internal/models"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestClassifyPath(t *testing.T) {
	root := filepath.Join("corpus")

	src, err := ClassifyPath(root, filepath.Join(root, "Διηγήματα", "Χριστουγεννιάτικα", "a.txt"), models.DefaultTheme)
	require.NoError(t, err)
	assert.Equal(t, "Διηγήματα", src.Type)
	assert.Equal(t, "Χριστουγεννιάτικα", src.Theme)

	src, err = ClassifyPath(root, filepath.Join(root, "Ποιήματα", "b.txt"), models.DefaultTheme)
	require.NoError(t, err)
	assert.Equal(t, "Ποιήματα", src.Type)
	assert.Equal(t, models.DefaultTheme, src.Theme)
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Μυθιστορήματα", "Ιστορικά", "gypsy.txt"),
		"Η Γυφτοπούλα (1884)\n\nΠΡΟΛΟΓΟΣ\nΠρόλογος.\n\nΚΕΦΑΛΑΙΟΝ Α´ - Αρχή\nΚεφάλαιο.\n1. σημείωση")
	writeFile(t, filepath.Join(root, "Διηγήματα", "Χριστουγεννιάτικα", "story.txt"),
		"Στο Χριστό, στο Κάστρο (1892)\n\nΔιήγημα.")
	writeFile(t, filepath.Join(root, "Ποιήματα", "hymn.md"),
		"# Ύμνος\n\nΣτίχος *πρώτος*.\n")
	writeFile(t, filepath.Join(root, "Άρθρα", "Γλωσσικά", "empty.txt"), "\n\n")
	writeFile(t, filepath.Join(root, "Δοκίμια", "essay.txt"), "Δοκίμιο\n\nΚείμενο.")
	writeFile(t, filepath.Join(root, "Ποιήματα", "notes.json"), "{}")

	res, err := Walk(root, WalkOptions{})
	require.NoError(t, err)

	byCollection := map[string][]models.Document{}
	for _, d := range res.Documents {
		byCollection[d.Metadata.Collection] = append(byCollection[d.Metadata.Collection], d)
	}

	novels := byCollection[models.CollectionNovels]
	require.Len(t, novels, 2)
	assert.Equal(t, "ΠΡΟΛΟΓΟΣ", novels[0].Metadata.Chapter)
	assert.Equal(t, "Πρόλογος.", novels[0].Body)
	assert.Equal(t, "ΚΕΦΑΛΑΙΟΝ Α´ - Αρχή", novels[1].Metadata.Chapter)
	assert.Equal(t, "Κεφάλαιο.", novels[1].Body)
	assert.Equal(t, "Η Γυφτοπούλα", novels[1].Title)
	assert.Equal(t, 1884, novels[1].Year())
	assert.Equal(t, "Ιστορικά", novels[1].Metadata.Theme)

	stories := byCollection[models.CollectionStories]
	require.Len(t, stories, 1)
	assert.Equal(t, models.ChapterNotApplied, stories[0].Metadata.Chapter)
	assert.Equal(t, "Χριστουγεννιάτικα", stories[0].Metadata.Theme)

	poems := byCollection[models.CollectionPoems]
	require.Len(t, poems, 1)
	assert.Equal(t, "Ύμνος", poems[0].Title)
	assert.Equal(t, "Στίχος πρώτος.", poems[0].Body)
	assert.Equal(t, models.DefaultTheme, poems[0].Metadata.Theme)

	require.Len(t, res.Failures, 2)
	var sawEmpty, sawUnknown bool
	for _, f := range res.Failures {
		if errors.Is(f, ErrEmptySource) {
			sawEmpty = true
		}
		if errors.Is(f, ErrUnknownType) {
			sawUnknown = true
		}
	}
	assert.True(t, sawEmpty)
	assert.True(t, sawUnknown)
}

func TestWalk_MissingRoot(t *testing.T) {
	_, err := Walk(filepath.Join(t.TempDir(), "missing"), WalkOptions{})
	assert.Error(t, err)
}

func TestMarkdownText(t *testing.T) {
	text, err := markdownText([]byte("# Τίτλος\n\nΠρώτη *γραμμή*\nδεύτερη.\n\n- α\n- β\n"))
	require.NoError(t, err)

	doc, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, "Τίτλος", doc.Title)
	assert.Contains(t, doc.Body, "Πρώτη γραμμή")
	assert.Contains(t, doc.Body, "δεύτερη.")
	assert.Contains(t, doc.Body, "α")
}

func TestExtractTextFromXML(t *testing.T) {
	xml := `<w:body><w:p><w:r><w:t>Πρώτη</w:t></w:r></w:p><w:p><w:r><w:t>Δεύτερη &amp; τρίτη</w:t></w:r></w:p></w:body>`
	assert.Equal(t, "Πρώτη\nΔεύτερη & τρίτη\n", extractTextFromXML(xml))
}
