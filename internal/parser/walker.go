package parser

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"literary-rag/internal/models"
)

// ErrUnknownType is recorded for files whose type folder maps to no collection.
var ErrUnknownType = errors.New("unknown document type")

// WalkOptions configures a corpus walk.
type WalkOptions struct {
	// DefaultTheme is used for files that sit directly under their type folder.
	DefaultTheme string
	// TypeCollections maps a lower-cased type folder name to its collection.
	TypeCollections map[string]string
	// ChapterCollections lists the collections whose documents are split into chapters.
	ChapterCollections []string
	// Chapters overrides the default chapter markers.
	Chapters *ChapterSplitter
}

// FileError is a per-file ingestion failure. The walk carries on past it.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return e.Path + ": " + e.Err.Error() }
func (e FileError) Unwrap() error { return e.Err }

// WalkResult holds the documents of a corpus walk and the files that failed.
type WalkResult struct {
	Documents []models.Document
	Failures  []FileError
}

// DefaultTypeCollections maps the corpus folder names to collections.
func DefaultTypeCollections() map[string]string {
	return map[string]string{
		"μυθιστορήματα": models.CollectionNovels,
		"διηγήματα":     models.CollectionStories,
		"άρθρα":         models.CollectionArticles,
		"ποιήματα":      models.CollectionPoems,
		"novels":        models.CollectionNovels,
		"stories":       models.CollectionStories,
		"articles":      models.CollectionArticles,
		"poems":         models.CollectionPoems,
	}
}

func (o *WalkOptions) applyDefaults() {
	if o.DefaultTheme == "" {
		o.DefaultTheme = models.DefaultTheme
	}
	if len(o.TypeCollections) == 0 {
		o.TypeCollections = DefaultTypeCollections()
	}
	normalized := make(map[string]string, len(o.TypeCollections))
	for k, v := range o.TypeCollections {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}
	o.TypeCollections = normalized
	if o.ChapterCollections == nil {
		o.ChapterCollections = []string{models.CollectionNovels}
	}
	if o.Chapters == nil {
		o.Chapters = defaultChapterSplitter
	}
}

// ClassifyPath derives {type, theme} from the first two path segments of
// filePath relative to root.
func ClassifyPath(root, filePath, defaultTheme string) (models.RawSource, error) {
	rel, err := filepath.Rel(root, filePath)
	if err != nil {
		return models.RawSource{}, err
	}
	parts := strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/")
	src := models.RawSource{Path: filePath, Theme: defaultTheme}
	switch {
	case len(parts) == 0 || parts[0] == ".":
		// file at the root: the root folder itself names the type
		src.Type = filepath.Base(root)
	case len(parts) == 1:
		src.Type = parts[0]
	default:
		src.Type = parts[0]
		src.Theme = parts[1]
	}
	return src, nil
}

// Walk reads every supported file under root. Files that fail to read or
// normalize are reported in WalkResult.Failures and skipped.
func Walk(root string, opts WalkOptions) (*WalkResult, error) {
	opts.applyDefaults()

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus root %s is not a directory", root)
	}

	res := &WalkResult{}
	fail := func(path string, err error) {
		log.Warn().Err(err).Str("path", path).Msg("Skipping corpus file")
		res.Failures = append(res.Failures, FileError{Path: path, Err: err})
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			fail(path, walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !Supported(path) {
			return nil
		}

		src, err := ClassifyPath(root, path, opts.DefaultTheme)
		if err != nil {
			fail(path, err)
			return nil
		}
		docs, err := loadSource(src, opts)
		if err != nil {
			fail(path, err)
			return nil
		}
		res.Documents = append(res.Documents, docs...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("root", root).
		Int("documents", len(res.Documents)).
		Int("failures", len(res.Failures)).
		Msg("Corpus walk finished")
	return res, nil
}

func loadSource(src models.RawSource, opts WalkOptions) ([]models.Document, error) {
	collection, ok := opts.TypeCollections[strings.ToLower(strings.TrimSpace(src.Type))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, src.Type)
	}

	doc, err := ExtractFile(src.Path)
	if err != nil {
		return nil, err
	}
	doc.Metadata = models.Metadata{
		Type:       src.Type,
		Theme:      src.Theme,
		Collection: collection,
		Chapter:    models.ChapterNotApplied,
		Source:     src.Path,
	}

	if !slices.Contains(opts.ChapterCollections, collection) {
		return []models.Document{*doc}, nil
	}

	chapters := opts.Chapters.Split(doc.Body)
	docs := make([]models.Document, 0, len(chapters))
	for i, ch := range chapters {
		chapterDoc := *doc
		chapterDoc.Body = ch.Text
		chapterDoc.Metadata.Chapter = ch.Title
		chapterDoc.Metadata.ChapterIndex = i + 1
		docs = append(docs, chapterDoc)
	}
	return docs, nil
}
