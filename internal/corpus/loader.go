// Package corpus loads reference documents (allergen and guideline papers)
// into page-level text units for chunking and indexing.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/anshimlab/anshim/internal/config"
	"github.com/anshimlab/anshim/internal/faults"
	"github.com/anshimlab/anshim/internal/fileid"
	"github.com/anshimlab/anshim/internal/models"
)

var supportedExtensions = map[string]bool{
	".pdf":  true,
	".xlsx": true,
	".docx": true,
	".txt":  true,
	".md":   true,
}

// SupportedExtension reports whether path has a loadable corpus extension.
func SupportedExtension(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Loader reads the configured corpus directory into SourceDocuments.
type Loader struct {
	dir    string
	files  []string
	logger *zap.Logger
}

// NewLoader creates a corpus loader. When cfg.Files is empty, every supported
// file found in cfg.Dir is loaded.
func NewLoader(cfg *config.CorpusConfig, logger *zap.Logger) *Loader {
	return &Loader{dir: cfg.Dir, files: cfg.Files, logger: logger}
}

// Load reads all corpus documents and returns their pages in document order.
// A missing directory is fatal (ErrMissingCorpus). A missing or unreadable file
// is logged and skipped; if nothing loads at all, ErrEmptyCorpus is returned.
func (l *Loader) Load() ([]models.SourceDocument, error) {
	info, err := os.Stat(l.dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", faults.ErrMissingCorpus, l.dir)
	}

	names := l.files
	if len(names) == 0 {
		names, err = l.discover()
		if err != nil {
			return nil, err
		}
	}

	var docs []models.SourceDocument
	for _, name := range names {
		path := filepath.Join(l.dir, name)
		if _, err := os.Stat(path); err != nil {
			l.logger.Warn("corpus file not found, skipping", zap.String("file", name))
			continue
		}
		doc, err := l.loadOne(path)
		if err != nil {
			l.logger.Warn("corpus file load failed, skipping",
				zap.String("file", name), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
		l.logger.Info("corpus file loaded",
			zap.String("file", name), zap.Int("pages", len(doc.Pages)))
	}

	if len(docs) == 0 {
		return nil, faults.ErrEmptyCorpus
	}
	l.logger.Info("corpus loaded", zap.Int("documents", len(docs)))
	return docs, nil
}

// Pages flattens documents into a single page sequence preserving document and page order.
func Pages(docs []models.SourceDocument) []models.Page {
	var pages []models.Page
	for _, doc := range docs {
		pages = append(pages, doc.Pages...)
	}
	return pages
}

func (l *Loader) discover() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if supportedExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (l *Loader) loadOne(path string) (models.SourceDocument, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return models.SourceDocument{}, fmt.Errorf("absolute path: %w", err)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return models.SourceDocument{}, fmt.Errorf("read file: %w", err)
	}

	var texts []string
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".pdf":
		texts, err = pdfPages(content)
	case ".xlsx":
		texts, err = excelPages(content)
	case ".docx":
		texts, err = docxPages(content)
	default:
		texts, err = plainPages(content)
	}
	if err != nil {
		return models.SourceDocument{}, err
	}

	docID := fileid.DocID(absPath)
	source := filepath.Base(absPath)
	doc := models.SourceDocument{ID: docID, Path: absPath}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		doc.Pages = append(doc.Pages, models.Page{
			DocumentID: docID,
			Source:     source,
			PageIndex:  i,
			Text:       text,
		})
	}
	if len(doc.Pages) == 0 {
		return models.SourceDocument{}, fmt.Errorf("no text in %s", source)
	}
	return doc, nil
}
