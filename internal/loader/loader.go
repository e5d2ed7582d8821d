package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mathrag/internal/domain"
)

// FileLoader picks a page extractor by file extension.
type FileLoader struct {
	pdf  *PDFLoader
	text *TextLoader
}

// New returns a loader handling .pdf, .txt and .md files.
func New() *FileLoader {
	return &FileLoader{pdf: &PDFLoader{}, text: &TextLoader{}}
}

// Load reads the document at path. A missing file yields
// domain.ErrDocumentNotFound, a file that cannot be read or parsed yields
// domain.ErrUnreadableDocument and a document without any text yields
// domain.ErrEmptyDocument.
func (l *FileLoader) Load(path string) (domain.Document, error) {
	path = strings.TrimSpace(path)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, path)
		}
		return domain.Document{}, fmt.Errorf("%w: %s: %v", domain.ErrDocumentNotFound, path, err)
	}
	if info.IsDir() {
		return domain.Document{}, fmt.Errorf("%w: %s is a directory", domain.ErrDocumentNotFound, path)
	}

	var doc domain.Document
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		doc, err = l.pdf.Load(path)
	case ".txt", ".md":
		doc, err = l.text.Load(path)
	default:
		return domain.Document{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedDocument, ext)
	}
	if err != nil {
		return domain.Document{}, err
	}
	if !hasText(doc) {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrEmptyDocument, path)
	}
	return doc, nil
}

func hasText(doc domain.Document) bool {
	for _, p := range doc.Pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}
