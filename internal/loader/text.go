package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mathrag/internal/domain"
)

// pageBreak separates pages in plain-text sources.
const pageBreak = "\f"

// TextLoader reads .txt and .md files. Form feeds mark page boundaries.
type TextLoader struct{}

func (l *TextLoader) Load(path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: read %s: %v", domain.ErrUnreadableDocument, path, err)
	}
	parts := strings.Split(string(data), pageBreak)
	pages := make([]domain.Page, len(parts))
	for i, text := range parts {
		pages[i] = domain.Page{Number: i + 1, Text: text}
	}
	return domain.Document{Path: path, FileName: filepath.Base(path), Pages: pages}, nil
}
