package loader

import (
	"fmt"
	"path/filepath"

	"github.com/ledongthuc/pdf"

	"mathrag/internal/domain"
)

// PDFLoader extracts plain text page by page. Page numbers are 1-based.
type PDFLoader struct{}

func (l *PDFLoader) Load(path string) (domain.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: open pdf %s: %v", domain.ErrUnreadableDocument, path, err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]domain.Page, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, domain.Page{Number: i})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return domain.Document{}, fmt.Errorf("%w: extract page %d of %s: %v", domain.ErrUnreadableDocument, i, path, err)
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}
	return domain.Document{Path: path, FileName: filepath.Base(path), Pages: pages}, nil
}
