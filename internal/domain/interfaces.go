package domain

import "context"

// Page is the extracted text of a single page of a source document.
type Page struct {
	Number int
	Text   string
}

// Document represents a loaded source file, segmented by page.
type Document struct {
	Path     string
	FileName string
	Pages    []Page
}

// PageCount returns the number of pages in the document.
func (d Document) PageCount() int { return len(d.Pages) }

// Chunk is a bounded, page-tagged span of document text used for indexing.
type Chunk struct {
	ID       string
	Text     string
	Page     int
	FileName string
	Index    int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Loader reads a document from disk into page-segmented text.
type Loader interface {
	Load(path string) (Document, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(ctx context.Context, corpus []string) error
	Dimension() int
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Stateful is implemented by embedders whose model is fitted on the corpus
// and must be persisted with the index to embed queries later.
type Stateful interface {
	Snapshot() ([]byte, error)
	Restore(state []byte) error
}
