package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mathrag/internal/domain"
	"mathrag/internal/vectorstore"
)

// BuildReport describes the outcome of opening or building an index.
type BuildReport struct {
	Document   string        `json:"document"`
	Pages      int           `json:"pages"`
	Chunks     int           `json:"chunks"`
	Collection string        `json:"collection"`
	Location   string        `json:"location"`
	Embedder   string        `json:"embedder"`
	Dimension  int           `json:"dimension"`
	Reused     bool          `json:"reused"`
	Summary    string        `json:"summary,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// IndexerOptions tunes the build pipeline.
type IndexerOptions struct {
	Collection          string
	Reuse               bool
	SummaryMaxSentences int
}

// Indexer runs the load, chunk, embed and index pipeline for one document.
type Indexer struct {
	loader     domain.Loader
	chunker    domain.Chunker
	embedder   domain.Embedder
	index      vectorstore.Index
	summarizer domain.Summarizer
	opts       IndexerOptions
	logger     *zerolog.Logger
}

// NewIndexer wires the pipeline. summarizer may be nil.
func NewIndexer(loader domain.Loader, chunker domain.Chunker, embedder domain.Embedder, index vectorstore.Index,
	summarizer domain.Summarizer, opts IndexerOptions, logger *zerolog.Logger) *Indexer {
	return &Indexer{
		loader:     loader,
		chunker:    chunker,
		embedder:   embedder,
		index:      index,
		summarizer: summarizer,
		opts:       opts,
		logger:     logger,
	}
}

// Embedder returns the embedder queries must be embedded with.
func (s *Indexer) Embedder() domain.Embedder { return s.embedder }

// Index returns the index the pipeline writes to.
func (s *Indexer) Index() vectorstore.Index { return s.index }

// Open reuses a previously built index when reuse is enabled and the stored
// manifest matches the embedder, and builds from path otherwise.
func (s *Indexer) Open(ctx context.Context, path string) (BuildReport, error) {
	if !s.opts.Reuse {
		return s.Build(ctx, path)
	}
	start := time.Now()
	manifest, built, err := s.index.Manifest(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("location", s.index.Location()).Msg("Stored manifest unreadable, rebuilding")
		return s.Build(ctx, path)
	}
	if !built {
		return s.Build(ctx, path)
	}
	if manifest.Embedder != s.embedder.Name() {
		return BuildReport{}, fmt.Errorf("%w: stored %q, configured %q (rebuild with `mathrag index`)",
			domain.ErrEmbedderMismatch, manifest.Embedder, s.embedder.Name())
	}
	if stateful, ok := s.embedder.(domain.Stateful); ok {
		if len(manifest.EmbedderState) == 0 {
			s.logger.Warn().Str("embedder", manifest.Embedder).Msg("Stored index has no embedder state, rebuilding")
			return s.Build(ctx, path)
		}
		if err := stateful.Restore(manifest.EmbedderState); err != nil {
			return BuildReport{}, fmt.Errorf("%w: restoring embedder: %v", domain.ErrIndexBuild, err)
		}
	}

	report := BuildReport{
		Document:   path,
		Chunks:     manifest.Entries,
		Collection: s.opts.Collection,
		Location:   s.index.Location(),
		Embedder:   manifest.Embedder,
		Dimension:  manifest.Dimension,
		Reused:     true,
		Duration:   time.Since(start),
	}
	s.logger.Info().
		Str("collection", report.Collection).
		Str("location", report.Location).
		Int("chunks", report.Chunks).
		Time("built_at", manifest.BuiltAt).
		Msg("Reusing existing index")
	return report, nil
}

// Build loads the document at path and replaces the index contents with its
// chunks. Errors carry the domain failure categories.
func (s *Indexer) Build(ctx context.Context, path string) (BuildReport, error) {
	start := time.Now()
	s.logger.Info().Str("document", path).Msg("Loading document")
	doc, err := s.loader.Load(path)
	if err != nil {
		return BuildReport{}, err
	}
	s.logger.Info().Int("pages", doc.PageCount()).Msg("Document loaded")

	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		return BuildReport{}, fmt.Errorf("%w: %v", domain.ErrEmptyChunkSet, err)
	}
	if len(chunks) == 0 {
		return BuildReport{}, fmt.Errorf("%w: %s", domain.ErrEmptyChunkSet, doc.FileName)
	}
	s.logger.Info().Int("chunks", len(chunks)).Msg("Document chunked")

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	if err := s.embedder.Prepare(ctx, texts); err != nil {
		return BuildReport{}, fmt.Errorf("%w: preparing embedder %s: %v", domain.ErrIndexBuild, s.embedder.Name(), err)
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return BuildReport{}, fmt.Errorf("%w: embedding chunks: %v", domain.ErrIndexBuild, err)
	}
	if len(vectors) != len(chunks) {
		return BuildReport{}, fmt.Errorf("%w: %d vectors for %d chunks", domain.ErrIndexBuild, len(vectors), len(chunks))
	}
	dimension := s.embedder.Dimension()
	if dimension <= 0 {
		dimension = len(vectors[0])
	}

	manifest := vectorstore.Manifest{
		Collection: s.opts.Collection,
		Embedder:   s.embedder.Name(),
		Dimension:  dimension,
		BuiltAt:    time.Now().UTC(),
	}
	if stateful, ok := s.embedder.(domain.Stateful); ok {
		state, err := stateful.Snapshot()
		if err != nil {
			return BuildReport{}, fmt.Errorf("%w: snapshot embedder: %v", domain.ErrIndexBuild, err)
		}
		manifest.EmbedderState = state
	}
	entries := make([]vectorstore.Entry, len(chunks))
	for i := range chunks {
		entries[i] = vectorstore.Entry{Chunk: chunks[i], Vector: vectors[i]}
	}
	if err := s.index.Build(ctx, manifest, entries); err != nil {
		if errors.Is(err, domain.ErrIndexBuild) {
			return BuildReport{}, err
		}
		return BuildReport{}, fmt.Errorf("%w: %v", domain.ErrIndexBuild, err)
	}

	report := BuildReport{
		Document:   path,
		Pages:      doc.PageCount(),
		Chunks:     len(chunks),
		Collection: s.opts.Collection,
		Location:   s.index.Location(),
		Embedder:   manifest.Embedder,
		Dimension:  dimension,
		Summary:    s.summarize(doc),
		Duration:   time.Since(start),
	}
	s.logger.Info().
		Str("collection", report.Collection).
		Str("location", report.Location).
		Str("embedder", report.Embedder).
		Int("dimension", report.Dimension).
		Int("chunks", report.Chunks).
		Dur("took", report.Duration).
		Msg("Index built")
	return report, nil
}

// summarize never fails the build; a missing digest only affects display.
func (s *Indexer) summarize(doc domain.Document) string {
	if s.summarizer == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range doc.Pages {
		b.WriteString(p.Text)
		b.WriteString("\n")
	}
	summary, err := s.summarizer.Summarize(b.String(), s.opts.SummaryMaxSentences)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Summary skipped")
		return ""
	}
	return summary
}

// String renders the report for terminal output.
func (r BuildReport) String() string {
	var b strings.Builder
	if r.Reused {
		fmt.Fprintf(&b, "Reused index %q at %s\n", r.Collection, r.Location)
	} else {
		fmt.Fprintf(&b, "Indexed %s: %d pages, %d chunks\n", r.Document, r.Pages, r.Chunks)
		fmt.Fprintf(&b, "Collection: %s\n", r.Collection)
		fmt.Fprintf(&b, "Location: %s\n", r.Location)
	}
	fmt.Fprintf(&b, "Embedder: %s (dimension %d)\n", r.Embedder, r.Dimension)
	if r.Reused {
		fmt.Fprintf(&b, "Chunks: %d\n", r.Chunks)
	}
	if r.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", r.Summary)
	}
	return b.String()
}
