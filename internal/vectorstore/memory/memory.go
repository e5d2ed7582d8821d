package memory

import (
	"context"
	"fmt"
	"sync"

	"mathrag/internal/domain"
	"mathrag/internal/vectorstore"
)

// Index is an in-process vector index using brute-force cosine similarity.
// Nothing survives the process.
type Index struct {
	mu       sync.RWMutex
	manifest vectorstore.Manifest
	built    bool
	entries  []vectorstore.Entry
}

func NewIndex() *Index { return &Index{} }

func (s *Index) Build(_ context.Context, manifest vectorstore.Manifest, entries []vectorstore.Entry) error {
	if err := vectorstore.CheckEntries(manifest, entries); err != nil {
		return err
	}
	copied := make([]vectorstore.Entry, len(entries))
	for i := range entries {
		copied[i] = vectorstore.Entry{Chunk: entries[i].Chunk, Vector: append([]float32(nil), entries[i].Vector...)}
	}
	manifest.Entries = len(entries)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest = manifest
	s.entries = copied
	s.built = true
	return nil
}

func (s *Index) Search(_ context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.built || len(s.entries) == 0 {
		return nil, nil
	}
	if len(vector) != s.manifest.Dimension {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", domain.ErrSearch, len(vector), s.manifest.Dimension)
	}
	return vectorstore.Rank(s.entries, vector, topK), nil
}

func (s *Index) Manifest(context.Context) (vectorstore.Manifest, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest, s.built, nil
}

func (s *Index) Location() string { return "memory" }

func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.built = false
	return nil
}
