package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"mathrag/internal/domain"
	"mathrag/internal/embedding"
)

// Entry is a chunk and its embedding as stored in an index.
type Entry struct {
	Chunk  domain.Chunk
	Vector []float32
}

// Manifest describes how an index was built. Embedder is the embedder
// fingerprint; vectors from any other embedder are not comparable.
type Manifest struct {
	Collection    string    `json:"collection"`
	Embedder      string    `json:"embedder"`
	Dimension     int       `json:"dimension"`
	Entries       int       `json:"entries"`
	EmbedderState []byte    `json:"embedder_state,omitempty"`
	BuiltAt       time.Time `json:"built_at"`
}

// Index persists chunk vectors and supports similarity search.
//
// Build replaces the whole collection and fails with domain.ErrIndexBuild
// when given no entries. Search returns at most topK results by descending
// cosine similarity; an unbuilt or empty index yields no results and no
// error. Search errors wrap domain.ErrSearch. An index is read-only between
// builds, so concurrent searches are safe.
type Index interface {
	Build(ctx context.Context, manifest Manifest, entries []Entry) error
	Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error)
	Manifest(ctx context.Context) (Manifest, bool, error)
	Location() string
	Close() error
}

var collectionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateCollection checks that name only uses letters, digits, underscores
// and hyphens. Collection names are used as file names and URL segments.
func ValidateCollection(name string) error {
	if !collectionPattern.MatchString(name) {
		return fmt.Errorf("%w: %q (allowed: letters, digits, '_' and '-')", domain.ErrInvalidCollection, name)
	}
	return nil
}

// CheckEntries validates a build batch against the manifest dimension.
func CheckEntries(manifest Manifest, entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: no entries", domain.ErrIndexBuild)
	}
	if manifest.Dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrIndexBuild, manifest.Dimension)
	}
	for i := range entries {
		if len(entries[i].Vector) != manifest.Dimension {
			return fmt.Errorf("%w: entry %d has dimension %d, want %d",
				domain.ErrIndexBuild, i, len(entries[i].Vector), manifest.Dimension)
		}
	}
	return nil
}

// Rank scores entries against vector and returns the topK best. Equal
// scores keep entry order so rankings are reproducible.
func Rank(entries []Entry, vector []float32, topK int) []domain.SearchResult {
	if topK <= 0 || len(entries) == 0 {
		return nil
	}
	results := make([]domain.SearchResult, len(entries))
	for i := range entries {
		results[i] = domain.SearchResult{Chunk: entries[i].Chunk, Score: embedding.Cosine(entries[i].Vector, vector)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results
}
