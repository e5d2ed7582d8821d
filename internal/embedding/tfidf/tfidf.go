package tfidf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"mathrag/internal/embedding"
	"mathrag/internal/textutil"
)

// Name identifies the TF-IDF model in index manifests.
const Name = "tfidf:v1"

// Embedder implements a simple TF-IDF vectorizer.
// It builds a vocabulary from the corpus and computes IDF values.
// After Prepare or Restore it is read-only and safe for concurrent use.
type Embedder struct {
	vocabulary map[string]int
	idf        []float64
	prepared   bool
}

// NewEmbedder creates an unprepared TF-IDF embedder.
func NewEmbedder() *Embedder {
	return &Embedder{vocabulary: make(map[string]int)}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return Name }

// Prepare builds the vocabulary and IDF values from the provided corpus.
func (e *Embedder) Prepare(_ context.Context, corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus for TF-IDF prepare")
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range textutil.Terms(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	// Sorted terms keep vector positions stable across rebuilds.
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return errors.New("no tokens found in corpus; ensure tokenizer supports your language")
	}
	n := float64(len(corpus))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		// Smoothed IDF
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	e.load(terms, idf)
	return nil
}

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return len(e.idf) }

// EmbedDocuments embeds each text in order.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.embed(text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// EmbedQuery computes the TF-IDF embedding for the given text. Text sharing
// no term with the vocabulary maps to the zero vector.
func (e *Embedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text)
}

func (e *Embedder) embed(text string) ([]float32, error) {
	if !e.prepared {
		return nil, errors.New("tfidf embedder not prepared")
	}
	vec := make([]float32, len(e.idf))
	tf := make(map[int]int)
	total := 0
	for _, tok := range textutil.Terms(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		vec[idx] = float32(float64(count) / float64(total) * e.idf[idx])
	}
	embedding.Normalize(vec)
	return vec, nil
}

type snapshot struct {
	Terms []string  `json:"terms"`
	IDF   []float64 `json:"idf"`
}

// Snapshot serializes the fitted vocabulary so queries can be embedded after
// the index is reopened.
func (e *Embedder) Snapshot() ([]byte, error) {
	if !e.prepared {
		return nil, errors.New("tfidf embedder not prepared")
	}
	terms := make([]string, len(e.idf))
	for term, idx := range e.vocabulary {
		terms[idx] = term
	}
	return json.Marshal(snapshot{Terms: terms, IDF: e.idf})
}

// Restore loads a vocabulary produced by Snapshot.
func (e *Embedder) Restore(state []byte) error {
	var s snapshot
	if err := json.Unmarshal(state, &s); err != nil {
		return fmt.Errorf("tfidf: decode snapshot: %w", err)
	}
	if len(s.Terms) == 0 || len(s.Terms) != len(s.IDF) {
		return fmt.Errorf("tfidf: snapshot has %d terms and %d idf values", len(s.Terms), len(s.IDF))
	}
	e.load(s.Terms, s.IDF)
	return nil
}

func (e *Embedder) load(terms []string, idf []float64) {
	e.vocabulary = make(map[string]int, len(terms))
	for i, term := range terms {
		e.vocabulary[term] = i
	}
	e.idf = idf
	e.prepared = true
}
