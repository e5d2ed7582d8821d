// Package knowledge holds the fixed set of specialist knowledge bases and the
// tool names under which agents reach them.
package knowledge

import (
	"context"
	"fmt"
	"sort"

	"mathrag/internal/service"
	"mathrag/internal/tooltext"
)

const (
	DiscreteMath = "discrete_math"
	Calculus     = "calculus"

	CalculusUnavailableMessage = "Calculus knowledge base is not yet implemented"
)

// Base is one specialist knowledge base.
type Base struct {
	Name        string
	Tool        string
	Description string
	Retriever   *service.Retriever
}

// Registry maps knowledge base names to their retrievers.
type Registry struct {
	bases map[string]*Base
}

// NewRegistry registers the discrete math base backed by discrete and the
// calculus base, which has no document and always reports itself
// unavailable.
func NewRegistry(discrete, calculus *service.Retriever) *Registry {
	return &Registry{bases: map[string]*Base{
		DiscreteMath: {
			Name: DiscreteMath,
			Tool: "query_discrete_math_rag",
			Description: "Search the discrete math knowledge base and return relevant context with page citations. " +
				"Call this before answering any discrete math question.",
			Retriever: discrete,
		},
		Calculus: {
			Name:        Calculus,
			Tool:        "query_calculus_rag",
			Description: "Query the calculus knowledge base (not yet implemented; always reports a fallback to general knowledge).",
			Retriever:   calculus,
		},
	}}
}

// Lookup returns the base registered under name.
func (r *Registry) Lookup(name string) (*Base, error) {
	b, ok := r.bases[name]
	if !ok {
		return nil, fmt.Errorf("unknown knowledge base %q (available: %s, %s)", name, DiscreteMath, Calculus)
	}
	return b, nil
}

// ByTool returns the base exposed under the given tool name.
func (r *Registry) ByTool(tool string) (*Base, error) {
	for _, b := range r.bases {
		if b.Tool == tool {
			return b, nil
		}
	}
	return nil, fmt.Errorf("unknown tool %q", tool)
}

// Bases returns all bases sorted by name.
func (r *Registry) Bases() []*Base {
	out := make([]*Base, 0, len(r.bases))
	for _, b := range r.bases {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Retrieve runs query against the named base.
func (r *Registry) Retrieve(ctx context.Context, name, query string, k int) (service.Result, error) {
	b, err := r.Lookup(name)
	if err != nil {
		return service.Result{}, err
	}
	return b.Retriever.Retrieve(ctx, query, k), nil
}

// Query runs query against the named base and renders the tool text.
func (r *Registry) Query(ctx context.Context, name, query string, k int) (string, error) {
	res, err := r.Retrieve(ctx, name, query, k)
	if err != nil {
		return "", err
	}
	return tooltext.Render(res), nil
}

// Close releases every retriever.
func (r *Registry) Close() error {
	var first error
	for _, b := range r.Bases() {
		if err := b.Retriever.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
