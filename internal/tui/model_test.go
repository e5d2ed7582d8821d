package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathrag/internal/service"
)

type fakePort struct {
	calls []string
	res   service.Result
	err   error
}

func (f *fakePort) Retrieve(_ context.Context, base, query string, k int) (service.Result, error) {
	f.calls = append(f.calls, base+"|"+query)
	res := f.res
	res.Query = query
	return res, f.err
}

func typeQuery(t *testing.T, m Model, q string) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m = next.(Model)
	m.input.SetValue(q)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model)
}

func TestModel_ShowsSources(t *testing.T) {
	port := &fakePort{res: service.Result{
		RAGUsed: true,
		Message: "Successfully retrieved 2 chunks from knowledge base",
		Sources: []service.Source{
			{Number: 1, FileName: "DiscreteMath.pdf", Page: 12, Relevance: 0.71, Text: "Trees are graphs. A tree has no cycles."},
			{Number: 2, FileName: "DiscreteMath.pdf", Page: 14, Relevance: 0.4, Text: "Forests are unions of trees."},
		},
	}}
	m := typeQuery(t, New(port, []string{"discrete_math", "calculus"}, 4, "summary"), "tree cycles")

	require.Equal(t, []string{"discrete_math|tree cycles"}, port.calls)
	assert.Contains(t, m.status, "Successfully retrieved 2 chunks")
	assert.Contains(t, m.renderCurrentSource(), "Source 1/2  DiscreteMath.pdf  page 12")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Contains(t, m.renderCurrentSource(), "page 14")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	assert.Equal(t, 0, m.cursor)
	assert.Contains(t, m.View(), "Math Knowledge Base")
}

func TestModel_FallbackAndBaseSwitch(t *testing.T) {
	port := &fakePort{res: service.Result{Message: "Calculus knowledge base is not yet implemented"}}
	m := New(port, []string{"discrete_math", "calculus"}, 4, "")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	assert.Equal(t, "calculus", m.currentBase())

	m = typeQuery(t, m, "limits")
	assert.Equal(t, []string{"calculus|limits"}, port.calls)
	assert.Contains(t, m.renderCurrentSource(), "fall back to general knowledge")
}

func TestModel_PortError(t *testing.T) {
	port := &fakePort{err: errors.New("unknown knowledge base")}
	m := typeQuery(t, New(port, []string{"discrete_math"}, 4, ""), "sets")
	assert.True(t, strings.HasPrefix(m.status, "Error: "))
	assert.Equal(t, "No results yet.", m.renderCurrentSource())
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Sets are collections. Graphs have edges.", "graph edges")
	assert.Contains(t, out, "Sets are collections.")
	assert.Contains(t, out, "Graphs have edges.")
	assert.Equal(t, "plain", highlightBestSentence("plain", ""))
}
