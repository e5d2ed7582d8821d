package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathrag/internal/domain"
)

func numberedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("term%04d", i)
	}
	return strings.Join(words, " ")
}

func newDefault(t *testing.T) *RecursiveChunker {
	t.Helper()
	c, err := NewRecursiveChunker(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	return c
}

func TestRecursiveChunker_ShortPageYieldsOneChunk(t *testing.T) {
	text := strings.Repeat("abcd ", 100)[:500]
	doc := domain.Document{FileName: "DiscreteMath.pdf", Pages: []domain.Page{{Number: 1, Text: text}}}

	chunks, err := newDefault(t).Chunk(doc)
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, strings.TrimSpace(text), chunks[0].Text)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, "DiscreteMath.pdf", chunks[0].FileName)
	assert.NotEmpty(t, chunks[0].ID)
}

func TestRecursiveChunker_BoundsAndOverlap(t *testing.T) {
	doc := domain.Document{FileName: "book.txt", Pages: []domain.Page{{Number: 3, Text: numberedWords(600)}}}

	chunks, err := newDefault(t).Chunk(doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), DefaultChunkSize)
		assert.Equal(t, 3, ch.Page)
		assert.Equal(t, i, ch.Index)
	}
	for i := 1; i < len(chunks); i++ {
		first := strings.Fields(chunks[i].Text)[0]
		assert.Contains(t, chunks[i-1].Text, first, "chunk %d should start inside the overlap of chunk %d", i, i-1)
	}
}

func TestRecursiveChunker_PrefersParagraphBreaks(t *testing.T) {
	para := strings.Repeat("x", 500)
	doc := domain.Document{FileName: "a.txt", Pages: []domain.Page{{Number: 1, Text: para + "\n\n" + para}}}

	chunks, err := newDefault(t).Chunk(doc)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, para, chunks[0].Text)
	assert.Equal(t, para, chunks[1].Text)
}

func TestRecursiveChunker_Deterministic(t *testing.T) {
	doc := domain.Document{FileName: "book.txt", Pages: []domain.Page{
		{Number: 1, Text: numberedWords(400)},
		{Number: 2, Text: "A relation is reflexive.\n\n" + numberedWords(250)},
	}}
	c := newDefault(t)

	first, err := c.Chunk(doc)
	require.NoError(t, err)
	second, err := c.Chunk(doc)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRecursiveChunker_KeepsPageProvenance(t *testing.T) {
	doc := domain.Document{FileName: "book.txt", Pages: []domain.Page{
		{Number: 1, Text: "Page one text."},
		{Number: 2, Text: "   "},
		{Number: 3, Text: "Page three text."},
	}}

	chunks, err := newDefault(t).Chunk(doc)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 3, chunks[1].Page)
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)
}

func TestRecursiveChunker_EmptyDocument(t *testing.T) {
	chunks, err := newDefault(t).Chunk(domain.Document{FileName: "empty.txt"})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestNewRecursiveChunker_InvalidSettings(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
	}{
		{"zero size", 0, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRecursiveChunker(tt.size, tt.overlap)
			assert.Error(t, err)
		})
	}
}

func TestSentenceChunker(t *testing.T) {
	doc := domain.Document{FileName: "s.txt", Pages: []domain.Page{
		{Number: 1, Text: "One. Two. Three. Four. Five."},
		{Number: 2, Text: "Six."},
	}}

	chunks, err := NewSentenceChunker(2, 1, DefaultChunkSize).Chunk(doc)
	require.NoError(t, err)

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	assert.Equal(t, []string{"One. Two.", "Two. Three.", "Three. Four.", "Four. Five.", "Six."}, texts)
	assert.Equal(t, 2, chunks[4].Page)
	assert.Equal(t, 4, chunks[4].Index)
}

func TestSentenceChunker_RespectsMaxSize(t *testing.T) {
	long := strings.Repeat("A relation is a subset of a cartesian product. ", 40)
	runOn := numberedWords(300) + "."
	doc := domain.Document{FileName: "s.txt", Pages: []domain.Page{
		{Number: 1, Text: long},
		{Number: 2, Text: runOn},
	}}

	chunks, err := NewSentenceChunker(50, 5, 200).Chunk(doc)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	pages := map[int]int{}
	for i, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), 200, "chunk %d", i)
		assert.NotEmpty(t, ch.Text)
		assert.Equal(t, i, ch.Index)
		pages[ch.Page]++
	}
	assert.Greater(t, pages[1], 1)
	assert.Greater(t, pages[2], 1)
}

func TestSentenceChunker_OverlapKeepsProgress(t *testing.T) {
	doc := domain.Document{FileName: "s.txt", Pages: []domain.Page{
		{Number: 1, Text: "First sentence here. Second sentence here. Third sentence here."},
	}}

	chunks, err := NewSentenceChunker(3, 2, 25).Chunk(doc)
	require.NoError(t, err)

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	assert.Equal(t, []string{"First sentence here.", "Second sentence here.", "Third sentence here."}, texts)
}
