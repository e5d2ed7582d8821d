package sqlite

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathrag/internal/domain"
	"mathrag/internal/vectorstore"
)

func setupTestIndex(t *testing.T) (*Index, string) {
	t.Helper()
	dir := t.TempDir()
	idx, err := Open(dir, "discrete_math_kb")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx, dir
}

func testEntries() []vectorstore.Entry {
	return []vectorstore.Entry{
		{Chunk: domain.Chunk{ID: "c0", Text: "Sets.", Page: 1, FileName: "DiscreteMath.pdf", Index: 0}, Vector: []float32{1, 0}},
		{Chunk: domain.Chunk{ID: "c1", Text: "Graphs.\nTrees.", Page: 7, FileName: "DiscreteMath.pdf", Index: 1}, Vector: []float32{0, 1}},
		{Chunk: domain.Chunk{ID: "c2", Text: "Logic.", Page: 9, FileName: "DiscreteMath.pdf", Index: 2}, Vector: []float32{0.8, 0.6}},
	}
}

func testManifest() vectorstore.Manifest {
	return vectorstore.Manifest{Embedder: "tfidf:v1", Dimension: 2, EmbedderState: []byte(`{"terms":["a","b"]}`)}
}

func TestOpen_RejectsBadCollection(t *testing.T) {
	_, err := Open(t.TempDir(), "../escape")
	assert.ErrorIs(t, err, domain.ErrInvalidCollection)
}

func TestIndex_LocationUsesCollection(t *testing.T) {
	idx, dir := setupTestIndex(t)
	assert.Equal(t, filepath.Join(dir, "discrete_math_kb.db"), idx.Location())
}

func TestIndex_UnbuiltSearchIsEmpty(t *testing.T) {
	idx, _ := setupTestIndex(t)

	res, err := idx.Search(context.Background(), []float32{1, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, res)

	_, built, err := idx.Manifest(context.Background())
	require.NoError(t, err)
	assert.False(t, built)
}

func TestIndex_BuildAndSearch(t *testing.T) {
	ctx := context.Background()
	idx, _ := setupTestIndex(t)
	require.NoError(t, idx.Build(ctx, testManifest(), testEntries()))

	res, err := idx.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)

	require.Len(t, res, 2)
	assert.Equal(t, "c0", res[0].Chunk.ID)
	assert.Equal(t, "c2", res[1].Chunk.ID)
	assert.InDelta(t, 0.8, res[1].Score, 1e-6)
	assert.Equal(t, testEntries()[2].Chunk, res[1].Chunk)
}

func TestIndex_BuildEmptyFails(t *testing.T) {
	idx, _ := setupTestIndex(t)
	err := idx.Build(context.Background(), testManifest(), nil)
	assert.ErrorIs(t, err, domain.ErrIndexBuild)
}

func TestIndex_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx, err := Open(dir, "discrete_math_kb")
	require.NoError(t, err)
	require.NoError(t, idx.Build(ctx, testManifest(), testEntries()))
	require.NoError(t, idx.Close())

	reopened, err := Open(dir, "discrete_math_kb")
	require.NoError(t, err)
	defer reopened.Close()

	m, built, err := reopened.Manifest(ctx)
	require.NoError(t, err)
	require.True(t, built)
	assert.Equal(t, "discrete_math_kb", m.Collection)
	assert.Equal(t, 3, m.Entries)
	assert.Equal(t, "tfidf:v1", m.Embedder)
	assert.Equal(t, []byte(`{"terms":["a","b"]}`), m.EmbedderState)

	res, err := reopened.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 7, res[0].Chunk.Page)
	assert.Equal(t, "Graphs.\nTrees.", res[0].Chunk.Text)
}

func TestIndex_RebuildOverwrites(t *testing.T) {
	ctx := context.Background()
	idx, _ := setupTestIndex(t)
	require.NoError(t, idx.Build(ctx, testManifest(), testEntries()))

	first, err := idx.Search(ctx, []float32{0.5, 0.5}, 3)
	require.NoError(t, err)

	require.NoError(t, idx.Build(ctx, testManifest(), testEntries()))
	second, err := idx.Search(ctx, []float32{0.5, 0.5}, 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestIndex_CorruptVectorIsSearchError(t *testing.T) {
	ctx := context.Background()
	idx, _ := setupTestIndex(t)
	require.NoError(t, idx.Build(ctx, testManifest(), testEntries()))

	_, err := idx.db.ExecContext(ctx, `UPDATE entries SET vector = x'00' WHERE chunk_id = 'c1'`)
	require.NoError(t, err)

	_, err = idx.Search(ctx, []float32{1, 0}, 2)
	assert.ErrorIs(t, err, domain.ErrSearch)
}

func TestOpen_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	garbage := bytes.Repeat([]byte("not a sqlite database "), 512)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "discrete_math_kb.db"), garbage, 0o644))

	_, err := Open(dir, "discrete_math_kb")
	assert.Error(t, err)
}
