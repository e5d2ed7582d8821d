package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathrag/internal/domain"
	"mathrag/internal/vectorstore"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
	apiKey string
}

func fakeQdrant(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	calls := &[]recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, apiKey: r.Header.Get("api-key")}
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		mu.Lock()
		*calls = append(*calls, rec)
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func TestNewIndex_Validates(t *testing.T) {
	_, err := NewIndex(Config{URL: "http://localhost:6333", Collection: "bad name"})
	assert.ErrorIs(t, err, domain.ErrInvalidCollection)

	_, err = NewIndex(Config{Collection: "kb"})
	assert.Error(t, err)
}

func TestIndex_BuildRecreatesCollection(t *testing.T) {
	srv, calls := fakeQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
	})
	idx, err := NewIndex(Config{URL: srv.URL + "/", APIKey: "secret", Collection: "discrete_math_kb"})
	require.NoError(t, err)

	entries := []vectorstore.Entry{
		{Chunk: domain.Chunk{ID: "abc", Text: "A set is a collection.", Page: 3, FileName: "DiscreteMath.pdf"}, Vector: []float32{1, 0}},
	}
	require.NoError(t, idx.Build(context.Background(), vectorstore.Manifest{Dimension: 2}, entries))

	require.Len(t, *calls, 3)
	assert.Equal(t, http.MethodDelete, (*calls)[0].method)
	assert.Equal(t, http.MethodPut, (*calls)[1].method)
	assert.Equal(t, "/collections/discrete_math_kb", (*calls)[1].path)
	vectors := (*calls)[1].body["vectors"].(map[string]any)
	assert.Equal(t, float64(2), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])

	upsert := (*calls)[2]
	assert.Equal(t, "/collections/discrete_math_kb/points", upsert.path)
	assert.Equal(t, "secret", upsert.apiKey)
	points := upsert.body["points"].([]any)
	require.Len(t, points, 1)
	point := points[0].(map[string]any)
	assert.Equal(t, pointID("abc"), point["id"])
	payload := point["payload"].(map[string]any)
	assert.Equal(t, float64(3), payload["page"])
	assert.Equal(t, "DiscreteMath.pdf", payload["file_name"])
}

func TestIndex_BuildFailureIsIndexBuild(t *testing.T) {
	srv, _ := fakeQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	idx, err := NewIndex(Config{URL: srv.URL, Collection: "kb"})
	require.NoError(t, err)

	err = idx.Build(context.Background(), vectorstore.Manifest{Dimension: 1},
		[]vectorstore.Entry{{Chunk: domain.Chunk{ID: "x"}, Vector: []float32{1}}})
	assert.ErrorIs(t, err, domain.ErrIndexBuild)
}

func TestIndex_SearchDecodesPayload(t *testing.T) {
	srv, calls := fakeQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.91,"payload":{"chunk_id":"c1","chunk_index":4,"page":12,"file_name":"DiscreteMath.pdf","text":"Graph theory"}},
			{"score":0.5,"payload":{"chunk_id":"c2","chunk_index":5,"page":13,"file_name":"DiscreteMath.pdf","text":"Trees"}}
		]}`))
	})
	idx, err := NewIndex(Config{URL: srv.URL, Collection: "kb"})
	require.NoError(t, err)

	res, err := idx.Search(context.Background(), []float32{0.1, 0.2}, 2)
	require.NoError(t, err)

	require.Len(t, res, 2)
	assert.Equal(t, domain.Chunk{ID: "c1", Index: 4, Page: 12, FileName: "DiscreteMath.pdf", Text: "Graph theory"}, res[0].Chunk)
	assert.InDelta(t, 0.91, res[0].Score, 1e-9)
	assert.Equal(t, "/collections/kb/points/search", (*calls)[0].path)
	assert.Equal(t, float64(2), (*calls)[0].body["limit"])
}

func TestIndex_SearchMissingCollectionIsEmpty(t *testing.T) {
	srv, _ := fakeQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	idx, err := NewIndex(Config{URL: srv.URL, Collection: "kb"})
	require.NoError(t, err)

	res, err := idx.Search(context.Background(), []float32{1}, 4)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestIndex_SearchServerErrorIsSearchError(t *testing.T) {
	srv, _ := fakeQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	idx, err := NewIndex(Config{URL: srv.URL, Collection: "kb"})
	require.NoError(t, err)

	_, err = idx.Search(context.Background(), []float32{1}, 4)
	assert.ErrorIs(t, err, domain.ErrSearch)
}

func TestPointID_IsStableUUID(t *testing.T) {
	assert.Equal(t, pointID("abc"), pointID("abc"))
	assert.NotEqual(t, pointID("abc"), pointID("abd"))
	assert.Len(t, pointID("abc"), 36)
}
