package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"mathrag/internal/domain"
	"mathrag/internal/vectorstore"
)

const upsertBatch = 256

var errNotFound = errors.New("not found")

// Index is a minimal REST client to a Qdrant collection.
// It assumes cosine distance and recreates the collection on every build.
type Index struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewIndex(cfg Config) (*Index, error) {
	if err := vectorstore.ValidateCollection(cfg.Collection); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, errors.New("qdrant url is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Index{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (s *Index) Location() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

func (s *Index) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// Manifest always reports an unbuilt index: Qdrant keeps no build metadata,
// so the collection is rebuilt on every open.
func (s *Index) Manifest(context.Context) (vectorstore.Manifest, bool, error) {
	return vectorstore.Manifest{}, false, nil
}

func (s *Index) Build(ctx context.Context, manifest vectorstore.Manifest, entries []vectorstore.Entry) error {
	if err := vectorstore.CheckEntries(manifest, entries); err != nil {
		return err
	}
	if err := s.do(ctx, http.MethodDelete, s.Location(), nil, nil); err != nil && !errors.Is(err, errNotFound) {
		return fmt.Errorf("%w: dropping collection: %v", domain.ErrIndexBuild, err)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     manifest.Dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, s.Location(), body, nil); err != nil {
		return fmt.Errorf("%w: creating collection: %v", domain.ErrIndexBuild, err)
	}

	for start := 0; start < len(entries); start += upsertBatch {
		end := min(start+upsertBatch, len(entries))
		points := make([]map[string]any, 0, end-start)
		for i := start; i < end; i++ {
			ch := entries[i].Chunk
			points = append(points, map[string]any{
				"id":     pointID(ch.ID),
				"vector": entries[i].Vector,
				"payload": map[string]any{
					"chunk_id":    ch.ID,
					"chunk_index": ch.Index,
					"page":        ch.Page,
					"file_name":   ch.FileName,
					"text":        ch.Text,
				},
			})
		}
		if err := s.do(ctx, http.MethodPut, s.Location()+"/points?wait=true", map[string]any{"points": points}, nil); err != nil {
			return fmt.Errorf("%w: upserting points: %v", domain.ErrIndexBuild, err)
		}
	}
	return nil
}

type searchResponse struct {
	Result []struct {
		Score   float64 `json:"score"`
		Payload struct {
			ChunkID    string `json:"chunk_id"`
			ChunkIndex int    `json:"chunk_index"`
			Page       int    `json:"page"`
			FileName   string `json:"file_name"`
			Text       string `json:"text"`
		} `json:"payload"`
	} `json:"result"`
}

func (s *Index) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp searchResponse
	err := s.do(ctx, http.MethodPost, s.Location()+"/points/search", req, &resp)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearch, err)
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.SearchResult{
			Chunk: domain.Chunk{
				ID:       r.Payload.ChunkID,
				Index:    r.Payload.ChunkIndex,
				Page:     r.Payload.Page,
				FileName: r.Payload.FileName,
				Text:     r.Payload.Text,
			},
			Score: r.Score,
		})
	}
	return results, nil
}

// pointID maps a chunk ID onto the UUID form Qdrant requires for string IDs.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mathrag:"+chunkID)).String()
}

func (s *Index) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
