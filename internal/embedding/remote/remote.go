package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config configures a server-backed embedding model.
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKeyEnv string
	BatchSize int
	CacheSize int
	Timeout   time.Duration
}

// Embedder wraps a langchaingo embedder. Query vectors are cached when a
// cache size is configured. The model is pretrained, so Prepare is a no-op
// and the dimension is learned from the first vector returned.
type Embedder struct {
	name      string
	impl      embeddings.Embedder
	cache     *lru.Cache[string, []float32]
	mu        sync.RWMutex
	dimension int
}

// New builds the provider client described by cfg.
func New(cfg Config) (*Embedder, error) {
	if cfg.Model == "" {
		return nil, errors.New("remote embedder: model is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case ProviderOpenAI:
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("remote embedder: missing API key in env %s", cfg.APIKeyEnv)
		}
		opts := []openai.Option{
			openai.WithToken(key),
			openai.WithEmbeddingModel(cfg.Model),
			openai.WithHTTPClient(httpClient),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("remote embedder: openai client: %w", err)
		}
		client = llm
	case ProviderOllama:
		opts := []ollama.Option{
			ollama.WithModel(cfg.Model),
			ollama.WithHTTPClient(httpClient),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("remote embedder: ollama client: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("remote embedder: unknown provider %q", cfg.Provider)
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 32
	}
	impl, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(batch),
		embeddings.WithStripNewLines(true),
	)
	if err != nil {
		return nil, fmt.Errorf("remote embedder: %w", err)
	}
	return Wrap(cfg.Provider+":"+cfg.Model, impl, cfg.CacheSize)
}

// Wrap adapts an existing langchaingo embedder. A cacheSize of zero disables
// the query cache.
func Wrap(name string, impl embeddings.Embedder, cacheSize int) (*Embedder, error) {
	if impl == nil {
		return nil, fmt.Errorf("remote embedder %q: implementation is required", name)
	}
	e := &Embedder{name: name, impl: impl}
	if cacheSize > 0 {
		cache, err := lru.New[string, []float32](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("remote embedder %q: init cache: %w", name, err)
		}
		e.cache = cache
	}
	return e, nil
}

// Name returns provider:model, which identifies the vector space.
func (e *Embedder) Name() string { return e.name }

func (e *Embedder) Prepare(context.Context, []string) error { return nil }

func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("remote embedder %q: embed documents: %w", e.name, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("remote embedder %q: got %d vectors for %d texts", e.name, len(vectors), len(texts))
	}
	for _, v := range vectors {
		if err := e.observe(v); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(text); ok {
			return append([]float32(nil), v...), nil
		}
	}
	v, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("remote embedder %q: embed query: %w", e.name, err)
	}
	if err := e.observe(v); err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Add(text, append([]float32(nil), v...))
	}
	return v, nil
}

// observe records the dimension of the first vector and rejects vectors of
// any other size.
func (e *Embedder) observe(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("remote embedder %q: empty embedding", e.name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimension == 0 {
		e.dimension = len(v)
		return nil
	}
	if len(v) != e.dimension {
		return fmt.Errorf("remote embedder %q: dimension changed from %d to %d", e.name, e.dimension, len(v))
	}
	return nil
}
