// Package app assembles the knowledge bases from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mathrag/internal/chunker"
	"mathrag/internal/config"
	"mathrag/internal/domain"
	"mathrag/internal/embedding/remote"
	"mathrag/internal/embedding/tfidf"
	"mathrag/internal/knowledge"
	"mathrag/internal/loader"
	"mathrag/internal/service"
	"mathrag/internal/summarizer"
	"mathrag/internal/vectorstore"
	"mathrag/internal/vectorstore/memory"
	"mathrag/internal/vectorstore/qdrant"
	"mathrag/internal/vectorstore/sqlite"
)

// App owns the retrievers for the lifetime of a command.
type App struct {
	Config   *config.AppConfig
	Registry *knowledge.Registry
	Report   service.BuildReport
	Ready    bool
}

// Open builds or reuses the discrete math index and registers both knowledge
// bases. Setup failures leave the discrete math base unavailable rather than
// failing the command.
func Open(ctx context.Context, cfg *config.AppConfig, logger *zerolog.Logger) *App {
	calculus := service.Unavailable(knowledge.CalculusUnavailableMessage, nil, logger)
	opts := []service.Option{service.WithPreviewLength(cfg.Retrieval.PreviewLength)}

	var discrete *service.Retriever
	var report service.BuildReport
	indexer, err := NewIndexer(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("RAG system not initialized")
		msg := fmt.Sprintf("RAG system not initialized (%v). Cannot retrieve from vector store.", err)
		discrete = service.Unavailable(msg, err, logger)
	} else {
		discrete, report = service.Open(ctx, indexer, cfg.Document.Path, logger, opts...)
	}
	return &App{
		Config:   cfg,
		Registry: knowledge.NewRegistry(discrete, calculus),
		Report:   report,
		Ready:    discrete.Ready(),
	}
}

// Close releases every index.
func (a *App) Close() error { return a.Registry.Close() }

// Rebuild always rebuilds the index from the configured document.
func Rebuild(ctx context.Context, cfg *config.AppConfig, logger *zerolog.Logger) (service.BuildReport, error) {
	indexer, err := NewIndexer(cfg, logger)
	if err != nil {
		return service.BuildReport{}, err
	}
	defer indexer.Index().Close()
	return indexer.Build(ctx, cfg.Document.Path)
}

// NewIndexer wires loader, chunker, embedder, index and summarizer.
func NewIndexer(cfg *config.AppConfig, logger *zerolog.Logger) (*service.Indexer, error) {
	ch, err := NewChunker(cfg.Chunker)
	if err != nil {
		return nil, err
	}
	emb, err := NewEmbedder(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexBuild, err)
	}
	idx, err := NewIndex(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexBuild, err)
	}
	return service.NewIndexer(loader.New(), ch, emb, idx, summarizer.NewFrequencySummarizer(),
		service.IndexerOptions{
			Collection:          cfg.Index.Collection,
			Reuse:               cfg.Index.Reuse,
			SummaryMaxSentences: cfg.Summarizer.MaxSentences,
		}, logger), nil
}

func NewChunker(cfg config.ChunkerConfig) (domain.Chunker, error) {
	switch cfg.Type {
	case "recursive", "":
		c, err := chunker.NewRecursiveChunker(cfg.ChunkSize, cfg.ChunkOverlap)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "sentence":
		return chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences, cfg.ChunkSize), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
}

func NewEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case remote.ProviderOpenAI, remote.ProviderOllama:
		e, err := remote.New(remote.Config{
			Provider:  cfg.Type,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			APIKeyEnv: cfg.APIKeyEnv,
			BatchSize: cfg.BatchSize,
			CacheSize: cfg.CacheSize,
			Timeout:   cfg.Timeout(),
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func NewIndex(cfg *config.AppConfig) (vectorstore.Index, error) {
	switch cfg.VectorStore.Type {
	case "sqlite", "":
		idx, err := sqlite.Open(cfg.Index.PersistDir, cfg.Index.Collection)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "memory":
		if err := vectorstore.ValidateCollection(cfg.Index.Collection); err != nil {
			return nil, err
		}
		return memory.NewIndex(), nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		if q == nil {
			return nil, errors.New("qdrant config missing")
		}
		idx, err := qdrant.NewIndex(qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: cfg.Index.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
}
