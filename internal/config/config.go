package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"mathrag/internal/vectorstore"
)

// maxPreviewLength is the longest source preview, in runes.
const maxPreviewLength = 150

// DocumentConfig points at the source document of the knowledge base.
type DocumentConfig struct {
	Path string `yaml:"path"`
}

// IndexConfig names the collection and where durable backends keep it.
type IndexConfig struct {
	Collection string `yaml:"collection"`
	PersistDir string `yaml:"persist_dir"`
	Reuse      bool   `yaml:"reuse"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string `yaml:"type"`
	Model       string `yaml:"model,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	BatchSize   int    `yaml:"batch_size,omitempty"`
	CacheSize   int    `yaml:"cache_size,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs,omitempty"`
}

// Timeout returns the request timeout of remote embedders.
func (c EmbedderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrievalConfig holds query-time defaults.
type RetrievalConfig struct {
	TopK          int `yaml:"top_k"`
	PreviewLength int `yaml:"preview_length"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LogLevel    string            `yaml:"log_level"`
	Document    DocumentConfig    `yaml:"document"`
	Index       IndexConfig       `yaml:"index"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/mathrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/mathrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "mathrag", "config.yaml"), nil
}

// Default returns the configuration used when no file exists.
func Default() *AppConfig {
	cfg := &AppConfig{
		LogLevel: "info",
		Document: DocumentConfig{Path: "data/DiscreteMath.pdf"},
		Index:    IndexConfig{Collection: "discrete_math_kb", PersistDir: "./index_db", Reuse: true},
		Chunker: ChunkerConfig{
			Type:              "recursive",
			ChunkSize:         800,
			ChunkOverlap:      150,
			SentencesPerChunk: 5,
			OverlapSentences:  1,
		},
		Embedder:    EmbedderConfig{Type: "tfidf"},
		VectorStore: VectorStoreConfig{Type: "sqlite"},
		Retrieval:   RetrievalConfig{TopK: 4, PreviewLength: 150},
		Summarizer:  SummarizerConfig{Type: "frequency", MaxSentences: 5},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	def := Default()
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Document.Path == "" {
		cfg.Document.Path = def.Document.Path
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = def.Index.Collection
	}
	if cfg.Index.PersistDir == "" {
		cfg.Index.PersistDir = def.Index.PersistDir
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = def.Chunker.Type
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = def.Chunker.ChunkSize
	}
	if cfg.Chunker.ChunkOverlap == 0 {
		cfg.Chunker.ChunkOverlap = def.Chunker.ChunkOverlap
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = def.Chunker.SentencesPerChunk
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = def.Embedder.Type
	}
	switch cfg.Embedder.Type {
	case "openai":
		if cfg.Embedder.BaseURL == "" {
			cfg.Embedder.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.APIKeyEnv == "" {
			cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "text-embedding-3-small"
		}
	case "ollama":
		if cfg.Embedder.BaseURL == "" {
			cfg.Embedder.BaseURL = "http://localhost:11434"
		}
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "all-minilm"
		}
	}
	if cfg.Embedder.Type != "tfidf" {
		if cfg.Embedder.TimeoutSecs == 0 {
			cfg.Embedder.TimeoutSecs = 30
		}
		if cfg.Embedder.BatchSize == 0 {
			cfg.Embedder.BatchSize = 32
		}
		if cfg.Embedder.CacheSize == 0 {
			cfg.Embedder.CacheSize = 256
		}
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	if q := cfg.VectorStore.Qdrant; q != nil && q.TimeoutSecs == 0 {
		q.TimeoutSecs = 15
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.Retrieval.PreviewLength == 0 {
		cfg.Retrieval.PreviewLength = def.Retrieval.PreviewLength
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = def.Summarizer.Type
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = def.Summarizer.MaxSentences
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	if err := vectorstore.ValidateCollection(c.Index.Collection); err != nil {
		return err
	}
	switch c.Chunker.Type {
	case "recursive":
		if c.Chunker.ChunkSize <= 0 || c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
			return fmt.Errorf("chunker: need 0 <= chunk_overlap < chunk_size, got size %d overlap %d",
				c.Chunker.ChunkSize, c.Chunker.ChunkOverlap)
		}
	case "sentence":
		if c.Chunker.SentencesPerChunk <= 0 || c.Chunker.OverlapSentences < 0 {
			return fmt.Errorf("chunker: invalid sentence window %d/%d", c.Chunker.SentencesPerChunk, c.Chunker.OverlapSentences)
		}
		if c.Chunker.ChunkSize <= 0 {
			return fmt.Errorf("chunker: chunk_size must be positive, got %d", c.Chunker.ChunkSize)
		}
	default:
		return fmt.Errorf("unknown chunker: %s", c.Chunker.Type)
	}
	switch c.Embedder.Type {
	case "tfidf", "openai", "ollama":
	default:
		return fmt.Errorf("unknown embedder: %s", c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "sqlite", "memory":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			return errors.New("vector_store: qdrant.url is required")
		}
	default:
		return fmt.Errorf("unknown vector store: %s", c.VectorStore.Type)
	}
	if c.Retrieval.TopK < 0 || c.Retrieval.PreviewLength < 0 {
		return errors.New("retrieval: top_k and preview_length must not be negative")
	}
	if c.Retrieval.PreviewLength > maxPreviewLength {
		return fmt.Errorf("retrieval: preview_length %d exceeds %d", c.Retrieval.PreviewLength, maxPreviewLength)
	}
	if c.Summarizer.Type != "frequency" {
		return fmt.Errorf("unknown summarizer: %s", c.Summarizer.Type)
	}
	return nil
}
