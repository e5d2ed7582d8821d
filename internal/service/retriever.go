package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"mathrag/internal/domain"
	"mathrag/internal/textutil"
	"mathrag/internal/vectorstore"
)

const (
	DefaultTopK          = 4
	DefaultPreviewLength = 150
)

// Status tags the outcome of a retrieval.
type Status string

const (
	StatusRetrieved    Status = "retrieved"
	StatusNoMatches    Status = "no_matches"
	StatusUnavailable  Status = "unavailable"
	StatusSearchFailed Status = "search_failed"
)

// Source is the citation for one retrieved chunk.
type Source struct {
	Number    int     `json:"number"`
	FileName  string  `json:"file_name"`
	Page      int     `json:"page"`
	Relevance float64 `json:"relevance_score"`
	Preview   string  `json:"preview"`
	Truncated bool    `json:"truncated"`
	Text      string  `json:"text"`
}

// Result is the outcome of one retrieval. RAGUsed is true only when at least
// one chunk was found; every other status carries the reason in Message.
type Result struct {
	Query       string   `json:"query"`
	Context     string   `json:"context"`
	Sources     []Source `json:"sources"`
	RAGUsed     bool     `json:"rag_used"`
	Status      Status   `json:"status"`
	Message     string   `json:"message"`
	ChunksFound int      `json:"chunks_found"`
}

// Retriever answers queries against a built index. It holds no query-time
// state, so one instance can serve concurrent callers.
type Retriever struct {
	embedder      domain.Embedder
	index         vectorstore.Index
	initErr       error
	message       string
	previewLength int
	logger        *zerolog.Logger
}

type Option func(*Retriever)

// WithPreviewLength sets the rune limit of source previews. Values above
// DefaultPreviewLength are capped.
func WithPreviewLength(n int) Option {
	return func(r *Retriever) {
		if n > 0 {
			r.previewLength = min(n, DefaultPreviewLength)
		}
	}
}

// New returns a ready retriever over an index that was built with embedder.
func New(embedder domain.Embedder, index vectorstore.Index, logger *zerolog.Logger, opts ...Option) *Retriever {
	r := &Retriever{embedder: embedder, index: index, previewLength: DefaultPreviewLength, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Unavailable returns a retriever that reports message for every query
// without touching any index.
func Unavailable(message string, cause error, logger *zerolog.Logger) *Retriever {
	if cause == nil {
		cause = errors.New(message)
	}
	return &Retriever{initErr: cause, message: message, previewLength: DefaultPreviewLength, logger: logger}
}

// Open builds or reuses the index for path. A failed build yields an
// unavailable retriever instead of an error; the report is zero then.
func Open(ctx context.Context, indexer *Indexer, path string, logger *zerolog.Logger, opts ...Option) (*Retriever, BuildReport) {
	report, err := indexer.Open(ctx, path)
	if err != nil {
		logger.Error().Err(err).Str("document", path).Msg("RAG system not initialized")
		r := Unavailable(fmt.Sprintf("RAG system not initialized (%v). Cannot retrieve from vector store.", err), err, logger)
		r.index = indexer.Index()
		return r, BuildReport{}
	}
	return New(indexer.Embedder(), indexer.Index(), logger, opts...), report
}

// Ready reports whether the index was built and can be searched.
func (r *Retriever) Ready() bool { return r.initErr == nil && r.index != nil }

// InitError returns why the retriever is unavailable, or nil.
func (r *Retriever) InitError() error { return r.initErr }

// Close releases the underlying index.
func (r *Retriever) Close() error {
	if r.index == nil {
		return nil
	}
	return r.index.Close()
}

// Retrieve returns the k most relevant chunks for query. It never fails:
// an unavailable index, an empty result and a search fault are all reported
// through the returned Result. k <= 0 means DefaultTopK.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) Result {
	if k <= 0 {
		k = DefaultTopK
	}
	res := Result{Query: query, Sources: []Source{}}
	if !r.Ready() {
		res.Status = StatusUnavailable
		res.Message = r.unavailableMessage()
		r.logger.Warn().Str("status", string(res.Status)).Msg(res.Message)
		return res
	}

	r.logger.Debug().Int("query_len", utf8.RuneCountInString(query)).Int("k", k).Msg("Searching vector store")
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return r.failed(res, err)
	}
	hits, err := r.index.Search(ctx, vector, k)
	if err != nil {
		return r.failed(res, err)
	}
	if len(hits) == 0 {
		res.Status = StatusNoMatches
		res.Message = "Vector store returned 0 results."
		r.logger.Info().Msg(res.Message)
		return res
	}

	parts := make([]string, len(hits))
	res.Sources = make([]Source, len(hits))
	rule := strings.Repeat("=", 70)
	for i, hit := range hits {
		ch := hit.Chunk
		r.logger.Debug().Int("chunk", i+1).Int("page", ch.Page).Float64("score", hit.Score).Msg("Retrieved chunk")
		parts[i] = fmt.Sprintf("\n%s\nSOURCE %d | Page %d | Relevance: %.2f\n%s\n%s\n%s\n",
			rule, i+1, ch.Page, hit.Score, rule, ch.Text, rule)
		preview, truncated := textutil.Preview(ch.Text, r.previewLength)
		res.Sources[i] = Source{
			Number:    i + 1,
			FileName:  ch.FileName,
			Page:      ch.Page,
			Relevance: math.Round(hit.Score*1000) / 1000,
			Preview:   preview,
			Truncated: truncated,
			Text:      ch.Text,
		}
	}
	res.Context = strings.Join(parts, "\n")
	res.RAGUsed = true
	res.Status = StatusRetrieved
	res.ChunksFound = len(hits)
	res.Message = fmt.Sprintf("Successfully retrieved %d chunks from knowledge base", len(hits))
	r.logger.Info().Int("chunks_found", res.ChunksFound).Msg(res.Message)
	return res
}

func (r *Retriever) failed(res Result, err error) Result {
	res.Status = StatusSearchFailed
	res.Message = fmt.Sprintf("Error during vector store retrieval: %v", err)
	r.logger.Error().Err(err).Msg("Retrieval failed")
	return res
}

func (r *Retriever) unavailableMessage() string {
	if r.message != "" {
		return r.message
	}
	return "RAG system not initialized. Cannot retrieve from vector store."
}
