// Package mcpserver exposes the knowledge base tools over the Model Context
// Protocol so agent runtimes can call them.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"mathrag/internal/knowledge"
	"mathrag/internal/service"
)

// Version is the MCP server version.
const Version = "0.1.0"

var ErrMissingRegistry = errors.New("mcpserver: knowledge registry is required")

// QueryInput is the input schema shared by the knowledge base tools.
type QueryInput struct {
	Query string `json:"query" jsonschema:"the math question to search the knowledge base for"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of passages to retrieve (default 4)"`
}

// Server serves one tool per registered knowledge base.
type Server struct {
	registry *knowledge.Registry
	server   *mcp.Server
	logger   *zerolog.Logger
}

func NewServer(registry *knowledge.Registry, logger *zerolog.Logger) (*Server, error) {
	if registry == nil {
		return nil, ErrMissingRegistry
	}
	s := &Server{
		registry: registry,
		server:   mcp.NewServer(&mcp.Implementation{Name: "mathrag", Version: Version}, nil),
		logger:   logger,
	}
	for _, b := range registry.Bases() {
		mcp.AddTool(s.server, &mcp.Tool{Name: b.Tool, Description: b.Description}, s.handler(b.Name))
	}
	return s, nil
}

// handler returns the tool handler for the named base. Retrieval problems
// come back as fallback text, never as tool errors.
func (s *Server) handler(base string) mcp.ToolHandlerFor[QueryInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, any, error) {
		text, err := s.registry.Query(ctx, base, input.Query, input.TopK)
		if err != nil {
			return nil, nil, err
		}
		s.logger.Info().Str("knowledge_base", base).Int("top_k", topK(input.TopK)).Msg("Tool called")
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, nil, nil
	}
}

func topK(k int) int {
	if k <= 0 {
		return service.DefaultTopK
	}
	return k
}

// Run serves over stdio until ctx is cancelled or stdin closes.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	s.logger.Info().Str("address", addr).Msg("Serving MCP over HTTP")
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mcp http server: %w", err)
	}
	return nil
}
