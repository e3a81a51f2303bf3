package mcp

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/equiprag/internal/chunker"
	"github.com/dshills/equiprag/internal/indexer"
	"github.com/dshills/equiprag/internal/retriever"
	"github.com/dshills/equiprag/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "equiprag"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Retriever answers catalog searches
type Retriever interface {
	Retrieve(ctx context.Context, req retriever.Request) (*retriever.Response, error)
}

// Ingester writes catalog sources
type Ingester interface {
	Ingest(ctx context.Context, source, text string, mode chunker.Mode) (*indexer.Result, error)
}

// Catalog reports what is indexed
type Catalog interface {
	ListSources(ctx context.Context) ([]storage.SourceInfo, error)
	GetStatus(ctx context.Context) (*storage.Status, error)
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	retriever Retriever
	ingester  Ingester
	catalog   Catalog
	logger    *slog.Logger
}

// NewServer creates a new MCP server instance with its tools registered
func NewServer(r Retriever, ing Ingester, cat Catalog, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		retriever: r,
		ingester:  ing,
		catalog:   cat,
		logger:    logger,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP protocol on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	return s.ServeIO(ctx, os.Stdin, os.Stdout)
}

// ServeIO runs the MCP protocol over the given streams
func (s *Server) ServeIO(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("MCP server started", slog.String("name", ServerName), slog.String("version", ServerVersion))
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchCatalogTool(), s.handleSearchCatalog)
	s.mcp.AddTool(ingestCatalogTool(), s.handleIngestCatalog)
	s.mcp.AddTool(catalogStatusTool(), s.handleCatalogStatus)
}
