package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/equiprag/internal/chunker"
	"github.com/dshills/equiprag/internal/retriever"
	"github.com/dshills/equiprag/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams     = -32602 // Invalid method parameters
	ErrorCodeInternalError     = -32603 // Internal JSON-RPC error
	ErrorCodeIngestInProgress  = -32002 // The same source is already being ingested
	ErrorCodeSearchUnavailable = -32003 // Embedding or search backend unavailable
	ErrorCodeEmptyQuery        = -32004 // Query parameter is empty
	ErrorCodeEmbedUnavailable  = -32005 // No chunk of the source could be embedded
)

const (
	maxErrorsInResponse      = 5
	searchUnavailableMessage = "temporarily unable to search catalog"
	noResultsMessage         = "no matching equipment found"
)

// handleSearchCatalog handles the search_catalog tool invocation
func (s *Server) handleSearchCatalog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query := getStringDefault(args, "query", "")
	if strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", retriever.DefaultTopK)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	mode, err := retriever.ParseMode(getStringDefault(args, "mode", ""))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"value":   args["mode"],
			"allowed": []string{"hybrid", "vector", "keyword"},
		})
	}

	resp, err := s.retriever.Retrieve(ctx, retriever.Request{
		Question:    query,
		TopK:        limit,
		Mode:        mode,
		RerankModel: getStringDefault(args, "rerank_model", ""),
		UseCache:    true,
	})
	if err != nil {
		if errors.Is(err, types.ErrEmbeddingUnavailable) || errors.Is(err, types.ErrSearchUnavailable) {
			s.logger.Warn("search_catalog unavailable", slog.String("error", err.Error()))
			return nil, newMCPError(ErrorCodeSearchUnavailable, searchUnavailableMessage, nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for i, r := range resp.Results {
		item := map[string]interface{}{
			"rank":        i + 1,
			"score":       r.Score,
			"source":      r.Source,
			"chunk_index": r.ChunkIndex,
			"content":     r.Content,
		}
		if r.Page != nil {
			item["page"] = *r.Page
		}
		results = append(results, item)
	}

	response := map[string]interface{}{
		"results":     results,
		"search_mode": string(resp.SearchMode),
		"duration_ms": resp.Duration.Milliseconds(),
		"reranked":    resp.Reranked,
	}
	if len(results) == 0 {
		response["message"] = noResultsMessage
	}
	if len(resp.Intents) > 0 {
		response["intents"] = resp.Intents
	}
	if len(resp.Warnings) > 0 {
		response["warnings"] = resp.Warnings
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIngestCatalog handles the ingest_catalog tool invocation
func (s *Server) handleIngestCatalog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	source := getStringDefault(args, "source", "")
	if strings.TrimSpace(source) == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "source parameter is required", map[string]interface{}{
			"param":  "source",
			"reason": "missing or empty",
		})
	}
	text := getStringDefault(args, "text", "")

	mode, ok := chunker.ParseMode(getStringDefault(args, "mode", ""))
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"value":   args["mode"],
			"allowed": []string{"catalog", "generic"},
		})
	}

	result, err := s.ingester.Ingest(ctx, source, text, mode)
	switch {
	case errors.Is(err, types.ErrIngestInProgress):
		return nil, newMCPError(ErrorCodeIngestInProgress, "ingestion already in progress", map[string]interface{}{
			"source": source,
		})
	case errors.Is(err, types.ErrEmptyContent):
		return nil, newMCPError(ErrorCodeInvalidParams, "text produced no chunks", map[string]interface{}{
			"param":  "text",
			"reason": err.Error(),
		})
	case errors.Is(err, types.ErrNothingEmbedded):
		return nil, newMCPError(ErrorCodeEmbedUnavailable, "no chunk could be embedded; existing chunks kept", map[string]interface{}{
			"source": source,
		})
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "ingestion failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"source":         result.Source,
		"segments":       result.Segments,
		"chunks_written": result.ChunksWritten,
		"chunks_failed":  result.ChunksFailed,
		"duration_ms":    result.Duration.Milliseconds(),
	}
	if n := len(result.ErrorMessages); n > 0 {
		if n > maxErrorsInResponse {
			response["errors"] = result.ErrorMessages[:maxErrorsInResponse]
			response["error_count"] = n
		} else {
			response["errors"] = result.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCatalogStatus handles the catalog_status tool invocation
func (s *Server) handleCatalogStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.catalog.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}
	sources, err := s.catalog.ListSources(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list sources", map[string]interface{}{
			"error": err.Error(),
		})
	}

	sourceList := make([]map[string]interface{}, 0, len(sources))
	for _, src := range sources {
		sourceList = append(sourceList, map[string]interface{}{
			"source":      src.Source,
			"chunks":      src.Chunks,
			"ingested_at": src.IngestedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	response := map[string]interface{}{
		"indexed": status.ChunksCount > 0,
		"backend": status.Backend,
		"sources": sourceList,
		"statistics": map[string]interface{}{
			"schema_version":   status.SchemaVersion,
			"sources_count":    status.SourcesCount,
			"chunks_count":     status.ChunksCount,
			"embeddings_count": status.EmbeddingsCount,
			"index_size_mb":    fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"fts_index_built":      status.Health.FTSIndexBuilt,
		},
	}
	if !status.LastIngestedAt.IsZero() {
		response["last_ingested_at"] = status.LastIngestedAt.Format("2006-01-02T15:04:05Z07:00")
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
