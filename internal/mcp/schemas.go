package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchCatalogTool returns the tool definition for search_catalog
func searchCatalogTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_catalog",
		Description: "Search the medical equipment catalog with a natural language question (English or Chinese)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Question, e.g. '承重 150kg 以上的擔架' or 'Model 35-X specifications'",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of chunks to return (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: hybrid (BM25 + vector), vector (semantic only), or keyword (BM25 only)",
					"enum":        []string{"hybrid", "vector", "keyword"},
					"default":     "hybrid",
				},
				"rerank_model": map[string]interface{}{
					"type":        "string",
					"description": "Ollama model used to rerank candidates; empty uses the configured default",
				},
			},
			Required: []string{"query"},
		},
	}
}

// ingestCatalogTool returns the tool definition for ingest_catalog
func ingestCatalogTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_catalog",
		Description: "Index extracted catalog text under a source name, replacing any earlier version of that source",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"source": map[string]interface{}{
					"type":        "string",
					"description": "Source name, usually the catalog file name",
				},
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Extracted text; form feeds separate pages",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Chunking strategy: catalog (spec-table aware) or generic",
					"enum":        []string{"catalog", "generic"},
					"default":     "catalog",
				},
			},
			Required: []string{"source", "text"},
		},
	}
}

// catalogStatusTool returns the tool definition for catalog_status
func catalogStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "catalog_status",
		Description: "Report indexed sources, chunk counts and index health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
