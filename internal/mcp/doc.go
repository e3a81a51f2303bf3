// Package mcp implements the Model Context Protocol (MCP) server for equiprag.
//
// The MCP server exposes three tools to AI assistants:
//   - search_catalog: hybrid retrieval over the indexed equipment catalog
//   - ingest_catalog: index extracted catalog text under a source name
//   - catalog_status: indexed sources, chunk counts and index health
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started with:
//
//	equiprag mcp
//
// # Tool: search_catalog
//
//	Request:
//	{
//	  "name": "search_catalog",
//	  "arguments": {
//	    "query": "承重 150kg 以上的擔架",
//	    "limit": 5,
//	    "mode": "hybrid",
//	    "rerank_model": "llama3:70b"
//	  }
//	}
//
//	Response:
//	{
//	  "results": [
//	    {
//	      "rank": 1,
//	      "score": 1.37,
//	      "source": "ferno-2024.txt",
//	      "page": 3,
//	      "chunk_index": 12,
//	      "content": "Model 35-X Specifications ..."
//	    }
//	  ],
//	  "search_mode": "hybrid",
//	  "intents": ["specification", "load_limit"]
//	}
//
// An empty result carries "message": "no matching equipment found". When the
// query cannot be embedded or both searches fail the tool returns error
// -32003 instead of an empty list.
//
// # Tool: ingest_catalog
//
//	Request:
//	{
//	  "name": "ingest_catalog",
//	  "arguments": {"source": "ferno-2024.txt", "text": "...", "mode": "catalog"}
//	}
//
// Re-ingesting a source replaces its chunks atomically.
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32002: Ingestion of the same source already in progress
//   - -32003: Search temporarily unavailable
//   - -32004: Empty query
//   - -32005: No chunk of the source could be embedded
//
// # Logging
//
// The server logs to stderr; stdout is reserved for the protocol.
package mcp
