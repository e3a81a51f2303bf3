// Package types provides shared type definitions for the equipment catalog
// retrieval service.
//
// # Core Types
//
// Chunk is a bounded span of normalized catalog text, identified within a
// source by its chunk index:
//
//	chunk := &types.Chunk{
//	    Source:     "ferno-stretchers.pdf",
//	    Page:       types.IntPtr(3),
//	    ChunkIndex: 7,
//	    Content:    "Model 35-X\nSPECIFICATIONS\nLoad Limit 295 kg",
//	    Kind:       types.SegmentSpec,
//	}
//
// RetrievalResult is a scored chunk returned from a single retrieval call.
// Results are sorted by score descending with ties broken by ID:
//
//	types.SortResults(results)
//
// # Errors
//
// Retrieval distinguishes "nothing matched" (an empty slice and a nil error)
// from "could not search" (ErrEmbeddingUnavailable or ErrSearchUnavailable):
//
//	results, err := r.Retrieve(ctx, req)
//	if errors.Is(err, types.ErrEmbeddingUnavailable) {
//	    // report "temporarily unable to search catalog"
//	}
package types
