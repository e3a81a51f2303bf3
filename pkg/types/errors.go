package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidChunkID = errors.New("invalid chunk ID")
	ErrMissingSource  = errors.New("source is required")
	ErrEmptyContent   = errors.New("content cannot be empty")
)

// Retrieval and ingestion errors. Callers classify these with errors.Is.
var (
	// ErrEmptyQuestion is returned when retrieval is called without a question
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrEmbeddingUnavailable means the query could not be embedded. It is
	// distinct from an empty result set: nothing was searched.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrSearchUnavailable means every underlying search failed
	ErrSearchUnavailable = errors.New("catalog search unavailable")

	// ErrDimensionMismatch is returned for embeddings shorter than the
	// configured dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIngestInProgress is returned when the same source is already being ingested
	ErrIngestInProgress = errors.New("ingestion already in progress for source")

	// ErrNothingEmbedded is returned when no chunk of a source could be embedded;
	// existing chunks for the source are left untouched
	ErrNothingEmbedded = errors.New("no chunks could be embedded")
)
