package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/equiprag/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrEmptyQuery is returned when a lexical query has no searchable terms
	ErrEmptyQuery = errors.New("empty search query")
	// ErrMissingEmbedding is returned when a chunk without a vector is written
	ErrMissingEmbedding = errors.New("chunk has no embedding")
)

// Store persists catalog chunks and answers lexical and vector queries.
// Implementations are safe for concurrent use.
type Store interface {
	// ReplaceSource deletes every chunk of source and inserts chunks in one
	// transaction. Readers see either the old or the new set, never a mix.
	// Chunks must carry embeddings. Returns the number of chunks written.
	ReplaceSource(ctx context.Context, source string, chunks []*types.Chunk) (int, error)

	// DeleteSource removes every chunk of source. Returns ErrNotFound when
	// the source has no chunks.
	DeleteSource(ctx context.Context, source string) (int, error)

	// ListSources returns every indexed source ordered by name
	ListSources(ctx context.Context) ([]SourceInfo, error)

	// ListChunks returns the chunks of source ordered by chunk index
	ListChunks(ctx context.Context, source string) ([]*types.Chunk, error)

	// SearchLexical ranks chunks against the question's terms. Higher scores
	// are better; scores are never negative.
	SearchLexical(ctx context.Context, question string, limit int) ([]LexicalHit, error)

	// SearchVector ranks chunks by cosine distance to vector, nearest first.
	// Distances lie in [0, 2].
	SearchVector(ctx context.Context, vector []float32, limit int) ([]VectorHit, error)

	// GetStatus reports index statistics and health
	GetStatus(ctx context.Context) (*Status, error)

	// Close releases the underlying connections
	Close() error
}

// LexicalHit is a chunk matched by full-text search
type LexicalHit struct {
	Chunk types.Chunk
	Score float64
}

// VectorHit is a chunk matched by vector search
type VectorHit struct {
	Chunk    types.Chunk
	Distance float64
}

// SourceInfo summarizes one ingested source
type SourceInfo struct {
	Source     string    `json:"source"`
	Chunks     int       `json:"chunks"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Status contains statistics about the index
type Status struct {
	Backend         string       `json:"backend"`
	SchemaVersion   string       `json:"schema_version"`
	SourcesCount    int          `json:"sources"`
	ChunksCount     int          `json:"chunks"`
	EmbeddingsCount int          `json:"embeddings"`
	IndexSizeMB     float64      `json:"index_size_mb"`
	LastIngestedAt  time.Time    `json:"last_ingested_at"`
	Health          HealthStatus `json:"health"`
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool `json:"database_accessible"`
	EmbeddingsAvailable bool `json:"embeddings_available"`
	FTSIndexBuilt       bool `json:"fts_index_built"`
}

// Config selects and configures a backend
type Config struct {
	// Driver is "sqlite" (default) or "postgres"
	Driver string
	// Path is the SQLite database file; ":memory:" for an in-memory store
	Path string
	// DSN is the PostgreSQL connection string
	DSN string
	// Dimension sizes the PostgreSQL vector column
	Dimension int
}

// Open creates the backend named by cfg.Driver
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite", "sqlite3":
		return NewSQLiteStore(cfg.Path)
	case "postgres", "postgresql", "pgx":
		return NewPostgresStore(ctx, cfg.DSN, cfg.Dimension)
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
