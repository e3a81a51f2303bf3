package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/dshills/equiprag/internal/lexical"
	"github.com/dshills/equiprag/pkg/types"
)

// PostgresStore implements Store on PostgreSQL with the pgvector extension.
// Lexical ranking uses ts_rank over a 'simple' tsvector built from the same
// terms as the SQLite FTS index; vector ranking uses the <=> cosine operator.
type PostgresStore struct {
	pool      *pgxpool.Pool
	dimension int
}

func postgresSchema(dim int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS chunks (
    id BIGSERIAL PRIMARY KEY,
    source TEXT NOT NULL,
    page INTEGER,
    chunk_index INTEGER NOT NULL,
    content TEXT NOT NULL,
    content_hash BYTEA NOT NULL,
    kind TEXT NOT NULL DEFAULT 'generic',
    metadata JSONB NOT NULL DEFAULT '{}',
    embedding vector(%d),
    terms tsvector NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (source, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks (source);
CREATE INDEX IF NOT EXISTS idx_chunks_terms ON chunks USING GIN (terms);

CREATE TABLE IF NOT EXISTS sources (
    source TEXT PRIMARY KEY,
    chunk_count INTEGER NOT NULL DEFAULT 0,
    ingested_at TIMESTAMPTZ NOT NULL
);
`, dim)
}

// NewPostgresStore connects to dsn, creates the vector extension and schema
// if needed, and returns a pooled store
func NewPostgresStore(ctx context.Context, dsn string, dimension int) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	if dimension <= 0 {
		return nil, errors.New("postgres: vector dimension is required")
	}

	// The extension must exist before pooled connections register its types
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("postgres: create vector extension: %w", err)
	}
	_ = conn.Close(ctx)

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema(dimension)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create schema: %w", err)
	}

	return &PostgresStore{pool: pool, dimension: dimension}, nil
}

// Close closes the pool
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// ReplaceSource deletes then inserts the chunks of source in one transaction
func (p *PostgresStore) ReplaceSource(ctx context.Context, source string, chunks []*types.Chunk) (int, error) {
	if source == "" {
		return 0, types.ErrMissingSource
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, "DELETE FROM chunks WHERE source = $1", source); err != nil {
		return 0, fmt.Errorf("failed to clear source %s: %w", source, err)
	}

	for _, chunk := range chunks {
		chunk.Source = source
		if err := chunk.Validate(); err != nil {
			return 0, fmt.Errorf("invalid chunk %d: %w", chunk.ChunkIndex, err)
		}
		if len(chunk.Embedding) == 0 {
			return 0, fmt.Errorf("chunk %d: %w", chunk.ChunkIndex, ErrMissingEmbedding)
		}

		chunk.ComputeContentHash()
		metadata, err := json.Marshal(chunk.BuildMetadata())
		if err != nil {
			return 0, fmt.Errorf("chunk %d: encode metadata: %w", chunk.ChunkIndex, err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO chunks (source, page, chunk_index, content, content_hash, kind, metadata, embedding, terms)
			VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, to_tsvector('simple', $9))
			RETURNING id
		`, source, chunk.Page, chunk.ChunkIndex, chunk.Content, chunk.ContentHash[:], string(chunk.Kind),
			string(metadata), pgvector.NewVector(chunk.Embedding), lexical.Document(chunk.Content)).Scan(&chunk.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sources (source, chunk_count, ingested_at) VALUES ($1, $2, $3)
		ON CONFLICT (source) DO UPDATE SET chunk_count = EXCLUDED.chunk_count, ingested_at = EXCLUDED.ingested_at
	`, source, len(chunks), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to record source %s: %w", source, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit source %s: %w", source, err)
	}
	return len(chunks), nil
}

// DeleteSource removes every chunk of source
func (p *PostgresStore) DeleteSource(ctx context.Context, source string) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, "DELETE FROM chunks WHERE source = $1", source)
	if err != nil {
		return 0, fmt.Errorf("failed to delete source %s: %w", source, err)
	}
	srcTag, err := tx.Exec(ctx, "DELETE FROM sources WHERE source = $1", source)
	if err != nil {
		return 0, fmt.Errorf("failed to delete source %s: %w", source, err)
	}
	if tag.RowsAffected() == 0 && srcTag.RowsAffected() == 0 {
		return 0, ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ListSources returns every ingested source
func (p *PostgresStore) ListSources(ctx context.Context) ([]SourceInfo, error) {
	rows, err := p.pool.Query(ctx, "SELECT source, chunk_count, ingested_at FROM sources ORDER BY source")
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []SourceInfo
	for rows.Next() {
		var info SourceInfo
		if err := rows.Scan(&info.Source, &info.Chunks, &info.IngestedAt); err != nil {
			return nil, err
		}
		sources = append(sources, info)
	}
	return sources, rows.Err()
}

const pgChunkColumns = `id, source, page, chunk_index, content, content_hash, kind, metadata::text`

// ListChunks returns the chunks of source in chunk index order
func (p *PostgresStore) ListChunks(ctx context.Context, source string) ([]*types.Chunk, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+pgChunkColumns+`, embedding
		FROM chunks WHERE source = $1 ORDER BY chunk_index
	`, source)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*types.Chunk
	for rows.Next() {
		var (
			row chunkRow
			vec pgvector.Vector
		)
		if err := rows.Scan(row.dest(&vec)...); err != nil {
			return nil, err
		}
		chunk, err := row.toChunk()
		if err != nil {
			return nil, err
		}
		chunk.Embedding = vec.Slice()
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// tsQuery ORs the question's terms in to_tsquery syntax
func tsQuery(question string) string {
	terms := lexical.Terms(question)
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = "'" + strings.ReplaceAll(t, "'", "''") + "'"
	}
	return strings.Join(quoted, " | ")
}

// SearchLexical ranks chunks with ts_rank
func (p *PostgresStore) SearchLexical(ctx context.Context, question string, limit int) ([]LexicalHit, error) {
	if limit <= 0 {
		return []LexicalHit{}, nil
	}
	q := tsQuery(question)
	if q == "" {
		return nil, ErrEmptyQuery
	}

	rows, err := p.pool.Query(ctx, `
		SELECT `+pgChunkColumns+`, ts_rank(terms, query) AS score
		FROM chunks, to_tsquery('simple', $1) query
		WHERE terms @@ query
		ORDER BY score DESC, id ASC
		LIMIT $2
	`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute text search: %w", err)
	}
	defer rows.Close()

	hits := make([]LexicalHit, 0, limit)
	for rows.Next() {
		var (
			row   chunkRow
			score float32
		)
		if err := rows.Scan(row.dest(&score)...); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		chunk, err := row.toChunk()
		if err != nil {
			return nil, err
		}
		hits = append(hits, LexicalHit{Chunk: chunk, Score: float64(score)})
	}
	return hits, rows.Err()
}

// SearchVector ranks chunks by pgvector cosine distance
func (p *PostgresStore) SearchVector(ctx context.Context, vector []float32, limit int) ([]VectorHit, error) {
	if limit <= 0 {
		return []VectorHit{}, nil
	}
	if len(vector) != p.dimension {
		return nil, fmt.Errorf("%w: query has %d components, column has %d", types.ErrDimensionMismatch, len(vector), p.dimension)
	}

	rows, err := p.pool.Query(ctx, `
		SELECT `+pgChunkColumns+`, embedding <=> $1 AS distance
		FROM chunks
		WHERE embedding IS NOT NULL
		ORDER BY distance ASC, id ASC
		LIMIT $2
	`, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer rows.Close()

	hits := make([]VectorHit, 0, limit)
	for rows.Next() {
		var (
			row      chunkRow
			distance float64
		)
		if err := rows.Scan(row.dest(&distance)...); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		chunk, err := row.toChunk()
		if err != nil {
			return nil, err
		}
		hits = append(hits, VectorHit{Chunk: chunk, Distance: distance})
	}
	return hits, rows.Err()
}

// GetStatus reports index statistics
func (p *PostgresStore) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{Backend: "postgres", SchemaVersion: CurrentSchemaVersion}

	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM sources").Scan(&status.SourcesCount); err != nil {
		return nil, err
	}
	err := p.pool.QueryRow(ctx, "SELECT COUNT(*), COUNT(embedding) FROM chunks").
		Scan(&status.ChunksCount, &status.EmbeddingsCount)
	if err != nil {
		return nil, err
	}

	var last *time.Time
	if err := p.pool.QueryRow(ctx, "SELECT MAX(ingested_at) FROM sources").Scan(&last); err != nil {
		return nil, err
	}
	if last != nil {
		status.LastIngestedAt = *last
	}

	var size int64
	if err := p.pool.QueryRow(ctx, "SELECT pg_total_relation_size('chunks')").Scan(&size); err == nil {
		status.IndexSizeMB = float64(size) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		FTSIndexBuilt:       true,
	}
	return status, nil
}
