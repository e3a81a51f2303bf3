package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/equiprag/internal/embedder"
	"github.com/dshills/equiprag/internal/lexical"
	"github.com/dshills/equiprag/pkg/types"
)

// SQLiteStore implements Store using SQLite with FTS5
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies
// pending migrations
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ReplaceSource deletes then inserts the chunks of source in one transaction
func (s *SQLiteStore) ReplaceSource(ctx context.Context, source string, chunks []*types.Chunk) (int, error) {
	if source == "" {
		return 0, types.ErrMissingSource
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source = ?", source); err != nil {
		return 0, fmt.Errorf("failed to clear source %s: %w", source, err)
	}

	for _, chunk := range chunks {
		chunk.Source = source
		if err := s.insertChunk(ctx, tx, chunk); err != nil {
			return 0, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sources (source, chunk_count, ingested_at) VALUES (?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET chunk_count = excluded.chunk_count, ingested_at = excluded.ingested_at
	`, source, len(chunks), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to record source %s: %w", source, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit source %s: %w", source, err)
	}
	return len(chunks), nil
}

func (s *SQLiteStore) insertChunk(ctx context.Context, q querier, chunk *types.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return fmt.Errorf("invalid chunk %d: %w", chunk.ChunkIndex, err)
	}
	if len(chunk.Embedding) == 0 {
		return fmt.Errorf("chunk %d: %w", chunk.ChunkIndex, ErrMissingEmbedding)
	}

	chunk.ComputeContentHash()
	metadata, err := json.Marshal(chunk.BuildMetadata())
	if err != nil {
		return fmt.Errorf("chunk %d: encode metadata: %w", chunk.ChunkIndex, err)
	}

	var page any
	if chunk.Page != nil {
		page = *chunk.Page
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO chunks (source, page, chunk_index, content, content_hash, kind, metadata, embedding, dimension)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, chunk.Source, page, chunk.ChunkIndex, chunk.Content, chunk.ContentHash[:], string(chunk.Kind),
		string(metadata), embedder.FormatLiteral(chunk.Embedding), len(chunk.Embedding))
	if err != nil {
		return fmt.Errorf("failed to insert chunk %d: %w", chunk.ChunkIndex, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	chunk.ID = id

	if _, err := q.ExecContext(ctx, "INSERT INTO chunks_fts (rowid, terms) VALUES (?, ?)", id, lexical.Document(chunk.Content)); err != nil {
		return fmt.Errorf("failed to index chunk %d: %w", chunk.ChunkIndex, err)
	}
	return nil
}

// DeleteSource removes every chunk of source
func (s *SQLiteStore) DeleteSource(ctx context.Context, source string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source = ?", source)
	if err != nil {
		return 0, fmt.Errorf("failed to delete source %s: %w", source, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	srcResult, err := tx.ExecContext(ctx, "DELETE FROM sources WHERE source = ?", source)
	if err != nil {
		return 0, fmt.Errorf("failed to delete source %s: %w", source, err)
	}
	srcRows, _ := srcResult.RowsAffected()
	if n == 0 && srcRows == 0 {
		return 0, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}

// ListSources returns every ingested source
func (s *SQLiteStore) ListSources(ctx context.Context) ([]SourceInfo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT source, chunk_count, ingested_at FROM sources ORDER BY source")
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

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

// ListChunks returns the chunks of source in chunk index order
func (s *SQLiteStore) ListChunks(ctx context.Context, source string) ([]*types.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chunkColumns+`, c.embedding
		FROM chunks c
		WHERE c.source = ?
		ORDER BY c.chunk_index
	`, source)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []*types.Chunk
	for rows.Next() {
		var (
			row     chunkRow
			literal sql.NullString
		)
		if err := rows.Scan(row.dest(&literal)...); err != nil {
			return nil, err
		}
		chunk, err := row.toChunk()
		if err != nil {
			return nil, err
		}
		if literal.Valid {
			if chunk.Embedding, err = embedder.ParseLiteral(literal.String); err != nil {
				return nil, fmt.Errorf("chunk %d: %w", chunk.ID, err)
			}
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// SearchLexical performs BM25 full-text search
func (s *SQLiteStore) SearchLexical(ctx context.Context, question string, limit int) ([]LexicalHit, error) {
	return searchLexical(ctx, s.db, question, limit)
}

// SearchVector performs cosine distance search
func (s *SQLiteStore) SearchVector(ctx context.Context, vector []float32, limit int) ([]VectorHit, error) {
	return searchVector(ctx, s.db, vector, limit)
}

// GetStatus reports index statistics
func (s *SQLiteStore) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{Backend: "sqlite/" + BuildMode}

	version, err := currentVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version.String()

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sources").Scan(&status.SourcesCount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*), COUNT(embedding) FROM chunks").
		Scan(&status.ChunksCount, &status.EmbeddingsCount)
	if err != nil {
		return nil, err
	}

	var last sql.NullString
	err = s.db.QueryRowContext(ctx, "SELECT MAX(ingested_at) FROM sources").Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if last.Valid {
		status.LastIngestedAt = parseSQLiteTime(last.String)
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	var ftsName string
	ftsErr := s.db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE name = 'chunks_fts'").Scan(&ftsName)

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		FTSIndexBuilt:       ftsErr == nil,
	}

	return status, nil
}

// parseSQLiteTime parses the text forms drivers use for TIMESTAMP columns
// when an aggregate strips the declared type
func parseSQLiteTime(s string) time.Time {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
