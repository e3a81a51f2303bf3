package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/dshills/equiprag/internal/embedder"
	"github.com/dshills/equiprag/internal/lexical"
	"github.com/dshills/equiprag/pkg/types"
)

// vecDistanceFunc is the SQL name of the cosine distance function. It takes
// two vector literals and returns 1 - cosine similarity in [0, 2].
const vecDistanceFunc = "vec_distance_cosine"

// vecDistanceCosine implements vec_distance_cosine for both drivers. NULL in
// either argument yields NULL.
func vecDistanceCosine(args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%s: expected 2 arguments, got %d", vecDistanceFunc, len(args))
	}

	a, err := asVector(args[0])
	if err != nil {
		return nil, err
	}
	b, err := asVector(args[1])
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, nil
	}

	d, err := embedder.CosineDistance(a, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", vecDistanceFunc, err)
	}
	return d, nil
}

func asVector(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case string:
		return embedder.ParseLiteral(v)
	case []byte:
		return embedder.ParseLiteral(string(v))
	default:
		return nil, fmt.Errorf("%s: unsupported argument type %T; want TEXT", vecDistanceFunc, arg)
	}
}

const chunkColumns = `c.id, c.source, c.page, c.chunk_index, c.content, c.content_hash, c.kind, c.metadata`

// searchLexical performs BM25 full-text search using FTS5. bm25() is
// negative with better matches more negative, so it is negated.
func searchLexical(ctx context.Context, q querier, question string, limit int) ([]LexicalHit, error) {
	if limit <= 0 {
		return []LexicalHit{}, nil
	}

	match := lexical.MatchExpression(question)
	if match == "" {
		return nil, ErrEmptyQuery
	}

	query := `
		SELECT ` + chunkColumns + `, -bm25(chunks_fts) AS score
		FROM chunks_fts
		INNER JOIN chunks c ON c.id = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY score DESC, c.id ASC
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, match, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]LexicalHit, 0, limit)
	for rows.Next() {
		var (
			row chunkRow
			hit LexicalHit
		)
		if err := rows.Scan(row.dest(&hit.Score)...); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if hit.Chunk, err = row.toChunk(); err != nil {
			return nil, err
		}
		if hit.Score < 0 {
			hit.Score = 0
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// searchVector ranks chunks by vec_distance_cosine against the query literal
func searchVector(ctx context.Context, q querier, vector []float32, limit int) ([]VectorHit, error) {
	if limit <= 0 {
		return []VectorHit{}, nil
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", embedder.ErrInvalidInput)
	}

	query := `
		SELECT ` + chunkColumns + `, ` + vecDistanceFunc + `(c.embedding, ?) AS distance
		FROM chunks c
		WHERE c.embedding IS NOT NULL AND c.dimension = ?
		ORDER BY distance ASC, c.id ASC
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, embedder.FormatLiteral(vector), len(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]VectorHit, 0, limit)
	for rows.Next() {
		var (
			row chunkRow
			hit VectorHit
		)
		if err := rows.Scan(row.dest(&hit.Distance)...); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if hit.Chunk, err = row.toChunk(); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// chunkRow holds the raw columns of a chunk row. Rows are mapped to
// types.Chunk here and nowhere else.
type chunkRow struct {
	id         int64
	source     string
	page       sql.NullInt64
	chunkIndex int
	content    string
	hash       []byte
	kind       string
	metadata   string
}

// dest returns scan destinations matching chunkColumns
func (r *chunkRow) dest(extra ...any) []any {
	return append([]any{&r.id, &r.source, &r.page, &r.chunkIndex, &r.content, &r.hash, &r.kind, &r.metadata}, extra...)
}

func (r *chunkRow) toChunk() (types.Chunk, error) {
	c := types.Chunk{
		ID:         r.id,
		Source:     r.source,
		ChunkIndex: r.chunkIndex,
		Content:    r.content,
		Kind:       types.SegmentKind(r.kind),
	}
	if r.page.Valid {
		c.Page = types.IntPtr(int(r.page.Int64))
	}
	copy(c.ContentHash[:], r.hash)
	if r.metadata != "" {
		if err := json.Unmarshal([]byte(r.metadata), &c.Metadata); err != nil {
			return c, fmt.Errorf("chunk %d: decode metadata: %w", r.id, err)
		}
	}
	return c, nil
}
