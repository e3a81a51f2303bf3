// Package storage persists catalog chunks and answers the two retrieval
// queries the hybrid retriever fans out: lexical ranking and vector ranking.
//
// # Backends
//
// SQLiteStore is the default. Lexical search uses an FTS5 table ranked with
// bm25(); vector search uses a vec_distance_cosine SQL function registered
// from Go over the "[v1,...,vn]" literal stored in the embedding column.
//
// PostgresStore uses a pgx connection pool, a 'simple' tsvector ranked with
// ts_rank, and a pgvector column compared with the <=> operator.
//
//	store, err := storage.Open(ctx, storage.Config{Driver: "sqlite", Path: "catalog.db"})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
// # Source Replacement
//
// A source is always written whole. ReplaceSource deletes the prior chunks of
// the source and inserts the new ones in a single transaction, so concurrent
// readers never observe a partially replaced source:
//
//	n, err := store.ReplaceSource(ctx, "ferno-2024.pdf", chunks)
//
// # Build Tags
//
// Pure Go build (default):
//
//   - Uses modernc.org/sqlite
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build ./...
//
// CGO build (cgosqlite tag):
//
//   - Uses github.com/mattn/go-sqlite3 with FTS5
//
//     CGO_ENABLED=1 go build -tags "cgosqlite sqlite_fts5" ./...
//
// # Schema
//
// SQLite schema changes are applied as semver-ordered migrations recorded in
// schema_version. The PostgreSQL schema is created idempotently on connect.
package storage
