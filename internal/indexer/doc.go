// Package indexer coordinates catalog ingestion: chunk, embed, then replace
// the stored chunks of a source.
//
// # Basic Usage
//
//	idx := indexer.New(store, emb, indexer.Config{Dimension: 768})
//
//	res, err := idx.Ingest(ctx, "ferno-2024.pdf", text, chunker.ModeCatalog)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("wrote %d chunks, skipped %d\n", res.ChunksWritten, res.ChunksFailed)
//
// # Pipeline
//
//  1. Chunk: catalog or generic strategy, per page when the text has form feeds
//  2. Embed: one call per chunk on a bounded worker pool
//  3. Conform: truncate long vectors to the configured dimension, reject short ones
//  4. Store: delete-then-insert of the whole source in one transaction
//  5. Invalidate: purge the retrieval cache
//
// A chunk that fails to embed is logged and left out; the returned count is
// what was written, not what was attempted. When no chunk embeds the previous
// chunks of the source are kept and types.ErrNothingEmbedded is returned.
//
// # Concurrency
//
// Each source has its own lock. A second ingestion of a source that is
// already in progress fails fast with types.ErrIngestInProgress; different
// sources ingest concurrently.
//
// # Directories
//
// IngestDir walks a directory with doublestar include and exclude patterns
// and ingests every match as its own source:
//
//	stats, err := idx.IngestDir(ctx, "catalogs", indexer.DirOptions{
//	    Includes: []string{"**/*.txt"},
//	    Excludes: []string{"drafts/**"},
//	})
package indexer
