package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/equiprag/internal/chunker"
	"github.com/dshills/equiprag/internal/embedder"
	"github.com/dshills/equiprag/internal/storage"
	"github.com/dshills/equiprag/pkg/types"
)

// DefaultEmbedTimeout bounds a single chunk embedding call
const DefaultEmbedTimeout = 30 * time.Second

// CacheInvalidator is notified after a source's chunks change
type CacheInvalidator interface {
	InvalidateCache()
}

// Indexer coordinates the ingestion pipeline: chunk -> embed -> replace source
type Indexer struct {
	chunker  *chunker.Chunker
	store    storage.Store
	embedder embedder.Embedder
	cache    CacheInvalidator
	locks    sourceLocks
	cfg      Config
}

// Config contains configuration for the indexer
type Config struct {
	Workers        int              // Concurrent embedding calls (default: runtime.NumCPU())
	Dimension      int              // Stored vector size; 0 keeps what the embedder returns
	EmbeddingModel string           // Overrides the embedder's default model
	EmbedTimeout   time.Duration    // Per-chunk embedding timeout (default: 30s)
	AllowRetry     bool             // Let remote providers retry failed embedding calls
	Chunking       chunker.Options  // Packing limits
	Logger         *slog.Logger     // Defaults to slog.Default()
	Cache          CacheInvalidator // Optional retrieval cache to purge on change
}

// Result describes one source ingestion
type Result struct {
	Source        string
	Segments      int
	ChunksWritten int
	ChunksFailed  int
	Duration      time.Duration
	ErrorMessages []string
}

// Statistics contains statistics about a directory ingestion
type Statistics struct {
	FilesIndexed  int
	FilesFailed   int
	ChunksWritten int
	ChunksFailed  int
	Duration      time.Duration
	ErrorMessages []string
}

// New creates a new Indexer instance
func New(store storage.Store, emb embedder.Embedder, cfg Config) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultEmbedTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Indexer{
		chunker:  chunker.New(cfg.Chunking),
		store:    store,
		embedder: emb,
		cache:    cfg.Cache,
		cfg:      cfg,
	}
}

// SetCacheInvalidator registers the cache purged after every change
func (idx *Indexer) SetCacheInvalidator(c CacheInvalidator) {
	idx.cache = c
}

// Ingest chunks text, embeds every chunk and replaces all stored chunks of
// source with the ones that embedded successfully. Chunks that fail to embed
// are logged and skipped. If none embed, the stored chunks are left as they
// were and types.ErrNothingEmbedded is returned.
//
// Ingestion of one source is serialized: a second concurrent call for the
// same source fails with types.ErrIngestInProgress.
func (idx *Indexer) Ingest(ctx context.Context, source, text string, mode chunker.Mode) (*Result, error) {
	if source == "" {
		return nil, types.ErrMissingSource
	}

	lock, ok := idx.locks.tryAcquire(source)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrIngestInProgress, source)
	}
	defer lock.Release()

	start := time.Now()
	result := &Result{Source: source}

	segments := idx.chunker.Chunk(text, mode)
	result.Segments = len(segments)
	if len(segments) == 0 {
		return nil, fmt.Errorf("%s: %w", source, types.ErrEmptyContent)
	}

	chunks := make([]*types.Chunk, len(segments))
	for i, seg := range segments {
		chunks[i] = &types.Chunk{
			Source:     source,
			Page:       seg.Page,
			ChunkIndex: i,
			Content:    seg.Content,
			Kind:       seg.Kind,
		}
	}

	embedded, failures := idx.embedChunks(ctx, chunks)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.ChunksFailed = len(failures)
	result.ErrorMessages = failures

	if len(embedded) == 0 {
		return result, fmt.Errorf("%s: %w", source, types.ErrNothingEmbedded)
	}

	n, err := idx.store.ReplaceSource(ctx, source, embedded)
	if err != nil {
		return result, fmt.Errorf("failed to store chunks for %s: %w", source, err)
	}
	result.ChunksWritten = n
	result.Duration = time.Since(start)

	idx.invalidate()
	idx.cfg.Logger.Info("source ingested",
		"source", source,
		"chunks_written", n,
		"chunks_failed", result.ChunksFailed,
		"duration", result.Duration)

	return result, nil
}

// embedChunks embeds chunks with a bounded worker pool and returns those that
// succeeded, in their original order, plus one message per failure
func (idx *Indexer) embedChunks(ctx context.Context, chunks []*types.Chunk) ([]*types.Chunk, []string) {
	errs := make([]error, len(chunks))

	if !idx.cfg.AllowRetry {
		ctx = embedder.WithoutRetry(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.cfg.Workers)

	for i, chunk := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = idx.embedChunk(gctx, chunk)
			return nil
		})
	}
	_ = g.Wait()

	var (
		embedded []*types.Chunk
		failures []string
	)
	for i, chunk := range chunks {
		if errs[i] != nil {
			idx.cfg.Logger.Warn("skipping chunk",
				"source", chunk.Source,
				"chunk_index", chunk.ChunkIndex,
				"error", errs[i])
			failures = append(failures, fmt.Sprintf("chunk %d: %v", chunk.ChunkIndex, errs[i]))
			continue
		}
		embedded = append(embedded, chunk)
	}
	return embedded, failures
}

func (idx *Indexer) embedChunk(ctx context.Context, chunk *types.Chunk) error {
	if idx.embedder == nil {
		return errors.New("embedder not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, idx.cfg.EmbedTimeout)
	defer cancel()

	emb, err := idx.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
		Text:  chunk.Content,
		Model: idx.cfg.EmbeddingModel,
	})
	if err != nil {
		return err
	}

	vec, err := embedder.Conform(emb.Vector, idx.cfg.Dimension)
	if err != nil {
		return err
	}
	chunk.Embedding = vec
	return nil
}

// IngestFile ingests the extracted text at path under source. An empty
// source uses the file's base name.
func (idx *Indexer) IngestFile(ctx context.Context, path, source string, mode chunker.Mode) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if source == "" {
		source = filepath.Base(path)
	}
	return idx.Ingest(ctx, source, string(content), mode)
}

// DirOptions selects the files of a directory ingestion
type DirOptions struct {
	Includes []string // doublestar patterns, default DefaultIncludes
	Excludes []string // doublestar patterns, default DefaultExcludes
	Mode     chunker.Mode

	// Progress, when set, is called after each file
	Progress func(source string, res *Result, err error)
}

// DiscoverFiles lists the files IngestDir would ingest, relative to root
func DiscoverFiles(root string, opts DirOptions) ([]string, error) {
	return discoverFiles(root, opts.Includes, opts.Excludes)
}

// IngestDir ingests every matching file under root. Each file becomes a
// source named by its slash-separated path relative to root. A failing file
// is recorded and the rest continue.
func (idx *Indexer) IngestDir(ctx context.Context, root string, opts DirOptions) (*Statistics, error) {
	startTime := time.Now()

	files, err := discoverFiles(root, opts.Includes, opts.Excludes)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	stats := &Statistics{ErrorMessages: make([]string, 0)}

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		source := sourceName(rel)
		res, err := idx.IngestFile(ctx, filepath.Join(root, filepath.FromSlash(rel)), source, opts.Mode)
		if res != nil {
			stats.ChunksWritten += res.ChunksWritten
			stats.ChunksFailed += res.ChunksFailed
		}
		if err != nil {
			stats.FilesFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", source, err))
		} else {
			stats.FilesIndexed++
		}

		if opts.Progress != nil {
			opts.Progress(source, res, err)
		}
	}

	stats.Duration = time.Since(startTime)
	return stats, nil
}

// DeleteSource removes a source. It fails with types.ErrIngestInProgress
// while the source is being ingested.
func (idx *Indexer) DeleteSource(ctx context.Context, source string) (int, error) {
	lock, ok := idx.locks.tryAcquire(source)
	if !ok {
		return 0, fmt.Errorf("%w: %s", types.ErrIngestInProgress, source)
	}
	defer lock.Release()

	n, err := idx.store.DeleteSource(ctx, source)
	if err != nil {
		return 0, err
	}
	idx.invalidate()
	return n, nil
}

func (idx *Indexer) invalidate() {
	if idx.cache != nil {
		idx.cache.InvalidateCache()
	}
}
