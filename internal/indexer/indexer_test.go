package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/equiprag/internal/chunker"
	"github.com/dshills/equiprag/internal/embedder"
	"github.com/dshills/equiprag/internal/storage"
	"github.com/dshills/equiprag/pkg/types"
)

// mockEmbedder implements embedder.Embedder for testing
type mockEmbedder struct {
	dimension int
	failOn    string        // content substring that fails
	blockOn   string        // content substring that waits on release
	release   chan struct{} // closed to unblock
	callCount atomic.Int32
	models    sync.Map
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dimension: 4}
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	m.callCount.Add(1)
	m.models.Store(req.Model, true)

	if m.blockOn != "" && strings.Contains(req.Text, m.blockOn) {
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.failOn != "" && strings.Contains(req.Text, m.failOn) {
		return nil, embedder.ErrProviderFailed
	}

	vector := make([]float32, m.dimension)
	for i := range vector {
		vector[i] = float32(len(req.Text)%7+i) * 0.1
	}
	return &embedder.Embedding{Vector: vector, Dimension: m.dimension, Provider: "mock", Model: "test-v1"}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	return nil, errors.New("not used")
}

func (m *mockEmbedder) Dimension() int   { return m.dimension }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "test-v1" }
func (m *mockEmbedder) Close() error     { return nil }

type countingCache struct{ n atomic.Int32 }

func (c *countingCache) InvalidateCache() { c.n.Add(1) }

func setupTestStorage(t testing.TB) storage.Store {
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createTestFile(t testing.TB, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const catalogText = `FERNO
Model 35-X
SPECIFICATIONS
Load Limit 295 kg
Length 2000 mm
特色
▪ Converts to a chair
▪ Large wheels
www.ferno.com
TEL: 02-1234-5678
Model 28
Folding stretcher for narrow stairways`

func TestNew(t *testing.T) {
	idx := New(setupTestStorage(t), newMockEmbedder(), Config{})
	assert.Greater(t, idx.cfg.Workers, 0)
	assert.Equal(t, DefaultEmbedTimeout, idx.cfg.EmbedTimeout)
	assert.NotNil(t, idx.cfg.Logger)
	assert.Equal(t, chunker.DefaultMaxChars, idx.chunker.MaxChars())
}

func TestIngest_WritesChunks(t *testing.T) {
	store := setupTestStorage(t)
	emb := newMockEmbedder()
	idx := New(store, emb, Config{Workers: 2, EmbeddingModel: "nomic-embed-text"})
	ctx := context.Background()

	res, err := idx.Ingest(ctx, "ferno.pdf", catalogText, chunker.ModeCatalog)
	require.NoError(t, err)
	assert.Equal(t, res.Segments, res.ChunksWritten)
	assert.Zero(t, res.ChunksFailed)

	chunks, err := store.ListChunks(ctx, "ferno.pdf")
	require.NoError(t, err)
	require.Len(t, chunks, res.ChunksWritten)

	assert.Equal(t, types.SegmentSpec, chunks[0].Kind)
	assert.True(t, strings.HasPrefix(chunks[0].Content, "Model 35-X\nSPECIFICATIONS"))
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Len(t, c.Embedding, 4)
		assert.NotContains(t, c.Content, "www.ferno.com")
		assert.NotContains(t, c.Content, "TEL:")
	}

	_, ok := emb.models.Load("nomic-embed-text")
	assert.True(t, ok, "the configured model is passed per call")
}

func TestIngest_Idempotent(t *testing.T) {
	store := setupTestStorage(t)
	idx := New(store, newMockEmbedder(), Config{})
	ctx := context.Background()

	first, err := idx.Ingest(ctx, "ferno.pdf", catalogText, chunker.ModeCatalog)
	require.NoError(t, err)
	before, err := store.ListChunks(ctx, "ferno.pdf")
	require.NoError(t, err)

	second, err := idx.Ingest(ctx, "ferno.pdf", catalogText, chunker.ModeCatalog)
	require.NoError(t, err)
	after, err := store.ListChunks(ctx, "ferno.pdf")
	require.NoError(t, err)

	assert.Equal(t, first.ChunksWritten, second.ChunksWritten)
	require.Len(t, after, len(before))

	oldIDs := make(map[int64]bool)
	for _, c := range before {
		oldIDs[c.ID] = true
	}
	for i, c := range after {
		assert.False(t, oldIDs[c.ID], "chunk ids from the first ingestion must be gone")
		assert.Equal(t, before[i].Content, c.Content)
	}
}

func TestIngest_SkipsFailedChunks(t *testing.T) {
	store := setupTestStorage(t)
	emb := newMockEmbedder()
	emb.failOn = "Folding"
	idx := New(store, emb, Config{})

	res, err := idx.Ingest(context.Background(), "ferno.pdf", catalogText, chunker.ModeCatalog)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunksFailed)
	assert.Equal(t, res.Segments-1, res.ChunksWritten)
	require.Len(t, res.ErrorMessages, 1)

	chunks, err := store.ListChunks(context.Background(), "ferno.pdf")
	require.NoError(t, err)
	assert.Len(t, chunks, res.ChunksWritten)
	for _, c := range chunks {
		assert.NotContains(t, c.Content, "Folding")
	}
}

func TestIngest_NothingEmbeddedKeepsPriorChunks(t *testing.T) {
	store := setupTestStorage(t)
	emb := newMockEmbedder()
	idx := New(store, emb, Config{})
	ctx := context.Background()

	_, err := idx.Ingest(ctx, "a.txt", "oxygen regulator", chunker.ModeGeneric)
	require.NoError(t, err)

	emb.failOn = "suction"
	res, err := idx.Ingest(ctx, "a.txt", "suction unit", chunker.ModeGeneric)
	assert.ErrorIs(t, err, types.ErrNothingEmbedded)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.ChunksFailed)

	chunks, err := store.ListChunks(ctx, "a.txt")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "oxygen regulator", chunks[0].Content)
}

func TestIngest_Dimension(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	wide := newMockEmbedder()
	wide.dimension = 6
	_, err := New(store, wide, Config{Dimension: 4}).Ingest(ctx, "a.txt", "cot", chunker.ModeGeneric)
	require.NoError(t, err)
	chunks, err := store.ListChunks(ctx, "a.txt")
	require.NoError(t, err)
	assert.Len(t, chunks[0].Embedding, 4)

	narrow := newMockEmbedder()
	narrow.dimension = 2
	res, err := New(store, narrow, Config{Dimension: 4}).Ingest(ctx, "b.txt", "cot", chunker.ModeGeneric)
	assert.ErrorIs(t, err, types.ErrNothingEmbedded)
	require.Len(t, res.ErrorMessages, 1)
	assert.Contains(t, res.ErrorMessages[0], types.ErrDimensionMismatch.Error())
}

func TestIngest_EmptyInput(t *testing.T) {
	idx := New(setupTestStorage(t), newMockEmbedder(), Config{})

	_, err := idx.Ingest(context.Background(), "a.txt", "  \n\n ", chunker.ModeCatalog)
	assert.ErrorIs(t, err, types.ErrEmptyContent)

	_, err = idx.Ingest(context.Background(), "", "cot", chunker.ModeCatalog)
	assert.ErrorIs(t, err, types.ErrMissingSource)
}

func TestIngest_Pages(t *testing.T) {
	store := setupTestStorage(t)
	idx := New(store, newMockEmbedder(), Config{})
	ctx := context.Background()

	_, err := idx.Ingest(ctx, "doc.pdf", "first page text\fsecond page text", chunker.ModeGeneric)
	require.NoError(t, err)

	chunks, err := store.ListChunks(ctx, "doc.pdf")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.NotNil(t, chunks[1].Page)
	assert.Equal(t, 2, *chunks[1].Page)
	assert.Equal(t, 1, chunks[1].ChunkIndex)
}

func TestIngest_SameSourceSerialized(t *testing.T) {
	store := setupTestStorage(t)
	emb := newMockEmbedder()
	emb.blockOn = "slow"
	emb.release = make(chan struct{})
	idx := New(store, emb, Config{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := idx.Ingest(ctx, "a.txt", "slow stretcher", chunker.ModeGeneric)
		done <- err
	}()

	require.Eventually(t, func() bool { return emb.callCount.Load() > 0 }, time.Second, 5*time.Millisecond)

	_, err := idx.Ingest(ctx, "a.txt", "other text", chunker.ModeGeneric)
	assert.ErrorIs(t, err, types.ErrIngestInProgress)

	_, err = idx.DeleteSource(ctx, "a.txt")
	assert.ErrorIs(t, err, types.ErrIngestInProgress)

	// Other sources are not blocked
	_, err = idx.Ingest(ctx, "b.txt", "oxygen", chunker.ModeGeneric)
	assert.NoError(t, err)

	close(emb.release)
	require.NoError(t, <-done)

	// The lock is released afterwards
	_, err = idx.Ingest(ctx, "a.txt", "other text", chunker.ModeGeneric)
	assert.NoError(t, err)
}

func TestIngest_ContextCancellation(t *testing.T) {
	emb := newMockEmbedder()
	emb.blockOn = "slow"
	emb.release = make(chan struct{})
	idx := New(setupTestStorage(t), emb, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := idx.Ingest(ctx, "a.txt", "slow", chunker.ModeGeneric)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIngest_InvalidatesCache(t *testing.T) {
	cache := &countingCache{}
	idx := New(setupTestStorage(t), newMockEmbedder(), Config{Cache: cache})
	ctx := context.Background()

	_, err := idx.Ingest(ctx, "a.txt", "cot", chunker.ModeGeneric)
	require.NoError(t, err)
	assert.Equal(t, int32(1), cache.n.Load())

	_, err = idx.DeleteSource(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, int32(2), cache.n.Load())

	_, err = idx.DeleteSource(ctx, "a.txt")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, int32(2), cache.n.Load())
}

func TestIngestDir(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "ferno.txt", catalogText)
	createTestFile(t, dir, "sub/oxygen.md", "# Oxygen\nRegulator with gauge")
	createTestFile(t, dir, "empty.txt", "   ")
	createTestFile(t, dir, "brochure.pdf", "%PDF-1.4")
	createTestFile(t, dir, ".hidden/notes.txt", "ignored")

	store := setupTestStorage(t)
	idx := New(store, newMockEmbedder(), Config{})

	var progressed []string
	stats, err := idx.IngestDir(context.Background(), dir, DirOptions{
		Progress: func(source string, res *Result, err error) { progressed = append(progressed, source) },
	})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Greater(t, stats.ChunksWritten, 2)
	require.Len(t, stats.ErrorMessages, 1)
	assert.Contains(t, stats.ErrorMessages[0], "empty.txt")
	assert.ElementsMatch(t, []string{"empty.txt", "ferno.txt", "sub/oxygen.md"}, progressed)

	sources, err := store.ListSources(context.Background())
	require.NoError(t, err)
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Source
	}
	assert.Equal(t, []string{"ferno.txt", "sub/oxygen.md"}, names)
}

func TestDiscoverFiles(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "a.txt", "a")
	createTestFile(t, dir, "drafts/b.txt", "b")
	createTestFile(t, dir, "c.md", "c")
	createTestFile(t, dir, ".git/config", "x")

	files, err := DiscoverFiles(dir, DirOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "drafts/b.txt", "c.md"}, files)

	files, err = DiscoverFiles(dir, DirOptions{Includes: []string{"**/*.txt"}, Excludes: []string{"drafts/**"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, files)
}

func TestIndexLock(t *testing.T) {
	var l IndexLock
	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
	l.Release()
	assert.True(t, l.TryAcquire())

	var locks sourceLocks
	a, ok := locks.tryAcquire("a")
	require.True(t, ok)
	_, ok = locks.tryAcquire("a")
	assert.False(t, ok)
	_, ok = locks.tryAcquire("b")
	assert.True(t, ok)
	a.Release()
	_, ok = locks.tryAcquire("a")
	assert.True(t, ok)
}

func BenchmarkIngest(b *testing.B) {
	store := setupTestStorage(b)
	idx := New(store, newMockEmbedder(), Config{})
	text := strings.Repeat(catalogText+"\n", 20)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := idx.Ingest(ctx, "bench.txt", text, chunker.ModeCatalog); err != nil {
			b.Fatal(err)
		}
	}
}
