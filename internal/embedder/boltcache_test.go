package embedder

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps the local provider and counts upstream calls
type countingEmbedder struct {
	*LocalProvider
	calls atomic.Int32
	fail  bool
}

func (c *countingEmbedder) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	c.calls.Add(1)
	if c.fail {
		return nil, errors.New("upstream down")
	}
	return c.LocalProvider.GenerateEmbedding(ctx, req)
}

func (c *countingEmbedder) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	return embedEach(ctx, c, req)
}

func TestPersistentCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.db")
	inner := &countingEmbedder{LocalProvider: NewLocalProvider(16, nil)}

	pc, err := NewPersistentCache(path, inner)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := pc.GenerateEmbedding(ctx, EmbeddingRequest{Text: "scoop stretcher"})
	require.NoError(t, err)
	second, err := pc.GenerateEmbedding(ctx, EmbeddingRequest{Text: "scoop stretcher"})
	require.NoError(t, err)

	assert.Equal(t, first.Vector, second.Vector)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, 1, pc.Len())
	require.NoError(t, pc.Close())

	// Survives a reopen, and a dead upstream is never consulted for hits
	inner = &countingEmbedder{LocalProvider: NewLocalProvider(16, nil), fail: true}
	pc, err = NewPersistentCache(path, inner)
	require.NoError(t, err)
	defer func() { _ = pc.Close() }()

	again, err := pc.GenerateEmbedding(ctx, EmbeddingRequest{Text: "scoop stretcher"})
	require.NoError(t, err)
	assert.Equal(t, first.Vector, again.Vector)
	assert.Equal(t, int32(0), inner.calls.Load())

	_, err = pc.GenerateEmbedding(ctx, EmbeddingRequest{Text: "vacuum mattress"})
	assert.Error(t, err)
}

func TestPersistentCache_BatchFillsMisses(t *testing.T) {
	inner := &countingEmbedder{LocalProvider: NewLocalProvider(8, nil)}
	pc, err := NewPersistentCache(filepath.Join(t.TempDir(), "c.db"), inner)
	require.NoError(t, err)
	defer func() { _ = pc.Close() }()

	ctx := context.Background()
	_, err = pc.GenerateEmbedding(ctx, EmbeddingRequest{Text: "b"})
	require.NoError(t, err)

	resp, err := pc.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a", "b", "c"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)
	for i, emb := range resp.Embeddings {
		assert.Len(t, emb.Vector, 8, "embedding %d", i)
	}
	assert.Equal(t, int32(3), inner.calls.Load())
	assert.Equal(t, 3, pc.Len())
}
