package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/equiprag/pkg/types"
)

// EnvTestPostgresDSN enables the PostgreSQL backend tests
const EnvTestPostgresDSN = "EQUIPRAG_TEST_POSTGRES_DSN"

func setupPostgres(t *testing.T) *PostgresStore {
	dsn := os.Getenv(EnvTestPostgresDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvTestPostgresDSN)
	}

	ctx := context.Background()
	store, err := NewPostgresStore(ctx, dsn, 3)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = store.pool.Exec(ctx, "DELETE FROM chunks WHERE source LIKE 'pgtest-%'")
		_, _ = store.pool.Exec(ctx, "DELETE FROM sources WHERE source LIKE 'pgtest-%'")
		_ = store.Close()
	})
	return store
}

func TestNewPostgresStore_Validation(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), "", 3)
	assert.Error(t, err)
	_, err = NewPostgresStore(context.Background(), "postgres://localhost/x", 0)
	assert.Error(t, err)
}

func TestTSQuery(t *testing.T) {
	assert.Equal(t, "'stretcher' | '150' | 'kg'", tsQuery("Stretcher 150 kg"))
	assert.Equal(t, "", tsQuery("?!"))
}

func TestPostgresStore(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	chunks := []*types.Chunk{
		testChunk(0, "folding stretcher 150 kg", 1, 0, 0),
		testChunk(1, "oxygen regulator", 0, 1, 0),
	}
	chunks[1].Page = types.IntPtr(4)

	n, err := store.ReplaceSource(ctx, "pgtest-a", chunks)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Replacing again leaves a single generation
	_, err = store.ReplaceSource(ctx, "pgtest-a", []*types.Chunk{
		testChunk(0, "folding stretcher 150 kg", 1, 0, 0),
		testChunk(1, "oxygen regulator", 0, 1, 0),
	})
	require.NoError(t, err)

	stored, err := store.ListChunks(ctx, "pgtest-a")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, []float32{0, 1, 0}, stored[1].Embedding)
	require.NotNil(t, stored[1].Page)
	assert.Equal(t, 4, *stored[1].Page)

	lex, err := store.SearchLexical(ctx, "stretcher", 10)
	require.NoError(t, err)
	require.NotEmpty(t, lex)
	assert.Equal(t, "folding stretcher 150 kg", lex[0].Chunk.Content)

	vec, err := store.SearchVector(ctx, []float32{0, 1, 0}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, vec)
	assert.Equal(t, "oxygen regulator", vec[0].Chunk.Content)
	assert.InDelta(t, 0.0, vec[0].Distance, 1e-6)

	_, err = store.SearchVector(ctx, []float32{0, 1}, 10)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)

	deleted, err := store.DeleteSource(ctx, "pgtest-a")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = store.DeleteSource(ctx, "pgtest-a")
	assert.ErrorIs(t, err, ErrNotFound)
}
