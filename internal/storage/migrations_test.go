package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRawDB(t *testing.T) *sql.DB {
	db, err := openDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApplyMigrations(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	v, err := currentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", v.String())

	require.NoError(t, ApplyMigrations(ctx, db))
	v, err = currentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())

	// Re-applying is a no-op
	require.NoError(t, ApplyMigrations(ctx, db))
	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&count))
	assert.Equal(t, len(AllMigrations), count)
}

func TestRollbackMigration(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()
	require.NoError(t, ApplyMigrations(ctx, db))

	require.NoError(t, RollbackMigration(ctx, db))
	v, err := currentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())

	var name string
	err = db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE name = 'sources'").Scan(&name)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, RollbackMigration(ctx, db))
	v, err = currentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", v.String())

	assert.Error(t, RollbackMigration(ctx, db))

	// Migrating forward again rebuilds the schema
	require.NoError(t, ApplyMigrations(ctx, db))
	v, err = currentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())
}

func TestMigrationV11BackfillsSources(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, AllMigrations[0].Up)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES ('1.0.0')")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO chunks (source, chunk_index, content, content_hash) VALUES
		('a.pdf', 0, 'x', X'00'), ('a.pdf', 1, 'y', X'01'), ('b.pdf', 0, 'z', X'02')`)
	require.NoError(t, err)

	require.NoError(t, ApplyMigrations(ctx, db))

	var chunks int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT chunk_count FROM sources WHERE source = 'a.pdf'").Scan(&chunks))
	assert.Equal(t, 2, chunks)
}
