package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDBRunsMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "app.db")

	db, err := NewDB(NewConfig(dbPath))
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM sources"))
	assert.Equal(t, 0, count)
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM crawls"))
	assert.Equal(t, 0, count)
}

func TestMigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "app.db")

	db, err := NewDB(NewConfig(dbPath))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO sources (name, url) VALUES ('a', 'https://a.com/rss')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening must not re-run applied migrations or disturb data.
	db, err = NewDB(NewConfig(dbPath))
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM sources"))
	assert.Equal(t, 1, count)

	var applied int
	require.NoError(t, db.Get(&applied, "SELECT COUNT(*) FROM migrations"))
	assert.Equal(t, 2, applied)
}

func TestReadOnlyMode(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "app.db")

	rw, err := NewDB(NewConfig(dbPath))
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	cfg := NewConfig(dbPath)
	cfg.ReadOnly = true
	ro, err := NewDB(cfg)
	require.NoError(t, err)
	defer ro.Close()

	var count int
	require.NoError(t, ro.Get(&count, "SELECT COUNT(*) FROM sources"))

	_, err = ro.Exec(`INSERT INTO sources (name, url) VALUES ('x', 'https://x.com/rss')`)
	assert.Error(t, err)
}

func TestDeleteDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gone.db")

	db, err := NewDB(NewConfig(dbPath))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.NoError(t, DeleteDB(dbPath))
	require.NoError(t, DeleteDB(dbPath)) // already gone is fine
}
