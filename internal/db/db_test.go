package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tipe/internal/config"
)

func TestInit_Layout(t *testing.T) {
	baseDir := filepath.Join(t.TempDir(), "home", ".tipe")

	db, err := Init(baseDir)
	require.NoError(t, err)
	defer db.Close()

	for _, p := range []string{baseDir, filepath.Join(baseDir, "exports")} {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.True(t, info.IsDir(), p)
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm(), p)
	}

	info, err := os.Stat(filepath.Join(baseDir, FileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestInit_Schema(t *testing.T) {
	db, err := Init(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode;").Scan(&mode))
	assert.Equal(t, "wal", mode)

	objects := map[string][]string{
		"table": {"leads", "conversations", "messages", "meetings", "content_posts", "store_meta"},
		"index": {"idx_leads_status", "idx_leads_position", "idx_meetings_status_date"},
	}
	for kind, names := range objects {
		for _, name := range names {
			var got string
			err := db.QueryRow("SELECT name FROM sqlite_master WHERE type=? AND name=?", kind, name).Scan(&got)
			assert.NoError(t, err, "%s %s", kind, name)
		}
	}
}

func TestInit_Reopen(t *testing.T) {
	dir := t.TempDir()

	first, err := Init(dir)
	require.NoError(t, err)
	_, err = first.Exec(`INSERT INTO store_meta (key, value) VALUES ('probe', 'kept')`)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Init(dir)
	require.NoError(t, err)
	defer second.Close()

	v, err := GetUserVersion(second)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v)

	var value string
	require.NoError(t, second.QueryRow(`SELECT value FROM store_meta WHERE key = 'probe'`).Scan(&value))
	assert.Equal(t, "kept", value, "reopening must not rerun the schema over existing rows")
}

func TestUserVersion_SkipsAppliedMigrations(t *testing.T) {
	dir := t.TempDir()
	db, err := Init(dir)
	require.NoError(t, err)

	require.NoError(t, SetUserVersion(db, CurrentSchemaVersion+5))
	require.NoError(t, db.Close())

	db, err = Init(dir)
	require.NoError(t, err)
	defer db.Close()

	v, err := GetUserVersion(db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion+5, v)
}

func TestConfigurePool(t *testing.T) {
	db, err := Init(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	ConfigurePool(db, nil)
	ConfigurePool(db, &config.Config{DBMaxOpenConns: 3, DBMaxIdleConns: 1})
	assert.Equal(t, 3, db.Stats().MaxOpenConnections)
}
