package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrateIsIdempotent(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "nested", "releases.db")}

	db, err := OpenAndMigrate(cfg)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM releases`).Scan(&n))
	assert.Zero(t, n)
}

func TestUTF8LowerFoldsCyrillic(t *testing.T) {
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "r.db")})
	require.NoError(t, err)
	defer db.Close()

	var got string
	require.NoError(t, db.QueryRow(`SELECT utf8_lower('25 ИЮН. 2025 Г.')`).Scan(&got))
	assert.Equal(t, "25 июн. 2025 г.", got)

	var like bool
	require.NoError(t, db.QueryRow(`SELECT utf8_lower('Июня 2025') LIKE '%июня 2025%'`).Scan(&like))
	assert.True(t, like)
}

func TestDefaultConfigHonoursEnv(t *testing.T) {
	t.Setenv("RELEASEHUB_DB_PATH", "/tmp/x.db")
	assert.Equal(t, "/tmp/x.db", DefaultConfig().Path)
}
