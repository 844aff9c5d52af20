package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage)
	assert.Equal(t, "fs", cfg.BlobDriver)
	assert.Equal(t, 3, cfg.ConflictRetries)
	assert.Equal(t, 3, cfg.IndexRetries)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STOCKLEDGER_STORAGE", "postgres")
	t.Setenv("STOCKLEDGER_POSTGRES_DSN", "postgres://db.internal/ledger")
	t.Setenv("STOCKLEDGER_CONFLICT_RETRIES", "5")
	t.Setenv("STOCKLEDGER_LOG_LEVEL", "debug")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage)
	assert.Equal(t, "postgres://db.internal/ledger", cfg.PostgresDSN)
	assert.Equal(t, 5, cfg.ConflictRetries)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("storage: sqlite\nsqlite_path: /var/data/ledger.db\nindex_retries: 7\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage)
	assert.Equal(t, "/var/data/ledger.db", cfg.SQLitePath)
	assert.Equal(t, 7, cfg.IndexRetries)
	// Untouched keys keep their defaults.
	assert.Equal(t, "fs", cfg.BlobDriver)
}

func TestEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("storage: sqlite\n"), 0o644))
	t.Setenv("STOCKLEDGER_STORAGE", "memory")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage)
}
