package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bitdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	require.False(t, cfg.DisableIndexOnFailure("events", "user_id"))
}

func TestLoadPartitionAndColumnSettings(t *testing.T) {
	path := writeConfig(t, `
gVerbose: debug
partitions:
  events:
    cacheDirectory: /tmp/bitdb-scratch
    columns:
      user_id:
        disableIndexOnFailure: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	require.Equal(t, "/tmp/bitdb-scratch", cfg.Partition("events").CacheDirectory)
	require.True(t, cfg.DisableIndexOnFailure("events", "user_id"))
	require.False(t, cfg.DisableIndexOnFailure("events", "other_col"))
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := writeConfig(t, "gVerbose: not-a-level\n")
	_, err := Load(path)
	require.Error(t, err)
}
