package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReturnsDefaultsWithoutFile(t *testing.T) {
	t.Setenv("SLOTFLOW_HOME", t.TempDir())
	t.Setenv("SLOTFLOW_API_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "@every 30s", cfg.RefreshInterval)
	assert.True(t, cfg.ConfirmDestructive)
}

func TestSaveThenLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SLOTFLOW_HOME", dir)
	t.Setenv("SLOTFLOW_API_URL", "")

	cfg := DefaultConfig()
	cfg.APIURL = "https://slotflow.example.com/api"
	cfg.ConfirmDestructive = false
	require.NoError(t, cfg.Save())

	_, err := os.Stat(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://slotflow.example.com/api", loaded.APIURL)
	assert.False(t, loaded.ConfirmDestructive)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("SLOTFLOW_HOME", t.TempDir())
	t.Setenv("SLOTFLOW_API_URL", "")

	cfg := DefaultConfig()
	cfg.APIURL = "https://from-file/api"
	require.NoError(t, cfg.Save())

	t.Setenv("SLOTFLOW_API_URL", "https://from-env/api")
	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://from-env/api", loaded.APIURL)
}
