package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(ConfigPathEnvVar, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tribes.db", cfg.DatabaseURL)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.ProgressStep)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.False(t, cfg.UsePostgres())
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "tribes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9090\"\nprogress_step: 5\ncache_ttl: 30s\n"), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("PORT", "9191")
	t.Setenv("DATABASE_URL", "postgres://tribes@localhost/tribes")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9191", cfg.Port, "environment wins over the file")
	assert.Equal(t, 5, cfg.ProgressStep)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.True(t, cfg.UsePostgres())
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.JWTSecret = ""
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Port = "eighty"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.ProgressStep = 0
	assert.Error(t, cfg.Validate())
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
