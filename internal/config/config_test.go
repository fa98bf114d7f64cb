package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, StorageMemory, cfg.StorageType)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "pokersession.events", cfg.AMQPExchange)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("STORAGE_TYPE", "sqlite")
	t.Setenv("TOKEN_TTL", "2h")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, StorageSQLite, cfg.StorageType)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
}

func TestLoadDotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nLOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("JWT_SECRET")
		_ = os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestEnvironmentWinsOverDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_HOST=file-host\n"), 0o600))
	t.Setenv("HTTP_HOST", "env-host")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-host", cfg.HTTPHost)
}

func TestValidate(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "mysql")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "MYSQL_DSN")

	t.Setenv("STORAGE_TYPE", "cassandra")
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "unknown STORAGE_TYPE")
}
