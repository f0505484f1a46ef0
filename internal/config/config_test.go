package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_URL", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.2.2:3000", cfg.API.BaseURL)
	assert.Equal(t, StoreDriverFile, cfg.Store.Driver)
	assert.Equal(t, "admin", cfg.Store.AdminNamespace)
	assert.Zero(t, cfg.API.RequestTimeout())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_URL", "https://api.example.com/")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "15")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, StoreDriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 15*time.Second, cfg.API.RequestTimeout())
	assert.Equal(t, 3, cfg.Store.Redis.DB)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "floppy")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadPostgresRequiresDSN(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	_, err := Load()
	assert.Error(t, err)
}
