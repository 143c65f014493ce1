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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8787", cfg.Addr)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 500, cfg.CommentMaxLength)
	assert.Equal(t, "buildea-dev-secret", cfg.JWTSecret)
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "buildea.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9000\"\nstore_driver: memory\naccess_ttl: 5m\ncomment_max_length: 280\n"), 0o600))

	t.Setenv("BUILDEA_ADDR", ":9100")
	t.Setenv("BUILDEA_ADMIN_API_TOKEN", "secret-token")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 280, cfg.CommentMaxLength)
	assert.Equal(t, "secret-token", cfg.AdminAPIToken)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("BUILDEA_STORE_DRIVER", "sqlite")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestProductionRequiresSecret(t *testing.T) {
	t.Setenv("BUILDEA_ENV", "production")
	_, err := Load("")
	require.Error(t, err)

	t.Setenv("BUILDEA_JWT_SECRET", "prod-secret")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
