package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_ENV_PATH", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/themeshot?parseTime=true")
	t.Setenv("JWT_ACCESS_SECRET", "access")
	t.Setenv("JWT_REFRESH_SECRET", "refresh")
	t.Setenv("FAL_KEY", "fal-key")
	t.Setenv("REPLICATE_API_TOKEN", "r8_token")
	t.Setenv("S3_REGION", "eu-central-1")
	t.Setenv("S3_ACCESS_KEY", "ak")
	t.Setenv("S3_SECRET_KEY", "sk")
	t.Setenv("S3_BUCKET", "bucket")
	t.Setenv("S3_PUBLIC_BASE_URL", "https://cdn.example.com")
	t.Setenv("ADMIN_LISTEN_ADDR", "")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, StoreMySQL, cfg.StoreBackend)
	assert.Equal(t, "https://fal.run", cfg.FalBaseURL)
	assert.Equal(t, "https://api.replicate.com", cfg.ReplicateBaseURL)
	assert.Equal(t, "fal-flux-faceswap", cfg.DefaultPipeline)
	assert.Equal(t, 120*time.Second, cfg.RequestTimeout)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, "shared-images", cfg.S3Prefix)
	assert.Equal(t, "*", cfg.CORSAllowOrigin)
}

func TestLoadMissingVariables(t *testing.T) {
	setRequired(t)
	t.Setenv("FAL_KEY", "")
	t.Setenv("S3_BUCKET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAL_KEY")
	assert.Contains(t, err.Error(), "S3_BUCKET")
}

func TestLoadAdminRequiresCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_LISTEN_ADDR", ":8081")
	t.Setenv("ADMIN_USERNAME", "")
	t.Setenv("ADMIN_PASSWORD", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_USERNAME")
	assert.Contains(t, err.Error(), "ADMIN_PASSWORD")

	t.Setenv("ADMIN_USERNAME", "ops")
	t.Setenv("ADMIN_PASSWORD", "secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.AdminListenAddr)
}

func TestLoadMemoryBackendSkipsDSN(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("MYSQL_DSN", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_BACKEND", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestLoadOverlaysEnvFile(t *testing.T) {
	setRequired(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LISTEN_ADDR=:9999\nDEFAULT_PIPELINE=fal-pulid\n"), 0o600))
	t.Setenv("CONFIG_ENV_PATH", path)
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("DEFAULT_PIPELINE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "fal-pulid", cfg.DefaultPipeline)
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", "https://fallback"},
		{"fal.run", "https://fal.run"},
		{"https://api.replicate.com/", "https://api.replicate.com"},
		{"http://localhost:8081", "http://localhost:8081"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeBaseURL(tt.raw, "https://fallback"), tt.raw)
	}
}

func TestGetDurationFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_TTL", "soon")
	assert.Equal(t, time.Minute, getDuration("SOME_TTL", time.Minute))
	t.Setenv("SOME_TTL", "90s")
	assert.Equal(t, 90*time.Second, getDuration("SOME_TTL", time.Minute))
}
