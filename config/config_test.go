package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	t.Setenv("REMOVE_BG_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "test-key", cfg.RemoveBGAPIKey)
	assert.Equal(t, "https://api.remove.bg/v1.0/removebg", cfg.RemoveBGEndpoint)
	assert.Equal(t, 60*time.Second, cfg.RemoveBGTimeout)
	assert.Equal(t, time.Hour, cfg.BlobTTL)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, int64(5<<20), cfg.MaxUploadBytes)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_MissingAPIKeyIsNotFatal(t *testing.T) {
	t.Setenv("REMOVE_BG_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.RemoveBGAPIKey)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("REMOVE_BG_ENDPOINT", "http://localhost:9999/removebg")
	t.Setenv("REMOVE_BG_TIMEOUT", "5s")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("BLOB_TTL", "10m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "http://localhost:9999/removebg", cfg.RemoveBGEndpoint)
	assert.Equal(t, 5*time.Second, cfg.RemoveBGTimeout)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 10*time.Minute, cfg.BlobTTL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"relative endpoint", "REMOVE_BG_ENDPOINT", "/removebg", "REMOVE_BG_ENDPOINT must be an absolute URL"},
		{"negative timeout", "REMOVE_BG_TIMEOUT", "-1s", "REMOVE_BG_TIMEOUT must not be negative"},
		{"zero blob ttl", "BLOB_TTL", "0s", "BLOB_TTL must be positive"},
		{"zero upload limit", "MAX_UPLOAD_BYTES", "0", "MAX_UPLOAD_BYTES must be positive"},
		{"short session secret", "SESSION_SECRET", "short", "SESSION_SECRET must be at least 16 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
