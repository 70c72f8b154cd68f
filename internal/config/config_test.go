package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Should apply defaults", func(t *testing.T) {
		t.Setenv("API_TOKEN", "token")

		cfg, err := Load(true)

		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
		assert.Equal(t, 5*time.Second, cfg.PollInterval)
		assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
		assert.Equal(t, 10*time.Second, cfg.ActionNoticeTTL)
		assert.Equal(t, 3*time.Second, cfg.CopyNoticeTTL)
		assert.Equal(t, 5*time.Minute, cfg.ConfigCacheTTL)
		assert.Equal(t, ".", cfg.DownloadDir)
		assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	})

	t.Run("Should read overrides", func(t *testing.T) {
		t.Setenv("API_TOKEN", "token")
		t.Setenv("API_BASE_URL", "https://gpu.example.com/api")
		t.Setenv("POLL_INTERVAL", "2s")
		t.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load(true)

		require.NoError(t, err)
		assert.Equal(t, "https://gpu.example.com/api", cfg.APIBaseURL)
		assert.Equal(t, 2*time.Second, cfg.PollInterval)
		assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	})

	t.Run("Should require a token outside demo mode", func(t *testing.T) {
		t.Setenv("API_TOKEN", "")

		_, err := Load(true)
		assert.Error(t, err)

		_, err = Load(false)
		assert.NoError(t, err)
	})

	t.Run("Should reject malformed values", func(t *testing.T) {
		t.Setenv("API_TOKEN", "token")

		t.Setenv("POLL_INTERVAL", "soon")
		_, err := Load(true)
		assert.Error(t, err)

		t.Setenv("POLL_INTERVAL", "")
		t.Setenv("API_BASE_URL", "localhost:8000")
		_, err = Load(true)
		assert.Error(t, err)
	})
}
