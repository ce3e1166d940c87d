package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_USER", "media")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "media")
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("MEDIA_BASE_PATH", t.TempDir())
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "local", cfg.Storage.Driver)
		assert.Equal(t, DefaultMaxVideoSize, cfg.Media.MaxVideoSize)
		assert.Equal(t, int64(73400320), cfg.Media.MaxVideoSize)
		assert.Equal(t, "http://localhost:8080", cfg.Media.BaseURL)
		assert.Equal(t, 24*time.Hour, cfg.Media.RenderCacheTTL)
		assert.Equal(t, "ffmpeg", cfg.Transcoder.FFmpegPath)
		assert.Equal(t, "*/5 * * * *", cfg.Requeue.Schedule)
		assert.Equal(t, "localhost:6379", cfg.RedisAddr())
		assert.Equal(t, "media:secret@tcp(localhost:3306)/media?parseTime=true&charset=utf8mb4", cfg.DSN())
	})

	t.Run("custom origins and limits", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
		t.Setenv("MAX_VIDEO_SIZE", "1024")
		t.Setenv("MEDIA_BASE_URL", "https://media.example/")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, int64(1024), cfg.Media.MaxVideoSize)
		assert.Equal(t, "https://media.example", cfg.Media.BaseURL)
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("JWT_SECRET", "")

		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SECRET is required")
	})

	t.Run("s3 requires bucket", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("STORAGE_DRIVER", "s3")

		_, err := Load()
		assert.ErrorContains(t, err, "S3_BUCKET is required")
	})

	t.Run("invalid video ceiling", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("MAX_VIDEO_SIZE", "-5")

		_, err := Load()
		assert.Error(t, err)
	})
}
