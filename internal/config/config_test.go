package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/drowsy")
		t.Setenv("REDIS_URL", "redis://localhost:6379")
		t.Setenv("JWT_SECRET", "test-secret")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, ":8080", cfg.Addr())
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "https://www.fast2sms.com/dev/bulkV2", cfg.SMSAPIURL)
		assert.Equal(t, 30, cfg.DetectorTimeoutSeconds)
	})

	t.Run("fails without required values", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("REDIS_URL", "")
		t.Setenv("JWT_SECRET", "")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	base := Config{
		DatabaseURL: "postgres://localhost/drowsy",
		RedisURL:    "redis://localhost:6379",
	}

	t.Run("rejects short JWT secret in production", func(t *testing.T) {
		cfg := base
		cfg.JWTSecret = "short"
		assert.Error(t, cfg.Validate(true))
	})

	t.Run("rejects known weak secret in production", func(t *testing.T) {
		cfg := base
		cfg.JWTSecret = "password"
		assert.Error(t, cfg.Validate(true))
	})

	t.Run("accepts strong secret in production", func(t *testing.T) {
		cfg := base
		cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
		assert.NoError(t, cfg.Validate(true))
	})

	t.Run("skips secret checks outside production", func(t *testing.T) {
		cfg := base
		cfg.JWTSecret = "dev"
		assert.NoError(t, cfg.Validate(false))
	})
}
