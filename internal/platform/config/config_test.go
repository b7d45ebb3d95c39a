package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"GEOPRIVACY_ADDR", "PROOF_EXPIRATION_TIME", "PROOF_CLEANUP_INTERVAL", "PROOF_DEFAULT_RADIUS_METERS", "KAFKA_BROKERS", "JWT_SIGNING_KEY"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, time.Hour, cfg.Proof.Validity)
	assert.Equal(t, time.Hour, cfg.Proof.CleanupInterval)
	assert.Equal(t, 100.0, cfg.Proof.DefaultRadiusMeters)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.True(t, cfg.UsesDevSigningKey())
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("GEOPRIVACY_ADDR", ":9090")
	t.Setenv("PROOF_EXPIRATION_TIME", "120")
	t.Setenv("PROOF_CLEANUP_INTERVAL", "15m")
	t.Setenv("PROOF_DEFAULT_RADIUS_METERS", "250")
	t.Setenv("KAFKA_BROKERS", "broker-a:9092, broker-b:9092,")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_READ_TIMEOUT", "7")
	t.Setenv("RATE_LIMIT_DISABLED", "true")
	t.Setenv("RATE_LIMIT_PROOF_REQUESTS", "5")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Proof.Validity)
	assert.Equal(t, 15*time.Minute, cfg.Proof.CleanupInterval)
	assert.Equal(t, 250.0, cfg.Proof.DefaultRadiusMeters)
	assert.Equal(t, []string{"broker-a:9092", "broker-b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 7*time.Second, cfg.Redis.ReadTimeout)
	assert.True(t, cfg.RateLimit.Disabled)
	assert.Equal(t, 5, cfg.RateLimit.ProofRequests)
	assert.Equal(t, DefaultPublicRateLimit, cfg.RateLimit.PublicRequests)
}

func TestFromEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("PROOF_EXPIRATION_TIME", "soon")
	t.Setenv("PROOF_CLEANUP_INTERVAL", "often")

	cfg := FromEnv()
	assert.Equal(t, DefaultProofValidity, cfg.Proof.Validity)
	assert.Equal(t, DefaultCleanupInterval, cfg.Proof.CleanupInterval)
}

func TestValidate(t *testing.T) {
	base := FromEnv()

	t.Run("radius above 1000 meters", func(t *testing.T) {
		cfg := base
		cfg.Proof.DefaultRadiusMeters = 1500
		assert.Error(t, cfg.Validate())
	})

	t.Run("rate limit window must be positive when enabled", func(t *testing.T) {
		cfg := base
		cfg.RateLimit.Disabled = false
		cfg.RateLimit.Window = 0
		require.Error(t, cfg.Validate())

		cfg.RateLimit.Disabled = true
		assert.NoError(t, cfg.Validate())
	})

	t.Run("non-positive window and interval", func(t *testing.T) {
		cfg := base
		cfg.Proof.Validity = 0
		cfg.Proof.CleanupInterval = -time.Second
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PROOF_EXPIRATION_TIME")
		assert.Contains(t, err.Error(), "PROOF_CLEANUP_INTERVAL")
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GEOPRIVACY_TEST_DOTENV=from-file\nGEOPRIVACY_TEST_PRESET=from-file\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("GEOPRIVACY_TEST_PRESET", "from-process")
	t.Setenv("GEOPRIVACY_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("GEOPRIVACY_TEST_DOTENV"))

	LoadDotEnv(slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Equal(t, "from-file", os.Getenv("GEOPRIVACY_TEST_DOTENV"))
	assert.Equal(t, "from-process", os.Getenv("GEOPRIVACY_TEST_PRESET"))
}
