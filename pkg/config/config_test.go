package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)

	assert.Equal(t, "openai", cfg.Embedding.Primary.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Primary.Model)
	assert.Equal(t, 100, cfg.Embedding.Primary.MaxBatchSize)

	assert.Equal(t, "local", cfg.Embedding.Backup.Provider)
	assert.Equal(t, "all-MiniLM-L6-v2", cfg.Embedding.Backup.Model)
	assert.Equal(t, 384, cfg.Embedding.Backup.Dimensions)

	assert.Equal(t, 0.5, cfg.Resilience.InitialRetryDelay)
	assert.Equal(t, 2.0, cfg.Resilience.BackoffFactor)
	assert.Equal(t, 0.8, cfg.Resilience.RecoveryFactor)
	assert.Equal(t, 5, cfg.Resilience.MaxRetries)
	assert.Equal(t, 300, cfg.Resilience.CooldownSeconds)
	assert.True(t, cfg.Resilience.RecoveryProbe)

	assert.False(t, cfg.Breaker.Enabled)
	assert.Equal(t, 0.6, cfg.Breaker.ReadyToTripRatio)
}

func TestResilienceDurations(t *testing.T) {
	r := ResilienceConfig{
		InitialRetryDelay: 0.5,
		MaxRetryDelay:     10,
		TransientDelay:    1.5,
		CooldownSeconds:   300,
	}
	assert.Equal(t, 500*time.Millisecond, r.InitialDelay())
	assert.Equal(t, 10*time.Second, r.MaxDelay())
	assert.Equal(t, 1500*time.Millisecond, r.TransientSleep())
	assert.Equal(t, 5*time.Minute, r.Cooldown())
}

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Embedding.Primary.Provider)
	assert.Equal(t, 2.0, cfg.Resilience.BackoffFactor)
	assert.Equal(t, 8, cfg.Resilience.PoolSize)
}

func TestLoad_ViperOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("embedding.primary.provider", "gemini")
	viper.Set("resilience.max_retries", 9)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Embedding.Primary.Provider)
	assert.Equal(t, 9, cfg.Resilience.MaxRetries)
}

func TestLoad_APIKeyFromEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("OPENAI_API_KEY", "sk-test-123")
	t.Setenv("EMBEDGATE_PRIMARY_BASE_URL", "http://localhost:8000/v1")
	t.Setenv("EMBEDGATE_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", cfg.Embedding.Primary.APIKey)
	assert.Equal(t, "http://localhost:8000/v1", cfg.Embedding.Primary.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ExplicitKeyWinsOverEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	viper.Set("embedding.primary.api_key", "sk-from-config")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-config", cfg.Embedding.Primary.APIKey)
}
