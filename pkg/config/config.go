package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the embedding gateway.
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Embedding provider configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Resilience tuning for backoff, retries and failover
	Resilience ResilienceConfig `mapstructure:"resilience"`

	// Breaker configuration
	Breaker BreakerConfig `mapstructure:"breaker"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
}

// EmbeddingConfig names the primary and backup embedding backends.
type EmbeddingConfig struct {
	Primary BackendConfig `mapstructure:"primary"`
	Backup  BackendConfig `mapstructure:"backup"`
}

// BackendConfig holds configuration for one embedding backend.
type BackendConfig struct {
	// Provider selects the adapter: openai, gemini, langchain, local
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`

	// Request shaping
	MaxBatchSize int    `mapstructure:"max_batch_size"`
	Dimensions   int    `mapstructure:"dimensions"`
	Normalize    bool   `mapstructure:"normalize"`
	InputVariant string `mapstructure:"input_variant"` // array, single
}

// ResilienceConfig holds all backoff, retry and failover tuning. Delay
// values are seconds; fractional values are allowed.
type ResilienceConfig struct {
	InitialRetryDelay    float64 `mapstructure:"initial_retry_delay"`
	MaxRetryDelay        float64 `mapstructure:"max_retry_delay"`
	BackoffFactor        float64 `mapstructure:"backoff_factor"`
	RecoveryFactor       float64 `mapstructure:"recovery_factor"`
	MaxRetries           int     `mapstructure:"max_retries"`
	TransientRetries     int     `mapstructure:"transient_retries"`
	TransientDelay       float64 `mapstructure:"transient_delay"`
	CooldownSeconds      int     `mapstructure:"cooldown_seconds"`
	RecoveryProbe        bool    `mapstructure:"recovery_probe"`
	MaxRequestsPerSecond float64 `mapstructure:"max_requests_per_second"`
	PoolSize             int     `mapstructure:"pool_size"`
}

// InitialDelay returns the initial retry delay as a duration.
func (r ResilienceConfig) InitialDelay() time.Duration {
	return time.Duration(r.InitialRetryDelay * float64(time.Second))
}

// MaxDelay returns the maximum retry delay as a duration.
func (r ResilienceConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxRetryDelay * float64(time.Second))
}

// TransientSleep returns the fixed transient retry delay as a duration.
func (r ResilienceConfig) TransientSleep() time.Duration {
	return time.Duration(r.TransientDelay * float64(time.Second))
}

// Cooldown returns the failover cooldown window as a duration.
func (r ResilienceConfig) Cooldown() time.Duration {
	return time.Duration(r.CooldownSeconds) * time.Second
}

// BreakerConfig holds configuration for circuit breaking
type BreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// Default returns the built-in default configuration without consulting
// viper's file or environment state.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Embedding: EmbeddingConfig{
			Primary: BackendConfig{
				Provider:     "openai",
				Model:        "text-embedding-3-small",
				MaxBatchSize: 100,
			},
			Backup: BackendConfig{
				Provider:     "local",
				Model:        "all-MiniLM-L6-v2",
				MaxBatchSize: 32,
				Dimensions:   384,
			},
		},
		Resilience: ResilienceConfig{
			InitialRetryDelay: 0.5,
			MaxRetryDelay:     10,
			BackoffFactor:     2.0,
			RecoveryFactor:    0.8,
			MaxRetries:        5,
			TransientRetries:  2,
			TransientDelay:    1.0,
			CooldownSeconds:   300,
			RecoveryProbe:     true,
			PoolSize:          8,
		},
		Breaker: BreakerConfig{
			Enabled:          false,
			MaxRequests:      1,
			Interval:         60,
			Timeout:          60,
			ReadyToTripRatio: 0.6,
		},
		Alert: AlertConfig{
			SMTPPort: 587,
		},
	}
}

// setDefaults sets default configuration values
func setDefaults() {
	defaults := Default()

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.format", defaults.Log.Format)

	viper.SetDefault("embedding.primary.provider", defaults.Embedding.Primary.Provider)
	viper.SetDefault("embedding.primary.model", defaults.Embedding.Primary.Model)
	viper.SetDefault("embedding.primary.max_batch_size", defaults.Embedding.Primary.MaxBatchSize)
	viper.SetDefault("embedding.backup.provider", defaults.Embedding.Backup.Provider)
	viper.SetDefault("embedding.backup.model", defaults.Embedding.Backup.Model)
	viper.SetDefault("embedding.backup.max_batch_size", defaults.Embedding.Backup.MaxBatchSize)
	viper.SetDefault("embedding.backup.dimensions", defaults.Embedding.Backup.Dimensions)

	viper.SetDefault("resilience.initial_retry_delay", defaults.Resilience.InitialRetryDelay)
	viper.SetDefault("resilience.max_retry_delay", defaults.Resilience.MaxRetryDelay)
	viper.SetDefault("resilience.backoff_factor", defaults.Resilience.BackoffFactor)
	viper.SetDefault("resilience.recovery_factor", defaults.Resilience.RecoveryFactor)
	viper.SetDefault("resilience.max_retries", defaults.Resilience.MaxRetries)
	viper.SetDefault("resilience.transient_retries", defaults.Resilience.TransientRetries)
	viper.SetDefault("resilience.transient_delay", defaults.Resilience.TransientDelay)
	viper.SetDefault("resilience.cooldown_seconds", defaults.Resilience.CooldownSeconds)
	viper.SetDefault("resilience.recovery_probe", defaults.Resilience.RecoveryProbe)
	viper.SetDefault("resilience.pool_size", defaults.Resilience.PoolSize)

	viper.SetDefault("breaker.enabled", defaults.Breaker.Enabled)
	viper.SetDefault("breaker.max_requests", defaults.Breaker.MaxRequests)
	viper.SetDefault("breaker.interval", defaults.Breaker.Interval)
	viper.SetDefault("breaker.timeout", defaults.Breaker.Timeout)
	viper.SetDefault("breaker.ready_to_trip_ratio", defaults.Breaker.ReadyToTripRatio)

	viper.SetDefault("alert.enabled", false)
	viper.SetDefault("alert.smtp_port", defaults.Alert.SMTPPort)
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	applyKeyFromEnv(&config.Embedding.Primary)
	applyKeyFromEnv(&config.Embedding.Backup)

	if url := os.Getenv("EMBEDGATE_PRIMARY_BASE_URL"); url != "" {
		config.Embedding.Primary.BaseURL = url
	}
	if url := os.Getenv("EMBEDGATE_BACKUP_BASE_URL"); url != "" {
		config.Embedding.Backup.BaseURL = url
	}
	if path := os.Getenv("EMBEDGATE_TELEMETRY_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
	if level := os.Getenv("EMBEDGATE_LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}

// applyKeyFromEnv fills in a backend's API key from the provider's
// conventional environment variable when the config leaves it empty.
func applyKeyFromEnv(backend *BackendConfig) {
	if backend.APIKey != "" {
		return
	}
	switch backend.Provider {
	case "openai":
		backend.APIKey = os.Getenv("OPENAI_API_KEY")
	case "gemini":
		backend.APIKey = os.Getenv("GEMINI_API_KEY")
	case "langchain":
		backend.APIKey = os.Getenv("EMBEDDING_API_KEY")
	}
}
