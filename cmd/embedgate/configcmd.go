package embedgate

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vectorfold/embedgate/pkg/config"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage embedgate configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Long: `Write the built-in default configuration to a YAML file, ready to edit.
The default path is .embedgate.yaml in the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}

// yamlConfig mirrors config.Config with yaml tags matching the mapstructure
// keys viper reads back.
type yamlConfig struct {
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Embedding struct {
		Primary yamlBackend `yaml:"primary"`
		Backup  yamlBackend `yaml:"backup"`
	} `yaml:"embedding"`
	Resilience map[string]interface{} `yaml:"resilience"`
	Breaker    map[string]interface{} `yaml:"breaker"`
}

type yamlBackend struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"base_url,omitempty"`
	MaxBatchSize int    `yaml:"max_batch_size"`
	Dimensions   int    `yaml:"dimensions,omitempty"`
	Normalize    bool   `yaml:"normalize,omitempty"`
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := ".embedgate.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing config at %s", path)
	}

	defaults := config.Default()

	var out yamlConfig
	out.Log.Level = defaults.Log.Level
	out.Log.Format = defaults.Log.Format
	out.Embedding.Primary = toYAMLBackend(defaults.Embedding.Primary)
	out.Embedding.Backup = toYAMLBackend(defaults.Embedding.Backup)
	out.Resilience = map[string]interface{}{
		"initial_retry_delay": defaults.Resilience.InitialRetryDelay,
		"max_retry_delay":     defaults.Resilience.MaxRetryDelay,
		"backoff_factor":      defaults.Resilience.BackoffFactor,
		"recovery_factor":     defaults.Resilience.RecoveryFactor,
		"max_retries":         defaults.Resilience.MaxRetries,
		"transient_retries":   defaults.Resilience.TransientRetries,
		"transient_delay":     defaults.Resilience.TransientDelay,
		"cooldown_seconds":    defaults.Resilience.CooldownSeconds,
		"recovery_probe":      defaults.Resilience.RecoveryProbe,
		"pool_size":           defaults.Resilience.PoolSize,
	}
	out.Breaker = map[string]interface{}{
		"enabled":             defaults.Breaker.Enabled,
		"max_requests":        defaults.Breaker.MaxRequests,
		"interval":            defaults.Breaker.Interval,
		"timeout":             defaults.Breaker.Timeout,
		"ready_to_trip_ratio": defaults.Breaker.ReadyToTripRatio,
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Wrote default configuration to %s\n", path)
	return nil
}

func toYAMLBackend(bc config.BackendConfig) yamlBackend {
	return yamlBackend{
		Provider:     bc.Provider,
		Model:        bc.Model,
		BaseURL:      bc.BaseURL,
		MaxBatchSize: bc.MaxBatchSize,
		Dimensions:   bc.Dimensions,
		Normalize:    bc.Normalize,
	}
}
