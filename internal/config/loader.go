// Package config provides configuration management for the Apex Telemetry client.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	// Read the configuration file
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the configuration (${VAR} syntax)
	expanded := os.ExpandEnv(string(data))

	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewBuffer([]byte(expanded))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables override file values (APEX_API_BASE_URL etc.)
	v.SetEnvPrefix("APEX")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration populated with the documented defaults.
// Load starts from these so a minimal YAML file only has to name what it
// changes.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "apex-telemetry",
			Environment: "development",
			LogLevel:    "info",
		},
		API: APIConfig{
			BaseURL:               "http://localhost:8000",
			AnalyzeTimeoutSeconds: 30,
			LapsTimeoutSeconds:    20,
			StatusTimeoutSeconds:  10,
			HealthTimeoutSeconds:  5,
			MaxRetries:            0,
			RateLimit:             10.0,
		},
		Upload: UploadConfig{
			Extension:    ".csv",
			MaxSizeBytes: 50 * 1024 * 1024,
			MinSizeBytes: 1000,
		},
		Storage: StorageConfig{
			Directory: defaultStorageDir(),
			MaxStored: 20,
		},
	}
}

func defaultStorageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".apex-telemetry"
	}
	return home + string(os.PathSeparator) + ".apex-telemetry"
}
