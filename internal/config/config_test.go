package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 30, cfg.API.AnalyzeTimeoutSeconds)
	assert.Equal(t, 20, cfg.API.LapsTimeoutSeconds)
	assert.Equal(t, 10, cfg.API.StatusTimeoutSeconds)
	assert.Equal(t, 5, cfg.API.HealthTimeoutSeconds)
	assert.Equal(t, 0, cfg.API.MaxRetries)

	assert.Equal(t, ".csv", cfg.Upload.Extension)
	assert.Equal(t, int64(50*1024*1024), cfg.Upload.MaxSizeBytes)
	assert.Equal(t, int64(1000), cfg.Upload.MinSizeBytes)

	assert.Equal(t, 20, cfg.Storage.MaxStored)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"Bad log level", func(c *Config) { c.App.LogLevel = "verbose" }},
		{"Bad environment", func(c *Config) { c.App.Environment = "local" }},
		{"Bad base URL", func(c *Config) { c.API.BaseURL = "not-a-url" }},
		{"Zero timeout", func(c *Config) { c.API.AnalyzeTimeoutSeconds = 0 }},
		{"Zero retention", func(c *Config) { c.Storage.MaxStored = 0 }},
		{"Min above max size", func(c *Config) { c.Upload.MinSizeBytes = c.Upload.MaxSizeBytes }},
		{"Extension without dot", func(c *Config) { c.Upload.Extension = "csv" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_APEX_BACKEND", "https://api.example.com")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  name: apex-telemetry
  environment: production
  log_level: warn
api:
  base_url: ${TEST_APEX_BACKEND}
storage:
  max_stored: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, "warn", cfg.App.LogLevel)
	assert.Equal(t, 5, cfg.Storage.MaxStored)

	// Unnamed fields keep their defaults
	assert.Equal(t, 30, cfg.API.AnalyzeTimeoutSeconds)
	assert.Equal(t, ".csv", cfg.Upload.Extension)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
