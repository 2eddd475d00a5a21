// Package config provides configuration management for the Apex Telemetry client.
package config

// Config represents the complete application configuration
type Config struct {
	App     AppConfig     `mapstructure:"app" validate:"required"`
	API     APIConfig     `mapstructure:"api" validate:"required"`
	Upload  UploadConfig  `mapstructure:"upload" validate:"required"`
	Storage StorageConfig `mapstructure:"storage" validate:"required"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// APIConfig represents analysis backend configuration
type APIConfig struct {
	BaseURL               string  `mapstructure:"base_url" validate:"required,url"`
	AnalyzeTimeoutSeconds int     `mapstructure:"analyze_timeout_seconds" validate:"required,gt=0"`
	LapsTimeoutSeconds    int     `mapstructure:"laps_timeout_seconds" validate:"required,gt=0"`
	StatusTimeoutSeconds  int     `mapstructure:"status_timeout_seconds" validate:"required,gt=0"`
	HealthTimeoutSeconds  int     `mapstructure:"health_timeout_seconds" validate:"required,gt=0"`
	MaxRetries            int     `mapstructure:"max_retries" validate:"gte=0"`
	RateLimit             float64 `mapstructure:"rate_limit" validate:"required,gt=0"`
}

// UploadConfig represents pre-submission file validation bounds
type UploadConfig struct {
	Extension    string `mapstructure:"extension" validate:"required"`
	MaxSizeBytes int64  `mapstructure:"max_size_bytes" validate:"required,gt=0"`
	MinSizeBytes int64  `mapstructure:"min_size_bytes" validate:"required,gt=0"`
}

// StorageConfig represents the local result store configuration
type StorageConfig struct {
	Directory  string `mapstructure:"directory" validate:"required"`
	MaxStored int    `mapstructure:"max_stored" validate:"required,gt=0"`
}
