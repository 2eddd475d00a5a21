// Package client provides the HTTP transport client for the analysis
// backend, plus pre-submission file validation.
package client

import (
	"fmt"
	"strings"

	"github.com/yourusername/apex-telemetry/internal/config"
	"github.com/yourusername/apex-telemetry/internal/models"
)

// Validator checks candidate telemetry files before submission
type Validator struct {
	extension    string
	maxSizeBytes int64
	minSizeBytes int64
}

// NewValidator creates a validator from upload configuration
func NewValidator(cfg config.UploadConfig) *Validator {
	return &Validator{
		extension:    strings.ToLower(cfg.Extension),
		maxSizeBytes: cfg.MaxSizeBytes,
		minSizeBytes: cfg.MinSizeBytes,
	}
}

// DefaultValidator returns a validator with the documented defaults
// (.csv files between 1000 bytes and 50 MiB).
func DefaultValidator() *Validator {
	return NewValidator(config.Default().Upload)
}

// Validate checks a candidate file by name and size. Pure: no I/O, no
// side effects. Rules apply in order: extension, upper size bound,
// lower size bound.
func (v *Validator) Validate(name string, size int64) models.ValidationResult {
	if !strings.HasSuffix(strings.ToLower(name), v.extension) {
		return models.ValidationResult{
			Valid: false,
			Error: fmt.Sprintf("file must be a %s file (%s)", strings.TrimPrefix(v.extension, "."), v.extension),
		}
	}

	if size > v.maxSizeBytes {
		sizeMB := float64(size) / (1024 * 1024)
		maxMB := v.maxSizeBytes / (1024 * 1024)
		return models.ValidationResult{
			Valid: false,
			Error: fmt.Sprintf("file too large (%.2fMB), maximum is %dMB", sizeMB, maxMB),
		}
	}

	if size < v.minSizeBytes {
		return models.ValidationResult{
			Valid: false,
			Error: fmt.Sprintf("file too small (<%d bytes), check that it is a valid telemetry export", v.minSizeBytes),
		}
	}

	return models.ValidationResult{Valid: true}
}
