package client

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFileExtension(t *testing.T) {
	v := DefaultValidator()

	tests := []struct {
		name     string
		filename string
		valid    bool
	}{
		{"Lowercase csv", "session.csv", true},
		{"Uppercase csv", "SESSION.CSV", true},
		{"Mixed case csv", "Session.Csv", true},
		{"Text file", "session.txt", false},
		{"No extension", "session", false},
		{"Csv in the middle", "session.csv.bak", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.filename, 2000)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				assert.Contains(t, res.Error, "csv")
			}
		})
	}
}

func TestValidateFileSizeBounds(t *testing.T) {
	v := DefaultValidator()

	tests := []struct {
		name  string
		size  int64
		valid bool
	}{
		{"Exactly minimum", 1000, true},
		{"One below minimum", 999, false},
		{"Exactly 50MiB", 50 * 1024 * 1024, true},
		{"One over 50MiB", 50*1024*1024 + 1, false},
		{"Typical session", 2 * 1024 * 1024, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate("session.csv", tt.size)
			assert.Equal(t, tt.valid, res.Valid, "size %d", tt.size)
		})
	}
}

func TestValidateOversizeMessageIncludesActualSize(t *testing.T) {
	v := DefaultValidator()

	res := v.Validate("session.csv", 60*1024*1024)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Error, "60.00MB")
	assert.Contains(t, res.Error, "50MB")
}

func TestValidateExtensionCheckedBeforeSize(t *testing.T) {
	v := DefaultValidator()

	// A file failing both rules reports the extension first
	res := v.Validate("session.txt", 10)
	assert.False(t, res.Valid)
	assert.True(t, strings.Contains(res.Error, "csv"), "expected format error, got %q", res.Error)
}
