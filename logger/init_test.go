package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLevelFromEnv(t *testing.T) {
	original := os.Getenv("RXCACHE_LOG_LEVEL")
	defer os.Setenv("RXCACHE_LOG_LEVEL", original)

	tests := []struct {
		name     string
		envValue string
		want     LogLevel
	}{
		{"warn level", "warn", LevelWarn},
		{"error level", "error", LevelError},
		{"none level", "none", LevelNone},
		{"uppercase warn", "WARN", LevelWarn},
		{"mixed case error", "ErRoR", LevelError},
		{"empty string defaults to debug", "", LevelDebug},
		{"invalid value defaults to debug", "invalid", LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("RXCACHE_LOG_LEVEL", tt.envValue)
			assert.Equal(t, tt.want, GetLevelFromEnv())
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	assert.Equal(t, LogLevel(0), LevelDebug)
	assert.Equal(t, LogLevel(1), LevelWarn)
	assert.Equal(t, LogLevel(2), LevelError)
	assert.Equal(t, LogLevel(3), LevelNone)
}
