package util

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestZerologLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected zerolog.Level
	}{
		{TraceLevel, zerolog.TraceLevel},
		{DebugLevel, zerolog.DebugLevel},
		{InfoLevel, zerolog.InfoLevel},
		{WarnLevel, zerolog.WarnLevel},
		{ErrorLevel, zerolog.ErrorLevel},
		{42, zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ZerologLevel(tt.level), "level %d", tt.level)
	}
}

func TestGetLogger_DefaultsToInfo(t *testing.T) {
	// other tests reset the logger to info on cleanup
	logger := GetLogger("Directory.Flush")

	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	assert.False(t, logger.Debug().Enabled(), "debug output is off by default")
}

func TestGetLogger_WritesComponent(t *testing.T) {
	var buf bytes.Buffer
	InitializeLoggerTo(&buf, WarnLevel)
	t.Cleanup(func() { InitializeLoggerTo(&bytes.Buffer{}, InfoLevel) })

	logger := GetLogger("Directory")
	logger.Info().Msg("filtered out")
	logger.Warn().Msg("kept")

	out := buf.String()
	assert.Contains(t, out, "kept")
	assert.Contains(t, out, "Directory")
	assert.NotContains(t, out, "filtered out")
}

func TestValueOrDefault(t *testing.T) {
	assert.Equal(t, "fallback", ValueOrDefault(nil, "fallback"))
	assert.Equal(t, "set", ValueOrDefault(Pointer("set"), "fallback"))
	assert.Equal(t, 0, ValueOrDefault(Pointer(0), 7), "zero values are kept")
}
