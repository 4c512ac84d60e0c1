package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"DEBUG":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		" error ": zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}

	for input, want := range tests {
		assert.Equal(t, want, ParseLevel(input), input)
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf, "info")

	log.Info().Str("profile", "koho").Msg("converted")

	assert.Contains(t, buf.String(), `"message":"converted"`)
	assert.Contains(t, buf.String(), `"profile":"koho"`)
	assert.Contains(t, buf.String(), `"time"`)
}

func TestNewWithWriter_Level(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf, "warn")

	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew(t *testing.T) {
	log := New("debug")

	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())
}

func TestNop(t *testing.T) {
	assert.Equal(t, zerolog.Disabled, Nop().GetLevel())
}
