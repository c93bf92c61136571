package log

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"l2book/config"
)

func TestNewLoggerLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	cfg := config.Default()
	cfg.Logging.Level = "warn"
	var buf bytes.Buffer
	l := newLogger(cfg, &buf)

	l.Info().Msg("hidden")
	assert.Zero(t, buf.Len())
	l.Warn().Msg("shown")
	assert.Contains(t, buf.String(), `"message":"shown"`)
}

func TestNewLoggerBadLevelFallsBackToInfo(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	cfg := config.Default()
	cfg.Logging.Level = "loud"
	var buf bytes.Buffer
	l := newLogger(cfg, &buf)

	l.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
	l.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
