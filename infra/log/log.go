package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"l2book/config"
)

type Logger = zerolog.Logger

// NewLogger builds the process logger and sets the global level.
// An unknown level falls back to info.
func NewLogger(cfg config.Config) Logger {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg config.Config, out io.Writer) Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if cfg.Logging.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || cfg.Logging.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return zerolog.New(out).With().Timestamp().Logger()
}
