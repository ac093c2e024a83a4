// Package logging builds the zerolog loggers used by the command and the
// segmentation pipeline.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a timestamped logger writing JSON to writer.
func New(writer io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// NewConsole returns a human-readable logger on stderr. Verbose enables
// per-iteration debug output.
func NewConsole(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return New(zerolog.ConsoleWriter{Out: os.Stderr}, level)
}

// Component returns a child logger tagged with a component name.
func Component(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}
