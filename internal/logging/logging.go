// Package logging builds the zerolog logger shared by the fittracker binaries.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logger used across packages.
type Logger = zerolog.Logger

// New returns a logger for the given environment. The local environment gets
// a human readable console writer; everything else emits JSON lines.
func New(env, component string) Logger {
	return NewWithWriter(env, component, os.Stdout)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(env, component string, out io.Writer) Logger {
	level := zerolog.InfoLevel
	if env == "local" {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// Nop discards everything. Used by tests.
func Nop() Logger {
	return zerolog.Nop()
}
