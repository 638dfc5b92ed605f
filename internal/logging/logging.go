// Package logging builds the root zerolog logger.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Setup returns a logger writing to out (stdout when nil). Format "text" selects the
// human readable console writer, anything else emits JSON lines.
func Setup(level, format string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}

	lvl := zerolog.InfoLevel
	switch level {
	case "debug":
		lvl = zerolog.DebugLevel
	case "info":
		lvl = zerolog.InfoLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	}

	if format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}).
			Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Component derives a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
