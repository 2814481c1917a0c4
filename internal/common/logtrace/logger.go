// Package logtrace provides logging and tracing utilities for the application.
// It integrates with zerolog for structured logging and carries invocation
// identifiers through contexts.
package logtrace

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = zerolog.InfoLevel

// InitLogger initializes the global logger with Unix millisecond timestamps.
// An empty level selects DefaultLevel. When pretty is set, output is
// rendered for a terminal instead of as JSON lines.
func InitLogger(level string, pretty bool) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}

// ParseLevel parses a case-insensitive level name. An empty name yields DefaultLevel.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.TrimSpace(strings.ToLower(level))
	if level == "" {
		return DefaultLevel, nil
	}
	return zerolog.ParseLevel(level)
}
