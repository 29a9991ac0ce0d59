// Package logger configures the process-wide zerolog setup for the gateway.
//
// Every package logs through a component-tagged sub-logger:
//
//	log := logger.Component("indexer")
//	log.Info().Int("files", n).Msg("indexing complete")
//	log.Error().Err(err).Str("path", p).Msg("extraction failed")
//
// Levels (lowest to highest): debug, info, warn, error.
// Entries below the configured minimum level are silently dropped.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup initializes the global logger: stderr sink, RFC3339 timestamps, and
// the minimum level parsed from levelStr. Unrecognized level strings default
// to "info".
func Setup(levelStr string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLevel(levelStr))
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// SetLevel changes the minimum log level at runtime.
func SetLevel(levelStr string) {
	zerolog.SetGlobalLevel(parseLevel(levelStr))
}

// Component returns a sub-logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// parseLevel converts a string to a zerolog level, defaulting to info.
func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
