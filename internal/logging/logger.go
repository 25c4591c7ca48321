package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger.
// BEAUTIFY_LOG_LEVEL controls the log level: debug, info, warn, error (default: info).
// A non-empty override (from config) takes precedence over the environment.
func Init(override string) {
	InitWriter(os.Stderr, override)
}

// InitWriter is Init with an explicit destination. MCP stdio mode must never
// log to stdout, so callers pass stderr or a file.
func InitWriter(w io.Writer, override string) {
	level := override
	if level == "" {
		level = os.Getenv("BEAUTIFY_LOG_LEVEL")
	}
	zerolog.SetGlobalLevel(ParseLevel(level))

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
