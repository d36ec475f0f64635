// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs every fetch attempt and cache lookup.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Service is added to every line as the "service" field when set.
	Service string

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger
}

// ParseLevel converts a level name to zerolog.Level. Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Each fetch attempt and form submission
//   - Cache hits
//   - Worker completion
//
// Info: Normal operation events
//   - Dispatch start, progress and completion
//   - Lookup succeeded after a captcha retry
//   - Recognizer loaded
//   - Server startup/shutdown, HTTP requests
//
// Warn: Warning conditions that don't prevent operation
//   - Captcha rejected (retrying) or attempts exhausted
//   - Cache read/write failures (fetch continues uncached)
//   - Recognizer load attempt failed
//   - Outcomes for unknown or duplicate identifiers
//
// Error: Error conditions requiring attention
//   - Fetch failed (fatal for that identifier)
//   - Lookup panicked
//   - Recognizer permanently unavailable
//
// Context Fields:
//   - component: emitting package (fetch, ocr-engine, portal-session, ...)
//   - identifier: looked up identifier
//   - site: portal site context
//   - attempt / max_attempts: captcha attempt counters
//   - stage: failed portal step (index, captcha, submit)
//   - request_id: HTTP request id
