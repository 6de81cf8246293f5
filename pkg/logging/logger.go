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
	// LevelDebug logs debug messages and above.
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
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
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
//   - Credential scheme classification results
//   - Per-page request flow (URL, page number)
//   - Cursor reads (raw fields, revision)
//
// Info: Normal operation events
//   - Run start/finish with page range and counts
//   - Batch uploads (object key, record count)
//   - Cursor commits (next_page, total_pages)
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Runs stopped early by known total (nothing to fetch)
//   - Empty result pages
//   - Missing optional configuration (fallback to defaults)
//
// Error: Error conditions requiring attention
//   - Failed page fetches (authorization, upstream, transport)
//   - Batch upload failures
//   - Cursor write failures and revision conflicts
//   - Configuration errors
//
// Context Fields:
//   - run_id: Unique identifier of one ingestion run
//   - page: Catalog page number
//   - status_code: HTTP status code from the catalog API
//   - error_class: Error classification (authorization, upstream, transport)
//   - pages_fetched: Pages successfully fetched in a run
//   - records: Record count in a batch
//   - object_key: Destination key of an uploaded batch
//   - next_page: Cursor position after a commit
