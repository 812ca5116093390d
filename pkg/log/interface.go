// Package log provides a structured logging interface for the crime/census
// data pipeline.
//
// This package defines a minimal, slog-compatible logging interface that allows
// for flexible implementation switching while providing pipeline-specific
// structured logging capabilities. The interface is designed to integrate
// seamlessly with Go's standard log/slog package and popular logging libraries
// like zerolog, logrus, and zap.
//
// Key features:
//   - slog-compatible interface for future-proofing
//   - pipeline-specific structured attributes (steps, files, row counts, durations)
//   - Context-aware logging with field chaining
//   - Test-friendly with configurable output destinations
//
// Example usage:
//
//	logger := log.GetLogger().With(
//	    log.StepKey, "download-crime",
//	)
//	logger.Info("Download started",
//	    log.URLKey, csvURL,
//	    log.PathKey, destPath,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// This interface provides the core logging methods with structured field
// support, allowing for rich contextual information to be included with log
// messages. It's designed to be implementation-agnostic, enabling easy
// switching between different logging backends while maintaining a consistent
// API.
//
// The interface supports method chaining through the With method, allowing
// for creation of contextual loggers with pre-populated fields.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	//
	// Example:
	//   logger.Debug("Parsed record batch",
	//       log.RowsKey, 4096,
	//   )
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	//
	// Example:
	//   logger.Info("Spatial join completed",
	//       log.RowsKey, total,
	//       log.MatchRateKey, rate,
	//   )
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	// Warning logs indicate potentially problematic situations that don't
	// prevent the pipeline from continuing.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// If an error value is provided as a field, stack trace information
	// may be automatically included by the configured handler.
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	//
	// Example:
	//   stepLogger := logger.With(log.StepKey, "join")
	//   stepLogger.Info("Loading crime data")  // automatically includes the step
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	// This can be used to avoid expensive operations when constructing log
	// messages that won't be emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
