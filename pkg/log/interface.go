// Package log provides the structured logging interface shared by the
// cropadvisor service and the training tool.
//
// Logger is slog-compatible so the HTTP service can run on log/slog with
// Cloud Logging field names while the trainer writes human readable zerolog
// console output. Both sides use the attribute keys in attributes.go.
//
// Example usage:
//
//	logger := log.NewSlogLogger(slog.Default()).With(
//	    log.ComponentKey, "artifact",
//	)
//	logger.Info("artifact loaded",
//	    log.ArtifactKey, "crop_model",
//	    log.PathKey, "models/crop_model.gob",
//	)
package log

import (
	"context"
	"strings"

	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key-value pairs. Error additionally accepts an error
// as its first field, which implementations render under ErrAttrKey together
// with the stack trace captured by cockroachdb/errors.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	//
	// Example:
	//   logger.Error("artifact load failed",
	//       err,
	//       log.ArtifactKey, "yield_model",
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
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

// ParseLevel は "debug" / "info" / "warn" / "error" をLevelに変換します。
// 大文字小文字は区別しません。
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log_level", "must be one of debug, info, warn, error", level)
	}
}

// splitError separates a leading error value from key-value fields.
func splitError(fields []any) (error, []any) {
	if len(fields)%2 == 1 {
		if err, ok := fields[0].(error); ok {
			return err, fields[1:]
		}
	}
	return nil, fields
}
