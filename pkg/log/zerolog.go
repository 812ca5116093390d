package log

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// ZerologLogger is a Logger implementation backed by rs/zerolog.
//
// It emits structured JSON records and understands zerolog.LogObjectMarshaler
// values, so the structured error and warning types from pkg/errors are
// rendered as nested objects rather than flat strings.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger creates a Logger writing JSON records to w at the given level.
func NewZerologLogger(w io.Writer, level Level) *ZerologLogger {
	zl := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &ZerologLogger{logger: zl}
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// Debug implements Logger.Debug.
func (z *ZerologLogger) Debug(msg string, fields ...any) {
	z.emit(z.logger.Debug(), msg, fields...)
}

// Info implements Logger.Info.
func (z *ZerologLogger) Info(msg string, fields ...any) {
	z.emit(z.logger.Info(), msg, fields...)
}

// Warn implements Logger.Warn.
func (z *ZerologLogger) Warn(msg string, fields ...any) {
	z.emit(z.logger.Warn(), msg, fields...)
}

// Error implements Logger.Error.
func (z *ZerologLogger) Error(msg string, fields ...any) {
	z.emit(z.logger.Error(), msg, fields...)
}

// With implements Logger.With.
func (z *ZerologLogger) With(fields ...any) Logger {
	ctx := z.logger.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case zerolog.LogObjectMarshaler:
			ctx = ctx.Object(key, v)
		case error:
			ctx = ctx.AnErr(key, v)
		default:
			ctx = ctx.Interface(key, v)
		}
	}
	return &ZerologLogger{logger: ctx.Logger()}
}

// Enabled implements Logger.Enabled.
func (z *ZerologLogger) Enabled(ctx context.Context, level Level) bool {
	return toZerologLevel(level) >= z.logger.GetLevel()
}

func (z *ZerologLogger) emit(event *zerolog.Event, msg string, fields ...any) {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case zerolog.LogObjectMarshaler:
			event = event.Object(key, v)
		case error:
			event = event.AnErr(key, v)
		default:
			event = event.Interface(key, v)
		}
	}
	event.Msg(msg)
}

var (
	defaultLoggerMu sync.RWMutex
	defaultLogger   Logger = NewZerologLogger(os.Stderr, LevelInfo)
)

// GetLogger returns the process-wide default Logger.
func GetLogger() Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetLogger replaces the process-wide default Logger.
// Useful in tests and in the CLI to honor a --log-level flag.
func SetLogger(logger Logger) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = logger
}
