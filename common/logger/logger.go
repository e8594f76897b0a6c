package logger

import (
	"context"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/lmittmann/tint"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Logger wraps slog.Logger with registry-specific contextual fields
type Logger struct {
	*slog.Logger
}

// New creates a new logger
func New(level, format string) *Logger {
	var handler slog.Handler

	logLevel := parseLevel(level)

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
		})
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a logger that drops every record. Used by tests.
func Discard() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// ContextWithRequestID stores the request id so WithContext can pick it up
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithContext returns a logger with request_id from context
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		return &Logger{
			Logger: l.With("request_id", requestID),
		}
	}
	return l
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{
		Logger: l.With(args...),
	}
}

// WithCaller adds the caller identity to logger context
func (l *Logger) WithCaller(caller string) *Logger {
	return &Logger{
		Logger: l.With("caller", caller),
	}
}

// WithAssetID adds asset_id to logger context
func (l *Logger) WithAssetID(assetID string) *Logger {
	return &Logger{
		Logger: l.With("asset_id", assetID),
	}
}

// Error logs an error with stack trace
func (l *Logger) Error(msg string, args ...any) {
	args = append(args, "stack", string(debug.Stack()))
	l.Logger.Error(msg, args...)
}

// ErrorContext logs an error with context and stack trace
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	args = append(args, "stack", string(debug.Stack()))
	l.Logger.ErrorContext(ctx, msg, args...)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
