package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const requestIDKey contextKey = "requestID"

// LevelTrace sits below debug for per-entity merge chatter
const LevelTrace = slog.LevelDebug - 4

var (
	mu      sync.RWMutex
	out     io.Writer = os.Stderr
	jsonOut bool
	level   = new(slog.LevelVar)
	logger  *slog.Logger
)

func init() {
	// Logs go to stderr so stdout stays free for graph output
	level.Set(slog.LevelInfo)
	rebuild()
}

func rebuild() {
	opts := &slog.HandlerOptions{Level: level}
	if jsonOut {
		logger = slog.New(slog.NewJSONHandler(out, opts))
		return
	}
	logger = slog.New(NewCompactHandler(out, opts))
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Logger returns the process logger, for libraries that want a *slog.Logger
func Logger() *slog.Logger {
	return current()
}

// SetLevel changes the logging level
func SetLevel(l slog.Level) {
	level.Set(l)
}

// SetOutput redirects log output (tests use a buffer)
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	rebuild()
}

// SetJSONOutput switches to JSON format output
func SetJSONOutput(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	jsonOut = enabled
	rebuild()
}

// ParseLevel maps a verbosity name to a level. Unknown names mean info.
func ParseLevel(name string, verboseCount int) slog.Level {
	switch name {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	switch {
	case verboseCount >= 2:
		return LevelTrace
	case verboseCount == 1:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func withRequestID(ctx context.Context, args []any) []any {
	requestID := GetRequestID(ctx)
	if requestID != "" {
		return append([]any{"requestID", requestID}, args...)
	}
	return args
}

// Trace logs at TRACE level
func Trace(msg string, args ...any) {
	current().Log(context.Background(), LevelTrace, msg, args...)
}

// Debug logs at DEBUG level (internal component behavior)
func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}

// DebugContext logs at DEBUG level with context
func DebugContext(ctx context.Context, msg string, args ...any) {
	current().DebugContext(ctx, msg, withRequestID(ctx, args)...)
}

// Info logs at INFO level (user-facing operations)
func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

// InfoContext logs at INFO level with context
func InfoContext(ctx context.Context, msg string, args ...any) {
	current().InfoContext(ctx, msg, withRequestID(ctx, args)...)
}

// Warn logs at WARN level (skipped input, recoverable problems)
func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

// WarnContext logs at WARN level with context
func WarnContext(ctx context.Context, msg string, args ...any) {
	current().WarnContext(ctx, msg, withRequestID(ctx, args)...)
}

// Error logs at ERROR level
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

// ErrorContext logs at ERROR level with context
func ErrorContext(ctx context.Context, msg string, args ...any) {
	current().ErrorContext(ctx, msg, withRequestID(ctx, args)...)
}

// Fatal logs at ERROR level and exits
func Fatal(msg string, args ...any) {
	current().Error(msg, args...)
	os.Exit(1)
}
