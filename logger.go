package pivotal

import (
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with index-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithKind adds an index kind field to the logger.
func (l *Logger) WithKind(kind IndexKind) *Logger {
	return &Logger{
		Logger: l.Logger.With("kind", string(kind)),
	}
}

// LogPivotProgress logs the encoding of one pivot's distance sequence.
func (l *Logger) LogPivotProgress(pivot, total, sigma int) {
	l.Debug("pivot encoded",
		"pivot", pivot,
		"total", total,
		"sigma", sigma,
	)
}

// LogBuild logs the completion of an index build.
func (l *Logger) LogBuild(objects, pivots int, elapsed time.Duration, err error) {
	if err != nil {
		l.Error("build failed",
			"objects", objects,
			"pivots", pivots,
			"error", err,
		)
		return
	}
	l.Info("build completed",
		"objects", objects,
		"pivots", pivots,
		"elapsed", elapsed,
	)
}
