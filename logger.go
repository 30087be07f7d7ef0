package sfatrie

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with sfatrie-specific context.
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
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithMode adds the matching mode to the logger.
func (l *Logger) WithMode(mode string) *Logger {
	return &Logger{
		Logger: l.Logger.With("mode", mode),
	}
}

// WithK adds a k (neighbor count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogBuild logs a completed or failed build.
func (l *Logger) LogBuild(ctx context.Context, mode string, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"mode", mode,
			"count", count,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "build completed",
		"mode", mode,
		"count", count,
	)
}

// LogMerge logs the merge of partition tries.
func (l *Logger) LogMerge(ctx context.Context, partitions, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "merge failed",
			"partitions", partitions,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "merge completed",
		"partitions", partitions,
		"size", size,
	)
}

// LogCompress logs trie compression.
func (l *Logger) LogCompress(ctx context.Context, leavesBefore, leavesAfter int) {
	l.DebugContext(ctx, "trie compressed",
		"leaves_before", leavesBefore,
		"leaves_after", leavesAfter,
	)
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, kind string, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"kind", kind,
			"k", k,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"kind", kind,
		"k", k,
		"results", resultsFound,
	)
}

// LogSnapshot logs a snapshot save.
func (l *Logger) LogSnapshot(ctx context.Context, target string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"target", target,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "snapshot saved",
		"target", target,
	)
}

// LogLoad logs a snapshot load.
func (l *Logger) LogLoad(ctx context.Context, source string, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"source", source,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "snapshot loaded",
		"source", source,
		"size", size,
	)
}
