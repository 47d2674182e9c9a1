package embedstore

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with embedstore-specific context.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithBackbone adds a backbone field to the logger.
func (l *Logger) WithBackbone(backbone string) *Logger {
	return &Logger{
		Logger: l.Logger.With("backbone", backbone),
	}
}

// LogUpsert logs an upsert operation.
func (l *Logger) LogUpsert(ctx context.Context, backbone, fileID string, dimension int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "upsert failed",
			"backbone", backbone,
			"file_id", fileID,
			"dimension", dimension,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "upsert completed",
			"backbone", backbone,
			"file_id", fileID,
			"dimension", dimension,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, backbone string, limit, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"backbone", backbone,
			"limit", limit,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"backbone", backbone,
			"limit", limit,
			"results", resultsFound,
		)
	}
}

// LogPromotion logs a completed promotion cycle.
func (l *Logger) LogPromotion(ctx context.Context, backbone string, promoted, listCount int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "promotion failed",
			"backbone", backbone,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "promotion completed",
			"backbone", backbone,
			"promoted", promoted,
			"lists", listCount,
			"duration", duration,
		)
	}
}

// LogSnapshot logs a cold snapshot persistence operation.
func (l *Logger) LogSnapshot(ctx context.Context, backbone, blob string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"backbone", backbone,
			"blob", blob,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"backbone", backbone,
			"blob", blob,
		)
	}
}

// LogRecovery logs a WAL recovery operation.
func (l *Logger) LogRecovery(ctx context.Context, entriesReplayed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "WAL recovery failed",
			"entries_replayed", entriesReplayed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "WAL recovery completed",
			"entries_replayed", entriesReplayed,
		)
	}
}
