package stoicheia

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with engine-specific helpers so call sites log
// consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler falls
// back to a text handler on stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that writes JSON records to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NewTextLogger creates a Logger that writes human-readable text to
// stderr.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NoopLogger creates a Logger that discards everything.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))}
}

// LogCommit logs a commit operation.
func (l *Logger) LogCommit(ctx context.Context, quilt, tag string, commID int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "commit failed",
			"quilt", quilt,
			"tag", tag,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "commit completed",
			"quilt", quilt,
			"tag", tag,
			"comm_id", commID,
		)
	}
}

// LogFetch logs a fetch operation.
func (l *Logger) LogFetch(ctx context.Context, quilt, tag string, cells int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fetch failed",
			"quilt", quilt,
			"tag", tag,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "fetch completed",
			"quilt", quilt,
			"tag", tag,
			"cells", cells,
		)
	}
}

// LogUntag logs an untag operation and how many commits its GC removed.
func (l *Logger) LogUntag(ctx context.Context, quilt, tag string, removed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "untag failed",
			"quilt", quilt,
			"tag", tag,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "untag completed",
			"quilt", quilt,
			"tag", tag,
			"commits_removed", removed,
		)
	}
}

// LogArchive logs an archive or restore operation.
func (l *Logger) LogArchive(ctx context.Context, op, quilt, tag string, patches int, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"quilt", quilt,
			"tag", tag,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, op+" completed",
			"quilt", quilt,
			"tag", tag,
			"patches", patches,
		)
	}
}
