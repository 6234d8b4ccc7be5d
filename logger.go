package volfs

import (
	"context"
	"errors"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with volume-specific helpers.
// Field names are consistent across operations: dir, file, actor, bytes.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithDirectory adds a directory field to the logger.
func (l *Logger) WithDirectory(dir string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dir", dir),
	}
}

// WithActor adds the acting identity to the logger.
func (l *Logger) WithActor(actor string) *Logger {
	return &Logger{
		Logger: l.Logger.With("actor", actor),
	}
}

// failure logs a failed data operation. Denials are warnings; other
// failures are returned to the caller and only logged at debug level.
func (l *Logger) failure(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, "error", err)
	if errors.Is(err, ErrAccessDenied) {
		l.WarnContext(ctx, msg, args...)
		return
	}
	l.DebugContext(ctx, msg, args...)
}

// LogCreate logs a create_file operation.
func (l *Logger) LogCreate(ctx context.Context, dir, name string, size int64, start int, err error) {
	if err != nil {
		l.failure(ctx, "create failed", err, "dir", dir, "file", name, "size", size)
		return
	}
	l.DebugContext(ctx, "create completed",
		"dir", dir,
		"file", name,
		"size", size,
		"start_block", start,
	)
}

// LogWrite logs a write_file operation.
func (l *Logger) LogWrite(ctx context.Context, dir, name, actor string, n int, err error) {
	if err != nil {
		l.failure(ctx, "write failed", err, "dir", dir, "file", name, "actor", actor, "bytes", n)
		return
	}
	l.DebugContext(ctx, "write completed",
		"dir", dir,
		"file", name,
		"actor", actor,
		"bytes", n,
	)
}

// LogRead logs a read_file operation.
func (l *Logger) LogRead(ctx context.Context, dir, name, actor string, n int, err error) {
	if err != nil {
		l.failure(ctx, "read failed", err, "dir", dir, "file", name, "actor", actor)
		return
	}
	l.DebugContext(ctx, "read completed",
		"dir", dir,
		"file", name,
		"actor", actor,
		"bytes", n,
	)
}

// LogDelete logs a delete_file operation.
func (l *Logger) LogDelete(ctx context.Context, dir, name, actor string, freed int, err error) {
	if err != nil {
		l.failure(ctx, "delete failed", err, "dir", dir, "file", name, "actor", actor)
		return
	}
	l.DebugContext(ctx, "delete completed",
		"dir", dir,
		"file", name,
		"actor", actor,
		"freed_blocks", freed,
	)
}

// LogSnapshot logs a save or checkpoint.
func (l *Logger) LogSnapshot(ctx context.Context, target string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"target", target,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"target", target,
		)
	}
}

// LogRestore logs a load or restore.
func (l *Logger) LogRestore(ctx context.Context, source string, files int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "restore failed",
			"source", source,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "restore completed",
			"source", source,
			"files", files,
		)
	}
}
