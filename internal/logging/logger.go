// Package logging provides the structured logger used by shmap and the llmap
// command.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// ErrInvalidLevel is returned by [ParseLevel] for an unknown level name.
var ErrInvalidLevel = errors.New("invalid log level")

// ErrInvalidFormat is returned by [New] for an unknown output format.
var ErrInvalidFormat = errors.New("invalid log format")

// Supported output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Logger wraps slog.Logger with map-specific helpers so that every component
// logs the same field names.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to w in the given format ("text" or "json")
// at the given minimum level.
func New(w io.Writer, format string, level slog.Level) (*Logger, error) {
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(format) {
	case "", FormatText:
		return &Logger{Logger: slog.New(slog.NewTextHandler(w, opts))}, nil
	case FormatJSON:
		return &Logger{Logger: slog.New(slog.NewJSONHandler(w, opts))}, nil
	default:
		return nil, fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidFormat, format, FormatText, FormatJSON)
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// ParseLevel parses "debug", "info", "warn" or "error" (case-insensitive).
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}

	return level, nil
}

// WithPath adds the map file path to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{Logger: l.Logger.With("path", path)}
}

// LogOpen logs a map being opened or formatted.
func (l *Logger) LogOpen(ctx context.Context, created bool, indexedCapacity, size int64) {
	msg := "map attached"
	if created {
		msg = "map formatted"
	}

	l.InfoContext(ctx, msg,
		"indexed_capacity", indexedCapacity,
		"size", size,
	)
}

// LogPut logs an insert or overwrite.
func (l *Logger) LogPut(ctx context.Context, key, prev int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "put failed",
			"key", key,
			"error", err,
		)

		return
	}

	l.DebugContext(ctx, "put completed",
		"key", key,
		"prev", prev,
	)
}

// LogLockWait logs how long acquiring the region lock took, when it took a
// noticeable time.
func (l *Logger) LogLockWait(ctx context.Context, shared bool, waited time.Duration) {
	if waited < 10*time.Millisecond {
		return
	}

	l.DebugContext(ctx, "lock acquired after wait",
		"shared", shared,
		"waited", waited,
	)
}

// LogSnapshot logs a snapshot being written.
func (l *Logger) LogSnapshot(ctx context.Context, filename string, entries int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"filename", filename,
			"error", err,
		)

		return
	}

	l.InfoContext(ctx, "snapshot saved",
		"filename", filename,
		"entries", entries,
	)
}

// LogRestore logs a snapshot being replayed into a map.
func (l *Logger) LogRestore(ctx context.Context, filename string, entries int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "restore failed",
			"filename", filename,
			"entries_replayed", entries,
			"error", err,
		)

		return
	}

	l.InfoContext(ctx, "restore completed",
		"filename", filename,
		"entries_replayed", entries,
	)
}
