package middleware

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// Logger wraps slog.Logger with matcher-specific field helpers so log lines
// use consistent keys.
type Logger struct {
	*slog.Logger
}

// ParseLevel maps debug, info, warn and error to slog levels. Empty means
// info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %q", level)
	}
}

// NewLogger creates a Logger writing to w. format is "text", "json" or
// "auto"; auto picks text when w is a terminal and JSON otherwise. A nil w
// writes to stderr.
func NewLogger(level, format string, w io.Writer) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "", "auto":
		if isTerminal(w) {
			handler = slog.NewTextHandler(w, opts)
		} else {
			handler = slog.NewJSONHandler(w, opts)
		}
	default:
		return nil, fmt.Errorf("unknown log format: %q", format)
	}
	return &Logger{Logger: slog.New(handler)}, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithNamespace adds a namespace field to the logger.
func (l *Logger) WithNamespace(namespace string) *Logger {
	return &Logger{Logger: l.Logger.With("namespace", namespace)}
}

// LogRun logs the outcome of a matching run.
func (l *Logger) LogRun(ctx context.Context, created, updated int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "matching run failed",
			"created", created,
			"updated", updated,
			"duration", elapsed,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "matching run completed",
		"created", created,
		"updated", updated,
		"duration", elapsed,
	)
}
