package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Options selects level, console format ("text" or "pretty") and an optional file
// that receives a copy of every record.
type Options struct {
	Level  string
	Format string
	File   string
}

// New creates a slog.Logger writing to stdout and, when configured, to a log file.
// The returned close func releases the file; it is never nil.
func New(opts Options) (*slog.Logger, func() error) {
	var (
		out     io.Writer = os.Stdout
		closeFn           = func() error { return nil }
		fileErr error
	)

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fileErr = err
		} else {
			out = io.MultiWriter(os.Stdout, f)
			closeFn = f.Close
		}
	}

	logger := slog.New(newHandler(out, opts))
	if fileErr != nil {
		logger.Warn("log file unavailable, logging to stdout only", "file", opts.File, "error", fileErr)
	}
	return logger, closeFn
}

func newHandler(w io.Writer, opts Options) slog.Handler {
	level := levelFromString(opts.Level)

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "pretty":
		return charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(level),
			ReportTimestamp: true,
		})
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// Discard returns a logger that drops every record; handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

