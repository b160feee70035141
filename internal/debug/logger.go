// Package debug provides the structured logger used for tracing migrations
package debug

import (
	"io"
	"log/slog"
)

// New creates a text logger writing to w. With verbose set every step is
// traced, otherwise only warnings and errors are written.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops every record
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
