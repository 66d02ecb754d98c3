package app

import (
	"io"
	"log/slog"
)

// NewLogger returns the JSON logger every package logs through.
func NewLogger(w io.Writer, level slog.Level, service string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})).With("service", service)
}
