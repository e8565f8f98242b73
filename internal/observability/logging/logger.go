// Package logging builds the slog loggers every service shares.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger is what the binaries use: JSON to stdout, tagged with
// the service name, level from config.
func NewJSONLogger(service, level string) *slog.Logger {
	return NewWithWriter(os.Stdout, service, level)
}

// NewWithWriter exists so tests can capture output.
func NewWithWriter(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	logger := slog.New(handler)
	if service != "" {
		logger = logger.With("service", service)
	}
	return logger
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	normalized := strings.TrimSpace(strings.ToLower(level))
	if normalized == "warning" {
		normalized = "warn"
	}
	if err := l.UnmarshalText([]byte(normalized)); err != nil {
		return slog.LevelInfo
	}
	return l
}
