// Package logging provides structured logging for echoping.
//
// Diagnostics go to stderr through log/slog so that stdout carries only the
// ping output itself.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Supported levels and formats.
var (
	Levels  = []string{"debug", "info", "warn", "error"}
	Formats = []string{"text", "json"}
)

// NewLogger creates a structured logger writing to stderr.
func NewLogger(level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a structured logger with a custom writer.
// Unknown levels fall back to info and unknown formats to text.
func NewLoggerWithWriter(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// Component returns a child logger tagged with the component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = NopLogger()
	}
	return logger.With(slog.String(KeyComponent, name))
}

// ValidLevel reports whether level is one of Levels.
func ValidLevel(level string) bool {
	return contains(Levels, strings.ToLower(level)) || strings.EqualFold(level, "warning")
}

// ValidFormat reports whether format is one of Formats.
func ValidFormat(format string) bool {
	return contains(Formats, strings.ToLower(format))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Common attribute keys for consistent logging.
const (
	KeyComponent  = "component"
	KeyHost       = "host"
	KeyTarget     = "target"
	KeyAddress    = "address"
	KeyIdentifier = "identifier"
	KeySequence   = "icmp_seq"
	KeySource     = "source"
	KeyReason     = "reason"
	KeyRTT        = "rtt"
	KeyState      = "state"
	KeyError      = "error"
	KeyDuration   = "duration"
	KeyCount      = "count"
)
