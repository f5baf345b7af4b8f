// Package logger configures structured logging and the operator log stream.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup returns a JSON slog.Logger writing to w.
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewHandler(w, level))
}

// NewHandler returns the JSON handler used by Setup.
func NewHandler(w io.Writer, level slog.Level) slog.Handler {
	if w == nil {
		w = os.Stderr
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// SetupDefault installs a JSON logger as the global slog default and
// returns the stream that mirrors every record to listeners.
func SetupDefault(w io.Writer, level slog.Level) *Stream {
	stream := NewStream(NewHandler(w, level))
	slog.SetDefault(slog.New(stream))
	return stream
}
