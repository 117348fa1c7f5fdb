package logger

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// New sets up the slog logger with level and format from arguments.
// logLevel: "info", "debug", "warn", "error"
// logFormat: "json" or "text"
// Returns (*slog.Logger, error)
func New(logLevel, logFormat string) (*slog.Logger, error) {
	return newWithWriter(logLevel, logFormat, os.Stdout)
}

// NewStderr sets up a logger writing to stderr, for commands whose stdout
// carries wire data.
func NewStderr(logLevel, logFormat string) (*slog.Logger, error) {
	return newWithWriter(logLevel, logFormat, os.Stderr)
}

// NewFile sets up a logger writing to the given file path. The panel owns the
// terminal while running, so interactive commands must log to a file instead
// of stdout. The file is created (along with parent directories) if missing
// and appended to otherwise.
func NewFile(logLevel, logFormat, path string) (*slog.Logger, func() error, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil, errors.New("log file path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	log, err := newWithWriter(logLevel, logFormat, f)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return log, f.Close, nil
}

func newWithWriter(logLevel, logFormat string, w io.Writer) (*slog.Logger, error) {
	if strings.TrimSpace(logLevel) == "" || strings.TrimSpace(logFormat) == "" {
		return nil, errors.New("logLevel and logFormat must not be empty")
	}
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	case "info":
		level = slog.LevelInfo
	default:
		return nil, errors.New("invalid logLevel: " + logLevel)
	}

	var handler slog.Handler
	switch strings.ToLower(logFormat) {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	default:
		return nil, errors.New("invalid logFormat: " + logFormat)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
