package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls handler construction. An empty FilePath logs to stdout
// only; otherwise output is duplicated into a size-rotated file.
type Options struct {
	Level      string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
}

// New creates a console slog.Logger with provided level string.
func New(level string) *slog.Logger {
	return NewWithOptions(Options{Level: level})
}

// NewWithOptions creates a slog.Logger honoring rotation settings.
func NewWithOptions(opts Options) *slog.Logger {
	var out io.Writer = os.Stdout
	if opts.FilePath != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 50
		}
		rotated := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotated)
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: levelFromString(opts.Level),
	})
	return slog.New(handler)
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
