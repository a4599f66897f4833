// Package logging provides structured slog-based logging for adslink.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"adslink/config"
)

// Logger wraps slog.Logger with level filtering and default fields.
// Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a logger from config. Unrecognized settings fall back to
// JSON on stdout at info level.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "adslink"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// With returns a child logger carrying additional default attributes,
// typically a "component" tag.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a JSON stdout logger for use before config is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
