package logger

import (
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

// Options tune the handler picked by Init. Zero values keep the env-based defaults.
type Options struct {
	Level  string
	Format string
}

func Init(env string, opts ...Options) {
	level := slog.LevelDebug
	format := "text"
	if env == "production" {
		level = slog.LevelInfo
		format = "json"
	}

	for _, o := range opts {
		if o.Level != "" {
			level = parseLevel(o.Level)
		}
		if o.Format != "" {
			format = o.Format
		}
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

func LoggerWrapper() *slog.Logger {
	if defaultLogger == nil {
		// lazy initialize a development logger to avoid nil pointer panics
		Init("development")
	}
	return defaultLogger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
