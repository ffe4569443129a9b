package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init builds the process-wide logger and installs it as the slog default.
// Production emits JSON, anything else emits human-readable text.
func Init(env, level string) *slog.Logger {
	return initWithWriter(os.Stdout, env, level)
}

func initWithWriter(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler).With("service", "problem_market")
	slog.SetDefault(l)
	return l
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
