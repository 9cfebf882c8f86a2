package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Init installs the default logger with the level named by LOG_LEVEL.
// Without it only errors are shown, which keeps the interactive commands quiet.
func Init() {
	level := slog.LevelError

	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if parsed, err := ParseLevel(l); err == nil {
			level = parsed
		}
	}

	Setup(level)
}

// Setup replaces the default logger with a text handler on stderr.
func Setup(level slog.Level) *slog.Logger {
	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name, including the dev/production aliases, to a
// slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dev", "development", "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "production", "prod":
		return slog.LevelError, nil
	}
	return slog.LevelError, fmt.Errorf("unknown log level %q", name)
}
