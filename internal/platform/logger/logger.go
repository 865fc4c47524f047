package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/labelhive-api/internal/config"
)

// ParseLevel converts a configured level name (case-insensitive) into a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// New builds a JSON logger writing to w at the given level. Records carry
// any attributes attached to their context with WithAttrs.
func New(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	handler := NewContextHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	return slog.New(handler), nil
}

// Setup initializes the application's logging system from the server
// configuration and installs the result as the slog default.
//
// An unknown level falls back to info with a warning on stderr.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	logger, err := New(os.Stdout, cfg.LogLevel)
	if err != nil {
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")

		logger, err = New(os.Stdout, "info")
		if err != nil {
			return nil, err
		}
	}

	slog.SetDefault(logger)
	return logger, nil
}
