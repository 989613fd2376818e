package internal

import (
	"log/slog"
	"os"
	"strings"
)

// GetLoggerFromLevel builds the process logger from the LOG_LEVEL value.
// Unknown levels fall back to INFO rather than failing startup.
func GetLoggerFromLevel(level string) *slog.Logger {
	var slogLevel slog.Level
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		slogLevel = slog.LevelDebug
	case "WARN":
		slogLevel = slog.LevelWarn
	case "ERROR":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))
}
