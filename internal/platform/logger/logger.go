package logger

import (
	"log/slog"
	"os"
)

// New returns a structured JSON logger using slog. Level defaults to info and
// can be lowered with CREDVAULT_LOG_LEVEL=debug for local debugging.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("CREDVAULT_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
