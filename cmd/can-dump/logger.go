package main

import (
	"log/slog"
	"os"

	"github.com/kstaniek/go-can-dump/internal/logging"
)

// setupLogger installs the global diagnostic logger on stderr; stdout is
// left to the rendered frame lines.
func setupLogger(format, level string) *slog.Logger {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	l := logging.New(format, lvl, os.Stderr).With("app", "can-dump")
	logging.Set(l)
	return l
}
