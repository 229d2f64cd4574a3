package app

import (
	"log/slog"
	"os"
)

// newLogger creates the per-invocation slog.Logger. Diagnostics go to
// stderr so stdout stays reserved for progress and output JSON; --verbose
// lowers the level to debug.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
