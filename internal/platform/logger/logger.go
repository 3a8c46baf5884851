package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. Development gets human-readable
// text; everything else gets JSON for log aggregation.
func New(development bool) *slog.Logger {
	var handler slog.Handler
	if development {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	return slog.New(handler)
}
