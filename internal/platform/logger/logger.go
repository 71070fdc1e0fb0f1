package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger; debug level outside production.
func New(env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "development" || env == "dev" {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
