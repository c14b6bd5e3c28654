package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger tagged with the service name. Handlers and
// services receive it explicitly; there is no package-level logging state.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})).With("service", "passport-cri")
}
