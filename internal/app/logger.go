// Package app assembles the services the api, notifier and vexoctl
// binaries share from a loaded config.
package app

import (
	"io"
	"log/slog"

	"github.com/example/vexokart/internal/config"
)

func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With(slog.String("mode", string(cfg.Mode)))
}
