package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the host logger. Production always emits JSON for the
// log pipeline regardless of LOG_FORMAT; anywhere else the text handler
// is easier on the eyes.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && (cfg.LogFormat == "json" || cfg.IsProduction()) {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
