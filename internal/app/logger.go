package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger and installs it as the slog default.
// LOG_FORMAT=json selects the JSON handler for log shippers; any other value
// (including the "pretty" default) gets the text handler. Production runs at
// Info, everything else at Debug.
func NewLogger(cfg *Config) *slog.Logger {
	level := slog.LevelDebug
	if cfg.IsProduction() {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{AddSource: true, Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
