package main

import (
	"io"
	"log/slog"

	"idwallet/internal/platform/config"
	"idwallet/internal/platform/logger"
)

func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath, flags.envFile)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return logger.NewWithWriter(w, cfg.LogLevel)
}
