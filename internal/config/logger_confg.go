package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const loggerPrefix = "LOGGER"

// NewLoggerConfig returns the production zap config at info level, with LOGGER_* env vars applied on top.
func NewLoggerConfig() (*zap.Config, error) {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	if err := envconfig.Process(loggerPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read logger config from env: %w", err)
	}
	return &cfg, nil
}

// NewLogger builds a standalone logger for short-lived commands.
func NewLogger() (*zap.Logger, error) {
	cfg, err := NewLoggerConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Build()
}
