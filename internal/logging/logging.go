// Package logging builds the zap loggers used across axon.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tccjustin/axon/internal/config"
)

// EnvLogLevel overrides the configured level when set.
const EnvLogLevel = "AXON_LOG_LEVEL"

// New builds a logger from the logging section of the config.
// Development mode writes human-readable console lines, otherwise JSON.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, ok := ParseLevel(cfg.Level)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}
	if override, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok && os.Getenv(EnvLogLevel) != "" {
		level = override
	}

	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// ParseLevel maps a level name to a zap level. An empty name maps to info.
func ParseLevel(raw string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return zapcore.InfoLevel, true
	case "trace", "debug":
		return zapcore.DebugLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	case "off", "disabled", "none":
		return zapcore.FatalLevel + 1, true
	default:
		return zapcore.InfoLevel, false
	}
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
