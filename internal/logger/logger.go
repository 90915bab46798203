// Package logger builds the zap loggers used across the service and carries
// request-scoped loggers through contexts.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every entry as the "service" field.
const ServiceName = "consolidator"

// NewLogger builds a logger for env: prod writes sampled JSON, local, dev and docker
// write colored console output, test discards everything. A non-empty level overrides
// the env default.
func NewLogger(env string, level ...string) (*zap.Logger, error) {
	cfg, err := envConfig(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return zap.NewNop(), nil
	}
	if len(level) > 0 && level[0] != "" {
		lvl, err := zapcore.ParseLevel(level[0])
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level[0], err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	cfg.InitialFields = map[string]any{"service": ServiceName}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// envConfig returns nil for the test env.
func envConfig(env string) (*zap.Config, error) {
	switch env {
	case "test":
		return nil, nil
	case "prod":
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return &cfg, nil
	case "local", "dev", "docker":
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return &cfg, nil
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", env)
	}
}
