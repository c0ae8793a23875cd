// Package logging builds the zap logger shared by all components
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the log level and encoding
type Config struct {
	// Level is debug, info, warn or error
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	// Development switches to human-readable console output with caller
	// and stack information
	Development bool `mapstructure:"development"`
	// Output is a path or "stderr". stdout is rejected since it carries the
	// language server protocol stream.
	Output string `mapstructure:"output"`
}

// New builds a logger from cfg
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	output := cfg.Output
	switch output {
	case "":
		output = "stderr"
	case "stdout":
		return nil, fmt.Errorf("log output cannot be stdout")
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.OutputPaths = []string{output}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// Must is New that falls back to a no-op logger
func Must(cfg Config) *zap.Logger {
	logger, err := New(cfg)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
