package logging

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is read from LOG_* environment variables.
type Config struct {
	Level    string `envconfig:"LEVEL" default:"info"`
	Encoding string `envconfig:"ENCODING" default:"json"`
}

// LoadConfig reads LOG_LEVEL and LOG_ENCODING.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("LOG", &cfg); err != nil {
		return Config{}, fmt.Errorf("log config: %w", err)
	}
	return cfg, nil
}

// New builds the process logger from LOG_LEVEL and LOG_ENCODING. Every
// entry carries the service name.
func New(service string) (*zap.Logger, error) {
	lc, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(service, lc)
}

// NewWithConfig builds a logger from an explicit config.
func NewWithConfig(service string, lc Config) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = lc.Encoding
	cfg.Level = zap.NewAtomicLevelAt(Level(lc.Level))
	if cfg.Level.Level() == zap.DebugLevel {
		cfg.Development = true
	}

	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.With(zap.String("service", service)), nil
}

// Level maps a LOG_LEVEL value to a zap level, defaulting to info.
func Level(s string) zapcore.Level {
	switch s {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
