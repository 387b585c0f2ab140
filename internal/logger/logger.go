package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"diarium/internal/config"
)

// New builds the application logger. Production gets the JSON encoder with
// ISO8601 timestamps; anything else gets the human-friendly development
// config. The level falls back to info on unknown values.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	if cfg.Environment == "production" {
		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(level)
		zc.EncoderConfig.TimeKey = "ts"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return zc.Build(zap.Fields(zap.String("service", "diarium")))
	}

	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zc.Build(zap.Fields(zap.String("service", "diarium")))
}
