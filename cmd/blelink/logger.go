package main

import (
	"fmt"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"

	"github.com/chaz8081/blelink/internal/config"
)

// newLogger builds the process logger. format is "json" for production
// encoding or anything else for the human-readable console encoder.
func newLogger(level, format string) (*zap.Logger, error) {
	var zcfg zap.Config
	if format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(zapLevel(config.ParseLogLevel(level)))

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// installLogger routes log/slog through logger so library packages that log
// with slog end up in the same sink.
func installLogger(logger *zap.Logger) {
	slog.SetDefault(slog.New(zapslog.NewHandler(logger.Core(), zapslog.WithCaller(true))))
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l >= slog.LevelError:
		return zapcore.ErrorLevel
	case l >= slog.LevelWarn:
		return zapcore.WarnLevel
	case l >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
