package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	fileMaxSizeMB  = 20
	fileMaxBackups = 5
	fileMaxAgeDays = 28
)

// Options selects the level and the optional rotating file sink.
type Options struct {
	Level string
	// File, when set, receives a JSON copy of every entry, rotated by size.
	File string
}

// NewLogger returns a zap logger configured for structured production logging.
func NewLogger(level string) (*zap.Logger, error) {
	return New(Options{Level: level})
}

// New builds the production logger and tees it into a rotating file when
// opts.File is set.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(opts.Level))

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.File) == "" {
		return logger, nil
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg.EncoderConfig),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    fileMaxSizeMB,
			MaxBackups: fileMaxBackups,
			MaxAge:     fileMaxAgeDays,
		}),
		cfg.Level,
	)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}

// ParseLevel maps a level name onto a zap level. Unknown names select info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
