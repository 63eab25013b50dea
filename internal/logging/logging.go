// Package logging builds the daemon's zap logger: JSON output with ISO 8601
// timestamps, optionally teed into a size-rotated file.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// Level is a zap level name: debug, info, warn, error. Empty means info.
	Level string
	// File enables a rotated file sink alongside stderr when non-empty.
	File string
	// Rotation knobs for the file sink. Zero values keep lumberjack's
	// defaults.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a production JSON logger at the requested level. When a file is
// configured, output goes to both stderr and the rotated file.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("parsing log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	sink := zapcore.Lock(os.Stderr)
	core := zapcore.NewCore(encoder, sink, level)
	if opts.File != "" {
		fileSink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		})
		core = zapcore.NewTee(core, zapcore.NewCore(encoder, fileSink, level))
	}

	return zap.New(core), nil
}
