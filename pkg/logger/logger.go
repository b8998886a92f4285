// Package logger provides the process-wide structured logger.
//
// JSON output for production, console for local development.
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global *zap.Logger
	once   sync.Once
)

// Init builds the global logger. level is one of debug, info, warn, error;
// format is json or console. Safe to call more than once; only the first
// call takes effect.
func Init(level, format string) error {
	var initErr error
	once.Do(func() {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			initErr = fmt.Errorf("logger: parse level %q: %w", level, err)
			return
		}

		var cfg zap.Config
		switch format {
		case "console":
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		default:
			cfg = zap.NewProductionConfig()
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)

		l, err := cfg.Build()
		if err != nil {
			initErr = fmt.Errorf("logger: build: %w", err)
			return
		}
		global = l
	})
	return initErr
}

// L returns the global logger. Falls back to a no-op logger when Init has
// not been called, so library tests never have to bootstrap logging.
func L() *zap.Logger {
	if global == nil {
		return zap.NewNop()
	}
	return global
}

// S returns the global sugared logger.
func S() *zap.SugaredLogger {
	return L().Sugar()
}

// Sync flushes buffered entries. Called on shutdown.
func Sync() error {
	if global == nil {
		return nil
	}
	return global.Sync()
}
