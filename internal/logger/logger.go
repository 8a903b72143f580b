// Package logger provides leveled logging with support for debug, info, warn, and error levels.
// It wraps a zap SugaredLogger so call sites keep printf-style formatting while output is
// structured (json) or human readable (console).
package logger

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global logger instance. A no-op logger until Init is called.
var defaultLogger = zap.NewNop().Sugar()

// Init initializes the default logger with the specified level and format.
// Format "json" selects the zap production encoder; "console" or "text" selects the
// development encoder. Unknown levels fall back to info.
func Init(level string, format string) error {
	var zapCfg zap.Config
	switch strings.ToLower(format) {
	case "console", "text":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		zapCfg = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zapCfg.Level.SetLevel(lvl)

	l, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return eris.Wrap(err, "logger: build")
	}
	zap.ReplaceGlobals(l)
	defaultLogger = l.Sugar()
	return nil
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = defaultLogger.Sync()
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...interface{}) {
	defaultLogger.Debugf(format, args...)
}

// Info logs a message at InfoLevel
func Info(format string, args ...interface{}) {
	defaultLogger.Infof(format, args...)
}

// Warn logs a message at WarnLevel
func Warn(format string, args ...interface{}) {
	defaultLogger.Warnf(format, args...)
}

// Error logs a message at ErrorLevel
func Error(format string, args ...interface{}) {
	defaultLogger.Errorf(format, args...)
}
