package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.Mutex
	logger *zap.SugaredLogger
)

// Setup initializes the process-wide logger. The level is taken from the
// LOG_LEVEL environment variable when the argument is empty. Calling Setup
// more than once replaces the previous logger.
func Setup(level string) error {
	mu.Lock()
	defer mu.Unlock()

	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	logger = l.Sugar()
	return nil
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
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

func get() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()

	if logger == nil {
		l, err := zap.NewProduction(zap.AddCallerSkip(1))
		if err != nil {
			l = zap.NewNop()
		}
		logger = l.Sugar()
	}
	return logger
}

// Debugf logs a formatted debug message.
func Debugf(format string, args ...interface{}) {
	get().Debugf(format, args...)
}

// Infof logs a formatted informational message.
func Infof(format string, args ...interface{}) {
	get().Infof(format, args...)
}

// Warnf logs a formatted warning message.
func Warnf(format string, args ...interface{}) {
	get().Warnf(format, args...)
}

// Errorf logs a formatted error message.
func Errorf(format string, args ...interface{}) {
	get().Errorf(format, args...)
}

// Sync flushes buffered log entries. Applications should call it on exit.
func Sync() {
	if l := get(); l != nil {
		_ = l.Sync()
	}
}
