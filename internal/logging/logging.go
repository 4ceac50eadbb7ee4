// Package logging wraps zap the way draymaster-tms/shared/pkg/logger
// does: a thin struct embedding a SugaredLogger, environment-aware
// encoder selection, and With*-style field helpers.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.SugaredLogger for simulation-wide use.
type Logger struct {
	*zap.SugaredLogger
}

// New builds a Logger for the given environment ("development" or
// "production") and minimum level.
func New(environment, level string) (*Logger, error) {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	switch level {
	case "debug":
		cfg.Level.SetLevel(zapcore.DebugLevel)
	case "warn":
		cfg.Level.SetLevel(zapcore.WarnLevel)
	case "error":
		cfg.Level.SetLevel(zapcore.ErrorLevel)
	default:
		cfg.Level.SetLevel(zapcore.InfoLevel)
	}

	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	zl, err := cfg.Build(zap.AddCallerSkip(1), zap.Fields(zap.String("component", "transitsim")))
	if err != nil {
		return nil, err
	}
	return &Logger{zl.Sugar()}, nil
}

// Default returns a development-level logger, falling back to zap's
// bare development logger if construction somehow fails.
func Default() *Logger {
	l, err := New("development", "info")
	if err != nil {
		zl, _ := zap.NewDevelopment()
		return &Logger{zl.Sugar()}
	}
	return l
}

// WithSimTime returns a logger annotated with the current simulated time.
func (l *Logger) WithSimTime(simSeconds float64) *Logger {
	return &Logger{l.SugaredLogger.With("sim_time_s", simSeconds)}
}

// WithEvent returns a logger annotated with an event type.
func (l *Logger) WithEvent(eventType string) *Logger {
	return &Logger{l.SugaredLogger.With("event", eventType)}
}

// WithError returns a logger annotated with an error.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{l.SugaredLogger.With("error", err.Error())}
}

// Sync flushes buffered log entries; errors writing to stdout/stderr on
// some platforms are expected and not fatal.
func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

// Fatal logs and exits, matching the teacher's fatal-on-config-error
// behavior for the CLI entry point.
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.SugaredLogger.Errorw(msg, args...)
	l.Sync()
	os.Exit(1)
}
