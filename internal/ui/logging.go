package ui

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	Debug bool
	z     *zap.SugaredLogger
}

// NewLogger builds a console logger on stderr. Debug lowers the level and
// turns on caller info.
func NewLogger(debug bool) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	cfg.DisableCaller = !debug
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	z, err := cfg.Build()
	if err != nil {
		z = zap.NewNop()
	}

	return &Logger{Debug: debug, z: z.Sugar()}
}

// NopLogger discards everything.
func NopLogger() *Logger {
	return &Logger{z: zap.NewNop().Sugar()}
}

func (l *Logger) With(kv ...any) *Logger {
	return &Logger{Debug: l.Debug, z: l.z.With(kv...)}
}

func (l *Logger) Debugf(format string, args ...any) {
	l.z.Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.z.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.z.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.z.Errorf(format, args...)
}

func (l *Logger) Sync() {
	_ = l.z.Sync()
}
