package relorm

import (
	"fmt"

	"go.uber.org/zap"
)

type LogLevel int

const (
	LogLevelDev LogLevel = iota
	LogLevelProd
)

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type zapLogger struct {
	l *zap.SugaredLogger
}

// NewLogger builds a zap backed Logger for the given level.
func NewLogger(env LogLevel) (Logger, error) {
	var cfg zap.Config
	switch env {
	case LogLevelDev:
		cfg = zap.NewDevelopmentConfig()
	case LogLevelProd:
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("log level should be either LogLevelDev or LogLevelProd")
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{l.Sugar()}, nil
}

// ZapLogger adapts an existing zap logger.
func ZapLogger(l *zap.Logger) Logger {
	return &zapLogger{l.Sugar()}
}

func nopLogger() Logger {
	return &zapLogger{zap.NewNop().Sugar()}
}

func (z *zapLogger) Debugf(format string, args ...any) {
	format = fmt.Sprintf("[DEBUG] %s", format)
	z.l.Debugf(format, args...)
}

func (z *zapLogger) Warnf(format string, args ...any) {
	format = fmt.Sprintf("[WARN] %s", format)
	z.l.Warnf(format, args...)
}

func (z *zapLogger) Errorf(format string, args ...any) {
	format = fmt.Sprintf("[ERROR] %s", format)
	z.l.Errorf(format, args...)
}

func (z *zapLogger) Infof(format string, args ...any) {
	format = fmt.Sprintf("[INFO] %s", format)
	z.l.Infof(format, args...)
}
