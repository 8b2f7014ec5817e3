package mlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a zap.SugaredLogger to the Logger interface, the way
// the teacher's common/mzap.ZapWithTraceLogger wraps zap without leaking
// it into component signatures.
type ZapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger builds a Logger backed by zap, using the development
// encoder outside production and the production encoder otherwise.
func NewZapLogger(production bool) (*ZapLogger, error) {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl, ok := os.LookupEnv("LOG_LEVEL"); ok {
		var l zapcore.Level
		if err := l.Set(lvl); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(l)
		}
	}

	cfg.DisableStacktrace = true

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &ZapLogger{s: logger.Sugar()}, nil
}

func (l *ZapLogger) Info(args ...any)                  { l.s.Info(args...) }
func (l *ZapLogger) Infof(format string, args ...any)  { l.s.Infof(format, args...) }
func (l *ZapLogger) Error(args ...any)                 { l.s.Error(args...) }
func (l *ZapLogger) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }
func (l *ZapLogger) Warn(args ...any)                  { l.s.Warn(args...) }
func (l *ZapLogger) Warnf(format string, args ...any)  { l.s.Warnf(format, args...) }
func (l *ZapLogger) Debug(args ...any)                 { l.s.Debug(args...) }
func (l *ZapLogger) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l *ZapLogger) Fatal(args ...any)                 { l.s.Fatal(args...) }
func (l *ZapLogger) Fatalf(format string, args ...any) { l.s.Fatalf(format, args...) }

func (l *ZapLogger) WithFields(fields ...any) Logger {
	return &ZapLogger{s: l.s.With(fields...)}
}

func (l *ZapLogger) Sync() error { return l.s.Sync() }
