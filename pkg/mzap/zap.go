// Package mzap wires go.uber.org/zap into the mlog.Logger interface, the
// same role common/mzap plays for the teacher's services.
package mzap

import (
	"os"

	"github.com/shiftpay/usdt-gateway/pkg/mlog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.SugaredLogger behind mlog.Logger.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a production zap logger at the given level.
func New(levelName string) (*Logger, error) {
	level, err := mlog.ParseLevel(levelName)
	if err != nil {
		level = mlog.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(level))
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &Logger{s: base.Sugar()}, nil
}

// NewOrExit builds a logger and terminates the process on failure, the way
// InitializeLogger does for the teacher's services.
func NewOrExit(levelName string) *Logger {
	l, err := New(levelName)
	if err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	return l
}

func toZapLevel(l mlog.Level) zapcore.Level {
	switch l {
	case mlog.FatalLevel:
		return zapcore.FatalLevel
	case mlog.ErrorLevel:
		return zapcore.ErrorLevel
	case mlog.WarnLevel:
		return zapcore.WarnLevel
	case mlog.DebugLevel:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) Info(args ...any)                  { l.s.Info(args...) }
func (l *Logger) Infof(format string, args ...any)  { l.s.Infof(format, args...) }
func (l *Logger) Infoln(args ...any)                { l.s.Infoln(args...) }
func (l *Logger) Error(args ...any)                 { l.s.Error(args...) }
func (l *Logger) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }
func (l *Logger) Errorln(args ...any)               { l.s.Errorln(args...) }
func (l *Logger) Warn(args ...any)                  { l.s.Warn(args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.s.Warnf(format, args...) }
func (l *Logger) Warnln(args ...any)                { l.s.Warnln(args...) }
func (l *Logger) Debug(args ...any)                 { l.s.Debug(args...) }
func (l *Logger) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l *Logger) Debugln(args ...any)               { l.s.Debugln(args...) }
func (l *Logger) Fatal(args ...any)                 { l.s.Fatal(args...) }
func (l *Logger) Fatalf(format string, args ...any) { l.s.Fatalf(format, args...) }

// WithFields returns a child logger carrying the given structured fields.
//
//nolint:ireturn
func (l *Logger) WithFields(fields ...any) mlog.Logger {
	return &Logger{s: l.s.With(fields...)}
}

func (l *Logger) Sync() error { return l.s.Sync() }
