// Package mlog defines the logging interface used across the gateway,
// poller and dispatcher services.
package mlog

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Logger is the common interface implemented by every logging backend in
// this repository.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)
	Infoln(args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)
	Errorln(args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)
	Warnln(args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)
	Debugln(args ...any)

	Fatal(args ...any)
	Fatalf(format string, args ...any)

	// WithFields returns a new Logger with the given key/value pairs
	// attached to every subsequent entry.
	WithFields(fields ...any) Logger

	Sync() error
}

// Level represents the severity threshold of a logger.
type Level int8

const (
	FatalLevel Level = iota
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

// ParseLevel converts a textual level (as read from LOG_LEVEL) into a Level.
func ParseLevel(lvl string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "fatal":
		return FatalLevel, nil
	case "error":
		return ErrorLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	}

	var l Level

	return l, fmt.Errorf("not a valid log level: %q", lvl)
}

// NoneLogger discards everything. Used as the safe default when no logger
// has been attached to a context.
type NoneLogger struct{}

func (NoneLogger) Info(...any)                  {}
func (NoneLogger) Infof(string, ...any)         {}
func (NoneLogger) Infoln(...any)                {}
func (NoneLogger) Error(...any)                  {}
func (NoneLogger) Errorf(string, ...any)        {}
func (NoneLogger) Errorln(...any)               {}
func (NoneLogger) Warn(...any)                   {}
func (NoneLogger) Warnf(string, ...any)         {}
func (NoneLogger) Warnln(...any)                {}
func (NoneLogger) Debug(...any)                  {}
func (NoneLogger) Debugf(string, ...any)        {}
func (NoneLogger) Debugln(...any)               {}
func (NoneLogger) Fatal(...any)                  {}
func (NoneLogger) Fatalf(string, ...any)        {}
func (l NoneLogger) WithFields(...any) Logger { return l }
func (NoneLogger) Sync() error                  { return nil }

// GoLogger is a minimal Logger backed by the standard library, used in
// tests and small CLIs where pulling in zap isn't warranted.
type GoLogger struct {
	Level Level
}

func (l *GoLogger) enabled(lv Level) bool { return l.Level >= lv }

func (l *GoLogger) Info(args ...any) {
	if l.enabled(InfoLevel) {
		log.Print(args...)
	}
}

func (l *GoLogger) Infof(format string, args ...any) {
	if l.enabled(InfoLevel) {
		log.Printf(format, args...)
	}
}

func (l *GoLogger) Infoln(args ...any) {
	if l.enabled(InfoLevel) {
		log.Println(args...)
	}
}

func (l *GoLogger) Error(args ...any) {
	if l.enabled(ErrorLevel) {
		log.Print(args...)
	}
}

func (l *GoLogger) Errorf(format string, args ...any) {
	if l.enabled(ErrorLevel) {
		log.Printf(format, args...)
	}
}

func (l *GoLogger) Errorln(args ...any) {
	if l.enabled(ErrorLevel) {
		log.Println(args...)
	}
}

func (l *GoLogger) Warn(args ...any) {
	if l.enabled(WarnLevel) {
		log.Print(args...)
	}
}

func (l *GoLogger) Warnf(format string, args ...any) {
	if l.enabled(WarnLevel) {
		log.Printf(format, args...)
	}
}

func (l *GoLogger) Warnln(args ...any) {
	if l.enabled(WarnLevel) {
		log.Println(args...)
	}
}

func (l *GoLogger) Debug(args ...any) {
	if l.enabled(DebugLevel) {
		log.Print(args...)
	}
}

func (l *GoLogger) Debugf(format string, args ...any) {
	if l.enabled(DebugLevel) {
		log.Printf(format, args...)
	}
}

func (l *GoLogger) Debugln(args ...any) {
	if l.enabled(DebugLevel) {
		log.Println(args...)
	}
}

func (l *GoLogger) Fatal(args ...any) {
	log.Fatal(args...)
}

func (l *GoLogger) Fatalf(format string, args ...any) {
	log.Fatalf(format, args...)
}

func (l *GoLogger) WithFields(...any) Logger {
	return &GoLogger{Level: l.Level}
}

func (l *GoLogger) Sync() error { return nil }

type loggerContextKey string

const loggerKey loggerContextKey = "logger"

// ContextWithLogger attaches a Logger to ctx.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the Logger attached to ctx, or a no-op Logger if
// none was attached.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey).(Logger); ok && logger != nil {
		return logger
	}

	return NoneLogger{}
}
