// Package logger is the structured logging facade of go-remregs.
//
// Links, host ports and the command-line tools log through the Logger
// interface with alternating key/value pairs:
//
//	l.Info("remregs: link state changed", "prevState", prev, "newState", state)
//
// NewSlog returns the log/slog backed implementation; any other framework
// can be plugged in by implementing Logger.
package logger

import (
	"fmt"
	"strings"
)

// LogLevel is the severity of a log record.
type LogLevel int8

const (
	// DebugLevel traces every frame and handshake; noisy on a busy link.
	DebugLevel LogLevel = iota - 1
	// InfoLevel reports state changes and lifecycle events. The default.
	InfoLevel
	// WarnLevel reports recoverable link failures such as timeouts.
	WarnLevel
	// ErrorLevel reports failures that stop a component.
	ErrorLevel
	// FatalLevel logs, then exits the process with status 1.
	FatalLevel
)

// String returns the name accepted by ParseLevel.
func (lv LogLevel) String() string {
	switch lv {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	default:
		return fmt.Sprintf("level(%d)", int8(lv))
	}
}

// Logger is the logging interface used across go-remregs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	// Fatal logs at FatalLevel and calls os.Exit(1), whatever the level.
	Fatal(msg string, keysAndValues ...any)

	// With returns a child logger carrying keyValues on every record.
	// The child shares the level of its parent.
	With(keyValues ...any) Logger

	Level() LogLevel
	SetLevel(level LogLevel)
}

// ParseLevel parses a level name: debug, info, warn, error or fatal.
// The empty string is InfoLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("logger: unknown level %q", s)
	}
}
