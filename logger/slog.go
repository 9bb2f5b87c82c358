package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/phsym/console-slog"
)

// slogFatal sits above slog.LevelError so that Fatal records survive an
// ErrorLevel threshold.
const slogFatal = slog.LevelError + 4

// SlogOptions configures a slog backed Logger.
type SlogOptions struct {
	// Output defaults to os.Stdout.
	Output io.Writer
	Level  LogLevel
	// AddSource adds the caller file and line to every record.
	AddSource bool
	// Console selects the human readable console handler instead of JSON.
	// It is forced on when the ENV environment variable is "development".
	Console bool
}

// SlogLogger is a Logger backed by log/slog.
type SlogLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

var _ Logger = (*SlogLogger)(nil)

// NewSlog creates a slog backed Logger writing to stdout.
func NewSlog(level LogLevel, addSource bool) Logger {
	return NewSlogWithOptions(SlogOptions{Level: level, AddSource: addSource})
}

// NewSlogWriter creates a slog backed Logger writing to w.
func NewSlogWriter(w io.Writer, level LogLevel, addSource bool) Logger {
	return NewSlogWithOptions(SlogOptions{Output: w, Level: level, AddSource: addSource})
}

// NewSlogWithOptions creates a slog backed Logger. JSON records use "ts"
// as the time key.
func NewSlogWithOptions(opts SlogOptions) *SlogLogger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	level := &slog.LevelVar{}
	level.Set(toSlogLevel(opts.Level))

	var handler slog.Handler
	if opts.Console || os.Getenv("ENV") == "development" {
		handler = console.NewHandler(out, &console.HandlerOptions{
			AddSource: opts.AddSource,
			Level:     level,
		})
	} else {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
			AddSource: opts.AddSource,
			Level:     level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				switch {
				case a.Key == slog.TimeKey:
					a.Key = "ts"
				case a.Key == slog.LevelKey && a.Value.Any() == slogFatal:
					a.Value = slog.StringValue("FATAL")
				}

				return a
			},
		})
	}

	return &SlogLogger{logger: slog.New(handler), level: level}
}

func (l *SlogLogger) Debug(msg string, keysAndValues ...any) {
	l.log(slog.LevelDebug, msg, keysAndValues)
}

func (l *SlogLogger) Info(msg string, keysAndValues ...any) {
	l.log(slog.LevelInfo, msg, keysAndValues)
}

func (l *SlogLogger) Warn(msg string, keysAndValues ...any) {
	l.log(slog.LevelWarn, msg, keysAndValues)
}

func (l *SlogLogger) Error(msg string, keysAndValues ...any) {
	l.log(slog.LevelError, msg, keysAndValues)
}

func (l *SlogLogger) Fatal(msg string, keysAndValues ...any) {
	l.log(slogFatal, msg, keysAndValues)
	os.Exit(1)
}

func (l *SlogLogger) With(keyValues ...any) Logger {
	return &SlogLogger{logger: l.logger.With(keyValues...), level: l.level}
}

func (l *SlogLogger) Level() LogLevel {
	switch lv := l.level.Level(); {
	case lv <= slog.LevelDebug:
		return DebugLevel
	case lv <= slog.LevelInfo:
		return InfoLevel
	case lv <= slog.LevelWarn:
		return WarnLevel
	case lv <= slog.LevelError:
		return ErrorLevel
	default:
		return FatalLevel
	}
}

// SetLevel changes the level of l and of every logger derived with With.
func (l *SlogLogger) SetLevel(level LogLevel) {
	l.level.Set(toSlogLevel(level))
}

// log must be called directly by an exported method: the source position
// is taken at a fixed depth.
func (l *SlogLogger) log(level slog.Level, msg string, args []any) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	// skip runtime.Callers, log and the exported method
	runtime.Callers(3, pcs[:])

	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.logger.Handler().Handle(ctx, r)
}

func toSlogLevel(level LogLevel) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slogFatal
	}
}
