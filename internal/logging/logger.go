// Package logging provides the logging abstraction used across spindle.
// The Logger interface keeps printf-style call sites; the default
// implementation is backed by log/slog.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Level represents a log level.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// slogTrace sits below slog.LevelDebug so trace output needs an explicit opt-in.
const slogTrace = slog.LevelDebug - 4

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelTrace:
		return slogTrace
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel converts a level name to a Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the interface for structured logging.
type Logger interface {
	Trace(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// WithField returns a new logger with the given field added.
	WithField(key string, value interface{}) Logger

	// WithFields returns a new logger with the given fields added.
	WithFields(fields map[string]interface{}) Logger

	// SetLevel sets the minimum log level.
	SetLevel(level Level)

	// SetOutput sets the output writer.
	SetOutput(w io.Writer)
}

var (
	defaultLogger Logger
	defaultMu     sync.RWMutex
)

func init() {
	defaultLogger = New()
}

// Default returns the default logger.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// OrDefault returns l, or the default logger when l is nil.
func OrDefault(l Logger) Logger {
	if l == nil {
		return Default()
	}
	return l
}

// Ref holds a logger that can be swapped while other goroutines log
// through it. The zero value logs to the default logger.
type Ref struct {
	p atomic.Pointer[refBox]
}

type refBox struct{ l Logger }

// Load returns the held logger.
func (r *Ref) Load() Logger {
	if b := r.p.Load(); b != nil {
		return b.l
	}
	return Default()
}

// Store replaces the held logger; nil selects the default logger.
func (r *Ref) Store(l Logger) {
	r.p.Store(&refBox{l: OrDefault(l)})
}

// Init replaces the default logger with one writing to stderr in the
// given format ("json" or "text") at the given level.
func Init(format string, level Level) {
	l := NewWithFormat(os.Stderr, format)
	l.SetLevel(level)
	SetDefault(l)
}

// Trace logs a trace message using the default logger.
func Trace(msg string, args ...interface{}) {
	Default().Trace(msg, args...)
}

// Debug logs a debug message using the default logger.
func Debug(msg string, args ...interface{}) {
	Default().Debug(msg, args...)
}

// Info logs an info message using the default logger.
func Info(msg string, args ...interface{}) {
	Default().Info(msg, args...)
}

// Warn logs a warning message using the default logger.
func Warn(msg string, args ...interface{}) {
	Default().Warn(msg, args...)
}

// Error logs an error message using the default logger.
func Error(msg string, args ...interface{}) {
	Default().Error(msg, args...)
}

// sink is shared by a logger and every logger derived from it with
// WithField, so SetLevel and SetOutput apply to the whole family.
type sink struct {
	mu    sync.Mutex
	w     io.Writer
	level slog.LevelVar
}

func (s *sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// slogLogger implements Logger on top of a slog.Logger.
type slogLogger struct {
	sink   *sink
	logger *slog.Logger
}

// New creates a text logger on stderr at Info level.
func New() Logger {
	return NewWithOutput(os.Stderr)
}

// NewWithOutput creates a text logger with the specified output.
func NewWithOutput(w io.Writer) Logger {
	return NewWithFormat(w, "text")
}

// NewWithFormat creates a logger writing "json" or "text" records to w.
func NewWithFormat(w io.Writer, format string) Logger {
	s := &sink{w: w}
	s.level.Set(slog.LevelInfo)

	opts := &slog.HandlerOptions{
		Level: &s.level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && len(groups) == 0 {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == slogTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(s, opts)
	} else {
		handler = slog.NewTextHandler(s, opts)
	}
	return &slogLogger{sink: s, logger: slog.New(handler)}
}

func (l *slogLogger) log(level Level, msg string, args ...interface{}) {
	lvl := level.slog()
	ctx := context.Background()
	if !l.logger.Enabled(ctx, lvl) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.logger.Log(ctx, lvl, msg)
}

func (l *slogLogger) Trace(msg string, args ...interface{}) {
	l.log(LevelTrace, msg, args...)
}

func (l *slogLogger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

func (l *slogLogger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

func (l *slogLogger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

func (l *slogLogger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

func (l *slogLogger) WithField(key string, value interface{}) Logger {
	return &slogLogger{sink: l.sink, logger: l.logger.With(key, value)}
}

func (l *slogLogger) WithFields(fields map[string]interface{}) Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &slogLogger{sink: l.sink, logger: l.logger.With(args...)}
}

func (l *slogLogger) SetLevel(level Level) {
	l.sink.level.Set(level.slog())
}

func (l *slogLogger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.w = w
}

// NopLogger is a logger that discards all output.
// Useful for testing or when logging should be disabled.
type NopLogger struct{}

func (NopLogger) Trace(msg string, args ...interface{})             {}
func (NopLogger) Debug(msg string, args ...interface{})             {}
func (NopLogger) Info(msg string, args ...interface{})              {}
func (NopLogger) Warn(msg string, args ...interface{})              {}
func (NopLogger) Error(msg string, args ...interface{})             {}
func (n NopLogger) WithField(key string, value interface{}) Logger  { return n }
func (n NopLogger) WithFields(fields map[string]interface{}) Logger { return n }
func (NopLogger) SetLevel(level Level)                              {}
func (NopLogger) SetOutput(w io.Writer)                             {}
