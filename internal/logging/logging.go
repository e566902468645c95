// Package logging provides the default Logger implementation the engine
// uses when a host application doesn't supply its own: a thin wrapper
// over zerolog.Logger, grounded on the zerolog field wiring in
// other_examples' httprunner-video-downloader downloader.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Field is a single structured key/value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// Str builds a string Field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int builds an int Field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Logger is the leveled, scoped interface the engine consumes. Hosts may
// supply their own implementation; this package's zerolog-backed one is
// only the default.
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	// For returns a child logger with taskID/threadID bound as
	// structured fields, if present.
	For(taskID string, hasTaskID bool, threadID uint8, hasThreadID bool) Logger
}

// ZerologLogger implements Logger over a zerolog.Logger.
type ZerologLogger struct {
	log zerolog.Logger
}

// New builds a ZerologLogger writing to w (os.Stdout if nil).
func New(w io.Writer) *ZerologLogger {
	if w == nil {
		w = os.Stdout
	}
	return &ZerologLogger{log: zerolog.New(w).With().Timestamp().Logger()}
}

func (l *ZerologLogger) Info(msg string, fields ...Field) {
	ev := l.log.Info()
	applyFields(ev, fields)
	ev.Msg(msg)
}

func (l *ZerologLogger) Error(msg string, err error, fields ...Field) {
	ev := l.log.Error().Err(err)
	applyFields(ev, fields)
	ev.Msg(msg)
}

func (l *ZerologLogger) For(taskID string, hasTaskID bool, threadID uint8, hasThreadID bool) Logger {
	ctx := l.log.With()
	if hasTaskID {
		ctx = ctx.Str("task_id", taskID)
	}
	if hasThreadID {
		ctx = ctx.Uint8("thread_id", threadID)
	}
	return &ZerologLogger{log: ctx.Logger()}
}

func applyFields(ev *zerolog.Event, fields []Field) {
	for _, f := range fields {
		ev.Interface(f.Key, f.Value)
	}
}

// Noop is a Logger that discards everything; useful for tests that don't
// care about log output.
type Noop struct{}

func (Noop) Info(string, ...Field)             {}
func (Noop) Error(string, error, ...Field)     {}
func (n Noop) For(string, bool, uint8, bool) Logger { return n }
