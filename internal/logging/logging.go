// Package logging wraps zerolog with a guard so that logging never takes a run down.
//
// A Logger can be withdrawn by its owner (for example when the host unloads
// the fuzzer). After Withdraw every call is a silent no-op, and a panic raised
// by the underlying writer is swallowed.
package logging

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a guarded structured logger. The zero value and nil are no-ops.
type Logger struct {
	zl        zerolog.Logger
	withdrawn *atomic.Bool
	enabled   bool
}

// New returns a Logger writing JSON lines to w.
func New(w io.Writer, level zerolog.Level) *Logger {
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl, withdrawn: new(atomic.Bool), enabled: true}
}

// NewConsole returns a human readable Logger on stderr.
func NewConsole(verbose bool) *Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return New(w, level)
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{}
}

// With returns a child Logger carrying the key/value pairs. It shares the
// withdrawn flag with its parent.
func (l *Logger) With(kv ...any) *Logger {
	if !l.active() {
		return l
	}
	return &Logger{
		zl:        l.zl.With().Fields(kv).Logger(),
		withdrawn: l.withdrawn,
		enabled:   true,
	}
}

// Withdraw turns this Logger and all its children into no-ops.
func (l *Logger) Withdraw() {
	if l != nil && l.withdrawn != nil {
		l.withdrawn.Store(true)
	}
}

// Withdrawn reports whether Withdraw was called.
func (l *Logger) Withdrawn() bool {
	return l != nil && l.withdrawn != nil && l.withdrawn.Load()
}

func (l *Logger) Debug(msg string, kv ...any) {
	l.emit(zerolog.DebugLevel, nil, msg, kv)
}

func (l *Logger) Info(msg string, kv ...any) {
	l.emit(zerolog.InfoLevel, nil, msg, kv)
}

func (l *Logger) Warn(msg string, kv ...any) {
	l.emit(zerolog.WarnLevel, nil, msg, kv)
}

// Error logs msg with err attached.
func (l *Logger) Error(msg string, err error, kv ...any) {
	l.emit(zerolog.ErrorLevel, err, msg, kv)
}

func (l *Logger) active() bool {
	return l != nil && l.enabled && !l.withdrawn.Load()
}

func (l *Logger) emit(level zerolog.Level, err error, msg string, kv []any) {
	if !l.active() {
		return
	}
	defer func() {
		_ = recover()
	}()
	ev := l.zl.WithLevel(level)
	if ev == nil {
		return
	}
	if err != nil {
		ev = ev.Err(err)
	}
	if len(kv) > 0 {
		ev = ev.Fields(kv)
	}
	ev.Msg(msg)
}
