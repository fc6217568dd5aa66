// Package logger builds the slog logger used by the eisnet commands: a
// colored console handler on stderr and an optional rotating JSON log file.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits of the log file.
const (
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 28
)

type options struct {
	level   slog.Level
	console io.Writer
	noColor bool
	logFile string
}

// Option configures New.
type Option func(*options)

// WithLevel sets the minimum level of both handlers.
func WithLevel(level slog.Level) Option {
	return func(o *options) { o.level = level }
}

// WithConsole replaces stderr as the console destination.
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithNoColor disables ANSI colors on the console.
func WithNoColor(noColor bool) Option {
	return func(o *options) { o.noColor = noColor }
}

// WithLogFile additionally writes JSON records to a rotated file at path.
// An empty path disables the file.
func WithLogFile(path string) Option {
	return func(o *options) { o.logFile = path }
}

// New returns a logger and a close function that flushes the log file.
func New(opts ...Option) (*slog.Logger, func() error) {
	o := options{level: slog.LevelInfo, console: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	handlers := []slog.Handler{tint.NewHandler(o.console, &tint.Options{
		Level:      o.level,
		TimeFormat: time.Kitchen,
		NoColor:    o.noColor,
	})}
	closeFn := func() error { return nil }
	if o.logFile != "" {
		file := &lumberjack.Logger{
			Filename:   o.logFile,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		}
		handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: o.level}))
		closeFn = file.Close
	}
	if len(handlers) == 1 {
		return slog.New(handlers[0]), closeFn
	}
	return slog.New(fanout(handlers)), closeFn
}

// ParseLevel accepts debug, info, warn/warning and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logger: unknown level %q", s)
}

// fanout sends every record to all handlers that accept its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
