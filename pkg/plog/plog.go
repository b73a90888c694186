package plog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Level mirrors slog.Level so callers don't have to import log/slog.
type Level = slog.Level

const (
	LevelDebug Level = slog.LevelDebug
	LevelInfo  Level = slog.LevelInfo
	// LevelChange is used for every create, copy, rename and delete, real or
	// simulated, and for the end-of-run summary.
	LevelChange Level = 2
	LevelWarn   Level = slog.LevelWarn
	LevelError  Level = slog.LevelError
)

// LevelDispatchHandler is a slog.Handler that writes log records to different
// handlers based on the record's level. CHANGE and below go to one handler,
// while WARNING and above go to another.
type LevelDispatchHandler struct {
	stdoutHandler slog.Handler
	stderrHandler slog.Handler
}

// Enabled checks if the level is enabled for either of the underlying handlers.
func (h *LevelDispatchHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.stdoutHandler.Enabled(ctx, level) || h.stderrHandler.Enabled(ctx, level)
}

// Handle dispatches the record to the appropriate handler.
func (h *LevelDispatchHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		return h.stderrHandler.Handle(ctx, r)
	}
	return h.stdoutHandler.Handle(ctx, r)
}

// WithAttrs returns a new LevelDispatchHandler with the given attributes added.
func (h *LevelDispatchHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LevelDispatchHandler{
		stdoutHandler: h.stdoutHandler.WithAttrs(attrs),
		stderrHandler: h.stderrHandler.WithAttrs(attrs),
	}
}

// WithGroup returns a new LevelDispatchHandler with the given group.
func (h *LevelDispatchHandler) WithGroup(name string) slog.Handler {
	return &LevelDispatchHandler{
		stdoutHandler: h.stdoutHandler.WithGroup(name),
		stderrHandler: h.stderrHandler.WithGroup(name),
	}
}

// fanoutHandler hands every record to all of its handlers.
type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// Options configures the console and file outputs set up by Configure.
type Options struct {
	Level Level
	// Color forces colored console output. When false, color is still used
	// if stdout is a terminal and NoColor is not set.
	Color   bool
	NoColor bool
	// File, when non-nil, receives a plain-text copy of every record.
	File io.Writer
}

var defaultLogger atomic.Pointer[slog.Logger]
var level = new(slog.LevelVar)

func init() {
	Configure(Options{Level: LevelChange})
}

// Configure replaces the global logger with console handlers split by level
// and an optional file handler.
func Configure(opts Options) {
	level.Set(opts.Level)
	useColor := !opts.NoColor && (opts.Color || isatty.IsTerminal(os.Stdout.Fd()))

	console := func(w io.Writer, minLevel slog.Leveler) slog.Handler {
		return tint.NewHandler(w, &tint.Options{
			Level:       minLevel,
			TimeFormat:  time.TimeOnly,
			NoColor:     !useColor,
			ReplaceAttr: replaceLevelName(true),
		})
	}

	var handler slog.Handler = &LevelDispatchHandler{
		stdoutHandler: console(os.Stdout, level),
		stderrHandler: console(os.Stderr, maxLeveler{level, slog.LevelWarn}),
	}
	if opts.File != nil {
		handler = fanoutHandler{handler, slog.NewTextHandler(opts.File, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: replaceLevelName(false),
		})}
	}
	defaultLogger.Store(slog.New(handler))
}

// SetOutput allows redirecting the logger's output, primarily for testing.
func SetOutput(w io.Writer) {
	defaultLogger.Store(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelName(false),
	})))
}

// SetLevel sets the minimum level that is logged.
func SetLevel(l Level) {
	level.Set(l)
}

// GetLevel returns the current minimum level.
func GetLevel() Level {
	return level.Level()
}

// LevelFromString maps a level name to a Level. Unknown names map to LevelChange.
func LevelFromString(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelChange
	}
}

// Enabled reports whether a record at l would be written.
func Enabled(l Level) bool {
	return defaultLogger.Load().Enabled(context.Background(), l)
}

func logAt(l Level, msg string, args ...any) {
	defaultLogger.Load().Log(context.Background(), l, msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) { logAt(LevelDebug, msg, args...) }

// Info logs an informational message.
func Info(msg string, args ...any) { logAt(LevelInfo, msg, args...) }

// Change logs a change made (or, in dry-run, planned) to the destination.
func Change(msg string, args ...any) { logAt(LevelChange, msg, args...) }

// Warn logs a warning message.
func Warn(msg string, args ...any) { logAt(LevelWarn, msg, args...) }

// Error logs an error message.
func Error(msg string, args ...any) { logAt(LevelError, msg, args...) }

// maxLeveler enables a level only if it passes both levelers.
type maxLeveler struct {
	a, b slog.Leveler
}

func (m maxLeveler) Level() slog.Level {
	return max(m.a.Level(), m.b.Level())
}

func replaceLevelName(short bool) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key != slog.LevelKey || len(groups) > 0 {
			return a
		}
		if l, ok := a.Value.Any().(slog.Level); ok && l == LevelChange {
			if short {
				return slog.String(slog.LevelKey, "CHG")
			}
			return slog.String(slog.LevelKey, "CHANGE")
		}
		return a
	}
}
