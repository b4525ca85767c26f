// Package log provides the structured logging used across ystore services.
// It is a thin layer over log/slog: a tinted console handler for terminals,
// JSON for everything else, and component-tagged child loggers.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Format selects the output encoding.
type Format int

const (
	// FormatText renders human-readable, colorized output on terminals.
	FormatText Format = iota
	// FormatJSON renders one JSON object per line.
	FormatJSON
)

// ParseFormat maps a config string to a Format.
func ParseFormat(s string) Format {
	if strings.EqualFold(s, "json") {
		return FormatJSON
	}
	return FormatText
}

// ParseLevel maps a config string to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, &InvalidLevelError{Value: s}
}

// InvalidLevelError reports an unknown level string.
type InvalidLevelError struct {
	Value string
}

func (e *InvalidLevelError) Error() string {
	return "log: invalid level " + e.Value + " (use debug|info|warn|error)"
}

// Options configures a Logger.
type Options struct {
	Level  slog.Level
	Format Format
	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// Logger wraps slog with component tagging.
type Logger struct {
	s *slog.Logger
}

// New builds a Logger per opts.
func New(opts Options) *Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	var h slog.Handler
	if opts.Format == FormatJSON {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level})
	} else {
		noColor := true
		if f, ok := w.(*os.File); ok {
			noColor = !isatty.IsTerminal(f.Fd())
			w = colorable.NewColorable(f)
		}
		h = tint.NewHandler(w, &tint.Options{
			Level:      opts.Level,
			TimeFormat: "15:04:05.000",
			NoColor:    noColor,
		})
	}
	return &Logger{s: slog.New(h)}
}

// FromEnv builds a Logger from YSTORE_LOG_LEVEL and YSTORE_LOG_FORMAT.
func FromEnv() *Logger {
	level, err := ParseLevel(os.Getenv("YSTORE_LOG_LEVEL"))
	if err != nil {
		level = slog.LevelInfo
	}
	return New(Options{Level: level, Format: ParseFormat(os.Getenv("YSTORE_LOG_FORMAT"))})
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{s: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// Slog exposes the underlying slog.Logger for libraries that want one.
func (l *Logger) Slog() *slog.Logger { return l.s }

// With returns a child logger carrying additional key-value attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{s: l.s.With(args...)}
}

// WithComponent tags the logger with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

func (l *Logger) Debug(msg string, args ...any) { l.s.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.s.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.s.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.s.Error(msg, args...) }
