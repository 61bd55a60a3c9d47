// Package logger is the process-wide structured logger of offlinekit.
//
// Records go through log/slog, either as colored single-line text or as JSON.
// The *Ctx variants add the fields of the LogContext carried by ctx and the
// ids of the active trace span.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Levels accepted by SetLevel and the logging.level setting.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Config mirrors the logging section of the configuration file.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or a file path
}

// sink is where records end up and how they are encoded.
type sink struct {
	w      io.Writer
	closer io.Closer // set when the logger opened w itself
	color  bool
	json   bool
}

var (
	level = new(slog.LevelVar)

	mu      sync.RWMutex
	current sink
	slogger *slog.Logger
)

func init() {
	install(sink{w: os.Stdout, color: isTerminal(os.Stdout.Fd())})
}

// install swaps the sink and closes the previous one if the logger owns it.
func install(s sink) {
	var h slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if s.json {
		h = slog.NewJSONHandler(s.w, opts)
	} else {
		h = newTextHandler(s.w, level, s.color)
	}

	mu.Lock()
	prev := current
	current = s
	slogger = slog.New(h)
	mu.Unlock()

	if prev.closer != nil && prev.closer != s.closer {
		_ = prev.closer.Close()
	}
}

// ParseLevel maps a level name, in any case, to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// openOutput resolves an output setting. Files are appended to and never
// colored.
func openOutput(out string) (sink, error) {
	switch strings.ToLower(out) {
	case "", "stdout":
		return sink{w: os.Stdout, color: isTerminal(os.Stdout.Fd())}, nil
	case "stderr":
		return sink{w: os.Stderr, color: isTerminal(os.Stderr.Fd())}, nil
	}
	f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return sink{}, fmt.Errorf("failed to open log file %q: %w", out, err)
	}
	return sink{w: f, closer: f}, nil
}

// Init applies cfg. Empty fields keep their current value.
func Init(cfg Config) error {
	mu.RLock()
	s := current
	mu.RUnlock()

	if cfg.Output != "" {
		opened, err := openOutput(cfg.Output)
		if err != nil {
			return err
		}
		opened.json = s.json
		s = opened
	}
	if cfg.Format != "" {
		s.json = strings.EqualFold(cfg.Format, "json")
	}
	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	install(s)
	return nil
}

// InitWithWriter sends records to w. Used by tests and embedders.
func InitWithWriter(w io.Writer, lvl, format string, color bool) {
	if lvl != "" {
		SetLevel(lvl)
	}
	install(sink{w: w, color: color, json: strings.EqualFold(format, "json")})
}

// SetLevel changes the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	if l, err := ParseLevel(name); err == nil {
		level.Set(l)
	}
}

// SetFormat switches between "text" and "json". Other values are ignored.
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}
	mu.RLock()
	s := current
	mu.RUnlock()
	s.json = format == "json"
	install(s)
}

func get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

func logAt(ctx context.Context, lvl slog.Level, msg string, args []any) {
	if lvl < level.Level() {
		return
	}
	get().Log(ctx, lvl, msg, withContextFields(ctx, args)...)
}

// Debug logs msg with alternating key/value pairs or slog.Attr values.
func Debug(msg string, args ...any) { logAt(context.Background(), LevelDebug, msg, args) }

func Info(msg string, args ...any) { logAt(context.Background(), LevelInfo, msg, args) }

func Warn(msg string, args ...any) { logAt(context.Background(), LevelWarn, msg, args) }

func Error(msg string, args ...any) { logAt(context.Background(), LevelError, msg, args) }

// DebugCtx is Debug plus the fields carried by ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) { logAt(ctx, LevelDebug, msg, args) }

func InfoCtx(ctx context.Context, msg string, args ...any) { logAt(ctx, LevelInfo, msg, args) }

func WarnCtx(ctx context.Context, msg string, args ...any) { logAt(ctx, LevelWarn, msg, args) }

func ErrorCtx(ctx context.Context, msg string, args ...any) { logAt(ctx, LevelError, msg, args) }

// withContextFields puts trace ids and LogContext fields ahead of args.
func withContextFields(ctx context.Context, args []any) []any {
	if ctx == nil {
		return args
	}
	var fields []any
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields, KeyTraceID, sc.TraceID().String(), KeySpanID, sc.SpanID().String())
	}
	if lc := FromContext(ctx); lc != nil {
		fields = lc.appendFields(fields)
	}
	if len(fields) == 0 {
		return args
	}
	return append(fields, args...)
}

// With returns a logger bound to args.
func With(args ...any) *slog.Logger {
	return get().With(args...)
}

// Duration returns the milliseconds elapsed since start.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
