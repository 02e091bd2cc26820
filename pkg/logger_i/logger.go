package logger_i

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/akolanti/GoChunker/internal/config"
)

// Logger resolves the process default handler on every call, so package
// level loggers created before Init still pick up its settings.
type Logger struct {
	attrs []any
}

type Options struct {
	Level  slog.Level
	JSON   bool
	Writer io.Writer
}

func Init() {
	options := Options{Level: slog.LevelDebug}
	if config.IS_PROD {
		options.Level = config.LOG_LEVEL_PROD
		options.JSON = true
	}
	if lvl, ok := ParseLevel(os.Getenv("LOG_LEVEL")); ok {
		options.Level = lvl
	}
	InitWithOptions(options)
}

// InitWithOptions replaces the process default logger. Loggers created
// before the call keep their old handler.
func InitWithOptions(o Options) {
	w := o.Writer
	if w == nil {
		w = os.Stdout
	}
	handlerOptions := &slog.HandlerOptions{Level: o.Level, AddSource: o.Level <= slog.LevelDebug}

	var handler slog.Handler
	if o.JSON {
		handler = slog.NewJSONHandler(w, handlerOptions)
	} else {
		handler = slog.NewTextHandler(w, handlerOptions)
	}
	slog.SetDefault(slog.New(handler))
}

func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func NewLogger(section string) *Logger {
	return &Logger{
		attrs: []any{"component", section},
	}
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	handler := slog.Default().Handler()
	if !handler.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	// skip runtime.Callers, log and the level wrapper so the record points at the caller
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(l.attrs...)
	r.Add(args...)
	_ = handler.Handle(ctx, r)
}

func (l *Logger) With(args ...any) *Logger {
	attrs := make([]any, 0, len(l.attrs)+len(args))
	attrs = append(attrs, l.attrs...)
	return &Logger{
		attrs: append(attrs, args...),
	}
}

// WithTrace attaches the trace id carried by ctx, if any.
func (l *Logger) WithTrace(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	if trace, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok && trace != "" {
		return l.With("traceId", trace)
	}
	return l
}
