// Package logger builds the structured logger shared by the binaries:
// slog JSON or text output to stdout, a rotated file, or both, with the
// active trace and span ids attached to every record logged with a context.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Service   string
	Env       string
	Level     string
	Format    string // json or text
	Output    string // stdout, file or both
	FilePath  string
	MaxSizeMB int
	MaxBackup int
	MaxAgeDay int
	Compress  bool
	AddSource bool
}

func New(opts Options) (*slog.Logger, error) {
	out, err := writer(opts)
	if err != nil {
		return nil, err
	}

	base := slog.New(newHandler(out, opts)).With(
		"service", opts.Service,
		"env", opts.Env,
	)
	slog.SetDefault(base)
	return base, nil
}

func writer(opts Options) (io.Writer, error) {
	output := strings.ToLower(strings.TrimSpace(opts.Output))
	if output == "" || output == "stdout" {
		return os.Stdout, nil
	}

	if opts.FilePath == "" {
		return nil, fmt.Errorf("log output %q requires a file path", opts.Output)
	}
	if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory failed: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackup,
		MaxAge:     opts.MaxAgeDay,
		Compress:   opts.Compress,
	}

	switch output {
	case "file":
		return file, nil
	case "both":
		return io.MultiWriter(os.Stdout, file), nil
	default:
		return nil, fmt.Errorf("unknown log output %q", opts.Output)
	}
}

func newHandler(w io.Writer, opts Options) slog.Handler {
	handlerOpts := &slog.HandlerOptions{
		Level:     parseLevel(opts.Level),
		AddSource: opts.AddSource,
	}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		h = slog.NewTextHandler(w, handlerOpts)
	} else {
		h = slog.NewJSONHandler(w, handlerOpts)
	}
	return traceHandler{h}
}

func parseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type traceHandler struct {
	slog.Handler
}

func (h traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceHandler{h.Handler.WithAttrs(attrs)}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{h.Handler.WithGroup(name)}
}
