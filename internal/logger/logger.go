// Package logger builds the process-wide slog.Logger. JSON output for
// machines, a compact colored console format for humans.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config selects output, format and verbosity.
type Config struct {
	Writer    io.Writer
	Format    string
	Level     slog.Level
	AddSource bool
}

// New creates a logger. An empty format picks console when the writer
// is a terminal-ish default, callers wanting JSON say so explicitly.
func New(cfg Config) *slog.Logger {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.Format == "" {
		cfg.Format = FormatConsole
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if source, ok := a.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(cfg.Writer, opts)
	} else {
		handler = newConsoleHandler(cfg.Writer, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a config string to a slog.Level. Unknown values
// fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[37m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

// consoleHandler renders records as one colored line:
// [TIME] LVL message key=value ...
type consoleHandler struct {
	opts   *slog.HandlerOptions
	writer io.Writer
	attrs  []slog.Attr
}

func newConsoleHandler(w io.Writer, opts *slog.HandlerOptions) *consoleHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &consoleHandler{opts: opts, writer: w}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 1024)

	buf = append(buf, colorDim...)
	buf = append(buf, r.Time.Format("15:04:05")...)
	buf = append(buf, colorReset...)
	buf = append(buf, ' ')

	levelStr, levelColor := levelTag(r.Level)
	buf = append(buf, levelColor...)
	buf = append(buf, levelStr...)
	buf = append(buf, colorReset...)
	buf = append(buf, ' ')

	if h.opts.AddSource && r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		buf = append(buf, colorDim...)
		buf = append(buf, filepath.Base(f.File)...)
		buf = append(buf, ':')
		buf = append(buf, strconv.Itoa(f.Line)...)
		buf = append(buf, colorReset...)
		buf = append(buf, ' ')
	}

	buf = append(buf, colorBold...)
	buf = append(buf, r.Message...)
	buf = append(buf, colorReset...)

	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	if len(attrs) > 0 {
		buf = append(buf, ' ')
		buf = append(buf, colorCyan...)
		for i, attr := range attrs {
			if i > 0 {
				buf = append(buf, ' ')
			}
			buf = append(buf, attr.Key...)
			buf = append(buf, '=')
			buf = append(buf, attrValue(attr.Value)...)
		}
		buf = append(buf, colorReset...)
	}

	buf = append(buf, '\n')
	_, err := h.writer.Write(buf)
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &consoleHandler{opts: h.opts, writer: h.writer, attrs: merged}
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	// Groups are rare in this codebase; flatten them.
	return h
}

func levelTag(level slog.Level) (tag, color string) {
	switch level {
	case slog.LevelDebug:
		return "DBG", colorPurple
	case slog.LevelInfo:
		return "INF", colorGreen
	case slog.LevelWarn:
		return "WRN", colorYellow
	case slog.LevelError:
		return "ERR", colorRed
	default:
		return level.String(), colorGray
	}
}

func attrValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	default:
		return v.String()
	}
}
