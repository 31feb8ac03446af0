package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	charmlog "github.com/charmbracelet/log"
)

// ConsoleHandler renders records for humans through charmbracelet/log.
type ConsoleHandler struct {
	logger *charmlog.Logger
	w      io.Writer
	opts   ConsoleHandlerOptions
	attrs  []slog.Attr
	groups []string
}

// ConsoleHandlerOptions configures the console handler.
type ConsoleHandlerOptions struct {
	// Level is the minimum level to log.
	Level slog.Leveler
	// NoColor disables colored output.
	NoColor bool
	// TimeFormat is the format for timestamps.
	TimeFormat string
	// ShowCaller shows file:line in logs.
	ShowCaller bool
	// Prefix is prepended to all log messages.
	Prefix string
}

func consoleStyles() *charmlog.Styles {
	styles := charmlog.DefaultStyles()

	level := func(label, color string) lipgloss.Style {
		return lipgloss.NewStyle().SetString(label).Bold(true).Foreground(lipgloss.Color(color))
	}
	styles.Levels[charmlog.DebugLevel] = level("DEBU", "63")
	styles.Levels[charmlog.InfoLevel] = level("INFO", "42")
	styles.Levels[charmlog.WarnLevel] = level("WARN", "214")
	styles.Levels[charmlog.ErrorLevel] = level("ERRO", "196")

	styles.Key = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styles.Value = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	styles.Timestamp = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	styles.Prefix = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	return styles
}

// NewConsoleHandler creates a new charm-based console handler.
func NewConsoleHandler(w io.Writer, opts *ConsoleHandlerOptions) *ConsoleHandler {
	o := ConsoleHandlerOptions{}
	if opts != nil {
		o = *opts
	}
	if o.Level == nil {
		o.Level = slog.LevelInfo
	}
	if o.TimeFormat == "" {
		o.TimeFormat = time.TimeOnly
	}

	h := &ConsoleHandler{w: w, opts: o}
	h.logger = h.newCharm()
	return h
}

func (h *ConsoleHandler) newCharm() *charmlog.Logger {
	l := charmlog.NewWithOptions(h.w, charmlog.Options{
		ReportCaller:    h.opts.ShowCaller,
		ReportTimestamp: true,
		TimeFormat:      h.opts.TimeFormat,
		Prefix:          h.opts.Prefix,
		Level:           charmLogLevel(h.opts.Level.Level()),
	})
	if !h.opts.NoColor {
		l.SetStyles(consoleStyles())
	}
	return l
}

// Enabled implements slog.Handler.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	kvs := make([]any, 0, (len(h.attrs)+r.NumAttrs())*2)
	for _, a := range h.attrs {
		kvs = h.appendAttr(kvs, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		kvs = h.appendAttr(kvs, a)
		return true
	})

	switch {
	case r.Level >= slog.LevelError:
		h.logger.Error(r.Message, kvs...)
	case r.Level >= slog.LevelWarn:
		h.logger.Warn(r.Message, kvs...)
	case r.Level >= slog.LevelInfo:
		h.logger.Info(r.Message, kvs...)
	default:
		h.logger.Debug(r.Message, kvs...)
	}
	return nil
}

// appendAttr flattens groups with dot notation.
func (h *ConsoleHandler) appendAttr(kvs []any, a slog.Attr) []any {
	if a.Key == "" {
		return kvs
	}
	key := a.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		var parts []string
		for _, ga := range a.Value.Group() {
			parts = append(parts, fmt.Sprintf("%s=%v", ga.Key, formatSlogValue(ga.Value)))
		}
		if len(parts) == 0 {
			return kvs
		}
		return append(kvs, key, strings.Join(parts, " "))
	}
	return append(kvs, key, formatSlogValue(a.Value))
}

// WithAttrs implements slog.Handler.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	c.attrs = append(c.attrs, attrs...)
	return c
}

// WithGroup implements slog.Handler.
func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.groups = append(c.groups, name)
	return c
}

func (h *ConsoleHandler) clone() *ConsoleHandler {
	c := &ConsoleHandler{
		w:      h.w,
		opts:   h.opts,
		attrs:  append([]slog.Attr{}, h.attrs...),
		groups: append([]string{}, h.groups...),
	}
	c.logger = c.newCharm()
	return c
}

// formatSlogValue converts slog.Value to a display value.
func formatSlogValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	case slog.KindGroup:
		return "[group]"
	default:
		return v.Any()
	}
}

// charmLogLevel converts slog.Level to charmlog.Level.
func charmLogLevel(level slog.Level) charmlog.Level {
	switch {
	case level >= slog.LevelError:
		return charmlog.ErrorLevel
	case level >= slog.LevelWarn:
		return charmlog.WarnLevel
	case level >= slog.LevelInfo:
		return charmlog.InfoLevel
	default:
		return charmlog.DebugLevel
	}
}

// isTerminal checks if the writer is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}
