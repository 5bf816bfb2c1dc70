// Package logging provides the compact slog handler used by the daemon
// and the CLI.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

// componentKey is rendered as a "[name]" prefix instead of key=value.
const componentKey = "component"

// Options configures a Handler.
type Options struct {
	Level slog.Leveler
	Color bool
}

// Handler writes one line per record:
//
//	2024-03-04 12:00:00 INF [cron] host finished game=7 turn=12
type Handler struct {
	w         io.Writer
	mu        *sync.Mutex
	level     slog.Leveler
	color     bool
	component string
	prefix    string // group prefix for attribute keys
	attrs     string // pre-rendered WithAttrs output
}

// NewHandler creates a handler writing to w.
func NewHandler(w io.Writer, opts *Options) *Handler {
	if opts == nil {
		opts = &Options{}
	}
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{w: w, mu: &sync.Mutex{}, level: level, color: opts.Color}
}

// New returns a logger backed by a Handler.
func New(w io.Writer, opts *Options) *slog.Logger {
	return slog.New(NewHandler(w, opts))
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	ts := r.Time.Format("2006-01-02 15:04:05")
	lvl := levelLabel(r.Level)
	if h.color {
		sb.WriteString(ansiGray + ts + ansiReset + " " + colorLevel(r.Level, lvl))
	} else {
		sb.WriteString(ts + " " + lvl)
	}

	component := h.component
	var inline strings.Builder
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == componentKey && h.prefix == "" {
			component = a.Value.String()
			return true
		}
		h.writeAttr(&inline, h.prefix, a)
		return true
	})
	if component != "" {
		sb.WriteString(" [" + component + "]")
	}
	sb.WriteString(" " + r.Message)
	sb.WriteString(h.attrs)
	sb.WriteString(inline.String())
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	var sb strings.Builder
	for _, a := range attrs {
		if a.Key == componentKey && h.prefix == "" {
			nh.component = a.Value.String()
			continue
		}
		h.writeAttr(&sb, h.prefix, a)
	}
	nh.attrs = h.attrs + sb.String()
	return &nh
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

func (h *Handler) writeAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			h.writeAttr(sb, p, ga)
		}
		return
	}
	val := a.Value.String()
	if strings.ContainsAny(val, " \t\n\"") {
		val = fmt.Sprintf("%q", val)
	}
	if h.color {
		fmt.Fprintf(sb, " %s%s%s%s=%s", ansiGray, prefix, a.Key, ansiReset, val)
	} else {
		fmt.Fprintf(sb, " %s%s=%s", prefix, a.Key, val)
	}
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
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
	return 0, fmt.Errorf("unknown log level %q", s)
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERR"
	case level >= slog.LevelWarn:
		return "WRN"
	case level >= slog.LevelInfo:
		return "INF"
	default:
		return "DBG"
	}
}

func colorLevel(level slog.Level, label string) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed + label + ansiReset
	case level >= slog.LevelWarn:
		return ansiYellow + label + ansiReset
	case level >= slog.LevelInfo:
		return ansiCyan + label + ansiReset
	default:
		return ansiGray + label + ansiReset
	}
}
