package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ColorTextHandler renders records as single console lines:
//
//	15:04:05 INFO  daemon listening addr=127.0.0.1:8420
//
// with the level tag colored by severity. Group names are flattened
// into dotted attribute keys.
type ColorTextHandler struct {
	mu      *sync.Mutex
	w       io.Writer
	level   slog.Leveler
	preform string // attrs accumulated via WithAttrs, rendered at add time
	prefix  string // dotted group path, empty or ends with '.'
}

func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *ColorTextHandler {
	h := &ColorTextHandler{mu: &sync.Mutex{}, w: w}
	if opts != nil {
		h.level = opts.Level
	}
	return h
}

func (h *ColorTextHandler) Enabled(_ context.Context, l slog.Level) bool {
	min := slog.LevelInfo
	if h.level != nil {
		min = h.level.Level()
	}
	return l >= min
}

func (h *ColorTextHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	if !r.Time.IsZero() {
		b.WriteString(r.Time.Format("15:04:05"))
		b.WriteByte(' ')
	}
	b.WriteString(levelTag(r.Level))
	b.WriteByte(' ')
	b.WriteString(r.Message)
	b.WriteString(h.preform)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs renders the attrs immediately with the group prefix in
// effect when they were added.
func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := h.clone()
	var b strings.Builder
	for _, a := range attrs {
		appendAttr(&b, h.prefix, a)
	}
	h2.preform += b.String()
	return h2
}

func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.prefix = h.prefix + name + "."
	return h2
}

// clone shares the writer and its mutex but copies the attr state.
func (h *ColorTextHandler) clone() *ColorTextHandler {
	return &ColorTextHandler{
		mu:      h.mu,
		w:       h.w,
		level:   h.level,
		preform: h.preform,
		prefix:  h.prefix,
	}
}

func levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "\033[31mERROR\033[0m" // red
	case l >= slog.LevelWarn:
		return "\033[33mWARN\033[0m " // yellow
	case l >= slog.LevelInfo:
		return "\033[32mINFO\033[0m " // green
	default:
		return "\033[36mDEBUG\033[0m" // cyan
	}
}

func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if a.Key == "" && v.Kind() != slog.KindGroup {
		return
	}
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			appendAttr(b, p, ga)
		}
		return
	}
	s := v.String()
	if strings.ContainsAny(s, " \t\"") {
		s = fmt.Sprintf("%q", s)
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(s)
}
