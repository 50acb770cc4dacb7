package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// CompactHandler formats logs in a compact, readable format for console output
// Format: [LEVEL] HH:MM:SS message | key=value key=value
type CompactHandler struct {
	opts   slog.HandlerOptions
	mu     *sync.Mutex
	out    io.Writer
	attrs  []slog.Attr // accumulated attributes from WithAttrs, already prefixed
	prefix string      // dotted group path from WithGroup
}

// NewCompactHandler creates a new compact console handler
func NewCompactHandler(w io.Writer, opts *slog.HandlerOptions) *CompactHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &CompactHandler{
		opts: *opts,
		mu:   &sync.Mutex{},
		out:  w,
	}
}

func (h *CompactHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *CompactHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 512)

	switch {
	case r.Level < slog.LevelDebug:
		buf = append(buf, "[TRACE] "...)
	case r.Level < slog.LevelInfo:
		buf = append(buf, "[DEBUG] "...)
	case r.Level < slog.LevelWarn:
		buf = append(buf, "[INFO]  "...)
	case r.Level < slog.LevelError:
		buf = append(buf, "[WARN]  "...)
	default:
		buf = append(buf, "[ERROR] "...)
	}

	if !r.Time.IsZero() {
		buf = append(buf, r.Time.Format("15:04:05")...)
		buf = append(buf, ' ')
	}
	buf = append(buf, r.Message...)

	first := true
	write := func(a slog.Attr) {
		if a.Equal(slog.Attr{}) {
			return
		}
		if first {
			buf = append(buf, " |"...)
			first = false
		}
		buf = append(buf, ' ')
		buf = h.appendAttr(buf, a)
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		write(a)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

func (h *CompactHandler) appendAttr(buf []byte, a slog.Attr) []byte {
	v := a.Value.Resolve()

	switch a.Key {
	case "requestID":
		// Request IDs are uuids; the first block is enough to correlate
		if s, ok := v.Any().(string); ok && len(s) > 8 {
			return append(append(buf, "req="...), s[:8]...)
		}
	case "durationMs":
		buf = append(buf, "duration="...)
		buf = append(buf, v.String()...)
		return append(buf, "ms"...)
	case "error":
		buf = append(buf, "error="...)
		return append(buf, fmt.Sprintf("%q", fmt.Sprint(v.Any()))...)
	}

	buf = append(buf, a.Key...)
	buf = append(buf, '=')

	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if needsQuoting(s) {
			buf = append(buf, fmt.Sprintf("%q", s)...)
		} else {
			buf = append(buf, s...)
		}
	case slog.KindFloat64:
		buf = append(buf, fmt.Sprintf("%g", v.Float64())...)
	case slog.KindDuration:
		buf = append(buf, v.Duration().String()...)
	case slog.KindTime:
		buf = append(buf, v.Time().Format(time.RFC3339)...)
	case slog.KindGroup:
		buf = append(buf, '{')
		for i, ga := range v.Group() {
			if i > 0 {
				buf = append(buf, ' ')
			}
			buf = h.appendAttr(buf, ga)
		}
		buf = append(buf, '}')
	default:
		buf = append(buf, v.String()...)
	}
	return buf
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '"' || r == '=' {
			return true
		}
	}
	return false
}

func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		merged = append(merged, a)
	}
	dup := *h
	dup.attrs = merged
	return &dup
}

func (h *CompactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	dup := *h
	dup.prefix = h.prefix + name + "."
	return &dup
}
