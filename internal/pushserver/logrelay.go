package pushserver

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"go2tv.app/beamdeck/internal/domain"
)

// LogRelay is a slog.Handler that passes records on to next and also
// publishes those at or above level to clients as log events.
type LogRelay struct {
	next      slog.Handler
	publisher domain.Publisher
	level     slog.Leveler
	prefix    string
	attrs     []slog.Attr
}

func NewLogRelay(next slog.Handler, publisher domain.Publisher, level slog.Leveler) *LogRelay {
	if level == nil {
		level = slog.LevelInfo
	}
	return &LogRelay{next: next, publisher: publisher, level: level}
}

func (h *LogRelay) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level) || level >= h.level.Level()
}

func (h *LogRelay) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.next.Enabled(ctx, r.Level) {
		err = h.next.Handle(ctx, r)
	}
	if r.Level >= h.level.Level() && h.publisher != nil {
		h.publisher.Publish(domain.Event{Name: domain.EventLog, Data: h.render(r)})
	}
	return err
}

func (h *LogRelay) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	out.next = h.next.WithAttrs(attrs)
	out.attrs = append(append([]slog.Attr{}, h.attrs...), qualify(h.prefix, attrs)...)
	return &out
}

func (h *LogRelay) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := *h
	out.next = h.next.WithGroup(name)
	out.prefix = h.prefix + name + "."
	return &out
}

// render formats r as "message key=value ...".
func (h *LogRelay) render(r slog.Record) string {
	var b strings.Builder
	if r.Level >= slog.LevelWarn {
		b.WriteString(r.Level.String())
		b.WriteByte(' ')
	}
	b.WriteString(r.Message)

	write := func(a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return
		}
		if a.Value.Kind() == slog.KindGroup {
			for _, ga := range qualify(a.Key+".", a.Value.Group()) {
				writeAttr(&b, ga)
			}
			return
		}
		writeAttr(&b, a)
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		a.Key = h.prefix + a.Key
		write(a)
		return true
	})
	return b.String()
}

func writeAttr(b *strings.Builder, a slog.Attr) {
	b.WriteByte(' ')
	b.WriteString(a.Key)
	b.WriteByte('=')
	v := a.Value.String()
	if v == "" || strings.ContainsAny(v, " =\"") {
		v = strconv.Quote(v)
	}
	b.WriteString(v)
}

func qualify(prefix string, attrs []slog.Attr) []slog.Attr {
	if prefix == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		a.Key = prefix + a.Key
		out[i] = a
	}
	return out
}

var _ slog.Handler = (*LogRelay)(nil)
