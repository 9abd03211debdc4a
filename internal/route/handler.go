package route

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultAutoFlush is the number of buffered records that triggers a flush.
const DefaultAutoFlush = 10000

// CategoryKey is the attribute that sets a record's category.
const CategoryKey = "category"

// Flusher receives buffered records.
type Flusher interface {
	Flush(records []Record) error
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	// Level is the minimum level handled. Defaults to slog.LevelInfo.
	Level slog.Leveler
	// Category is used for records without a category attribute.
	Category string
	// AutoFlush is the buffer size that triggers a flush. Defaults to DefaultAutoFlush.
	AutoFlush int
}

// Handler is a slog.Handler that buffers records and hands them to a Flusher.
type Handler struct {
	opts   HandlerOptions
	attrs  []slog.Attr
	groups []string
	buf    *buffer
}

type buffer struct {
	mu      sync.Mutex
	records []Record
	flusher Flusher
}

// NewHandler creates a Handler flushing into flusher.
func NewHandler(flusher Flusher, opts *HandlerOptions) *Handler {
	h := &Handler{buf: &buffer{flusher: flusher}}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelInfo
	}
	if h.opts.AutoFlush <= 0 {
		h.opts.AutoFlush = DefaultAutoFlush
	}
	if h.opts.Category == "" {
		h.opts.Category = "application"
	}
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	rec := h.convert(r)

	h.buf.mu.Lock()
	h.buf.records = append(h.buf.records, rec)
	full := len(h.buf.records) >= h.opts.AutoFlush
	h.buf.mu.Unlock()

	if full {
		return h.Flush()
	}
	return nil
}

// Flush hands all buffered records to the flusher.
func (h *Handler) Flush() error {
	h.buf.mu.Lock()
	records := h.buf.records
	h.buf.records = nil
	h.buf.mu.Unlock()

	if len(records) == 0 || h.buf.flusher == nil {
		return nil
	}
	return h.buf.flusher.Flush(records)
}

// Buffered returns the number of records waiting for a flush.
func (h *Handler) Buffered() int {
	h.buf.mu.Lock()
	defer h.buf.mu.Unlock()
	return len(h.buf.records)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		h2.attrs = append(h2.attrs, h.qualify(a))
	}
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(append([]string(nil), h.groups...), name)
	return &h2
}

// qualify prefixes the key of a with the open groups.
func (h *Handler) qualify(a slog.Attr) slog.Attr {
	if len(h.groups) == 0 {
		return a
	}
	a.Key = strings.Join(h.groups, ".") + "." + a.Key
	return a
}

func (h *Handler) convert(r slog.Record) Record {
	category := h.opts.Category
	var b strings.Builder
	b.WriteString(r.Message)

	add := func(a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return
		}
		if a.Key == CategoryKey {
			category = a.Value.String()
			return
		}
		appendAttr(&b, "", a)
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(h.qualify(a))
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	return Record{
		Message:   b.String(),
		Level:     levelName(r.Level),
		Category:  category,
		Timestamp: float64(ts.UnixNano()) / float64(time.Second),
	}
}

func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			appendAttr(b, key, ga)
		}
		return
	}
	fmt.Fprintf(b, " %s=%v", key, a.Value.Any())
}

func levelName(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warning"
	default:
		return "error"
	}
}
