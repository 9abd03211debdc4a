package route

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/orgoj/sentryroute/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushRecorder struct {
	mu      sync.Mutex
	batches [][]Record
	err     error
}

func (f *flushRecorder) Flush(records []Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, records)
	return f.err
}

func (f *flushRecorder) Batches() [][]Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]Record(nil), f.batches...)
}

func TestHandler_ConvertsRecords(t *testing.T) {
	flusher := &flushRecorder{}
	h := NewHandler(flusher, &HandlerOptions{Level: slog.LevelDebug})
	log := slog.New(h)

	log.Debug("cache miss", "key", "user:1")
	log.Info("request served", slog.String(CategoryKey, "system.web"), slog.Int("status", 200))
	log.Warn("slow query")
	log.Error("boom", slog.Group("req", slog.String("id", "abc")))
	require.NoError(t, h.Flush())

	batches := flusher.Batches()
	require.Len(t, batches, 1)
	records := batches[0]
	require.Len(t, records, 4)

	assert.Equal(t, Record{Message: "cache miss key=user:1", Level: "debug", Category: "application", Timestamp: records[0].Timestamp}, records[0])
	assert.Equal(t, "request served status=200", records[1].Message)
	assert.Equal(t, "info", records[1].Level)
	assert.Equal(t, "system.web", records[1].Category)
	assert.Equal(t, "warning", records[2].Level)
	assert.Equal(t, "boom req.id=abc", records[3].Message)
	assert.Equal(t, "error", records[3].Level)

	now := float64(time.Now().UnixNano()) / float64(time.Second)
	assert.InDelta(t, now, records[0].Timestamp, 60)
}

func TestHandler_Enabled(t *testing.T) {
	h := NewHandler(&flushRecorder{}, nil)
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))

	h = NewHandler(&flushRecorder{}, &HandlerOptions{Level: slog.LevelError})
	assert.False(t, h.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestHandler_AutoFlush(t *testing.T) {
	flusher := &flushRecorder{}
	h := NewHandler(flusher, &HandlerOptions{AutoFlush: 2})
	log := slog.New(h)

	log.Info("one")
	assert.Empty(t, flusher.Batches())
	assert.Equal(t, 1, h.Buffered())

	log.Info("two")
	batches := flusher.Batches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
	assert.Equal(t, 0, h.Buffered())

	require.NoError(t, h.Flush())
	assert.Len(t, flusher.Batches(), 1, "flushing an empty buffer is a no-op")
}

func TestHandler_DefaultAutoFlush(t *testing.T) {
	h := NewHandler(nil, nil)
	assert.Equal(t, DefaultAutoFlush, h.opts.AutoFlush)
	assert.NoError(t, h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "x", 0)))
	assert.NoError(t, h.Flush(), "a handler without flusher drops records")
}

func TestHandler_FlushError(t *testing.T) {
	flusher := &flushRecorder{err: errors.New("route failed")}
	h := NewHandler(flusher, &HandlerOptions{AutoFlush: 1})

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, "x", 0))
	assert.EqualError(t, err, "route failed")
}

func TestHandler_WithAttrsAndGroup(t *testing.T) {
	flusher := &flushRecorder{}
	base := NewHandler(flusher, &HandlerOptions{Category: "worker"})
	log := slog.New(base).With("job", "import").WithGroup("db")

	log.Info("done", "rows", 10)
	slog.New(base).With(CategoryKey, "system.queue").Info("dequeued")
	require.NoError(t, base.Flush())

	batches := flusher.Batches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2, "derived handlers share the buffer")
	assert.Equal(t, "done job=import db.rows=10", batches[0][0].Message)
	assert.Equal(t, "worker", batches[0][0].Category)
	assert.Equal(t, "dequeued", batches[0][1].Message)
	assert.Equal(t, "system.queue", batches[0][1].Category)
}

func TestHandler_IntoRoute(t *testing.T) {
	client := newFakeClient()
	r := newTestRoute(t, config.LogRoute{Name: "errors"}, registryWith("sentry", &fakeReporter{initialized: true, client: client}), nil)

	h := NewHandler(flusherFunc(r.Collect), &HandlerOptions{AutoFlush: 1})
	slog.New(h).Error("payment failed: 100% declined", CategoryKey, "application.billing")

	require.Len(t, client.captures, 1)
	assert.Equal(t, "payment failed: 100%% declined", client.captures[0].title)
}

type flusherFunc func(records []Record) error

func (f flusherFunc) Flush(records []Record) error { return f(records) }
