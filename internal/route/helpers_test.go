package route

import (
	"fmt"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/orgoj/sentryroute/internal/component"
)

type capture struct {
	title string
	level sentry.Level
	scope *sentry.Scope
}

// fakeClient records captures; failAt and panicAt select the capture index
// that fails or panics (-1 disables).
type fakeClient struct {
	captures   []capture
	withScopes int
	failAt     int
	panicAt    int
	err        error
}

func newFakeClient() *fakeClient {
	return &fakeClient{failAt: -1, panicAt: -1}
}

func (c *fakeClient) WithScope(f func(scope *sentry.Scope)) {
	c.withScopes++
	f(sentry.NewScope())
}

func (c *fakeClient) CaptureMessage(message string, level sentry.Level, scope *sentry.Scope) error {
	idx := len(c.captures)
	if idx == c.panicAt {
		panic("transport exploded")
	}
	if idx == c.failAt {
		return c.err
	}
	c.captures = append(c.captures, capture{title: message, level: level, scope: scope})
	return nil
}

type fakeReporter struct {
	initialized bool
	client      component.Client
}

func (r *fakeReporter) Init() error              { r.initialized = true; return nil }
func (r *fakeReporter) IsInitialized() bool      { return r.initialized }
func (r *fakeReporter) Close() error             { r.initialized = false; return nil }
func (r *fakeReporter) Client() component.Client { return r.client }

// plainComponent is initialized but hands out no client.
type plainComponent struct{}

func (plainComponent) Init() error         { return nil }
func (plainComponent) IsInitialized() bool { return true }
func (plainComponent) Close() error        { return nil }

type fakeRegistry struct {
	components map[string]component.Component
	lookups    int
}

func (r *fakeRegistry) Lookup(name string) (component.Component, bool) {
	r.lookups++
	comp, ok := r.components[name]
	return comp, ok
}

func registryWith(name string, comp component.Component) *fakeRegistry {
	return &fakeRegistry{components: map[string]component.Component{name: comp}}
}

type traceRecorder struct {
	mu    sync.Mutex
	notes []string
}

func (t *traceRecorder) Trace(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notes = append(t.notes, fmt.Sprintf(format, args...))
}

func (t *traceRecorder) Notes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.notes...)
}

// eventRecorder collects events through BeforeSend and drops them before transport.
type eventRecorder struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (r *eventRecorder) beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) Events() []*sentry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*sentry.Event(nil), r.events...)
}
