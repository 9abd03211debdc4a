package route

import (
	"regexp"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/orgoj/sentryroute/internal/component"
	"github.com/orgoj/sentryroute/internal/config"
	"github.com/orgoj/sentryroute/internal/metrics"
	"github.com/pkg/errors"
)

// Registry looks up host components by name.
type Registry interface {
	Lookup(name string) (component.Component, bool)
}

// Diagnostics receives the route's own trace notes.
type Diagnostics interface {
	Trace(format string, args ...interface{})
}

// SentryRoute forwards log records to the reporting client of a host component.
type SentryRoute struct {
	mu               sync.Mutex
	name             string
	componentName    string
	registry         Registry
	diag             Diagnostics
	filter           *Filter
	tracePattern     *regexp.Regexp
	attachStackTrace bool

	// resolved is set once the client lookup ran; client stays nil when it failed.
	resolved bool
	client   component.Client
}

// NewSentryRoute builds a route from configuration. The reporting component
// is looked up lazily, on the first non-empty batch.
func NewSentryRoute(cfg config.LogRoute, registry Registry, diag Diagnostics) (*SentryRoute, error) {
	componentName := cfg.SentryComponent
	if componentName == "" {
		componentName = config.DefaultSentryComponent
	}
	tracePattern := cfg.TracePattern
	if tracePattern == "" {
		tracePattern = config.DefaultTracePattern
	}
	pattern, err := regexp.Compile(tracePattern)
	if err != nil {
		return nil, errors.Wrapf(err, "route '%s': invalid trace_pattern", cfg.Name)
	}
	filter, err := NewFilter(cfg.Levels, cfg.Categories, cfg.Except)
	if err != nil {
		return nil, errors.Wrapf(err, "route '%s'", cfg.Name)
	}

	return &SentryRoute{
		name:             cfg.Name,
		componentName:    componentName,
		registry:         registry,
		diag:             diag,
		filter:           filter,
		tracePattern:     pattern,
		attachStackTrace: cfg.AttachStackTrace,
	}, nil
}

func (r *SentryRoute) Name() string {
	return r.name
}

// ComponentName returns the ID of the host component the route reports through.
func (r *SentryRoute) ComponentName() string {
	return r.componentName
}

// Collect filters records and forwards the rest.
func (r *SentryRoute) Collect(records []Record) error {
	metrics.RecordsReceived(r.name, len(records))
	accepted := r.filter.Apply(records)
	if len(records) > 0 && len(accepted) == 0 {
		metrics.BatchSkipped(r.name, metrics.ReasonFiltered)
		return nil
	}
	return r.ProcessLogs(accepted)
}

// ProcessLogs captures every record through the reporting client, in order,
// sharing one scope for the whole batch. Nothing is sent when the batch is
// empty or no client can be resolved. The first failed capture stops the
// batch; panics raised by the client are not recovered.
func (r *SentryRoute) ProcessLogs(records []Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(records) == 0 {
		metrics.BatchSkipped(r.name, metrics.ReasonEmpty)
		return nil
	}

	client, ok := r.resolveClient()
	if !ok {
		metrics.BatchSkipped(r.name, metrics.ReasonNoClient)
		return nil
	}

	var err error
	client.WithScope(func(scope *sentry.Scope) {
		for i, rec := range records {
			scope.SetExtras(map[string]interface{}{
				"category":  rec.Category,
				"timestamp": rec.Timestamp,
			})
			if r.attachStackTrace {
				if frames := r.StackTrace(rec.Message); len(frames) > 0 {
					scope.SetExtra("stack_trace", frames)
				} else {
					scope.RemoveExtra("stack_trace")
				}
			}

			severity := MapSeverity(rec.Level)
			if captureErr := client.CaptureMessage(Title(rec.Message), severity, scope); captureErr != nil {
				metrics.CaptureError(r.name)
				err = errors.Wrapf(captureErr, "route '%s': capture of record %d failed", r.name, i)
				return
			}
			metrics.RecordForwarded(r.name, string(severity))
		}
	})
	return err
}

// StackTrace parses the frames of a stack trace embedded in message using
// the route's trace pattern.
func (r *SentryRoute) StackTrace(message string) []Frame {
	return ParseStackTrace(r.tracePattern, message)
}

// resolveClient returns the cached reporting client, looking it up on first use.
// A failed lookup is cached too. Callers must hold r.mu.
func (r *SentryRoute) resolveClient() (component.Client, bool) {
	if !r.resolved {
		r.client = r.lookupClient()
		r.resolved = true
	}
	return r.client, r.client != nil
}

func (r *SentryRoute) lookupClient() component.Client {
	var comp component.Component
	ok := false
	if r.registry != nil {
		comp, ok = r.registry.Lookup(r.componentName)
	}
	if !ok || comp == nil {
		r.trace("Route '%s': component '%s' does not exist", r.name, r.componentName)
		return nil
	}

	reporter, ok := comp.(component.Reporter)
	if !ok || !reporter.IsInitialized() {
		r.trace("Route '%s': component '%s' not initialised", r.name, r.componentName)
		return nil
	}
	client := reporter.Client()
	if client == nil {
		r.trace("Route '%s': component '%s' not initialised", r.name, r.componentName)
		return nil
	}
	return client
}

func (r *SentryRoute) trace(format string, args ...interface{}) {
	if r.diag != nil {
		r.diag.Trace(format, args...)
	}
}

// Close drops the client; the route forwards nothing afterwards.
func (r *SentryRoute) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.client = nil
	r.resolved = true
	return nil
}
