package component

import (
	"sync"
	"time"

	"github.com/certifi/gocertifi"
	"github.com/getsentry/sentry-go"
	"github.com/orgoj/sentryroute/internal/config"
	"github.com/orgoj/sentryroute/internal/logger"
	"github.com/pkg/errors"
)

// ErrClientClosed is returned by a Client whose component has been closed.
var ErrClientClosed = errors.New("sentry client is closed")

// Client is the reporting side of a Sentry integration as seen by log routes.
type Client interface {
	// WithScope runs f with a scope that captures inside f may share.
	WithScope(f func(scope *sentry.Scope))
	// CaptureMessage reports message at level with the extras held by scope.
	CaptureMessage(message string, level sentry.Level, scope *sentry.Scope) error
}

// Reporter is a component that hands out a reporting Client.
type Reporter interface {
	Component
	Client() Client
}

// SentryComponent owns a sentry-go client and hub.
type SentryComponent struct {
	mu           sync.RWMutex
	name         string
	options      sentry.ClientOptions
	useBundledCA bool
	flushTimeout time.Duration
	hub          *sentry.Hub
	initialized  bool
	appLogger    *logger.AppLogger
}

// NewSentryComponent creates an uninitialized Sentry component.
func NewSentryComponent(cfg config.Component, appLogger *logger.AppLogger) (*SentryComponent, error) {
	if appLogger == nil {
		appLogger = logger.GetAppLogger()
	}

	flushTimeout := cfg.FlushTimeout
	if flushTimeout == "" {
		flushTimeout = config.DefaultFlushTimeout
	}
	timeout, err := config.ParseDuration(flushTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "invalid flush_timeout")
	}

	options := sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		ServerName:  cfg.ServerName,
		SampleRate:  cfg.SampleRate,
		Debug:       cfg.Debug,
	}
	if cfg.Debug {
		options.DebugWriter = logger.NewLineWriter(appLogger, logger.DEBUG, "[Sentry]")
	}

	return &SentryComponent{
		name:         cfg.Name,
		options:      options,
		useBundledCA: cfg.UseBundledCA,
		flushTimeout: timeout,
		appLogger:    appLogger,
	}, nil
}

// ConfigureOptions lets callers adjust client options before Init,
// e.g. to install a BeforeSend hook.
func (s *SentryComponent) ConfigureOptions(fn func(options *sentry.ClientOptions)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.options)
}

// Name returns the component ID from configuration.
func (s *SentryComponent) Name() string {
	return s.name
}

// Init creates the sentry client. Calling Init on an initialized component is a no-op.
func (s *SentryComponent) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	options := s.options
	if s.useBundledCA {
		pool, err := gocertifi.CACerts()
		if err != nil {
			return errors.Wrap(err, "failed to load bundled CA certificates")
		}
		options.CaCerts = pool
	}

	client, err := sentry.NewClient(options)
	if err != nil {
		return errors.Wrap(err, "failed to create sentry client")
	}

	s.hub = sentry.NewHub(client, sentry.NewScope())
	s.initialized = true
	return nil
}

// IsInitialized reports whether Init succeeded and Close has not been called.
func (s *SentryComponent) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Client returns the reporting client, or nil before Init.
func (s *SentryComponent) Client() Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil
	}
	return &hubClient{hub: s.hub}
}

// Close flushes queued events and detaches the client from the hub.
// Clients handed out earlier fail with ErrClientClosed afterwards.
func (s *SentryComponent) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil
	}
	s.initialized = false

	flushed := s.hub.Flush(s.flushTimeout)
	s.hub.BindClient(nil)
	if !flushed {
		return errors.Errorf("timed out after %s flushing events of '%s'", s.flushTimeout, s.name)
	}
	return nil
}

// hubClient adapts a sentry hub to Client.
type hubClient struct {
	hub *sentry.Hub
}

// WithScope hands f a clone of the hub's current scope rather than pushing
// onto the hub's stack, so concurrent batches never share a scope.
func (c *hubClient) WithScope(f func(scope *sentry.Scope)) {
	f(c.hub.Scope().Clone())
}

func (c *hubClient) CaptureMessage(message string, level sentry.Level, scope *sentry.Scope) error {
	client := c.hub.Client()
	if client == nil {
		return ErrClientClosed
	}
	scope.SetLevel(level)
	client.CaptureMessage(message, nil, scope)
	return nil
}
