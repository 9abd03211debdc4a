package route

import (
	"errors"
	"fmt"
	"sync"

	"github.com/orgoj/sentryroute/internal/config"
	"github.com/orgoj/sentryroute/internal/logger"
	"github.com/orgoj/sentryroute/internal/metrics"
)

// Manager dispatches batches of records to the configured routes.
type Manager struct {
	mu        sync.RWMutex
	routes    map[string]*SentryRoute
	order     []string
	registry  Registry
	appLogger *logger.AppLogger
}

// NewManager creates a route manager resolving components through registry.
func NewManager(registry Registry, appLogger *logger.AppLogger) *Manager {
	if appLogger == nil {
		appLogger = logger.GetAppLogger()
	}
	return &Manager{
		routes:    make(map[string]*SentryRoute),
		registry:  registry,
		appLogger: appLogger,
	}
}

// InitRoutes builds the enabled routes, replacing any existing ones.
func (m *Manager) InitRoutes(routes []config.LogRoute) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range m.order {
		if err := m.routes[name].Close(); err != nil {
			m.appLogger.Warn("Error closing existing route '%s' during re-initialization: %v", name, err)
		}
	}
	m.routes = make(map[string]*SentryRoute)
	m.order = nil

	var initErrors []error
	for _, cfg := range routes {
		if !cfg.Enabled {
			continue
		}

		var r *SentryRoute
		var err error
		switch cfg.Type {
		case "sentry":
			r, err = NewSentryRoute(cfg, m.registry, m.appLogger)
		default:
			err = fmt.Errorf("unsupported route type: %s", cfg.Type)
		}
		if err != nil {
			m.appLogger.Error("Failed to initialize log route '%s' (type: %s): %v", cfg.Name, cfg.Type, err)
			initErrors = append(initErrors, fmt.Errorf("route '%s': %w", cfg.Name, err))
			continue
		}

		m.routes[cfg.Name] = r
		m.order = append(m.order, cfg.Name)
		metrics.InitRoute(cfg.Name)
		m.appLogger.Info("Initialized log route '%s' (type: %s, component: %s)", cfg.Name, cfg.Type, r.ComponentName())
	}

	if len(initErrors) > 0 {
		return fmt.Errorf("failed to initialize some routes: %w", errors.Join(initErrors...))
	}
	return nil
}

// Flush hands records to every route in configuration order. Errors of all
// routes are joined.
func (m *Manager) Flush(records []Record) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for _, name := range m.order {
		if err := m.routes[name].Collect(records); err != nil {
			m.appLogger.Warn("Log route '%s' failed: %v", name, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetRoute returns the route named name, or nil.
func (m *Manager) GetRoute(name string) *SentryRoute {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.routes[name]
}

// RouteNames returns the route names in configuration order.
func (m *Manager) RouteNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// CloseAll closes all routes.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range m.order {
		if err := m.routes[name].Close(); err != nil {
			m.appLogger.Warn("Error closing log route '%s': %v", name, err)
		}
	}
	m.routes = make(map[string]*SentryRoute)
	m.order = nil
	m.appLogger.Info("Log routes closed.")
}
