// Package component keeps the named host components that log routes look up
// at runtime, such as the Sentry reporting integration.
package component

import (
	"sort"
	"sync"

	"github.com/orgoj/sentryroute/internal/config"
	"github.com/orgoj/sentryroute/internal/logger"
	"github.com/pkg/errors"
)

// Component is an independently configured service instance managed by the Registry.
type Component interface {
	// Init prepares the component. A component whose Init failed stays
	// registered and reports IsInitialized() == false.
	Init() error
	IsInitialized() bool
	Close() error
}

// Registry handles the lifecycle of, and lookup by name of, host components.
type Registry struct {
	mu         sync.RWMutex
	components map[string]Component
	order      []string
	appLogger  *logger.AppLogger
}

// NewRegistry creates an empty registry.
func NewRegistry(appLogger *logger.AppLogger) *Registry {
	if appLogger == nil {
		appLogger = logger.GetAppLogger()
	}
	return &Registry{
		components: make(map[string]Component),
		appLogger:  appLogger,
	}
}

// InitComponents creates and initializes components from configuration.
// Disabled components are registered without being initialized.
func (r *Registry) InitComponents(cfgs []config.Component) error {
	var initErrors []error
	for _, cfg := range cfgs {
		var comp Component
		switch cfg.Type {
		case "sentry":
			sc, err := NewSentryComponent(cfg, r.appLogger)
			if err != nil {
				r.appLogger.Error("Failed to create component '%s' (type: %s): %v", cfg.Name, cfg.Type, err)
				initErrors = append(initErrors, errors.Wrapf(err, "component '%s'", cfg.Name))
				continue
			}
			comp = sc
		default:
			err := errors.Errorf("unsupported component type: %s", cfg.Type)
			r.appLogger.Error("Failed to create component '%s': %v", cfg.Name, err)
			initErrors = append(initErrors, err)
			continue
		}

		r.Register(cfg.Name, comp)

		if !cfg.Enabled {
			r.appLogger.Info("Component '%s' is disabled, registered without initialization", cfg.Name)
			continue
		}
		if err := comp.Init(); err != nil {
			r.appLogger.Error("Failed to initialize component '%s' (type: %s): %v", cfg.Name, cfg.Type, err)
			initErrors = append(initErrors, errors.Wrapf(err, "component '%s'", cfg.Name))
			continue
		}
		r.appLogger.Info("Initialized component '%s' (type: %s)", cfg.Name, cfg.Type)
	}

	if len(initErrors) > 0 {
		return errors.Errorf("failed to initialize some components: %v", initErrors)
	}
	return nil
}

// Register adds or replaces a component under name.
func (r *Registry) Register(name string, comp Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.components[name]; !exists {
		r.order = append(r.order, name)
	}
	r.components[name] = comp
}

// Has reports whether a component named name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.components[name]
	return ok
}

// Lookup returns the component registered as name.
func (r *Registry) Lookup(name string) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	comp, ok := r.components[name]
	return comp, ok
}

// Names returns the registered component names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// CloseAll closes every component in reverse registration order.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		if err := r.components[name].Close(); err != nil {
			r.appLogger.Warn("Error closing component '%s': %v", name, err)
		}
	}
	r.appLogger.Info("Components closed.")
}
