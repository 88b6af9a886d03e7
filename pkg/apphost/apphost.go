// Package apphost provides a declarative application-topology model: resources
// are declared up front, then a two-phase startup sequence drives registered
// lifecycle hooks and allocates network endpoints.
package apphost

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gatehost/gatehost/pkg/observability"
)

// Mode represents the host execution mode.
type Mode int

const (
	// ModeRun executes the topology locally, starting live processes.
	ModeRun Mode = iota
	// ModePublish produces a deployment description without starting
	// live processes.
	ModePublish
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeRun:
		return "run"
	case ModePublish:
		return "publish"
	default:
		return "unknown"
	}
}

// LifecycleHook is invoked by the host at two points during startup:
// before any resource is started, and after network endpoints have been
// allocated for all resources.
type LifecycleHook interface {
	BeforeStart(ctx context.Context, model *Model) error
	AfterEndpointsAllocated(ctx context.Context, model *Model) error
}

// Builder accumulates the application topology before the host starts.
type Builder struct {
	mode       Mode
	configFile string
	logger     observability.Logger
	notifier   Notifier
	loggers    LoggerService
	resources  []Resource
	hooks      []LifecycleHook
	built      bool
}

// Option is a functional option for configuring the builder.
type Option func(*Builder)

// WithMode sets the host execution mode.
func WithMode(mode Mode) Option {
	return func(b *Builder) {
		b.mode = mode
	}
}

// WithConfigFile sets the path of the host's YAML configuration file.
// Named configuration sections are read from this file.
func WithConfigFile(path string) Option {
	return func(b *Builder) {
		b.configFile = path
	}
}

// WithLogger sets the host logger.
func WithLogger(logger observability.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithNotifier sets the resource notification service.
func WithNotifier(n Notifier) Option {
	return func(b *Builder) {
		b.notifier = n
	}
}

// WithLoggerService sets the per-resource logger service.
func WithLoggerService(s LoggerService) Option {
	return func(b *Builder) {
		b.loggers = s
	}
}

// NewBuilder creates a new topology builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		mode:     ModeRun,
		logger:   observability.NopLogger(),
		notifier: NewInMemoryNotifier(),
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.loggers == nil {
		b.loggers = &childLoggerService{base: b.logger}
	}

	return b
}

// Mode returns the configured execution mode.
func (b *Builder) Mode() Mode {
	return b.mode
}

// AddResource registers a resource in the topology.
func (b *Builder) AddResource(r Resource) error {
	if r == nil {
		return ErrNilResource
	}
	for _, existing := range b.resources {
		if existing.Name() == r.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicateResourceName, r.Name())
		}
	}
	b.resources = append(b.resources, r)
	return nil
}

// AddContainer registers an ordinary hosted resource and returns it for
// further configuration.
func (b *Builder) AddContainer(name string) (*Container, error) {
	c := &Container{name: name}
	if err := b.AddResource(c); err != nil {
		return nil, err
	}
	return c, nil
}

// AddLifecycleHook registers a startup lifecycle hook. Hooks run in
// registration order.
func (b *Builder) AddLifecycleHook(h LifecycleHook) {
	b.hooks = append(b.hooks, h)
}

// Resources returns the resources registered so far.
func (b *Builder) Resources() []Resource {
	return b.resources
}

// Build freezes the topology into a runnable application.
func (b *Builder) Build() (*App, error) {
	if b.built {
		return nil, ErrAlreadyBuilt
	}
	b.built = true

	model := &Model{
		mode:        b.mode,
		configFile:  b.configFile,
		resources:   b.resources,
		notifier:    b.notifier,
		loggers:     b.loggers,
		allocations: make(map[string][]AllocatedEndpoint),
	}

	return &App{
		model:  model,
		hooks:  b.hooks,
		logger: b.logger,
	}, nil
}

// Model is the frozen application model handed to lifecycle hooks.
type Model struct {
	mode       Mode
	configFile string
	resources  []Resource
	notifier   Notifier
	loggers    LoggerService

	mu          sync.RWMutex
	allocations map[string][]AllocatedEndpoint
}

// Mode returns the host execution mode.
func (m *Model) Mode() Mode {
	return m.mode
}

// ConfigFile returns the path of the host's YAML configuration file, or ""
// if none was configured.
func (m *Model) ConfigFile() string {
	return m.configFile
}

// Resources returns all resources in the model.
func (m *Model) Resources() []Resource {
	return m.resources
}

// Resource returns the resource with the given name.
func (m *Model) Resource(name string) (Resource, bool) {
	for _, r := range m.resources {
		if r.Name() == name {
			return r, true
		}
	}
	return nil, false
}

// Notifier returns the notification service.
func (m *Model) Notifier() Notifier {
	return m.notifier
}

// Loggers returns the per-resource logger service.
func (m *Model) Loggers() LoggerService {
	return m.loggers
}

// Endpoints returns the endpoints allocated to the named resource.
func (m *Model) Endpoints(resourceName string) []AllocatedEndpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allocations[resourceName]
}

// SetEndpoints records the allocated endpoints for the named resource,
// replacing any previous allocation.
func (m *Model) SetEndpoints(resourceName string, endpoints ...AllocatedEndpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocations[resourceName] = endpoints
}

// App is a built application topology.
type App struct {
	model   *Model
	hooks   []LifecycleHook
	logger  observability.Logger
	started atomic.Bool
}

// Model returns the application model.
func (a *App) Model() *Model {
	return a.model
}

// Start runs the startup sequence: BeforeStart hooks, the endpoint
// allocation pass, then AfterEndpointsAllocated hooks. Any hook error
// aborts startup.
func (a *App) Start(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	a.logger.Info("starting application",
		observability.String("mode", a.model.mode.String()),
		observability.Int("resources", len(a.model.resources)),
	)

	for _, h := range a.hooks {
		if err := h.BeforeStart(ctx, a.model); err != nil {
			return fmt.Errorf("before-start hook failed: %w", err)
		}
	}

	if a.model.mode == ModeRun {
		if err := a.allocateEndpoints(); err != nil {
			return fmt.Errorf("endpoint allocation failed: %w", err)
		}
	}

	for _, h := range a.hooks {
		if err := h.AfterEndpointsAllocated(ctx, a.model); err != nil {
			return fmt.Errorf("after-endpoints hook failed: %w", err)
		}
	}

	a.logger.Info("application started")

	return nil
}

// allocateEndpoints assigns loopback addresses to every endpoint annotation
// still present on a resource. Resources whose endpoint annotations were
// moved into a typed list by an earlier hook are skipped here.
func (a *App) allocateEndpoints() error {
	for _, r := range a.model.resources {
		annotated, ok := r.(Annotated)
		if !ok {
			continue
		}

		var allocated []AllocatedEndpoint
		for _, ann := range annotated.Annotations() {
			ep, ok := ann.(EndpointAnnotation)
			if !ok {
				continue
			}

			port := ep.Port
			if port == 0 {
				free, err := freeLoopbackPort()
				if err != nil {
					return fmt.Errorf("resource %s endpoint %s: %w", r.Name(), ep.Name, err)
				}
				port = free
			}

			scheme := ep.Scheme
			if scheme == "" {
				scheme = "http"
			}

			allocated = append(allocated, AllocatedEndpoint{
				Name:    ep.Name,
				Scheme:  scheme,
				Address: fmt.Sprintf("127.0.0.1:%d", port),
			})
		}

		if len(allocated) > 0 {
			a.model.SetEndpoints(r.Name(), allocated...)
			a.logger.Debug("allocated endpoints",
				observability.String("resource", r.Name()),
				observability.Int("count", len(allocated)),
			)
		}
	}

	return nil
}

// Stop tears the application down, closing hooks that hold resources in
// reverse registration order.
func (a *App) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(a.hooks) - 1; i >= 0; i-- {
		closer, ok := a.hooks[i].(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	a.logger.Info("application stopped")

	return firstErr
}

// freeLoopbackPort reserves and releases an ephemeral loopback port.
func freeLoopbackPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to reserve ephemeral port: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if err := ln.Close(); err != nil {
		return 0, fmt.Errorf("failed to release ephemeral port: %w", err)
	}
	return port, nil
}
