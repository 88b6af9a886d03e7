package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gatehost/gatehost/internal/gwserver"
	"github.com/gatehost/gatehost/pkg/apphost"
	"github.com/gatehost/gatehost/pkg/observability"
	"github.com/gatehost/gatehost/pkg/proxyconfig"
)

// resourceType is the resource type recorded in published snapshots.
const resourceType = "gateway"

// shutdownTimeout bounds server teardown during host shutdown.
const shutdownTimeout = 30 * time.Second

// ProxyResource is the gateway resource as the orchestrator consumes it:
// declared routes and clusters, the optional external configuration
// section, environment declarations, and endpoint ownership transfer.
type ProxyResource interface {
	apphost.Resource
	RouteTable() *proxyconfig.Config
	ConfigSection() string
	Environment() []apphost.EnvDecl
	ClaimEndpointAnnotations() []apphost.EndpointAnnotation
	Endpoints() []apphost.EndpointAnnotation
}

// State represents the orchestrator state.
type State int32

const (
	// StateUninitialized indicates startup has not begun.
	StateUninitialized State = iota
	// StateStarting indicates the first startup phase has run.
	StateStarting
	// StateRunning indicates the embedded server is serving.
	StateRunning
)

// Orchestrator is the lifecycle hook that materializes the gateway
// resource into a running proxy server.
type Orchestrator struct {
	state   atomic.Int32
	server  *gwserver.Server
	watcher *proxyconfig.Watcher
	tracer  *observability.Tracer
}

// New creates the orchestrator lifecycle hook.
func New() *Orchestrator {
	return &Orchestrator{}
}

// State returns the current orchestrator state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// BeforeStart runs before the host starts accepting work. It publishes the
// Starting state and claims the gateway's endpoint annotations so the
// host's generic allocation pass leaves them alone. In publish mode, or
// when no gateway resource exists, it does nothing.
func (o *Orchestrator) BeforeStart(ctx context.Context, model *apphost.Model) error {
	if model.Mode() == apphost.ModePublish {
		return nil
	}

	res, ok := findResource(model)
	if !ok {
		return nil
	}

	o.state.Store(int32(StateStarting))

	err := model.Notifier().Publish(ctx, res, func(s apphost.Snapshot) apphost.Snapshot {
		s.ResourceType = resourceType
		s.State = apphost.StateStarting
		return s
	})
	if err != nil {
		return fmt.Errorf("failed to publish starting state: %w", err)
	}

	res.ClaimEndpointAnnotations()

	return nil
}

// AfterEndpointsAllocated runs after the host has allocated endpoints for
// all other resources. It constructs and starts the embedded proxy server,
// then publishes the Running state with the actually-bound addresses.
func (o *Orchestrator) AfterEndpointsAllocated(ctx context.Context, model *apphost.Model) error {
	if model.Mode() == apphost.ModePublish {
		return nil
	}

	res, ok := findResource(model)
	if !ok {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	logger := observability.NewRelay(model.Loggers().ResourceLogger(res.Name()))

	settings, err := resolveEnvironment(ctx, res.Environment())
	if err != nil {
		return err
	}

	external, err := proxyconfig.LoadSection(model.ConfigFile(), res.ConfigSection())
	if err != nil {
		return fmt.Errorf("failed to load config section %q: %w", res.ConfigSection(), err)
	}
	merged := proxyconfig.Merge(res.RouteTable(), external)

	opts := []gwserver.ServerOption{
		gwserver.WithLogger(logger),
		gwserver.WithResolver(&modelResolver{model: model}),
		gwserver.WithSettings(settings),
		gwserver.WithListenAddrs(listenAddrs(res.Endpoints())),
	}

	if settings["tracing:enabled"] == "true" {
		sampleRate, _ := strconv.ParseFloat(settings["tracing:sampleRate"], 64)
		tracer, err := observability.NewTracer(observability.TracerConfig{
			ServiceName:  res.Name(),
			OTLPEndpoint: settings["tracing:otlpEndpoint"],
			SamplingRate: sampleRate,
			Enabled:      true,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		o.tracer = tracer
		opts = append(opts, gwserver.WithTracer(tracer))
	}

	server, err := gwserver.New(merged, opts...)
	if err != nil {
		return err
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start gateway server: %w", err)
	}
	o.server = server

	urls := server.Addresses()
	snapshots := make([]apphost.URLSnapshot, 0, len(urls))
	endpoints := make([]apphost.AllocatedEndpoint, 0, len(urls))
	for i, u := range urls {
		snapshots = append(snapshots, apphost.URLSnapshot{URL: u, IsInternal: false})
		endpoints = append(endpoints, allocatedEndpoint(res.Name(), i, u))
	}
	model.SetEndpoints(res.Name(), endpoints...)

	err = model.Notifier().Publish(ctx, res, func(s apphost.Snapshot) apphost.Snapshot {
		s.ResourceType = resourceType
		s.State = apphost.StateRunning
		s.URLs = snapshots
		return s
	})
	if err != nil {
		return fmt.Errorf("failed to publish running state: %w", err)
	}

	o.state.Store(int32(StateRunning))

	if section := res.ConfigSection(); section != "" && model.ConfigFile() != "" {
		watcher, err := proxyconfig.NewWatcher(model.ConfigFile(), section,
			func(ext *proxyconfig.Config) {
				if err := server.UpdateConfig(proxyconfig.Merge(res.RouteTable(), ext)); err != nil {
					logger.Error("failed to apply reloaded config", observability.Error(err))
				}
			},
			proxyconfig.WithWatcherLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("failed to start config watcher: %w", err)
		}
		o.watcher = watcher
	}

	return nil
}

// Close releases the listening sockets and stops the config watcher. Called
// during host shutdown.
func (o *Orchestrator) Close() error {
	var firstErr error

	if o.watcher != nil {
		if err := o.watcher.Stop(); err != nil {
			firstErr = err
		}
	}

	if o.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := o.server.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		if o.tracer != nil {
			if err := o.tracer.Shutdown(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// findResource locates the single gateway resource in the model.
func findResource(model *apphost.Model) (ProxyResource, bool) {
	for _, r := range model.Resources() {
		if res, ok := r.(ProxyResource); ok {
			return res, true
		}
	}
	return nil, false
}

// listenAddrs derives the server's listen addresses from the claimed
// endpoint declarations. Without declarations the gateway binds a single
// ephemeral loopback port.
func listenAddrs(endpoints []apphost.EndpointAnnotation) []gwserver.ListenAddr {
	if len(endpoints) == 0 {
		return []gwserver.ListenAddr{{Scheme: "http", Host: "127.0.0.1", Port: 0}}
	}

	addrs := make([]gwserver.ListenAddr, 0, len(endpoints))
	for _, ep := range endpoints {
		scheme := ep.Scheme
		if scheme == "" {
			scheme = "http"
		}
		addrs = append(addrs, gwserver.ListenAddr{
			Scheme: scheme,
			Host:   "127.0.0.1",
			Port:   ep.Port,
		})
	}
	return addrs
}

// allocatedEndpoint converts a bound URL back into the model's endpoint
// form.
func allocatedEndpoint(resourceName string, index int, rawURL string) apphost.AllocatedEndpoint {
	scheme, address := splitURL(rawURL)
	return apphost.AllocatedEndpoint{
		Name:    fmt.Sprintf("%s-%d", resourceName, index),
		Scheme:  scheme,
		Address: address,
	}
}

// splitURL splits "scheme://host:port" into scheme and address.
func splitURL(rawURL string) (scheme, address string) {
	if i := strings.Index(rawURL, "://"); i >= 0 {
		return rawURL[:i], rawURL[i+3:]
	}
	return "http", rawURL
}

// modelResolver resolves logical destination hosts against the resources'
// allocated endpoints.
type modelResolver struct {
	model *apphost.Model
}

// Resolve implements gwserver.Resolver.
func (r *modelResolver) Resolve(_ context.Context, host string) (string, error) {
	endpoints := r.model.Endpoints(host)
	if len(endpoints) == 0 {
		return "", gwserver.ErrNotResolved
	}
	return endpoints[0].URL(), nil
}
