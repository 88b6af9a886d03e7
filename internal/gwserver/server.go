package gwserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gatehost/gatehost/pkg/observability"
	"github.com/gatehost/gatehost/pkg/proxyconfig"
)

// State represents the server state.
type State int32

const (
	// StateStopped indicates the server is stopped.
	StateStopped State = iota
	// StateStarting indicates the server is starting.
	StateStarting
	// StateRunning indicates the server is running.
	StateRunning
	// StateStopping indicates the server is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// gin mode is process-wide; set it exactly once.
var ginModeOnce sync.Once

// Default listener timeouts.
const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second
)

// Server is the embedded gateway web application.
type Server struct {
	logger      observability.Logger
	resolver    Resolver
	settings    map[string]string
	tracer      *observability.Tracer
	registry    *prometheus.Registry
	metrics     *serverMetrics
	engine      *gin.Engine
	transport   http.RoundTripper
	listenAddrs []ListenAddr
	listeners   []*listener
	table       atomic.Pointer[routeTable]
	state       atomic.Int32
}

// ServerOption is a functional option for configuring the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger observability.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithResolver sets the service-discovery resolver for logical destination
// addresses.
func WithResolver(r Resolver) ServerOption {
	return func(s *Server) {
		s.resolver = r
	}
}

// WithListenAddrs sets the addresses the server binds on start.
func WithListenAddrs(addrs []ListenAddr) ServerOption {
	return func(s *Server) {
		s.listenAddrs = addrs
	}
}

// WithSettings sets the resolved configuration settings map. Keys use
// colon-separated hierarchical form.
func WithSettings(settings map[string]string) ServerOption {
	return func(s *Server) {
		s.settings = settings
	}
}

// WithTracer enables tracing of proxied requests.
func WithTracer(t *observability.Tracer) ServerOption {
	return func(s *Server) {
		s.tracer = t
	}
}

// WithMetricsRegistry sets the Prometheus registry for server metrics.
func WithMetricsRegistry(registry *prometheus.Registry) ServerOption {
	return func(s *Server) {
		s.registry = registry
	}
}

// WithTransport sets the upstream transport.
func WithTransport(transport http.RoundTripper) ServerOption {
	return func(s *Server) {
		s.transport = transport
	}
}

// New creates a gateway server from the merged configuration.
func New(cfg *proxyconfig.Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	s := &Server{
		logger:    observability.NopLogger(),
		transport: http.DefaultTransport,
		listenAddrs: []ListenAddr{
			{Scheme: "http", Host: "127.0.0.1", Port: 0},
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	table, err := compile(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway configuration: %w", err)
	}
	s.table.Store(table)

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = newServerMetrics(s.registry)

	ginModeOnce.Do(func() { gin.SetMode(gin.ReleaseMode) })
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	if path := s.settings["metrics:path"]; path != "" {
		s.engine.GET(path, gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}
	s.engine.NoRoute(gin.WrapH(&proxyHandler{server: s}))

	s.state.Store(int32(StateStopped))

	return s, nil
}

// Start binds every configured address and begins serving. The first bind
// failure unwinds already-bound listeners and is returned to the caller.
func (s *Server) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrServerNotStopped
	}

	s.listeners = make([]*listener, 0, len(s.listenAddrs))
	for _, addr := range s.listenAddrs {
		l := newListener(addr, s.newHTTPServer(), s.logger)
		if err := l.bind(ctx); err != nil {
			s.closeListeners(ctx)
			s.state.Store(int32(StateStopped))
			return err
		}
		s.listeners = append(s.listeners, l)
	}

	for _, l := range s.listeners {
		l.serve()
	}

	s.state.Store(int32(StateRunning))

	s.logger.Info("gateway server started",
		observability.Int("listeners", len(s.listeners)),
		observability.Strings("addresses", s.Addresses()),
	)

	return nil
}

// newHTTPServer builds an http.Server with timeouts from settings.
func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Handler:           s.engine,
		ReadTimeout:       s.settingDuration("server:readTimeout", defaultReadTimeout),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.settingDuration("server:writeTimeout", defaultWriteTimeout),
		IdleTimeout:       s.settingDuration("server:idleTimeout", defaultIdleTimeout),
		MaxHeaderBytes:    1 << 20,
	}
}

// settingDuration reads a duration setting, falling back to def on absence
// or parse failure.
func (s *Server) settingDuration(key string, def time.Duration) time.Duration {
	raw, ok := s.settings[key]
	if !ok {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		s.logger.Warn("invalid duration setting",
			observability.String("key", key),
			observability.String("value", raw),
		)
		return def
	}
	return d
}

// Addresses returns the actual bound addresses as URLs. Only valid after
// Start returns successfully.
func (s *Server) Addresses() []string {
	urls := make([]string, 0, len(s.listeners))
	for _, l := range s.listeners {
		urls = append(urls, l.url())
	}
	return urls
}

// UpdateConfig atomically replaces the routing table.
func (s *Server) UpdateConfig(cfg *proxyconfig.Config) error {
	table, err := compile(cfg)
	if err != nil {
		return fmt.Errorf("invalid gateway configuration: %w", err)
	}
	s.table.Store(table)

	s.logger.Info("gateway configuration updated",
		observability.Int("routes", len(table.routes)),
		observability.Int("clusters", len(table.clusters)),
	)

	return nil
}

// State returns the current server state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Stop shuts the server down gracefully, releasing all listening sockets.
func (s *Server) Stop(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrServerNotRunning
	}

	err := s.closeListeners(ctx)
	s.state.Store(int32(StateStopped))

	s.logger.Info("gateway server stopped")

	return err
}

func (s *Server) closeListeners(ctx context.Context) error {
	var firstErr error
	for _, l := range s.listeners {
		if err := l.stop(ctx); err != nil {
			s.logger.Error("failed to stop listener",
				observability.String("address", l.boundAddr()),
				observability.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
