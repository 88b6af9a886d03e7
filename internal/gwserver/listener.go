package gwserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/gatehost/gatehost/pkg/observability"
)

// ListenAddr is a loopback address the server should bind. A zero port
// requests an ephemeral port, known only after binding.
type ListenAddr struct {
	Scheme string
	Host   string
	Port   int
}

// hostPort returns the address in host:port form.
func (a ListenAddr) hostPort() string {
	host := a.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("%s:%d", host, a.Port)
}

// listener binds one address and serves the gateway handler on it.
type listener struct {
	addr    ListenAddr
	server  *http.Server
	ln      net.Listener
	logger  observability.Logger
	running atomic.Bool
}

func newListener(addr ListenAddr, server *http.Server, logger observability.Logger) *listener {
	return &listener{
		addr:   addr,
		server: server,
		logger: logger,
	}
}

// bind creates the network listener. The bound port may differ from the
// declared one when the declared port is ephemeral.
func (l *listener) bind(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.addr.hostPort())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.addr.hostPort(), err)
	}
	l.ln = ln
	return nil
}

// serve starts serving requests. Must be called after bind.
func (l *listener) serve() {
	l.running.Store(true)

	l.logger.Info("listener started",
		observability.String("address", l.boundAddr()),
		observability.String("scheme", l.addr.Scheme),
	)

	go func() {
		if err := l.server.Serve(l.ln); err != nil && err != http.ErrServerClosed {
			l.logger.Error("listener error",
				observability.String("address", l.boundAddr()),
				observability.Error(err),
			)
		}
		l.running.Store(false)
	}()
}

// stop shuts the listener down gracefully.
func (l *listener) stop(ctx context.Context) error {
	if l.ln == nil {
		return nil
	}
	if !l.running.Load() {
		return l.ln.Close()
	}
	if err := l.server.Shutdown(ctx); err != nil {
		if closeErr := l.server.Close(); closeErr != nil {
			return fmt.Errorf("failed to close listener: %w", closeErr)
		}
		return fmt.Errorf("failed to shutdown listener gracefully: %w", err)
	}
	l.running.Store(false)
	return nil
}

// boundAddr returns the actual bound address.
func (l *listener) boundAddr() string {
	if l.ln == nil {
		return l.addr.hostPort()
	}
	return l.ln.Addr().String()
}

// url returns the bound address as a URL with the declared scheme.
func (l *listener) url() string {
	scheme := l.addr.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, l.boundAddr())
}
