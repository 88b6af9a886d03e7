package gwserver

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gatehost/gatehost/pkg/observability"
)

// hopHeaders are headers that should not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// proxyHandler forwards matched requests to their cluster destination.
type proxyHandler struct {
	server *Server
}

// ServeHTTP implements http.Handler.
func (p *proxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s := p.server
	table := s.table.Load()

	route, ok := table.match(r.Host, r.URL.Path)
	if !ok {
		s.metrics.requestsTotal.WithLabelValues(unmatchedRoute, strconv.Itoa(http.StatusNotFound)).Inc()
		http.Error(w, "no route matched", http.StatusNotFound)
		return
	}

	target, err := s.resolveTarget(r, route)
	if err != nil {
		s.logger.Error("failed to resolve destination",
			observability.String("route", route.route.RouteID),
			observability.String("cluster", route.cluster.id),
			observability.Error(err),
		)
		s.metrics.proxyErrors.WithLabelValues(route.cluster.id, "resolve").Inc()
		s.metrics.requestsTotal.WithLabelValues(route.route.RouteID, strconv.Itoa(http.StatusBadGateway)).Inc()
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	outReq, err := p.buildRequest(r, route, target)
	if err != nil {
		s.metrics.proxyErrors.WithLabelValues(route.cluster.id, "request").Inc()
		s.metrics.requestsTotal.WithLabelValues(route.route.RouteID, strconv.Itoa(http.StatusBadGateway)).Inc()
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	if s.tracer != nil {
		spanCtx, span := s.tracer.Start(r.Context(), "gateway.proxy",
			attribute.String("gateway.route", route.route.RouteID),
			attribute.String("gateway.cluster", route.cluster.id),
		)
		defer span.End()
		outReq = outReq.WithContext(spanCtx)
	}

	start := time.Now()
	result, err := route.cluster.breaker.Execute(func() (interface{}, error) {
		return s.transport.RoundTrip(outReq)
	})
	s.metrics.upstreamDuration.WithLabelValues(route.cluster.id).Observe(time.Since(start).Seconds())

	if err != nil {
		s.logger.Error("upstream request failed",
			observability.String("route", route.route.RouteID),
			observability.String("cluster", route.cluster.id),
			observability.Error(err),
		)
		s.metrics.proxyErrors.WithLabelValues(route.cluster.id, "upstream").Inc()
		s.metrics.requestsTotal.WithLabelValues(route.route.RouteID, strconv.Itoa(http.StatusBadGateway)).Inc()
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	resp := result.(*http.Response)
	defer func() { _ = resp.Body.Close() }()

	copyHeaders(w.Header(), resp.Header)
	removeHopHeaders(w.Header())
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)

	s.metrics.requestsTotal.WithLabelValues(route.route.RouteID, strconv.Itoa(resp.StatusCode)).Inc()
}

// resolveTarget resolves the route's destination to a concrete base URL.
// Logical hosts go through service discovery; unresolved hosts fall back to
// the literal destination address.
func (s *Server) resolveTarget(r *http.Request, route *compiledRoute) (*url.URL, error) {
	address := route.cluster.nextAddress()

	base, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("invalid destination address %q: %w", address, err)
	}

	if s.resolver != nil {
		resolved, err := s.resolver.Resolve(r.Context(), base.Hostname())
		switch {
		case err == nil:
			resolvedURL, parseErr := url.Parse(resolved)
			if parseErr != nil {
				return nil, fmt.Errorf("invalid resolved address %q: %w", resolved, parseErr)
			}
			return resolvedURL, nil
		case errors.Is(err, ErrNotResolved):
			// fall through to the literal address
		default:
			return nil, err
		}
	}

	return base, nil
}

// buildRequest creates the outbound request with the transform applied and
// forwarding headers set.
func (p *proxyHandler) buildRequest(r *http.Request, route *compiledRoute, target *url.URL) (*http.Request, error) {
	outURL := *target
	outURL.Path = singleJoin(target.Path, route.transformPath(r.URL.Path))
	outURL.RawQuery = r.URL.RawQuery

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, outURL.String(), r.Body)
	if err != nil {
		return nil, err
	}

	copyHeaders(outReq.Header, r.Header)
	removeHopHeaders(outReq.Header)

	if clientIP, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		prior := r.Header.Get("X-Forwarded-For")
		if prior != "" {
			clientIP = prior + ", " + clientIP
		}
		outReq.Header.Set("X-Forwarded-For", clientIP)
	}
	outReq.Header.Set("X-Forwarded-Host", r.Host)
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	outReq.Header.Set("X-Forwarded-Proto", scheme)

	return outReq, nil
}

// copyHeaders copies all header values from src to dst.
func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

// removeHopHeaders removes hop-by-hop headers, including those named in
// the Connection header.
func removeHopHeaders(h http.Header) {
	for _, conn := range h.Values("Connection") {
		for _, token := range strings.Split(conn, ",") {
			if token = strings.TrimSpace(token); token != "" {
				h.Del(token)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// singleJoin joins two path segments with exactly one slash.
func singleJoin(a, b string) string {
	switch {
	case a == "" || a == "/":
		return b
	case strings.HasSuffix(a, "/") && strings.HasPrefix(b, "/"):
		return a + b[1:]
	case !strings.HasSuffix(a, "/") && !strings.HasPrefix(b, "/"):
		return a + "/" + b
	default:
		return a + b
	}
}
