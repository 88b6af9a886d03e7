package gwserver

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/gatehost/gatehost/pkg/proxyconfig"
)

// Route priority constants. Higher priority routes are matched first.
const (
	// priorityPrefixMatch is the base priority for prefix path matches.
	// Longer prefixes receive additional priority based on their length.
	priorityPrefixMatch = 500

	// priorityHostRestriction is the priority bonus per host restriction.
	priorityHostRestriction = 10

	// priorityCatchAll is the priority for catch-all routes, matched last.
	priorityCatchAll = 0
)

// compiledRoute is a pre-compiled route for efficient matching.
type compiledRoute struct {
	route    proxyconfig.Route
	cluster  *compiledCluster
	prefix   string
	catchAll bool
	strip    string
	hosts    map[string]bool
	priority int
}

// compiledCluster holds a cluster's destinations in deterministic order
// together with its circuit breaker. Destinations rotate round-robin.
type compiledCluster struct {
	id        string
	addresses []string
	breaker   *gobreaker.CircuitBreaker
	next      atomic.Uint64
}

// nextAddress returns the next destination address in rotation.
func (c *compiledCluster) nextAddress() string {
	n := c.next.Add(1) - 1
	return c.addresses[n%uint64(len(c.addresses))]
}

// routeTable is an immutable compiled routing table. The server swaps the
// whole table on configuration reload.
type routeTable struct {
	routes   []*compiledRoute
	clusters map[string]*compiledCluster
}

// compile builds a route table from configuration records.
func compile(cfg *proxyconfig.Config) (*routeTable, error) {
	t := &routeTable{
		clusters: make(map[string]*compiledCluster, len(cfg.Clusters)),
	}

	for _, c := range cfg.Clusters {
		if len(c.Destinations) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoDestinations, c.ClusterID)
		}

		names := make([]string, 0, len(c.Destinations))
		for name := range c.Destinations {
			names = append(names, name)
		}
		sort.Strings(names)

		addresses := make([]string, 0, len(names))
		for _, name := range names {
			addresses = append(addresses, c.Destinations[name].Address)
		}

		t.clusters[c.ClusterID] = &compiledCluster{
			id:        c.ClusterID,
			addresses: addresses,
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:    c.ClusterID,
				Timeout: 30 * time.Second,
			}),
		}
	}

	for _, r := range cfg.Routes {
		cluster, ok := t.clusters[r.ClusterID]
		if !ok {
			return nil, fmt.Errorf("%w: route %s -> cluster %s", ErrUnknownCluster, r.RouteID, r.ClusterID)
		}

		cr := &compiledRoute{
			route:   r,
			cluster: cluster,
		}

		// A trailing catch-all token makes the remainder of the path a
		// prefix match; a bare catch-all matches everything.
		path := strings.TrimSuffix(r.Match.Path, proxyconfig.CatchAllPath)
		if path == "" {
			cr.catchAll = true
			cr.priority = priorityCatchAll
		} else {
			cr.prefix = path
			cr.priority = priorityPrefixMatch + len(cr.prefix)
		}

		if len(r.Match.Hosts) > 0 {
			cr.hosts = make(map[string]bool, len(r.Match.Hosts))
			for _, h := range r.Match.Hosts {
				cr.hosts[strings.ToLower(h)] = true
			}
			cr.priority += priorityHostRestriction * len(r.Match.Hosts)
		}

		for _, tr := range r.Transforms {
			if tr.PathRemovePrefix != "" {
				cr.strip = tr.PathRemovePrefix
			}
		}

		t.routes = append(t.routes, cr)
	}

	sort.SliceStable(t.routes, func(i, j int) bool {
		return t.routes[i].priority > t.routes[j].priority
	})

	return t, nil
}

// match returns the highest-priority route matching the request host and
// path.
func (t *routeTable) match(host, path string) (*compiledRoute, bool) {
	hostname := strings.ToLower(host)
	if i := strings.LastIndex(hostname, ":"); i >= 0 {
		hostname = hostname[:i]
	}

	for _, r := range t.routes {
		if r.hosts != nil && !r.hosts[hostname] {
			continue
		}
		if r.catchAll || matchPrefix(path, r.prefix) {
			return r, true
		}
	}
	return nil, false
}

// matchPrefix reports whether path starts with prefix at a path-segment
// boundary.
func matchPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) {
		return true
	}
	return strings.HasSuffix(prefix, "/") || path[len(prefix)] == '/'
}

// transformPath applies the route's prefix-removal transform.
func (r *compiledRoute) transformPath(path string) string {
	if r.strip == "" {
		return path
	}
	stripped := strings.TrimPrefix(path, r.strip)
	if stripped == "" || stripped[0] != '/' {
		stripped = "/" + stripped
	}
	return stripped
}
