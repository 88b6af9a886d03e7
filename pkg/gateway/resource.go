package gateway

import (
	"github.com/gatehost/gatehost/pkg/apphost"
	"github.com/gatehost/gatehost/pkg/proxyconfig"
)

// ResourceType is the resource type recorded in published snapshots.
const ResourceType = "gateway"

// Resource is the aggregate configuration object representing the embedded
// reverse proxy within the application topology. Its route and cluster maps
// are written only during topology declaration and are read-only afterward.
type Resource struct {
	name string

	routeIDs   []string
	routes     map[string]proxyconfig.Route
	clusterIDs []string
	clusters   map[string]proxyconfig.Cluster

	annotations   []apphost.Annotation
	endpoints     []apphost.EndpointAnnotation
	env           []apphost.EnvDecl
	dependsOn     []string
	configSection string
}

func newResource(name string) *Resource {
	return &Resource{
		name:     name,
		routes:   make(map[string]proxyconfig.Route),
		clusters: make(map[string]proxyconfig.Cluster),
	}
}

// Name returns the resource name.
func (r *Resource) Name() string {
	return r.name
}

// Annotations returns the resource's annotations.
func (r *Resource) Annotations() []apphost.Annotation {
	return r.annotations
}

// Environment returns the declared environment variables in declaration
// order.
func (r *Resource) Environment() []apphost.EnvDecl {
	return r.env
}

// Dependencies returns the names of the routing targets this gateway
// depends on.
func (r *Resource) Dependencies() []string {
	return r.dependsOn
}

// ConfigSection returns the attached external configuration section name,
// or "" if none was attached.
func (r *Resource) ConfigSection() string {
	return r.configSection
}

// RouteTable returns the declared routes and clusters in declaration order.
func (r *Resource) RouteTable() *proxyconfig.Config {
	cfg := &proxyconfig.Config{
		Routes:   make([]proxyconfig.Route, 0, len(r.routeIDs)),
		Clusters: make([]proxyconfig.Cluster, 0, len(r.clusterIDs)),
	}
	for _, id := range r.routeIDs {
		cfg.Routes = append(cfg.Routes, r.routes[id])
	}
	for _, id := range r.clusterIDs {
		cfg.Clusters = append(cfg.Clusters, r.clusters[id])
	}
	return cfg
}

// Endpoints returns the typed endpoint list. It is empty until endpoint
// annotations are claimed during startup.
func (r *Resource) Endpoints() []apphost.EndpointAnnotation {
	return r.endpoints
}

// ClaimEndpointAnnotations moves every endpoint annotation out of the
// generic annotation list into the typed endpoint list. Endpoint allocation
// for the gateway is handled by its own startup sequence rather than the
// host's generic allocation pass, so ownership transfers here.
func (r *Resource) ClaimEndpointAnnotations() []apphost.EndpointAnnotation {
	remaining := r.annotations[:0]
	for _, ann := range r.annotations {
		if ep, ok := ann.(apphost.EndpointAnnotation); ok {
			r.endpoints = append(r.endpoints, ep)
			continue
		}
		remaining = append(remaining, ann)
	}
	r.annotations = remaining
	return r.endpoints
}

// setRoute records a route. Registering the same route ID twice overwrites
// the prior definition, keeping its declaration position.
func (r *Resource) setRoute(route proxyconfig.Route) {
	if _, exists := r.routes[route.RouteID]; !exists {
		r.routeIDs = append(r.routeIDs, route.RouteID)
	}
	r.routes[route.RouteID] = route
}

// ensureCluster records a cluster if no cluster with the same ID exists
// yet. First registration wins.
func (r *Resource) ensureCluster(cluster proxyconfig.Cluster) {
	if _, exists := r.clusters[cluster.ClusterID]; exists {
		return
	}
	r.clusterIDs = append(r.clusterIDs, cluster.ClusterID)
	r.clusters[cluster.ClusterID] = cluster
}
