// Package gateway declares an embedded reverse-proxy resource inside an
// application topology. Routes and clusters are accumulated during topology
// declaration; a lifecycle hook materializes a running proxy during host
// startup and publishes its state.
package gateway

import (
	"fmt"

	"github.com/gatehost/gatehost/internal/orchestrator"
	"github.com/gatehost/gatehost/pkg/apphost"
	"github.com/gatehost/gatehost/pkg/proxyconfig"
)

// CatchAllPath is the sentinel path token matching any remaining path
// segment sequence. Use it to declare a default or fallback route.
const CatchAllPath = proxyconfig.CatchAllPath

// Builder declares routes and clusters for a gateway resource. Methods
// return the builder for chaining.
type Builder struct {
	app      *apphost.Builder
	resource *Resource
}

// AddGateway registers the gateway resource in the application topology and
// returns a builder for declaring its routes. Exactly one gateway may exist
// per application; a second registration fails with ErrDuplicateResource.
func AddGateway(app *apphost.Builder, name string) (*Builder, error) {
	for _, r := range app.Resources() {
		if _, ok := r.(*Resource); ok {
			return nil, fmt.Errorf("%w: cannot add %q", ErrDuplicateResource, name)
		}
	}

	resource := newResource(name)
	if err := app.AddResource(resource); err != nil {
		return nil, err
	}

	app.AddLifecycleHook(orchestrator.New())

	return &Builder{app: app, resource: resource}, nil
}

// routeOptions collects per-route settings.
type routeOptions struct {
	pathPrefix   string
	hosts        []string
	preservePath bool
}

// RouteOption is a functional option for configuring a route.
type RouteOption func(*routeOptions)

// WithPathPrefix matches requests whose path starts with prefix. Unless
// PreservePath is also given, the prefix is stripped before forwarding.
func WithPathPrefix(prefix string) RouteOption {
	return func(o *routeOptions) {
		o.pathPrefix = prefix
	}
}

// WithHosts restricts the route to requests for the given host names.
func WithHosts(hosts ...string) RouteOption {
	return func(o *routeOptions) {
		o.hosts = hosts
	}
}

// PreservePath forwards the request path unchanged instead of stripping
// the matched prefix.
func PreservePath() RouteOption {
	return func(o *routeOptions) {
		o.preservePath = true
	}
}

// WithRoute declares a route from the given matcher to target. Omitting
// both path prefix and hosts yields a catch-all match. Registering the same
// route ID twice overwrites the prior definition silently. The cluster for
// target is created on first use with the logical destination address
// "http://<target name>", resolved through service discovery at request
// time; later routes to the same target reuse it.
func (b *Builder) WithRoute(routeID string, target apphost.Resource, opts ...RouteOption) *Builder {
	var o routeOptions
	for _, opt := range opts {
		opt(&o)
	}

	clusterID := target.Name()

	route := proxyconfig.Route{
		RouteID:   routeID,
		ClusterID: clusterID,
		Match: proxyconfig.RouteMatch{
			Path:  o.pathPrefix,
			Hosts: o.hosts,
		},
	}

	if !o.preservePath && o.pathPrefix != "" && o.pathPrefix != CatchAllPath {
		route.Transforms = []proxyconfig.Transform{
			{PathRemovePrefix: o.pathPrefix},
		}
	}

	b.resource.setRoute(route)
	b.resource.ensureCluster(proxyconfig.Cluster{
		ClusterID: clusterID,
		Destinations: map[string]proxyconfig.Destination{
			"default": {Address: "http://" + clusterID},
		},
	})
	b.dependOn(clusterID)

	return b
}

// WithConfigSection attaches a named section of the host's configuration
// file as an additional source of routes and clusters. The section is not
// validated to exist; it is loaded at launch time and merged with the
// declared routes.
func (b *Builder) WithConfigSection(name string) *Builder {
	b.resource.configSection = name
	return b
}

// WithEndpoint declares a network binding for the gateway. Scheme defaults
// to "http"; a zero port requests an ephemeral port. Without any declared
// endpoint the gateway binds a single ephemeral loopback port.
func (b *Builder) WithEndpoint(scheme string, port int) *Builder {
	b.resource.annotations = append(b.resource.annotations, apphost.EndpointAnnotation{
		Name:   fmt.Sprintf("%s-%d", b.resource.name, len(b.resource.annotations)),
		Scheme: scheme,
		Port:   port,
	})
	return b
}

// WithEnvironment declares an environment variable for the embedded proxy.
// The value is a literal string or an apphost.ValueProvider; keys using a
// double-underscore section separator are rewritten to colon-separated
// hierarchical form at launch time.
func (b *Builder) WithEnvironment(key string, value any) *Builder {
	b.resource.env = append(b.resource.env, apphost.EnvDecl{Key: key, Value: value})
	return b
}

// Resource returns the declared gateway resource.
func (b *Builder) Resource() *Resource {
	return b.resource
}

// dependOn records a startup-ordering dependency on the named resource.
func (b *Builder) dependOn(name string) {
	for _, existing := range b.resource.dependsOn {
		if existing == name {
			return
		}
	}
	b.resource.dependsOn = append(b.resource.dependsOn, name)
}
