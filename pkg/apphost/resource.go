package apphost

import (
	"context"
	"fmt"
)

// Resource is a named member of the application topology.
type Resource interface {
	Name() string
}

// Annotated is implemented by resources that carry annotations.
type Annotated interface {
	Resource
	Annotations() []Annotation
}

// Annotation is a piece of metadata attached to a resource.
type Annotation any

// EndpointAnnotation declares a network binding a resource should listen on.
// A zero port requests an ephemeral port at allocation time.
type EndpointAnnotation struct {
	Name   string
	Scheme string
	Port   int
}

// AllocatedEndpoint is a concrete network binding assigned to a resource.
type AllocatedEndpoint struct {
	Name    string
	Scheme  string
	Address string
}

// URL returns the endpoint address as a URL.
func (e AllocatedEndpoint) URL() string {
	return fmt.Sprintf("%s://%s", e.Scheme, e.Address)
}

// ValueProvider supplies an environment value asynchronously, resolved at
// launch time.
type ValueProvider interface {
	Value(ctx context.Context) (string, error)
}

// EnvDecl is a declared environment variable. Value is either a literal
// string or a ValueProvider; any other type is rejected at resolution time.
type EnvDecl struct {
	Key   string
	Value any
}

// Container is an ordinary hosted resource: a named process or container
// with declared endpoints and environment.
type Container struct {
	name        string
	annotations []Annotation
	env         []EnvDecl
	dependsOn   []string
}

// Name returns the resource name.
func (c *Container) Name() string {
	return c.name
}

// WithEndpoint declares a network binding for the resource. Scheme defaults
// to "http" and a zero port requests an ephemeral port.
func (c *Container) WithEndpoint(scheme string, port int) *Container {
	c.annotations = append(c.annotations, EndpointAnnotation{
		Name:   fmt.Sprintf("%s-%d", c.name, len(c.annotations)),
		Scheme: scheme,
		Port:   port,
	})
	return c
}

// WithEnvironment declares an environment variable. Values are resolved
// sequentially in declaration order at launch time.
func (c *Container) WithEnvironment(key string, value any) *Container {
	c.env = append(c.env, EnvDecl{Key: key, Value: value})
	return c
}

// WithReference declares that this resource depends on target.
func (c *Container) WithReference(target Resource) *Container {
	c.dependsOn = append(c.dependsOn, target.Name())
	return c
}

// Annotations returns the resource's annotations.
func (c *Container) Annotations() []Annotation {
	return c.annotations
}

// Environment returns the declared environment variables in declaration
// order.
func (c *Container) Environment() []EnvDecl {
	return c.env
}

// Dependencies returns the names of resources this resource depends on.
func (c *Container) Dependencies() []string {
	return c.dependsOn
}
