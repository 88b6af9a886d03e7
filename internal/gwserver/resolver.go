package gwserver

import "context"

// Resolver maps a logical destination host to a concrete base URL.
// Implementations return ErrNotResolved for hosts they do not know, in
// which case the proxy uses the literal destination address.
type Resolver interface {
	Resolve(ctx context.Context, host string) (string, error)
}

// StaticResolver resolves hosts from a fixed map. Used in tests and for
// topologies whose addresses are known up front.
type StaticResolver map[string]string

// Resolve implements Resolver.
func (r StaticResolver) Resolve(_ context.Context, host string) (string, error) {
	addr, ok := r[host]
	if !ok {
		return "", ErrNotResolved
	}
	return addr, nil
}
