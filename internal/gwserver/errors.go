// Package gwserver implements the embedded gateway web application: route
// matching, request forwarding, and listener lifecycle.
package gwserver

import "errors"

// Sentinel errors for gateway server operations.
var (
	// ErrServerNotStopped indicates that the server is not in stopped
	// state when a start operation is attempted.
	ErrServerNotStopped = errors.New("server is not in stopped state")

	// ErrServerNotRunning indicates that the server is not running when
	// a stop operation is attempted.
	ErrServerNotRunning = errors.New("server is not running")

	// ErrNilConfig indicates that a nil configuration was provided.
	ErrNilConfig = errors.New("configuration is required")

	// ErrUnknownCluster indicates that a route references a cluster that
	// is not configured.
	ErrUnknownCluster = errors.New("route references unknown cluster")

	// ErrNoDestinations indicates that a cluster has no destinations.
	ErrNoDestinations = errors.New("cluster has no destinations")

	// ErrNotResolved indicates that a logical destination host is not
	// known to service discovery. The proxy falls back to the literal
	// destination address.
	ErrNotResolved = errors.New("destination host not resolved")
)
