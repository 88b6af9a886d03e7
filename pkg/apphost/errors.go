package apphost

import "errors"

// Sentinel errors for topology operations.
var (
	// ErrNilResource indicates that a nil resource was registered.
	ErrNilResource = errors.New("resource is nil")

	// ErrDuplicateResourceName indicates that a resource with the same
	// name is already registered.
	ErrDuplicateResourceName = errors.New("duplicate resource name")

	// ErrAlreadyBuilt indicates that the builder was already consumed.
	ErrAlreadyBuilt = errors.New("application already built")

	// ErrAlreadyStarted indicates that the application was already
	// started.
	ErrAlreadyStarted = errors.New("application already started")
)
