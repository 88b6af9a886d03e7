package gateway

import "errors"

// Sentinel errors for gateway declaration.
var (
	// ErrDuplicateResource indicates that a gateway resource is already
	// registered in the application. Exactly one gateway may exist per
	// application.
	ErrDuplicateResource = errors.New("a gateway resource is already registered")
)
