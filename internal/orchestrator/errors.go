// Package orchestrator drives the embedded gateway through the host's
// two-phase startup sequence: claiming endpoint declarations before start,
// then materializing the proxy server and publishing its state once the
// host has allocated endpoints for all other resources.
package orchestrator

import "errors"

// Sentinel errors for orchestrator operations.
var (
	// ErrUnsupportedValueType indicates that an environment-variable
	// declaration holds neither a string nor a value provider.
	ErrUnsupportedValueType = errors.New("unsupported environment value type")
)
