package apphost

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ResourceState represents a resource lifecycle state in a published
// snapshot.
type ResourceState string

const (
	// StateStarting indicates the resource is starting.
	StateStarting ResourceState = "Starting"
	// StateRunning indicates the resource is running.
	StateRunning ResourceState = "Running"
)

// URLSnapshot is a reachable URL recorded in a resource snapshot.
type URLSnapshot struct {
	URL        string `json:"url"`
	IsInternal bool   `json:"isInternal"`
}

// Snapshot is the published state of a resource. EventID is assigned on
// every publish.
type Snapshot struct {
	EventID      string        `json:"eventId"`
	ResourceType string        `json:"resourceType"`
	State        ResourceState `json:"state"`
	URLs         []URLSnapshot `json:"urls,omitempty"`
}

// Notifier records resource state transitions. Publish applies the patch
// function to the latest known snapshot and returns after the update is
// recorded.
type Notifier interface {
	Publish(ctx context.Context, r Resource, patch func(Snapshot) Snapshot) error
}

// InMemoryNotifier retains the latest snapshot per resource.
type InMemoryNotifier struct {
	mu     sync.RWMutex
	latest map[string]Snapshot
}

// NewInMemoryNotifier creates an in-memory notification service.
func NewInMemoryNotifier() *InMemoryNotifier {
	return &InMemoryNotifier{latest: make(map[string]Snapshot)}
}

// Publish applies patch to the resource's latest snapshot and stores the
// result under a fresh event ID.
func (n *InMemoryNotifier) Publish(ctx context.Context, r Resource, patch func(Snapshot) Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	snapshot := patch(n.latest[r.Name()])
	snapshot.EventID = uuid.NewString()
	n.latest[r.Name()] = snapshot

	return nil
}

// Latest returns the most recently published snapshot for the named
// resource.
func (n *InMemoryNotifier) Latest(resourceName string) (Snapshot, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	s, ok := n.latest[resourceName]
	return s, ok
}
