// Package servermanager implements the abstract backend-lifecycle
// capability: status/start/stop/restart against an external_id,
// with concrete providers for a locally-supervised process (RCON stop),
// Docker containers, and Kubernetes workloads, plus an in-memory Mock for
// tests. Providers are tagged variants behind the Manager interface per
// 's "dynamic dispatch" note, not an inheritance hierarchy.
package servermanager

import (
	"context"

	"github.com/pkg/errors"
)

// BackendState is the best-effort lifecycle state of a managed backend.
type BackendState string

const (
	StateRunning BackendState = "running"
	StateStarting BackendState = "starting"
	StateStopping BackendState = "stopping"
	StateStopped BackendState = "stopped"
	StateCrashed BackendState = "crashed"
	StateUnknown BackendState = "unknown"
)

// Manager is the contract the core depends on for waking and idling a
// backend. Implementations must treat status as best-effort: a transient
// provider error should surface as StateUnknown rather than propagate,
// except where an explicit action (start/stop/restart) genuinely failed.
type Manager interface {
	Status(ctx context.Context, externalID string) (BackendState, error)
	Start(ctx context.Context, externalID string) error
	Stop(ctx context.Context, externalID string) error
	Restart(ctx context.Context, externalID string) error
	Name() string
}

// Registry resolves a provider name (as named in a ServerConfig's
// ServerManagerBinding) to a Manager instance.
type Registry struct {
	providers map[string]Manager
}

// NewRegistry builds a Registry over the given providers, keyed by their
// Name().
func NewRegistry(providers ...Manager) *Registry {
	r := &Registry{providers: make(map[string]Manager, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Resolve returns the Manager registered under name.
func (r *Registry) Resolve(name string) (Manager, error) {
	m, ok := r.providers[name]
	if !ok {
		return nil, errors.Errorf("servermanager: no provider registered as %q", name)
	}
	return m, nil
}
