package servermanager

import (
	"context"
	"sync"
)

// Mock is an in-memory Manager for tests and for a route with no real
// backend-lifecycle integration configured.
type Mock struct {
	mu     sync.Mutex
	states map[string]BackendState

	// StartErr, if set, is returned by Start for every externalID.
	StartErr error
}

// NewMock returns a Mock with every externalID reporting StateUnknown
// until SetState is called.
func NewMock() *Mock {
	return &Mock{states: make(map[string]BackendState)}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) SetState(externalID string, state BackendState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[externalID] = state
}

func (m *Mock) Status(ctx context.Context, externalID string) (BackendState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[externalID]
	if !ok {
		return StateUnknown, nil
	}
	return state, nil
}

func (m *Mock) Start(ctx context.Context, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return m.StartErr
	}
	m.states[externalID] = StateStarting
	return nil
}

func (m *Mock) Stop(ctx context.Context, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[externalID] = StateStopping
	return nil
}

func (m *Mock) Restart(ctx context.Context, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[externalID] = StateStarting
	return nil
}
