// Package session implements the per-connection Supervisor actor:
// the state machine, forwarding, PROXY-protocol emission, and session
// bookkeeping that own one accepted client connection end to end.
// Grounded on the teacher's server/connector.go pumpConnections/pumpFrames
// relay loop, generalized from two goroutines racing a single shared error
// channel into an explicit state machine with cancellation and byte
// accounting.
package session

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is one step of the Supervisor's lifecycle.
type State int

const (
	StateDialing State = iota
	StateWaitingForBackendUp
	StateHandshaking
	StateStatus
	StateLoginRelay
	StateActive
	StateDraining
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDialing:
		return "dialing"
	case StateWaitingForBackendUp:
		return "waiting_for_backend_up"
	case StateHandshaking:
		return "handshaking"
	case StateStatus:
		return "status"
	case StateLoginRelay:
		return "login_relay"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is the bookkeeping record for one accepted connection: identity,
// routing, and live byte/keepalive counters. A Supervisor owns exactly one
// Session and updates it as the forwarders run.
type Session struct {
	ID string
	ClientAddr net.Addr
	ConfigID string
	Username string

	state atomic.Int32

	BytesClientToBackend atomic.Int64
	BytesBackendToClient atomic.Int64

	lastActivity atomic.Int64 // unix nanos

	StartedAt time.Time
}

// NewSession allocates a Session with a fresh random ID.
func NewSession(clientAddr net.Addr, configID string) *Session {
	s := &Session{
		ID: uuid.NewString(),
		ClientAddr: clientAddr,
		ConfigID: configID,
		StartedAt: time.Now(),
	}
	s.state.Store(int32(StateDialing))
	s.touch()
	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the timestamp of the most recent forwarded byte.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// TotalBytes returns the sum of both directions' byte counters, for the
// accounting-conservation property.
func (s *Session) TotalBytes() int64 {
	return s.BytesClientToBackend.Load() + s.BytesBackendToClient.Load()
}
