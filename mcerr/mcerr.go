// Package mcerr defines the disposition-carrying error kinds shared across
// the gateway. Handlers compare against these with errors.Is rather than
// inspecting message text.
package mcerr

import "errors"

var (
	// ErrProtocolMalformed is returned when a frame or scalar fails to
	// decode according to the Minecraft wire format.
	ErrProtocolMalformed = errors.New("mcproto: malformed protocol data")

	// ErrProtocolOversize is returned when a frame exceeds the configured
	// maximum length.
	ErrProtocolOversize = errors.New("mcproto: frame exceeds maximum size")

	// ErrProtocolTimeout is returned when a read does not complete within
	// its deadline.
	ErrProtocolTimeout = errors.New("mcproto: read timed out")

	// ErrAuthFailed is returned when ClientOnly authentication against the
	// external session service fails, or a verify-token mismatch occurs.
	ErrAuthFailed = errors.New("mcgateway: client authentication failed")

	// ErrBackendUnreachable is returned when every address in a route's
	// backend list has been tried and none could be dialed.
	ErrBackendUnreachable = errors.New("mcgateway: backend unreachable")

	// ErrBackendStartFailed is returned when the server manager could not
	// bring a backend to the Running state within its wake-up deadline.
	ErrBackendStartFailed = errors.New("mcgateway: backend failed to start")

	// ErrRouteNotFound is returned when no ServerConfig matches the
	// handshake's advertised host.
	ErrRouteNotFound = errors.New("mcgateway: no route for server address")

	// ErrFiltered is returned when the filter chain rejects a connection
	// (ban, deny list, or rate limit).
	ErrFiltered = errors.New("mcgateway: connection rejected by filter")

	// ErrInternal wraps unexpected failures that should abort only the
	// current session.
	ErrInternal = errors.New("mcgateway: internal error")
)

// Disposition classifies how a connection responds to an error kind:
// close silently, serve a status MOTD, or send a login disconnect.
type Disposition int

const (
	// DispositionClose just closes the socket, no reply.
	DispositionClose Disposition = iota
	// DispositionMOTD serves a synthesized status response before closing.
	DispositionMOTD
	// DispositionDisconnect sends a login-phase disconnect packet with a
	// reason string before closing.
	DispositionDisconnect
)

// ClassifyStatusPath returns how a status-path connection should respond to
// err.
func ClassifyStatusPath(err error) Disposition {
	switch {
	case errors.Is(err, ErrBackendUnreachable), errors.Is(err, ErrBackendStartFailed):
		return DispositionMOTD
	case errors.Is(err, ErrRouteNotFound):
		return DispositionMOTD
	case errors.Is(err, ErrFiltered):
		return DispositionMOTD
	default:
		return DispositionClose
	}
}

// ClassifyLoginPath returns how a login-path connection should respond to
// err.
func ClassifyLoginPath(err error) Disposition {
	switch {
	case errors.Is(err, ErrBackendUnreachable), errors.Is(err, ErrBackendStartFailed):
		return DispositionDisconnect
	case errors.Is(err, ErrRouteNotFound):
		return DispositionDisconnect
	case errors.Is(err, ErrFiltered):
		return DispositionDisconnect
	case errors.Is(err, ErrAuthFailed):
		return DispositionDisconnect
	default:
		return DispositionClose
	}
}
