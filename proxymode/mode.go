// Package proxymode implements the four supported proxy modes named in
// route.ProxyMode: Passthrough, Offline, ClientOnly and ServerOnly.
// "Full" mode — mutual client- and server-side authentication under one
// proxied connection — is rejected earlier, at config-validation time
// (see route.ParseProxyMode), because a proxy sitting between two
// independently Mojang-authenticated parties cannot satisfy both sides'
// authentication without possessing the connecting player's own session
// token; there is deliberately no handler for it here.
//
// Grounded on the teacher's connectorImpl (server/connector.go), which
// only ever does what this package calls Passthrough; Offline, ClientOnly
// and ServerOnly generalize that shape using the login/encryption fields
// original_source's proxy_modes/*.rs distilled from.
package proxymode

import (
	"context"
	"net"

	"github.com/pkg/errors"

	"github.com/mc-gateway/gateway/filter"
	"github.com/mc-gateway/gateway/mccrypto"
	"github.com/mc-gateway/gateway/mcproto"
	"github.com/mc-gateway/gateway/route"
	"github.com/mc-gateway/gateway/session"
)

// Request carries everything a mode handler needs: the client connection,
// the already-read handshake (and, for login-path connections, the
// login-start packet), and the backend addresses to dial.
type Request struct {
	Ctx context.Context
	ClientConn net.Conn

	// RawHandshakeFrame and RawNextFrame are the exact wire bytes read
	// during routing (length-prefix varint included), preserved so
	// Passthrough can replay them byte-identically without ever
	// re-encoding what it decoded only to pick a route.
	RawHandshakeFrame []byte
	RawNextFrame []byte

	Handshake *mcproto.Handshake
	LoginStart *mcproto.LoginStart // nil on the status path

	BackendAddresses []string

	// ClientAddr, SendProxyProtocol and ProxyProtocolVersion configure an
	// outbound PROXY protocol header. When SendProxyProtocol is set, every
	// mode handler writes it to the freshly dialed backend connection
	// before any other byte, so the backend's proxy-protocol parser never
	// sees Minecraft framing first.
	ClientAddr net.Addr
	SendProxyProtocol bool
	ProxyProtocolVersion int

	// KeyPair and SessionClient are only consulted by ClientOnly.
	KeyPair *mccrypto.KeyPair
	SessionClient mccrypto.Authenticator

	PlayerFilter *filter.PlayerAllowDeny
	ConfigID string

	// ServerOnlyEnabled gates ServerOnly mode behind an explicit opt-in,
	// since the proxy can only mirror the wire-level encryption handshake
	// with the backend, not the player's own Mojang session — see
	// proxymode.ServerOnly's doc comment for the limitation this works
	// around.
	ServerOnlyEnabled bool
}

// Result is what a mode handler hands back once it has finished any
// mode-specific negotiation: connections ready to be relayed byte for
// byte by session.Supervisor.Relay, and the player identity (if known)
// for post-hoc filtering/logging.
type Result struct {
	ClientConn net.Conn
	BackendConn net.Conn
	Player filter.PlayerInfo
}

// IsLoginPath reports whether req represents a login-state connection
// (backend dial + relay) as opposed to a status-state ping.
func (r *Request) IsLoginPath() bool {
	return r.Handshake != nil && r.Handshake.NextState == mcproto.StateLogin
}

// writeOutboundProxyHeader emits req's configured PROXY protocol header as
// the first bytes on backend, immediately after DialBackend and before any
// handshake replay. A no-op when the route has proxy-protocol emission
// disabled.
func writeOutboundProxyHeader(req *Request, backend net.Conn) error {
	if !req.SendProxyProtocol {
		return nil
	}
	if err := session.WriteProxyHeader(backend, req.ProxyProtocolVersion, req.ClientAddr, backend.RemoteAddr()); err != nil {
		return errors.Wrap(err, "proxymode: write outbound proxy header")
	}
	return nil
}

// Handler runs one proxy mode's login/negotiation logic against req.
type Handler func(req *Request) (*Result, error)

// Run dispatches req to the Handler for mode. "Full" mode has no handler
// and is rejected before a Request is ever built, at config-validation
// time.
func Run(mode route.ProxyMode, req *Request) (*Result, error) {
	switch mode {
	case route.ModePassthrough:
		return Passthrough(req)
	case route.ModeOffline:
		return Offline(req)
	case route.ModeClientOnly:
		return ClientOnly(req)
	case route.ModeServerOnly:
		return ServerOnly(req)
	default:
		return nil, errors.Errorf("proxymode: unsupported mode %v", mode)
	}
}
