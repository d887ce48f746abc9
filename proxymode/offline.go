package proxymode

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/mc-gateway/gateway/filter"
	"github.com/mc-gateway/gateway/mcproto"
	"github.com/mc-gateway/gateway/session"
)

// Offline dials the backend and re-encodes the handshake and (on the
// login path) login-start packets from their decoded form, rather than
// replaying raw bytes as Passthrough does. Functionally the bytes on the
// wire are the same; the point of decoding fully here is that Offline is
// the mode used whenever a caller needs to inspect or, in a future
// extension, rewrite a field (e.g. the advertised server address) before
// forwarding, without that capability existing only in Passthrough's
// byte-identical path.
func Offline(req *Request) (*Result, error) {
	backend, err := session.DialBackend(req.Ctx, req.BackendAddresses)
	if err != nil {
		return nil, err
	}
	if err := writeOutboundProxyHeader(req, backend); err != nil {
		backend.Close()
		return nil, err
	}

	handshakePacket := mcproto.WriteHandshake(req.Handshake)
	if _, err := backend.Write(handshakePacket); err != nil {
		backend.Close()
		return nil, errors.Wrap(err, "proxymode: write handshake to backend")
	}

	var player filter.PlayerInfo
	if req.LoginStart != nil {
		loginPacket := mcproto.WriteLoginStart(req.LoginStart)
		if req.Handshake.ProtocolVersion < 759 {
			// Below 1.19 the login start carries the name only.
			var body bytes.Buffer
			_ = mcproto.WriteString(&body, req.LoginStart.Name)
			loginPacket = mcproto.BuildPacket(0x00, body.Bytes())
		}
		if _, err := backend.Write(loginPacket); err != nil {
			backend.Close()
			return nil, errors.Wrap(err, "proxymode: write login start to backend")
		}
		player = filter.PlayerInfo{Name: req.LoginStart.Name, UUID: req.LoginStart.PlayerUUID}
	} else if len(req.RawNextFrame) > 0 {
		// Status path: the status-request packet body is empty, so there is
		// nothing to re-encode; replay it verbatim.
		if _, err := backend.Write(req.RawNextFrame); err != nil {
			backend.Close()
			return nil, errors.Wrap(err, "proxymode: replay status request to backend")
		}
	}

	return &Result{
		ClientConn:  req.ClientConn,
		BackendConn: backend,
		Player:      player,
	}, nil
}
