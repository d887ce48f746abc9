package proxymode

import (
	"github.com/pkg/errors"

	"github.com/mc-gateway/gateway/filter"
	"github.com/mc-gateway/gateway/session"
)

// Passthrough dials the backend and replays the exact bytes read while
// routing, then hands both connections back untouched for relaying. It
// never reinterprets the login-start packet beyond what routing already
// required — the backend sees byte-identical traffic to what the client
// sent, matching the teacher's connectorImpl.
func Passthrough(req *Request) (*Result, error) {
	backend, err := session.DialBackend(req.Ctx, req.BackendAddresses)
	if err != nil {
		return nil, err
	}
	if err := writeOutboundProxyHeader(req, backend); err != nil {
		backend.Close()
		return nil, err
	}

	if _, err := backend.Write(req.RawHandshakeFrame); err != nil {
		backend.Close()
		return nil, errors.Wrap(err, "proxymode: replay handshake to backend")
	}
	if len(req.RawNextFrame) > 0 {
		if _, err := backend.Write(req.RawNextFrame); err != nil {
			backend.Close()
			return nil, errors.Wrap(err, "proxymode: replay next frame to backend")
		}
	}

	var player filter.PlayerInfo
	if req.LoginStart != nil {
		player = filter.PlayerInfo{Name: req.LoginStart.Name, UUID: req.LoginStart.PlayerUUID}
	}

	return &Result{
		ClientConn:  req.ClientConn,
		BackendConn: backend,
		Player:      player,
	}, nil
}
