package proxymode

import (
	"bufio"

	"github.com/pkg/errors"

	"github.com/mc-gateway/gateway/filter"
	"github.com/mc-gateway/gateway/mccrypto"
	"github.com/mc-gateway/gateway/mcerr"
	"github.com/mc-gateway/gateway/mcproto"
	"github.com/mc-gateway/gateway/session"
)

// ServerOnly mirrors ClientOnly's encryption handshake onto the backend
// side of the connection: the proxy plays the client role against a
// backend that itself demands login encryption, while the real client
// connects to the proxy unauthenticated.
//
// This cannot satisfy the backend's Mojang session-server verification for
// an arbitrary connecting player: joining Mojang's session server requires
// the player's own OAuth access token, which the proxy never has. A
// backend using ServerOnly must therefore already trust the proxy's network
// path by some other means (IP allow-listing, a private network) rather
// than relying on hasJoined to authenticate individual players; the mode
// exists to give such backends an encrypted transport, not real
// per-player Mojang authentication. It is off unless ServerOnlyEnabled is
// set, so a misconfigured route cannot silently downgrade a backend's
// authentication expectations.
func ServerOnly(req *Request) (*Result, error) {
	if !req.ServerOnlyEnabled {
		return nil, errors.Wrap(mcerr.ErrInternal, "proxymode: ServerOnly mode is disabled for this route")
	}

	backend, err := session.DialBackend(req.Ctx, req.BackendAddresses)
	if err != nil {
		return nil, err
	}
	if err := writeOutboundProxyHeader(req, backend); err != nil {
		backend.Close()
		return nil, err
	}

	handshake := *req.Handshake
	handshake.NextState = mcproto.StateLogin
	if _, err := backend.Write(mcproto.WriteHandshake(&handshake)); err != nil {
		backend.Close()
		return nil, errors.Wrap(err, "proxymode: write handshake to backend")
	}

	var player filter.PlayerInfo
	if req.LoginStart != nil {
		if _, err := backend.Write(mcproto.WriteLoginStart(req.LoginStart)); err != nil {
			backend.Close()
			return nil, errors.Wrap(err, "proxymode: write login start to backend")
		}
		player = filter.PlayerInfo{Name: req.LoginStart.Name, UUID: req.LoginStart.PlayerUUID}
	}

	backendReader := bufio.NewReader(backend)
	pkt, err := mcproto.ReadPacket(backendReader, mcproto.DefaultMaxFrameBytes)
	if err != nil {
		backend.Close()
		return nil, errors.Wrap(err, "proxymode: read backend encryption request")
	}
	if pkt.PacketID != 0x01 {
		backend.Close()
		return nil, errors.Wrapf(mcerr.ErrAuthFailed, "expected encryption request from backend, got packet id %d", pkt.PacketID)
	}
	encReq, err := mcproto.ReadEncryptionRequest(pkt.Data)
	if err != nil {
		backend.Close()
		return nil, errors.Wrap(err, "proxymode: decode backend encryption request")
	}

	sharedSecret, err := mccrypto.NewSharedSecret()
	if err != nil {
		backend.Close()
		return nil, err
	}
	encryptedSecret, err := mccrypto.EncryptForPeer(encReq.PublicKey, sharedSecret)
	if err != nil {
		backend.Close()
		return nil, err
	}
	encryptedToken, err := mccrypto.EncryptForPeer(encReq.PublicKey, encReq.VerifyToken)
	if err != nil {
		backend.Close()
		return nil, err
	}

	resp := mcproto.EncryptionResponse{SharedSecret: encryptedSecret, VerifyToken: encryptedToken}
	if _, err := backend.Write(mcproto.WriteEncryptionResponse(resp)); err != nil {
		backend.Close()
		return nil, errors.Wrap(err, "proxymode: send encryption response to backend")
	}

	stream, err := mccrypto.NewStream(sharedSecret)
	if err != nil {
		backend.Close()
		return nil, err
	}
	cipherBackend := mccrypto.NewCipherConn(backend, stream)

	return &Result{
		ClientConn:  req.ClientConn,
		BackendConn: cipherBackend,
		Player:      player,
	}, nil
}
