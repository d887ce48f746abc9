package proxymode

import (
	"bufio"
	"crypto/subtle"

	"github.com/pkg/errors"

	"github.com/mc-gateway/gateway/filter"
	"github.com/mc-gateway/gateway/mccrypto"
	"github.com/mc-gateway/gateway/mcerr"
	"github.com/mc-gateway/gateway/mcproto"
	"github.com/mc-gateway/gateway/session"
)

// ClientOnly performs the full login-encryption handshake with the client
// (EncryptionRequest/Response, Mojang hasJoined verification), then relays
// to an Offline-mode backend using the authenticated profile's real name
// and UUID. Grounded on original_source/src/proxy_modes/client_only.rs for
// the handshake ordering, built on mccrypto's RSA/AES-CFB8 primitives.
func ClientOnly(req *Request) (*Result, error) {
	if req.KeyPair == nil || req.SessionClient == nil {
		return nil, errors.Wrap(mcerr.ErrInternal, "proxymode: ClientOnly requires a KeyPair and SessionClient")
	}

	verifyToken, err := mccrypto.NewVerifyToken()
	if err != nil {
		return nil, err
	}

	encReq := mcproto.EncryptionRequest{
		ServerID:    "",
		PublicKey:   req.KeyPair.PublicDER,
		VerifyToken: verifyToken,
	}
	if _, err := req.ClientConn.Write(mcproto.WriteEncryptionRequest(encReq)); err != nil {
		return nil, errors.Wrap(err, "proxymode: send encryption request")
	}

	clientReader := bufio.NewReader(req.ClientConn)
	pkt, err := mcproto.ReadPacket(clientReader, mcproto.DefaultMaxFrameBytes)
	if err != nil {
		return nil, errors.Wrap(err, "proxymode: read encryption response")
	}
	if pkt.PacketID != 0x01 {
		return nil, errors.Wrapf(mcerr.ErrAuthFailed, "expected encryption response, got packet id %d", pkt.PacketID)
	}
	encResp, err := mcproto.ReadEncryptionResponse(pkt.Data)
	if err != nil {
		return nil, errors.Wrap(err, "proxymode: decode encryption response")
	}

	sharedSecret, err := req.KeyPair.DecryptSharedSecret(encResp.SharedSecret)
	if err != nil {
		return nil, errors.Wrap(mcerr.ErrAuthFailed, "decrypt shared secret: "+err.Error())
	}
	echoedToken, err := req.KeyPair.DecryptVerifyToken(encResp.VerifyToken)
	if err != nil {
		return nil, errors.Wrap(mcerr.ErrAuthFailed, "decrypt verify token: "+err.Error())
	}
	if len(echoedToken) != len(verifyToken) || subtle.ConstantTimeCompare(echoedToken, verifyToken) != 1 {
		return nil, errors.Wrap(mcerr.ErrAuthFailed, "verify token mismatch")
	}

	stream, err := mccrypto.NewStream(sharedSecret)
	if err != nil {
		return nil, err
	}

	username := ""
	if req.LoginStart != nil {
		username = req.LoginStart.Name
	}
	serverHash := mccrypto.ServerHash(encReq.ServerID, sharedSecret, req.KeyPair.PublicDER)

	profile, err := req.SessionClient.HasJoined(req.Ctx, username, serverHash)
	if err != nil {
		return nil, err
	}

	cipherClient := mccrypto.NewCipherConn(req.ClientConn, stream)

	success := mcproto.LoginSuccess{UUID: profile.ID, Username: profile.Name}
	if _, err := cipherClient.Write(mcproto.WriteLoginSuccess(success)); err != nil {
		return nil, errors.Wrap(err, "proxymode: send login success")
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
	loginStart := &mcproto.LoginStart{Name: profile.Name, HasUUID: true, PlayerUUID: profile.ID}
	if _, err := backend.Write(mcproto.WriteLoginStart(loginStart)); err != nil {
		backend.Close()
		return nil, errors.Wrap(err, "proxymode: write login start to backend")
	}

	return &Result{
		ClientConn:  cipherClient,
		BackendConn: backend,
		Player:      filter.PlayerInfo{Name: profile.Name, UUID: profile.ID},
	}, nil
}
