package proxymode

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mc-gateway/gateway/mccrypto"
	"github.com/mc-gateway/gateway/mcproto"
)

func listenBackend(t *testing.T) (net.Listener, <-chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	conns := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conns <- conn
		}
	}()
	return ln, conns
}

func TestPassthroughReplaysRawBytes(t *testing.T) {
	ln, conns := listenBackend(t)
	defer ln.Close()

	clientLocal, clientRemote := net.Pipe()
	defer clientRemote.Close()

	req := &Request{
		Ctx:               context.Background(),
		ClientConn:        clientLocal,
		RawHandshakeFrame: []byte{0x07, 0x00, 0x2f, 0x00},
		RawNextFrame:      []byte{0x01, 0x00},
		BackendAddresses:  []string{ln.Addr().String()},
	}

	result, err := Passthrough(req)
	require.NoError(t, err)
	defer result.BackendConn.Close()

	backend := <-conns
	defer backend.Close()

	buf := make([]byte, len(req.RawHandshakeFrame)+len(req.RawNextFrame))
	_, err = readFull(backend, buf)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, req.RawHandshakeFrame...), req.RawNextFrame...), buf)
}

func TestOfflineReencodesHandshakeAndLoginStart(t *testing.T) {
	ln, conns := listenBackend(t)
	defer ln.Close()

	clientLocal, clientRemote := net.Pipe()
	defer clientRemote.Close()

	req := &Request{
		Ctx:        context.Background(),
		ClientConn: clientLocal,
		Handshake: &mcproto.Handshake{
			ProtocolVersion: 47,
			ServerAddress:   "play.example.com",
			ServerPort:      25565,
			NextState:       mcproto.StateLogin,
		},
		LoginStart:       &mcproto.LoginStart{Name: "Notch"},
		BackendAddresses: []string{ln.Addr().String()},
	}

	result, err := Offline(req)
	require.NoError(t, err)
	defer result.BackendConn.Close()
	assert.Equal(t, "Notch", result.Player.Name)

	backend := <-conns
	defer backend.Close()

	br := bufio.NewReader(backend)
	pkt, err := mcproto.ReadPacket(br, mcproto.DefaultMaxFrameBytes)
	require.NoError(t, err)
	hs, err := mcproto.ReadHandshake(pkt.Data)
	require.NoError(t, err)
	assert.Equal(t, "play.example.com", hs.ServerAddress)

	pkt2, err := mcproto.ReadPacket(br, mcproto.DefaultMaxFrameBytes)
	require.NoError(t, err)
	ls, err := mcproto.ReadLoginStart(pkt2.Data, false)
	require.NoError(t, err)
	assert.Equal(t, "Notch", ls.Name)
}

// fakeAuthenticator satisfies mccrypto.Authenticator without reaching the
// real Mojang session server.
type fakeAuthenticator struct {
	profile mccrypto.Profile
	err     error
}

func (f *fakeAuthenticator) HasJoined(ctx context.Context, username, serverHash string) (mccrypto.Profile, error) {
	return f.profile, f.err
}

func TestClientOnlyFullHandshake(t *testing.T) {
	ln, conns := listenBackend(t)
	defer ln.Close()

	keyPair, err := mccrypto.GenerateKeyPair()
	require.NoError(t, err)

	profile := mccrypto.Profile{ID: uuid.New(), Name: "jeb_"}
	auth := &fakeAuthenticator{profile: profile}

	proxySide, clientSide := net.Pipe()
	defer clientSide.Close()

	req := &Request{
		Ctx:              context.Background(),
		ClientConn:       proxySide,
		Handshake:        &mcproto.Handshake{ProtocolVersion: 47, ServerAddress: "play.example.com", ServerPort: 25565, NextState: mcproto.StateLogin},
		LoginStart:       &mcproto.LoginStart{Name: "jeb_"},
		BackendAddresses: []string{ln.Addr().String()},
		KeyPair:          keyPair,
		SessionClient:    auth,
	}

	resultCh := make(chan *Result, 1)
	errCh := make(chan error, 1)
	go func() {
		result, err := ClientOnly(req)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- result
	}()

	clientReader := bufio.NewReader(clientSide)
	pkt, err := mcproto.ReadPacket(clientReader, mcproto.DefaultMaxFrameBytes)
	require.NoError(t, err)
	require.Equal(t, 0x01, pkt.PacketID)
	encReq, err := mcproto.ReadEncryptionRequest(pkt.Data)
	require.NoError(t, err)

	sharedSecret, err := mccrypto.NewSharedSecret()
	require.NoError(t, err)
	encryptedSecret, err := keyPair.EncryptWithPublicKey(sharedSecret)
	require.NoError(t, err)
	encryptedToken, err := keyPair.EncryptWithPublicKey(encReq.VerifyToken)
	require.NoError(t, err)

	_, err = clientSide.Write(mcproto.WriteEncryptionResponse(mcproto.EncryptionResponse{
		SharedSecret: encryptedSecret,
		VerifyToken:  encryptedToken,
	}))
	require.NoError(t, err)

	select {
	case err := <-errCh:
		t.Fatalf("ClientOnly failed: %v", err)
	case result := <-resultCh:
		defer result.BackendConn.Close()
		assert.Equal(t, profile.Name, result.Player.Name)
		assert.Equal(t, profile.ID, result.Player.UUID)

		// From here the wire is encrypted, framing header included, so the
		// client side must decrypt as it reads rather than parse the
		// ciphertext bytes directly.
		stream, err := mccrypto.NewStream(sharedSecret)
		require.NoError(t, err)
		decryptingClient := mccrypto.NewCipherConn(clientSide, stream)
		successPkt, err := mcproto.ReadPacket(bufio.NewReader(decryptingClient), mcproto.DefaultMaxFrameBytes)
		require.NoError(t, err)
		assert.Equal(t, 0x02, successPkt.PacketID)

		backend := <-conns
		defer backend.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ClientOnly result")
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
