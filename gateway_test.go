package gateway

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mc-gateway/gateway/filter"
	"github.com/mc-gateway/gateway/mccrypto"
	"github.com/mc-gateway/gateway/mcproto"
	"github.com/mc-gateway/gateway/route"
	"github.com/mc-gateway/gateway/session"
)

func testConfig() *Config {
	cfg := &Config{}
	cfg.ListenAddress = ":0"
	cfg.InitialReadDeadline = 5
	cfg.MaxFrameBytes = mcproto.DefaultMaxFrameBytes
	cfg.StatusCache.TTLSeconds = 30
	cfg.StatusCache.MaxEntries = 64
	cfg.RateLimiter.RequestsPerMinute = 600
	cfg.RateLimiter.BurstSize = 10
	cfg.DefaultMOTDs = DefaultMOTDs{UnableStatus: "no such route", Unreachable: "backend unreachable"}
	return cfg
}

func newTestServer(t *testing.T, cfg *Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	srv, err := NewServer(context.Background(), cfg, "")
	require.NoError(t, err)
	return srv
}

// statusOnlyBackend runs a minimal StateStatus responder good enough for
// pollBackendStatus: it reads a handshake and a status request and writes a
// single fixed response, once per accepted connection.
func statusOnlyBackend(t *testing.T, response mcproto.StatusResponse) (net.Listener, *int32counter) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	hits := &int32counter{}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			hits.add(1)
			go func(c net.Conn) {
				defer c.Close()
				br := bufio.NewReader(c)
				if _, err := mcproto.ReadPacket(br, mcproto.DefaultMaxFrameBytes); err != nil {
					return
				}
				if _, err := mcproto.ReadPacket(br, mcproto.DefaultMaxFrameBytes); err != nil {
					return
				}
				_ = mcproto.WriteStatusResponse(c, response)
			}(conn)
		}
	}()
	return ln, hits
}

type int32counter struct {
	n int
}

func (c *int32counter) add(d int) { c.n += d }

func handshakePacket(t *testing.T, protocol int32, host string, nextState mcproto.State) []byte {
	t.Helper()
	return mcproto.WriteHandshake(&mcproto.Handshake{
		ProtocolVersion: int(protocol),
		ServerAddress:   host,
		ServerPort:      25565,
		NextState:       nextState,
	})
}

// TestWildcardRoutingServesBackendStatus drives a real handshake through
// handleConnection against a wildcard-pattern route and confirms the status
// cache is consulted on the second request instead of dialing the backend
// again.
func TestWildcardRoutingServesBackendStatus(t *testing.T) {
	backendResponse := mcproto.StatusResponse{
		Version:     mcproto.StatusVersion{Name: "1.20.1", Protocol: 763},
		Players:     mcproto.StatusPlayers{Max: 20, Online: 3},
		Description: mcproto.StatusText{Text: "hello from backend"},
	}
	ln, hits := statusOnlyBackend(t, backendResponse)
	defer ln.Close()

	srv := newTestServer(t, nil)
	srv.routes.Put(&route.ServerConfig{
		ConfigID: "wildcard-route",
		Patterns: []string{"*.example.com"},
		Backends: []route.Backend{{Address: ln.Addr().String()}},
		Mode:     route.ModePassthrough,
	})

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		serverSide, clientSide := net.Pipe()
		go srv.handleConnection(ctx, serverSide)

		_, err := clientSide.Write(handshakePacket(t, 763, "sub.example.com", mcproto.StateStatus))
		require.NoError(t, err)
		_, err = clientSide.Write(mcproto.BuildPacket(0x00, nil))
		require.NoError(t, err)

		require.NoError(t, clientSide.SetReadDeadline(time.Now().Add(3*time.Second)))
		br := bufio.NewReader(clientSide)
		pkt, err := mcproto.ReadPacket(br, mcproto.DefaultMaxFrameBytes)
		require.NoError(t, err)
		assert.Equal(t, 0x00, pkt.PacketID)

		body, err := mcproto.ReadString(bytes.NewReader(pkt.Data))
		require.NoError(t, err)
		assert.Contains(t, body, "hello from backend")

		clientSide.Close()
	}

	assert.Equal(t, 1, hits.n, "second status request within TTL should be served from cache, not a second backend dial")
}

// TestStatusCacheKeyedByProtocolVersion confirms two clients declaring
// different protocol versions against the same route each trigger their own
// backend poll, rather than sharing one cache entry keyed by route alone.
func TestStatusCacheKeyedByProtocolVersion(t *testing.T) {
	backendResponse := mcproto.StatusResponse{
		Version:     mcproto.StatusVersion{Name: "1.20.1", Protocol: 763},
		Players:     mcproto.StatusPlayers{Max: 20, Online: 3},
		Description: mcproto.StatusText{Text: "hello from backend"},
	}
	ln, hits := statusOnlyBackend(t, backendResponse)
	defer ln.Close()

	srv := newTestServer(t, nil)
	srv.routes.Put(&route.ServerConfig{
		ConfigID: "protocol-split-route",
		Patterns: []string{"mc.example.com"},
		Backends: []route.Backend{{Address: ln.Addr().String()}},
		Mode:     route.ModePassthrough,
	})

	ctx := context.Background()
	for _, protocol := range []int32{47, 763} {
		serverSide, clientSide := net.Pipe()
		go srv.handleConnection(ctx, serverSide)

		_, err := clientSide.Write(handshakePacket(t, protocol, "mc.example.com", mcproto.StateStatus))
		require.NoError(t, err)
		_, err = clientSide.Write(mcproto.BuildPacket(0x00, nil))
		require.NoError(t, err)

		require.NoError(t, clientSide.SetReadDeadline(time.Now().Add(3*time.Second)))
		br := bufio.NewReader(clientSide)
		_, err = mcproto.ReadPacket(br, mcproto.DefaultMaxFrameBytes)
		require.NoError(t, err)

		clientSide.Close()
	}

	assert.Equal(t, 2, hits.n, "distinct protocol versions must each miss the cache and poll the backend independently")
}

// TestGlobalRateLimiterAdmitsBurstThenRejects exercises the exact
// requests-per-minute/burst configuration wired into the global filter
// chain by NewServer.
func TestGlobalRateLimiterAdmitsBurstThenRejects(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimiter.RequestsPerMinute = 600
	cfg.RateLimiter.BurstSize = 10
	srv := newTestServer(t, cfg)

	addr := netip.MustParseAddr("203.0.113.7")
	for i := 0; i < 10; i++ {
		require.Equal(t, filter.VerdictAllow, srv.globalChain.Admit(addr), "burst request %d should be admitted", i)
	}
	assert.Equal(t, filter.VerdictRateLimited, srv.globalChain.Admit(addr), "11th immediate request should exceed the burst")
}

// TestGracefulShutdownKicksLiveSessions confirms Shutdown schedules every
// registered session to be kicked no later than the configured drain grace
// period.
func TestGracefulShutdownKicksLiveSessions(t *testing.T) {
	cfg := testConfig()
	cfg.DrainGraceSeconds = 1
	srv := newTestServer(t, cfg)

	sess := session.NewSession(&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 12345}, "some-route")
	kicked := make(chan struct{})
	srv.sessions.Register(sess, func() { close(kicked) })
	defer srv.sessions.Unregister(sess)

	srv.Shutdown()

	remaining, draining := srv.shutdownSecondsRemaining()
	require.True(t, draining)
	assert.GreaterOrEqual(t, remaining, 0)

	select {
	case <-kicked:
	case <-time.After(2 * time.Second):
		t.Fatal("session was not kicked before the drain grace period elapsed")
	}

	remaining, draining = srv.shutdownSecondsRemaining()
	require.True(t, draining)
	assert.Equal(t, 0, remaining)
}

// fakeAuthenticator satisfies mccrypto.Authenticator without reaching the
// real Mojang session server.
type fakeAuthenticator struct {
	profile mccrypto.Profile
}

func (f *fakeAuthenticator) HasJoined(ctx context.Context, username, serverHash string) (mccrypto.Profile, error) {
	return f.profile, nil
}

// TestClientOnlyLoginThroughConnector drives a full ClientOnly login
// through handleConnection: handshake, login start, the RSA/AES-CFB8
// encryption handshake with a fake Mojang authenticator, and confirms the
// backend receives a re-encoded, unencrypted handshake and login start.
func TestClientOnlyLoginThroughConnector(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	backendConns := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			backendConns <- conn
		}
	}()

	cfg := testConfig()
	srv := newTestServer(t, cfg)

	profile := mccrypto.Profile{ID: uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"), Name: "Steve"}
	srv.sessionClient = &fakeAuthenticator{profile: profile}

	srv.routes.Put(&route.ServerConfig{
		ConfigID: "client-only-route",
		Patterns: []string{"mc.test"},
		Backends: []route.Backend{{Address: ln.Addr().String()}},
		Mode:     route.ModeClientOnly,
	})

	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	ctx := context.Background()
	go srv.handleConnection(ctx, serverSide)

	_, err = clientSide.Write(handshakePacket(t, 754, "mc.test", mcproto.StateLogin))
	require.NoError(t, err)
	_, err = clientSide.Write(mcproto.BuildPacket(0x00, encodeLoginStart(t, "Steve")))
	require.NoError(t, err)

	require.NoError(t, clientSide.SetReadDeadline(time.Now().Add(3*time.Second)))
	clientReader := bufio.NewReader(clientSide)
	pkt, err := mcproto.ReadPacket(clientReader, mcproto.DefaultMaxFrameBytes)
	require.NoError(t, err)
	require.Equal(t, 0x01, pkt.PacketID)
	encReq, err := mcproto.ReadEncryptionRequest(pkt.Data)
	require.NoError(t, err)

	sharedSecret := make([]byte, 16)
	verifyTokenEcho := encReq.VerifyToken

	encryptedSecret, err := mccrypto.EncryptForPeer(encReq.PublicKey, sharedSecret)
	require.NoError(t, err)
	encryptedToken, err := mccrypto.EncryptForPeer(encReq.PublicKey, verifyTokenEcho)
	require.NoError(t, err)

	_, err = clientSide.Write(mcproto.WriteEncryptionResponse(mcproto.EncryptionResponse{
		SharedSecret: encryptedSecret,
		VerifyToken:  encryptedToken,
	}))
	require.NoError(t, err)

	stream, err := mccrypto.NewStream(sharedSecret)
	require.NoError(t, err)
	decryptingClient := mccrypto.NewCipherConn(clientSide, stream)

	require.NoError(t, clientSide.SetReadDeadline(time.Now().Add(3*time.Second)))
	successPkt, err := mcproto.ReadPacket(bufio.NewReader(decryptingClient), mcproto.DefaultMaxFrameBytes)
	require.NoError(t, err)
	assert.Equal(t, 0x02, successPkt.PacketID)

	select {
	case backend := <-backendConns:
		defer backend.Close()
		br := bufio.NewReader(backend)
		hsPkt, err := mcproto.ReadPacket(br, mcproto.DefaultMaxFrameBytes)
		require.NoError(t, err)
		hs, err := mcproto.ReadHandshake(hsPkt.Data)
		require.NoError(t, err)
		assert.Equal(t, "mc.test", hs.ServerAddress)

		lsPkt, err := mcproto.ReadPacket(br, mcproto.DefaultMaxFrameBytes)
		require.NoError(t, err)
		ls, err := mcproto.ReadLoginStart(lsPkt.Data, true)
		require.NoError(t, err)
		assert.Equal(t, "Steve", ls.Name)
		assert.Equal(t, profile.ID, ls.PlayerUUID)
	case <-time.After(3 * time.Second):
		t.Fatal("backend never accepted a connection")
	}
}

func encodeLoginStart(t *testing.T, name string) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, mcproto.WriteString(&buf, name))
	return buf.Bytes()
}
