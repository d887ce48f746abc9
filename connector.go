package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mc-gateway/gateway/filter"
	"github.com/mc-gateway/gateway/mcerr"
	"github.com/mc-gateway/gateway/mcproto"
	"github.com/mc-gateway/gateway/motd"
	"github.com/mc-gateway/gateway/proxymode"
	"github.com/mc-gateway/gateway/route"
	"github.com/mc-gateway/gateway/servermanager"
	"github.com/mc-gateway/gateway/session"
)

// protocolWithMandatoryLoginUUID is the first protocol version (1.19, 759)
// whose login-start packet always carries the optional UUID field; below
// it the field is entirely absent. The wire format itself gives no other
// signal, so ReadLoginStart is told which shape to expect from this
// threshold rather than a client-declared flag.
const protocolWithMandatoryLoginUUID = 759

const motdSecondsPlaceholder = "${seconds_remaining}"

func substituteSeconds(text string, seconds int) string {
	return strings.ReplaceAll(text, motdSecondsPlaceholder, strconv.Itoa(seconds))
}

func legacyHost(addr string) string {
	head, _, _ := strings.Cut(addr, "\x00")
	return strings.ToLower(strings.TrimSuffix(head, "."))
}

func backendAddrString(conn net.Conn) string {
	if conn == nil {
		return ""
	}
	return conn.RemoteAddr().String()
}

// readExactPacket reads one frame from r and splits it into a Packet,
// alongside the exact wire bytes (length-prefix varint plus payload) that
// were consumed. ReadFrame's own reads (ReadVarInt one byte at a time,
// then io.ReadFull for the payload) never pull ahead of what they
// logically need, so tee-ing r during exactly one such call captures
// precisely that frame's bytes with no blur into whatever the client
// sends afterward — unlike wrapping the connection in a buffered reader,
// which reads an unpredictable extra chunk past the frame boundary.
func readExactPacket(r io.Reader, maxFrameBytes int) (*mcproto.Packet, []byte, error) {
	var raw bytes.Buffer
	frame, err := mcproto.ReadFrame(io.TeeReader(r, &raw), maxFrameBytes)
	if err != nil {
		return nil, nil, err
	}

	body := bytes.NewReader(frame.Payload)
	packetID, err := mcproto.ReadVarInt(body)
	if err != nil {
		return nil, nil, err
	}
	data := make([]byte, body.Len())
	if _, err := io.ReadFull(body, data); err != nil {
		return nil, nil, err
	}

	return &mcproto.Packet{Length: frame.Length, PacketID: int(packetID), Data: data}, raw.Bytes(), nil
}

// handleConnection is the entry point for every accepted client
// connection: global admission, handshake framing, route resolution,
// route-scoped admission, then a dispatch to the status or login path.
// Grounded on the teacher's connectorImpl.HandleConnection.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	clientAddr := conn.RemoteAddr()
	clientIP := addrIP(clientAddr)

	s.metrics.ConnectionsFrontend.Add(1)
	s.metrics.ActiveConnections.Add(1)
	defer s.metrics.ActiveConnections.Add(-1)

	if verdict := s.globalChain.Admit(clientIP); verdict != filter.VerdictAllow {
		s.metrics.FilterRejections.Add(1)
		logrus.WithField("client", clientAddr).WithField("reason", verdict.Reason()).Debug("gateway: rejected at global filter")
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.initialReadDeadline()))

	lead := make([]byte, 1)
	if _, err := io.ReadFull(conn, lead); err != nil {
		return
	}

	if mcproto.IsLegacyPingLeadByte(lead[0]) {
		s.handleLegacyPing(ctx, conn, io.MultiReader(bytes.NewReader(lead), conn))
		return
	}

	frameReader := io.MultiReader(bytes.NewReader(lead), conn)

	handshakePacket, rawHandshake, err := readExactPacket(frameReader, s.cfg.MaxFrameBytes)
	if err != nil {
		logrus.WithError(err).WithField("client", clientAddr).Debug("gateway: failed to read handshake")
		return
	}
	handshake, err := mcproto.ReadHandshake(handshakePacket.Data)
	if err != nil {
		logrus.WithError(err).WithField("client", clientAddr).Debug("gateway: malformed handshake")
		return
	}

	host := handshake.ResolutionHost()
	match, ok := s.routes.Lookup(host)
	if !ok {
		s.respondNoRoute(ctx, conn, handshake, clientAddr)
		return
	}
	cfg := match.Config

	chain, err := s.routeChain(cfg)
	if err != nil {
		logrus.WithError(err).WithField("route", cfg.ConfigID).Error("gateway: build route filter chain")
		return
	}
	if verdict := chain.Admit(clientIP); verdict != filter.VerdictAllow {
		s.metrics.FilterRejections.Add(1)
		s.respondFiltered(conn, handshake)
		return
	}

	nextPacket, rawNext, err := readExactPacket(frameReader, s.cfg.MaxFrameBytes)
	if err != nil {
		logrus.WithError(err).WithField("client", clientAddr).Debug("gateway: failed to read post-handshake packet")
		return
	}

	_ = conn.SetReadDeadline(time.Time{})

	switch handshake.NextState {
	case mcproto.StateStatus:
		s.handleStatus(ctx, conn, cfg, handshake.ProtocolVersion)
	case mcproto.StateLogin:
		s.handleLogin(ctx, conn, cfg, handshake, nextPacket, rawHandshake, rawNext, clientAddr)
	default:
		logrus.WithField("nextState", handshake.NextState).Debug("gateway: unsupported next state")
	}
}

// handleLegacyPing answers the pre-1.7 0xFE ping directly; a legacy
// client is never relayed to a backend, since nothing follows the ping.
func (s *Server) handleLegacyPing(ctx context.Context, conn net.Conn, r io.Reader) {
	ping, err := mcproto.ReadLegacyServerListPing(bufio.NewReader(r))
	if err != nil {
		logrus.WithError(err).Debug("gateway: malformed legacy ping")
		return
	}

	match, ok := s.routes.Lookup(legacyHost(ping.ServerAddress))
	if !ok {
		_ = mcproto.WriteLegacyStatusResponse(conn, ping.ProtocolVersion, "", s.cfg.DefaultMOTDs.UnableStatus, 0, 0)
		return
	}
	cfg := match.Config

	set := s.motdFor(cfg)
	state := s.backendState(ctx, cfg)
	seconds, _ := s.shutdownSecondsRemaining()

	protocol, version, text, online, max := set.LegacyRender(motd.BackendState(state), seconds)
	if protocol == 0 {
		protocol = ping.ProtocolVersion
	}
	_ = mcproto.WriteLegacyStatusResponse(conn, protocol, version, text, online, max)
}

// respondNoRoute serves the disposition ClassifyStatusPath/ClassifyLoginPath
// prescribe for ErrRouteNotFound: an "unable to determine status" MOTD on
// the status path, a login-phase disconnect on the login path.
func (s *Server) respondNoRoute(ctx context.Context, conn net.Conn, handshake *mcproto.Handshake, clientAddr net.Addr) {
	switch handshake.NextState {
	case mcproto.StateStatus:
		if mcerr.ClassifyStatusPath(mcerr.ErrRouteNotFound) == mcerr.DispositionMOTD {
			response := mcproto.StatusResponse{Description: mcproto.StatusText{Text: s.cfg.DefaultMOTDs.UnableStatus}}
			_ = mcproto.WriteStatusResponse(conn, response)
			s.answerOptionalPing(conn)
		}
	case mcproto.StateLogin:
		if mcerr.ClassifyLoginPath(mcerr.ErrRouteNotFound) == mcerr.DispositionDisconnect {
			_ = mcproto.WriteLoginDisconnect(conn, s.cfg.DefaultMOTDs.UnableStatus)
		}
		if s.notifier != nil {
			s.notifier.NotifyMissingBackend(ctx, clientAddr, "", nil)
		}
	}
}

// respondFiltered mirrors respondNoRoute for ErrFiltered.
func (s *Server) respondFiltered(conn net.Conn, handshake *mcproto.Handshake) {
	const reason = "Connection refused."
	switch handshake.NextState {
	case mcproto.StateStatus:
		if mcerr.ClassifyStatusPath(mcerr.ErrFiltered) == mcerr.DispositionMOTD {
			response := mcproto.StatusResponse{Description: mcproto.StatusText{Text: reason}}
			_ = mcproto.WriteStatusResponse(conn, response)
			s.answerOptionalPing(conn)
		}
	case mcproto.StateLogin:
		if mcerr.ClassifyLoginPath(mcerr.ErrFiltered) == mcerr.DispositionDisconnect {
			_ = mcproto.WriteLoginDisconnect(conn, reason)
		}
	}
}

// answerOptionalPing waits briefly for the status-state ping packet a
// well-behaved client sends after reading the status response, and echoes
// it back. A client that disconnects without pinging is not an error.
func (s *Server) answerOptionalPing(conn net.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	packet, _, err := readExactPacket(conn, mcproto.DefaultMaxFrameBytes)
	if err != nil || packet.PacketID != 0x01 {
		return
	}
	payload, err := mcproto.ReadPingPayload(bytes.NewReader(packet.Data))
	if err != nil {
		return
	}
	_ = mcproto.WritePongResponse(conn, payload)
}

// backendState reports cfg's managed backend lifecycle state, or
// StateRunning for a route with no ServerManager binding (nothing to
// track, so it is always presumed reachable at this layer).
func (s *Server) backendState(ctx context.Context, cfg *route.ServerConfig) servermanager.BackendState {
	if cfg.ServerManager == nil {
		return servermanager.StateRunning
	}
	manager, err := s.managers.Resolve(cfg.ServerManager.Provider)
	if err != nil {
		return servermanager.StateUnknown
	}
	state, err := manager.Status(ctx, cfg.ServerManager.ExternalID)
	if err != nil {
		return servermanager.StateUnknown
	}
	return state
}

// handleStatus answers a status-state connection entirely from the
// gateway's own state: the shutdown countdown, the server manager's
// reported lifecycle state, or (when the backend is otherwise presumed
// up) the per-route status cache backed by a live poll. It never dials
// proxymode for the status path, since ClientOnly/ServerOnly have no
// status behavior of their own and unifying on one path keeps status
// answering independent of proxy mode.
func (s *Server) handleStatus(ctx context.Context, conn net.Conn, cfg *route.ServerConfig, clientProtocol int) {
	set := s.motdFor(cfg)

	if seconds, draining := s.shutdownSecondsRemaining(); draining {
		response := set.Render(motd.BackendState("shutting_down"), seconds)
		_ = mcproto.WriteStatusResponse(conn, response)
		s.answerOptionalPing(conn)
		return
	}

	state := s.backendState(ctx, cfg)
	if cfg.ServerManager != nil && state != servermanager.StateRunning {
		response := set.Render(motd.BackendState(state), 0)
		_ = mcproto.WriteStatusResponse(conn, response)
		s.answerOptionalPing(conn)
		return
	}

	cache := s.statusCacheFor(cfg)
	cacheKey := strconv.Itoa(clientProtocol)
	if _, hit := cache.Peek(cacheKey); hit {
		s.metrics.StatusCacheHits.Add(1)
	} else {
		s.metrics.StatusCacheMisses.Add(1)
	}

	addresses := addressesOf(cfg)
	value, err := cache.GetOrFill(cacheKey, func() (any, error) {
		return pollBackendStatus(ctx, addresses, clientProtocol, s.cfg.MaxFrameBytes)
	})
	if err != nil {
		s.metrics.Errors.Add(1)
		response := set.Render(motd.StateUnknown, 0)
		_ = mcproto.WriteStatusResponse(conn, response)
		s.answerOptionalPing(conn)
		return
	}

	response, ok := value.(mcproto.StatusResponse)
	if !ok {
		s.metrics.Errors.Add(1)
		return
	}
	_ = mcproto.WriteStatusResponse(conn, response)
	s.answerOptionalPing(conn)
}

// pollBackendStatus performs one status-state round trip against a
// backend, declaring clientProtocol as the pinging protocol version so a
// backend that tailors its response per protocol (a version-aware proxy,
// a ViaVersion-backed server advertising per-protocol supported ranges)
// is polled the same way the connecting client would poll it. The result
// is cached under a key that includes clientProtocol, so distinct
// protocol versions never share an entry.
func pollBackendStatus(ctx context.Context, addresses []string, clientProtocol, maxFrameBytes int) (mcproto.StatusResponse, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := session.DialBackend(dialCtx, addresses)
	if err != nil {
		return mcproto.StatusResponse{}, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	handshake := &mcproto.Handshake{ProtocolVersion: clientProtocol, NextState: mcproto.StateStatus}
	if _, err := conn.Write(mcproto.WriteHandshake(handshake)); err != nil {
		return mcproto.StatusResponse{}, err
	}
	if _, err := conn.Write(mcproto.BuildPacket(0x00, nil)); err != nil {
		return mcproto.StatusResponse{}, err
	}

	packet, _, err := readExactPacket(conn, maxFrameBytes)
	if err != nil {
		return mcproto.StatusResponse{}, err
	}
	body, err := mcproto.ReadString(bytes.NewReader(packet.Data))
	if err != nil {
		return mcproto.StatusResponse{}, err
	}

	var response mcproto.StatusResponse
	if err := json.Unmarshal([]byte(body), &response); err != nil {
		return mcproto.StatusResponse{}, errors.Wrap(mcerr.ErrProtocolMalformed, "decode backend status json")
	}
	return response, nil
}

// handleLogin runs the login-path admission (player allow/deny, drain
// countdown, backend wake-up), dispatches to the configured proxy mode,
// and owns the session end to end via a Supervisor.
func (s *Server) handleLogin(ctx context.Context, conn net.Conn, cfg *route.ServerConfig, handshake *mcproto.Handshake, packet *mcproto.Packet, rawHandshake, rawNext []byte, clientAddr net.Addr) {
	hasUUID := handshake.ProtocolVersion >= protocolWithMandatoryLoginUUID
	loginStart, err := mcproto.ReadLoginStart(packet.Data, hasUUID)
	if err != nil {
		logrus.WithError(err).Debug("gateway: malformed login start")
		return
	}

	player := filter.PlayerInfo{Name: loginStart.Name, UUID: loginStart.PlayerUUID}

	if !s.currentPlayerLists().ServerAllows(cfg.ConfigID, player) {
		s.metrics.FilterRejections.Add(1)
		_ = mcproto.WriteLoginDisconnect(conn, "You are not whitelisted on this server.")
		return
	}

	if seconds, draining := s.shutdownSecondsRemaining(); draining {
		set := s.motdFor(cfg)
		text := set[motd.BackendState("shutting_down")].Text
		if text == "" {
			text = s.cfg.DefaultMOTDs.ShuttingDown
		}
		_ = mcproto.WriteLoginDisconnect(conn, substituteSeconds(text, seconds))
		return
	}

	var idleTimer *servermanager.IdleTimer
	if cfg.ServerManager != nil {
		var manager servermanager.Manager
		idleTimer, manager, err = s.idleTimerFor(ctx, cfg.ServerManager)
		if err != nil {
			_ = mcproto.WriteLoginDisconnect(conn, s.cfg.DefaultMOTDs.Unreachable)
			return
		}
		idleTimer.Cancel(cfg.ServerManager.ExternalID)

		state, statusErr := manager.Status(ctx, cfg.ServerManager.ExternalID)
		if statusErr != nil {
			state = servermanager.StateUnknown
		}
		if state != servermanager.StateRunning {
			s.metrics.BackendWakeUps.Add(1)
			started := time.Now()
			state, err = servermanager.WakeUp(ctx, manager, cfg.ServerManager.ExternalID, servermanager.DefaultWakeUpConfig())
			s.metrics.BackendWakeUpSeconds.Set(time.Since(started).Seconds())
			if err != nil {
				set := s.motdFor(cfg)
				text := set[motd.BackendState(state)].Text
				if text == "" {
					text = s.cfg.DefaultMOTDs.Starting
				}
				_ = mcproto.WriteLoginDisconnect(conn, substituteSeconds(text, 0))
				return
			}
		}
	}

	req := &proxymode.Request{
		Ctx: ctx,
		ClientConn: conn,
		RawHandshakeFrame: rawHandshake,
		RawNextFrame: rawNext,
		Handshake: handshake,
		LoginStart: loginStart,
		BackendAddresses: addressesOf(cfg),
		ClientAddr: clientAddr,
		SendProxyProtocol: cfg.SendProxyProtocol,
		ProxyProtocolVersion: cfg.ProxyProtocolVersion,
		KeyPair: s.keyPair,
		SessionClient: s.sessionClient,
		PlayerFilter: s.currentPlayerLists(),
		ConfigID: cfg.ConfigID,
		ServerOnlyEnabled: s.cfg.ServerOnlyEnabled,
	}

	result, err := proxymode.Run(cfg.Mode, req)
	if err != nil {
		s.metrics.Errors.Add(1)
		if s.notifier != nil {
			s.notifier.NotifyFailedBackend(ctx, clientAddr, cfg.ConfigID, &player, strings.Join(req.BackendAddresses, ","), err)
		}
		_ = mcproto.WriteLoginDisconnect(conn, s.cfg.DefaultMOTDs.Unreachable)
		return
	}

	s.metrics.ConnectionsBackend.Add(1)
	s.metrics.ServerLogins.Add(1)
	s.metrics.ServerActivePlayer.Add(1)
	defer s.metrics.ServerActivePlayer.Add(-1)

	sess := session.NewSession(clientAddr, cfg.ConfigID)
	sess.Username = result.Player.Name
	sup := session.NewSupervisor(sess)

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.sessions.Register(sess, cancel)
	defer s.sessions.Unregister(sess)

	if s.notifier != nil {
		s.notifier.NotifyConnected(ctx, clientAddr, cfg.ConfigID, &result.Player, backendAddrString(result.BackendConn))
	}

	if err := sup.Relay(sessionCtx, result.ClientConn, result.BackendConn); err != nil {
		logrus.WithError(err).WithField("route", cfg.ConfigID).Debug("gateway: session ended with error")
	}

	if s.notifier != nil {
		s.notifier.NotifyDisconnected(ctx, clientAddr, cfg.ConfigID, &result.Player, backendAddrString(result.BackendConn))
	}

	// Drop this session before counting, so the route's last session to end
	// starts the idle countdown.
	s.sessions.Unregister(sess)
	if cfg.ServerManager != nil && idleTimer != nil && s.sessions.CountForRoute(cfg.ConfigID) == 0 {
		if delay := time.Duration(cfg.ServerManager.EmptyShutdownSeconds) * time.Second; delay > 0 {
			idleTimer.Begin(cfg.ServerManager.ExternalID, delay)
		}
	}
}
