package session

import (
	"context"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/pires/go-proxyproto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mc-gateway/gateway/mcerr"
)

// Supervisor owns the steady-state relay of one already-connected client
// and backend pair: the two half-duplex forwarders, byte accounting, and
// the session state machine, until either side closes or the root context
// is cancelled. DialBackend and WriteProxyHeader are package-level helpers
// a proxymode.Handler calls before a Supervisor ever sees the connection.
// Grounded on the teacher's connectorImpl (findAndConnectBackend +
// pumpConnections + pumpFrames), generalized into an explicit state
// machine with per-session registration and cancellation instead of the
// teacher's single-shot goroutine pair.
type Supervisor struct {
	Session *Session

	BufferSize int
	Linger time.Duration
}

// NewSupervisor builds a Supervisor for an already-constructed Session,
// with the defaults for buffer size and linger.
func NewSupervisor(sess *Session) *Supervisor {
	return &Supervisor{
		Session: sess,
		BufferSize: DefaultBufferSize,
		Linger: DefaultLinger,
	}
}

// DialBackend tries each address in order, returning the first successful
// connection. All addresses failing yields mcerr.ErrBackendUnreachable.
func DialBackend(ctx context.Context, addresses []string) (net.Conn, error) {
	var dialer net.Dialer
	var lastErr error
	for _, addr := range addresses {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		logrus.WithError(err).WithField("backend", addr).Debug("session: backend dial failed, trying next")
	}
	if lastErr == nil {
		lastErr = errors.New("no backend addresses configured")
	}
	return nil, errors.Wrap(mcerr.ErrBackendUnreachable, lastErr.Error())
}

// WriteProxyHeader emits a v1 or v2 PROXY protocol header identifying
// clientAddr as the source and backendAddr as the destination, ahead of
// any Minecraft bytes. Grounded on the teacher's manual
// proxyproto.Header construction in connector.go.
func WriteProxyHeader(w io.Writer, version int, clientAddr, backendAddr net.Addr) error {
	clientHost, clientPortStr, err := net.SplitHostPort(clientAddr.String())
	if err != nil {
		return errors.Wrap(err, "session: split client address")
	}
	clientPort, _ := strconv.Atoi(clientPortStr)

	backendHost, backendPortStr, err := net.SplitHostPort(backendAddr.String())
	if err != nil {
		return errors.Wrap(err, "session: split backend address")
	}
	backendPort, _ := strconv.Atoi(backendPortStr)

	transport := proxyproto.TCPv4
	if net.ParseIP(clientHost).To4() == nil {
		transport = proxyproto.TCPv6
	}

	header := &proxyproto.Header{
		Version: byte(version),
		Command: proxyproto.PROXY,
		TransportProtocol: transport,
		SourceAddr: &net.TCPAddr{IP: net.ParseIP(clientHost), Port: clientPort},
		DestinationAddr: &net.TCPAddr{IP: net.ParseIP(backendHost), Port: backendPort},
	}
	_, err = header.WriteTo(w)
	return err
}

// Relay runs the steady-state two-way byte shovel between client and
// backend until one side terminates, then closes both connections after
// Linger and returns. It transitions the Session through Active ->
// Draining -> Done/Failed.
func (sup *Supervisor) Relay(ctx context.Context, client, backend net.Conn) error {
	sup.Session.setState(StateActive)

	results := make(chan forwardResult, 2)

	forwardCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go runForwarder(forwardCtx, "client->backend", client, backend, sup.BufferSize,
		NewAtomicCounter(func(delta int64) { sup.Session.BytesClientToBackend.Add(delta) }), sup.Session.touch, results)
	go runForwarder(forwardCtx, "backend->client", backend, client, sup.BufferSize,
		NewAtomicCounter(func(delta int64) { sup.Session.BytesBackendToClient.Add(delta) }), sup.Session.touch, results)

	var first forwardResult
	select {
	case first = <-results:
	case <-ctx.Done():
		sup.Session.setState(StateDraining)
		cancel()
		closeAfterLinger(context.Background(), sup.Linger, client, backend)
		<-results
		<-results
		sup.Session.setState(StateDone)
		return ctx.Err()
	}

	sup.Session.setState(StateDraining)
	cancel()
	closeAfterLinger(context.Background(), sup.Linger, client, backend)
	second := <-results

	if first.err != nil || second.err != nil {
		sup.Session.setState(StateFailed)
		if first.err != nil {
			return first.err
		}
		return second.err
	}

	sup.Session.setState(StateDone)
	return nil
}
