package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteAccountingConservation(t *testing.T) {
	clientLocal, clientRemote := net.Pipe()
	backendLocal, backendRemote := net.Pipe()
	defer clientRemote.Close()
	defer backendRemote.Close()

	sess := NewSession(&net.TCPAddr{}, "route-a")
	sup := NewSupervisor(sess)
	sup.Linger = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())

	payload := []byte("hello backend")
	response := []byte("hello client")

	done := make(chan error, 1)
	go func() {
		done <- sup.Relay(ctx, clientLocal, backendLocal)
	}()

	go func() {
		buf := make([]byte, len(payload))
		_, _ = backendRemote.Read(buf)
		_, _ = backendRemote.Write(response)
	}()

	_, err := clientRemote.Write(payload)
	require.NoError(t, err)

	buf := make([]byte, len(response))
	_, err = clientRemote.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, response, buf)

	cancel()
	<-done

	assert.Equal(t, int64(len(payload)), sess.BytesClientToBackend.Load())
	assert.Equal(t, int64(len(response)), sess.BytesBackendToClient.Load())
}

func TestDialBackendFailsOverToNextAddress(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	conn, err := DialBackend(context.Background(), []string{"127.0.0.1:1", ln.Addr().String()})
	require.NoError(t, err)
	defer conn.Close()
}

func TestDialBackendExhaustsAllAddresses(t *testing.T) {
	_, err := DialBackend(context.Background(), []string{"127.0.0.1:1", "127.0.0.1:2"})
	require.Error(t, err)
}

func TestRegistryTracksByRoute(t *testing.T) {
	reg := NewRegistry()
	sess := NewSession(&net.TCPAddr{}, "route-a")
	kicked := false

	reg.Register(sess, func() { kicked = true })
	assert.Equal(t, 1, reg.CountForRoute("route-a"))

	assert.True(t, reg.Kick(sess.ID, ""))
	assert.True(t, kicked)

	reg.Unregister(sess)
	assert.Equal(t, 0, reg.CountForRoute("route-a"))
}
