package mcproto

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeRoundTrip(t *testing.T) {
	h := &Handshake{
		ProtocolVersion: 47,
		ServerAddress:   "play.example.com\x00FML\x00extra",
		ServerPort:      25565,
		NextState:       StateLogin,
	}

	packet := WriteHandshake(h)

	pkt, err := ReadPacket(bufio.NewReader(bytes.NewReader(packet)), DefaultMaxFrameBytes)
	require.NoError(t, err)
	assert.Equal(t, PacketIdHandshake, pkt.PacketID)

	decoded, err := ReadHandshake(pkt.Data)
	require.NoError(t, err)
	assert.Equal(t, h.ProtocolVersion, decoded.ProtocolVersion)
	assert.Equal(t, h.ServerAddress, decoded.ServerAddress)
	assert.Equal(t, h.ServerPort, decoded.ServerPort)
	assert.Equal(t, h.NextState, decoded.NextState)
	assert.Equal(t, "play.example.com", decoded.ResolutionHost())
}

func TestLoginStartRoundTripWithoutUUID(t *testing.T) {
	ls := &LoginStart{Name: "Notch"}
	packet := WriteLoginStart(ls)

	pkt, err := ReadPacket(bufio.NewReader(bytes.NewReader(packet)), DefaultMaxFrameBytes)
	require.NoError(t, err)

	decoded, err := ReadLoginStart(pkt.Data, false)
	require.NoError(t, err)
	assert.Equal(t, "Notch", decoded.Name)
	assert.False(t, decoded.HasUUID)
}

func TestLoginStartRoundTripWithUUID(t *testing.T) {
	id := uuid.New()
	ls := &LoginStart{Name: "jeb_", HasUUID: true, PlayerUUID: id}
	packet := WriteLoginStart(ls)

	pkt, err := ReadPacket(bufio.NewReader(bytes.NewReader(packet)), DefaultMaxFrameBytes)
	require.NoError(t, err)

	decoded, err := ReadLoginStart(pkt.Data, true)
	require.NoError(t, err)
	assert.Equal(t, "jeb_", decoded.Name)
	assert.True(t, decoded.HasUUID)
	assert.Equal(t, id, decoded.PlayerUUID)
}
