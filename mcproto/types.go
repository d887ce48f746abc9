// Package mcproto implements the wire-level framing, scalar codecs, and
// handshake/login/status packet shapes of the Minecraft Java protocol, from
// protocol version 47 (1.8) upward, plus the legacy pre-Netty server-list
// ping. It has no knowledge of routing, filtering, or backend selection.
package mcproto

import (
	"fmt"

	"github.com/google/uuid"
)

// State mirrors the handshake's next_state selector.
type State int

const (
	StateHandshaking State = 0
	StateStatus State = 1
	StateLogin State = 2
	StateTransfer State = 3
)

const (
	// PacketIdHandshake is the single packet ID valid in StateHandshaking.
	PacketIdHandshake = 0x00
	// PacketIdLegacyServerListPing is the 0xFE lead byte of a pre-1.7 ping.
	PacketIdLegacyServerListPing = 0xFE

	// MaxStringLength is the maximum UTF-16 code unit length of a
	// varint-prefixed Minecraft string.
	MaxStringLength = 32767

	// DefaultMaxFrameBytes bounds a single frame absent an override.
	DefaultMaxFrameBytes = 2 * 1024 * 1024
)

// Frame is a length-prefixed blob: the varint length has already been
// consumed and Payload holds exactly Length bytes (packet id + body).
type Frame struct {
	Length int
	Payload []byte
}

// Packet is a decoded Frame: the leading packet-id varint has been peeled
// off Payload into PacketID, and Data holds the remaining packet body.
type Packet struct {
	// Length is the on-wire frame length (id + body), not including the
	// length-prefix varint's own byte count.
	Length int
	PacketID int
	Data []byte
}

func (p *Packet) String() string {
	trimmed, cont := trimBytes(p.Data)
	return fmt.Sprintf("Packet[len=%d id=%d data=%#x%s]", p.Length, p.PacketID, trimmed, cont)
}

var trimLimit = 64

func trimBytes(data []byte) ([]byte, string) {
	if len(data) < trimLimit {
		return data, ""
	}
	return data[:trimLimit], "..."
}

// Handshake is packet 0x00 in StateHandshaking.
type Handshake struct {
	ProtocolVersion int
	// ServerAddress is the raw string as sent by the client, including any
	// null-delimited FML/BungeeCord suffix. Callers that need the routing
	// key should use ResolutionHost.
	ServerAddress string
	ServerPort uint16
	NextState State
}

// ResolutionHost returns the substring up to the first null byte,
// lower-cased and with a trailing dot removed. The full ServerAddress is preserved
// separately so passthrough/replay modes can forward it byte-identically.
func (h *Handshake) ResolutionHost() string {
	return truncateAtNull(h.ServerAddress)
}

// LoginStart is packet 0x00 in StateLogin (name + optional UUID depending on
// protocol version); only the fields the router inspects are modeled here.
type LoginStart struct {
	Name string
	HasUUID bool
	PlayerUUID uuid.UUID
}

// LegacyServerListPing is the pre-1.7 (protocol < 39) 0xFE ping, decoded far
// enough to extract a routable host.
type LegacyServerListPing struct {
	ProtocolVersion int
	ServerAddress string
	ServerPort uint16
}
