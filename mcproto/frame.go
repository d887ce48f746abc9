package mcproto

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mc-gateway/gateway/mcerr"
)

// ReadFrame reads a single length-prefixed frame, bounded by maxFrameBytes.
// Passing 0 uses DefaultMaxFrameBytes.
func ReadFrame(r io.Reader, maxFrameBytes int) (*Frame, error) {
	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}

	length, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if length < 0 || int(length) > maxFrameBytes {
		return nil, errors.Wrapf(mcerr.ErrProtocolOversize, "frame length %d exceeds maximum %d", length, maxFrameBytes)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	return &Frame{Length: int(length), Payload: payload}, nil
}

// WriteFrame writes a length-prefixed frame carrying payload verbatim.
func WriteFrame(w io.Writer, payload []byte) error {
	if err := WriteVarInt(w, int32(len(payload))); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// BuildPacket frames packetID and body into a ready-to-write byte slice:
// [length varint][packetID varint][body].
func BuildPacket(packetID int32, body []byte) []byte {
	var inner bytes.Buffer
	_ = WriteVarInt(&inner, packetID)
	inner.Write(body)

	var framed bytes.Buffer
	_ = WriteVarInt(&framed, int32(inner.Len()))
	framed.Write(inner.Bytes())
	return framed.Bytes()
}

// ReadPacket reads one frame and splits its payload into a packet ID and
// body. It first peeks a single byte and rejects a 0xFE lead byte (the
// legacy ping, which is not varint-framed at all) with ErrProtocolMalformed.
func ReadPacket(r *bufio.Reader, maxFrameBytes int) (*Packet, error) {
	if lead, err := r.Peek(1); err == nil && lead[0] == PacketIdLegacyServerListPing {
		return nil, errors.Wrap(mcerr.ErrProtocolMalformed, "legacy ping must be read with ReadLegacyServerListPing")
	}

	frame, err := ReadFrame(r, maxFrameBytes)
	if err != nil {
		return nil, err
	}

	body := bytes.NewReader(frame.Payload)
	packetID, err := ReadVarInt(body)
	if err != nil {
		return nil, err
	}

	remaining := make([]byte, body.Len())
	if _, err := io.ReadFull(body, remaining); err != nil {
		return nil, err
	}

	// Frame.Length already counts the packetID varint bytes; report the
	// on-wire frame length for logging/accounting purposes.
	logrus.WithField("packetID", packetID).WithField("length", frame.Length).Debug("mcproto: read packet")

	return &Packet{Length: frame.Length, PacketID: int(packetID), Data: remaining}, nil
}

// IsLegacyPingLeadByte reports whether b is the lead byte of a pre-Netty
// server-list ping.
func IsLegacyPingLeadByte(b byte) bool {
	return b == PacketIdLegacyServerListPing
}
