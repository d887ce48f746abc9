package mcproto

import (
	"encoding/binary"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mc-gateway/gateway/mcerr"
)

// ReadString decodes a VarInt-length-prefixed UTF-8 string. Length is in
// UTF-16 code units per the protocol; treated here as a byte-length bound
// (ASCII/UTF-8 hostnames and usernames never exceed this in practice) but
// still enforced as a ceiling.
func ReadString(r io.Reader) (string, error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return "", err
	}
	if length < 0 || length > MaxStringLength {
		return "", errors.Wrapf(mcerr.ErrProtocolMalformed, "string length %d exceeds maximum %d", length, MaxStringLength)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteString encodes s as a VarInt-length-prefixed string.
func WriteString(w io.Writer, s string) error {
	if len(s) > MaxStringLength {
		return errors.Wrapf(mcerr.ErrProtocolMalformed, "string length %d exceeds maximum %d", len(s), MaxStringLength)
	}
	if err := WriteVarInt(w, int32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadUnsignedShort reads a big-endian uint16.
func ReadUnsignedShort(r io.Reader) (uint16, error) {
	var v uint16
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

// WriteUnsignedShort writes v as a big-endian uint16.
func WriteUnsignedShort(w io.Writer, v uint16) error {
	return binary.Write(w, binary.BigEndian, v)
}

// ReadLong reads a big-endian signed 64-bit integer.
func ReadLong(r io.Reader) (int64, error) {
	var v int64
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

// ReadBoolean reads a single boolean byte.
func ReadBoolean(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// ReadByteArray reads a fixed-length byte slice (length already known from
// a preceding VarInt, e.g. the player-key blobs in login-start).
func ReadByteArray(r io.Reader, length int32) ([]byte, error) {
	if length < 0 {
		return nil, errors.Wrap(mcerr.ErrProtocolMalformed, "negative byte array length")
	}
	buf := make([]byte, length)
	_, err := io.ReadFull(r, buf)
	return buf, err
}

// ReadVarIntByteArray reads a VarInt-length-prefixed byte array, the shape
// used by the encryption handshake's public-key and token fields.
func ReadVarIntByteArray(r io.Reader) ([]byte, error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	return ReadByteArray(r, length)
}

// WriteVarIntByteArray writes data as a VarInt-length-prefixed byte array.
func WriteVarIntByteArray(w io.Writer, data []byte) error {
	if err := WriteVarInt(w, int32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// ReadUUID reads a 16-byte raw (non-hyphenated) UUID.
func ReadUUID(r io.Reader) (uuid.UUID, error) {
	var buf [16]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(buf[:])
}

// WriteUUID writes u as 16 raw bytes.
func WriteUUID(w io.Writer, u uuid.UUID) error {
	_, err := w.Write(u[:])
	return err
}

// WriteBoolean writes a single boolean byte, the inverse of ReadBoolean.
func WriteBoolean(w io.Writer, b bool) error {
	v := byte(0)
	if b {
		v = 1
	}
	_, err := w.Write([]byte{v})
	return err
}

// truncateAtNull mirrors the FML/BungeeCord forwarding convention: strip
// anything from the first null byte onward and lower-case what remains.
// The full string (including the suffix) is preserved by the
// caller for verbatim replay.
func truncateAtNull(host string) string {
	head, _, _ := strings.Cut(host, "\x00")
	return strings.ToLower(strings.TrimSuffix(head, "."))
}
