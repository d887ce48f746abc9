package mcproto

import (
	"io"

	"github.com/pkg/errors"

	"github.com/mc-gateway/gateway/mcerr"
)

// maxVarIntBytes is the largest number of bytes a 32-bit VarInt can occupy.
const maxVarIntBytes = 5

// ReadVarInt decodes a Minecraft VarInt: 7 bits per byte, little-endian
// group order, continuation bit in the high bit. The 5th byte's
// continuation bit must be clear or the value is malformed.
func ReadVarInt(r io.Reader) (int32, error) {
	var result int32
	var b [1]byte
	for numRead := 0; numRead < maxVarIntBytes; numRead++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		value := int32(b[0] & 0x7F)
		result |= value << (7 * numRead)

		if b[0]&0x80 == 0 {
			return result, nil
		}
	}
	return 0, errors.Wrap(mcerr.ErrProtocolMalformed, "VarInt is more than 5 bytes")
}

// WriteVarInt encodes value into w in Minecraft VarInt form.
func WriteVarInt(w io.Writer, value int32) error {
	var buf [maxVarIntBytes]byte
	i := 0
	v := uint32(value)
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf[i] = b
		i++
		if v == 0 {
			break
		}
	}
	_, err := w.Write(buf[:i])
	return err
}

// VarIntSize returns the number of bytes WriteVarInt would emit for value,
// used to size compressed-frame headers without a scratch buffer.
func VarIntSize(value int32) int {
	v := uint32(value)
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
