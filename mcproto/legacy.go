package mcproto

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"unicode/utf16"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/mc-gateway/gateway/mcerr"
)

// ReadLegacyServerListPing decodes the pre-1.7 (client protocol < 39) 0xFE
// ping, including the 1.6-style "MC|PingHost" plugin-message variant that
// carries a hostname. Grounded on the teacher's mcproto/read.go.
func ReadLegacyServerListPing(r *bufio.Reader) (*LegacyServerListPing, error) {
	id, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if id != PacketIdLegacyServerListPing {
		return nil, errors.Wrapf(mcerr.ErrProtocolMalformed, "expected legacy ping id 0xFE, got %#x", id)
	}

	payload, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if payload != 0x01 {
		// Pre-1.6 client: no hostname available, route via default only.
		return &LegacyServerListPing{}, nil
	}

	pluginMsgID, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if pluginMsgID != 0xFA {
		return nil, errors.Wrapf(mcerr.ErrProtocolMalformed, "expected plugin message id 0xFA, got %#x", pluginMsgID)
	}

	nameLen, err := ReadUnsignedShort(r)
	if err != nil {
		return nil, err
	}
	name, err := readUTF16BEString(r, nameLen)
	if err != nil {
		return nil, err
	}
	if name != "MC|PingHost" {
		return nil, errors.Errorf("expected MC|PingHost, got %q", name)
	}

	remainingLen, err := ReadUnsignedShort(r)
	if err != nil {
		return nil, err
	}
	remaining := io.LimitReader(r, int64(remainingLen))

	var protocolVersion byte
	if err := binary.Read(remaining, binary.BigEndian, &protocolVersion); err != nil {
		return nil, err
	}

	hostLen, err := ReadUnsignedShort(remaining)
	if err != nil {
		return nil, err
	}
	host, err := readUTF16BEString(remaining, hostLen)
	if err != nil {
		return nil, err
	}

	var port uint32
	if err := binary.Read(remaining, binary.BigEndian, &port); err != nil {
		return nil, err
	}

	return &LegacyServerListPing{
		ProtocolVersion: int(protocolVersion),
		ServerAddress: host,
		ServerPort: uint16(port),
	}, nil
}

func readUTF16BEString(r io.Reader, symbolLen uint16) (string, error) {
	raw := make([]byte, int(symbolLen)*2)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", err
	}
	decoded, _, err := transform.Bytes(unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder(), raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// WriteLegacyStatusResponse writes the 1.6-compatible 0xFF kick-formatted
// legacy status response: "§1\x00" followed by NUL-joined
// {protocol, version, motd, online, max}, UTF-16BE encoded and
// length-prefixed.
func WriteLegacyStatusResponse(w io.Writer, protocol int, version, motd string, online, max int) error {
	s := "§1\x00" +
		itoa(protocol) + "\x00" +
		version + "\x00" +
		motd + "\x00" +
		itoa(online) + "\x00" +
		itoa(max)

	encoded := utf16.Encode([]rune(s))
	var be bytes.Buffer
	for _, v := range encoded {
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], v)
		be.Write(tmp[:])
	}

	bw := bufio.NewWriter(w)
	if err := bw.WriteByte(0xFF); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.BigEndian, uint16(len(encoded))); err != nil {
		return err
	}
	if _, err := bw.Write(be.Bytes()); err != nil {
		return err
	}
	return bw.Flush()
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	pos := len(buf)
	for v > 0 {
		pos--
		buf[pos] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
