package mcproto

import "bytes"

// ReadHandshake decodes packet 0x00 in StateHandshaking from data.
func ReadHandshake(data []byte) (*Handshake, error) {
	buf := bytes.NewReader(data)

	protocolVersion, err := ReadVarInt(buf)
	if err != nil {
		return nil, err
	}
	serverAddress, err := ReadString(buf)
	if err != nil {
		return nil, err
	}
	serverPort, err := ReadUnsignedShort(buf)
	if err != nil {
		return nil, err
	}
	nextState, err := ReadVarInt(buf)
	if err != nil {
		return nil, err
	}

	return &Handshake{
		ProtocolVersion: int(protocolVersion),
		ServerAddress:   serverAddress,
		ServerPort:      serverPort,
		NextState:       State(nextState),
	}, nil
}

// WriteHandshake re-encodes h as packet 0x00, used when replaying the
// handshake to a backend with a possibly-rewritten NextState.
func WriteHandshake(h *Handshake) []byte {
	var body bytes.Buffer
	_ = WriteVarInt(&body, int32(h.ProtocolVersion))
	_ = WriteString(&body, h.ServerAddress)
	_ = WriteUnsignedShort(&body, h.ServerPort)
	_ = WriteVarInt(&body, int32(h.NextState))
	return BuildPacket(PacketIdHandshake, body.Bytes())
}

// ReadLoginStart decodes packet 0x00 in StateLogin. hasUUIDField controls
// whether the optional trailing UUID field is present, which varies by
// protocol version; callers that don't know the version should read
// hasUUID as false for protocol versions below 1.19 (759) and true at or
// above it.
func ReadLoginStart(data []byte, hasUUIDField bool) (*LoginStart, error) {
	buf := bytes.NewReader(data)

	name, err := ReadString(buf)
	if err != nil {
		return nil, err
	}

	ls := &LoginStart{Name: name}
	if hasUUIDField && buf.Len() > 0 {
		hasUUID, err := ReadBoolean(buf)
		if err != nil {
			return nil, err
		}
		ls.HasUUID = hasUUID
		if hasUUID {
			id, err := ReadUUID(buf)
			if err != nil {
				return nil, err
			}
			ls.PlayerUUID = id
		}
	}
	return ls, nil
}

// WriteLoginStart re-encodes a LoginStart as packet 0x00 for replay to a
// backend, mirroring ReadLoginStart's name,bool,optional-uuid shape.
func WriteLoginStart(ls *LoginStart) []byte {
	var body bytes.Buffer
	_ = WriteString(&body, ls.Name)
	_ = WriteBoolean(&body, ls.HasUUID)
	if ls.HasUUID {
		_ = WriteUUID(&body, ls.PlayerUUID)
	}
	return BuildPacket(0x00, body.Bytes())
}
