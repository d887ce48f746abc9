package mcproto

import (
	"bytes"

	"github.com/google/uuid"
)

// EncryptionRequest is packet 0x01 in StateLogin, sent server-to-client to
// begin the login-encryption handshake.
type EncryptionRequest struct {
	ServerID string
	PublicKey []byte
	VerifyToken []byte
}

// WriteEncryptionRequest builds packet 0x01 in StateLogin.
func WriteEncryptionRequest(req EncryptionRequest) []byte {
	var body bytes.Buffer
	_ = WriteString(&body, req.ServerID)
	_ = WriteVarIntByteArray(&body, req.PublicKey)
	_ = WriteVarIntByteArray(&body, req.VerifyToken)
	return BuildPacket(0x01, body.Bytes())
}

// ReadEncryptionRequest decodes packet 0x01 in StateLogin.
func ReadEncryptionRequest(data []byte) (*EncryptionRequest, error) {
	buf := bytes.NewReader(data)

	serverID, err := ReadString(buf)
	if err != nil {
		return nil, err
	}
	publicKey, err := ReadVarIntByteArray(buf)
	if err != nil {
		return nil, err
	}
	verifyToken, err := ReadVarIntByteArray(buf)
	if err != nil {
		return nil, err
	}
	return &EncryptionRequest{ServerID: serverID, PublicKey: publicKey, VerifyToken: verifyToken}, nil
}

// EncryptionResponse is packet 0x01 in StateLogin, client-to-server.
type EncryptionResponse struct {
	SharedSecret []byte
	VerifyToken []byte
}

// WriteEncryptionResponse builds packet 0x01 in StateLogin (the server-bound
// direction reuses the same packet id as EncryptionRequest, since they
// belong to opposite directions of the same sub-protocol).
func WriteEncryptionResponse(resp EncryptionResponse) []byte {
	var body bytes.Buffer
	_ = WriteVarIntByteArray(&body, resp.SharedSecret)
	_ = WriteVarIntByteArray(&body, resp.VerifyToken)
	return BuildPacket(0x01, body.Bytes())
}

// ReadEncryptionResponse decodes packet 0x01 in StateLogin (client-to-server
// direction).
func ReadEncryptionResponse(data []byte) (*EncryptionResponse, error) {
	buf := bytes.NewReader(data)

	sharedSecret, err := ReadVarIntByteArray(buf)
	if err != nil {
		return nil, err
	}
	verifyToken, err := ReadVarIntByteArray(buf)
	if err != nil {
		return nil, err
	}
	return &EncryptionResponse{SharedSecret: sharedSecret, VerifyToken: verifyToken}, nil
}

// LoginSuccess is packet 0x02 in StateLogin, sent once authentication (or,
// in Offline mode, nothing at all) has completed.
type LoginSuccess struct {
	UUID uuid.UUID
	Username string
	Properties []LoginSuccessProperty
}

type LoginSuccessProperty struct {
	Name string
	Value string
	Signature string
	HasSignature bool
}

// WriteLoginSuccess builds packet 0x02 in StateLogin, encoding the UUID as
// 16 raw bytes rather than its hyphenated string form: every 1.16+ client
// (protocol 754 onward) requires the raw encoding, and the gateway never
// needs to interop with the older string-UUID readers.
func WriteLoginSuccess(s LoginSuccess) []byte {
	var body bytes.Buffer
	_ = WriteUUID(&body, s.UUID)
	_ = WriteString(&body, s.Username)
	_ = WriteVarInt(&body, int32(len(s.Properties)))
	for _, p := range s.Properties {
		_ = WriteString(&body, p.Name)
		_ = WriteString(&body, p.Value)
		if p.HasSignature {
			_ = WriteBoolean(&body, true)
			_ = WriteString(&body, p.Signature)
		} else {
			_ = WriteBoolean(&body, false)
		}
	}
	return BuildPacket(0x02, body.Bytes())
}
