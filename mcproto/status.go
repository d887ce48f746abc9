package mcproto

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/mc-gateway/gateway/mcerr"
)

// StatusResponse is the JSON payload of the status-state response packet.
// Grounded on the teacher's mcproto/write.go StatusResponse, generalized
// with a Description that can be either a legacy string or the chat
// component object clients expect.
type StatusResponse struct {
	Version     StatusVersion `json:"version"`
	Players     StatusPlayers `json:"players"`
	Description StatusText    `json:"description"`
	Favicon     string        `json:"favicon,omitempty"`
	EnforcesSecureChat *bool  `json:"enforcesSecureChat,omitempty"`
}

type StatusVersion struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

type StatusPlayers struct {
	Max    int           `json:"max"`
	Online int           `json:"online"`
	Sample []PlayerEntry `json:"sample,omitempty"`
}

type StatusText struct {
	Text string `json:"text"`
}

// UnmarshalJSON accepts either a bare legacy string or the chat component
// object form ({"text": ...}).
func (t *StatusText) UnmarshalJSON(data []byte) error {
	var legacy string
	if err := json.Unmarshal(data, &legacy); err == nil {
		t.Text = legacy
		return nil
	}
	type component StatusText
	var c component
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	*t = StatusText(c)
	return nil
}

type PlayerEntry struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ReadStatusRequest reads the empty status-request packet body (packet 0x00
// in StateStatus takes no fields).
func ReadStatusRequest(r io.Reader) error {
	return nil
}

// WriteStatusResponse marshals status to JSON and writes it as packet 0x00
// in StateStatus.
func WriteStatusResponse(w io.Writer, status StatusResponse) error {
	body, err := json.Marshal(status)
	if err != nil {
		return errors.Wrap(err, "mcproto: marshal status response")
	}
	var payload bytes.Buffer
	if err := WriteString(&payload, string(body)); err != nil {
		return err
	}
	_, err = w.Write(BuildPacket(0x00, payload.Bytes()))
	return err
}

// ReadPingPayload reads the 8-byte payload of a status-state ping packet
// (0x01), to be echoed back verbatim in the pong.
func ReadPingPayload(r io.Reader) (int64, error) {
	var v int64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, errors.Wrap(mcerr.ErrProtocolMalformed, "short ping payload")
	}
	return v, nil
}

// WritePongResponse writes packet 0x01 in StateStatus, echoing payload.
func WritePongResponse(w io.Writer, payload int64) error {
	var body bytes.Buffer
	if err := binary.Write(&body, binary.BigEndian, payload); err != nil {
		return err
	}
	_, err := w.Write(BuildPacket(0x01, body.Bytes()))
	return err
}
