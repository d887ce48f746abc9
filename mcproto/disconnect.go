package mcproto

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// chatMessage is the minimal chat component shape needed for disconnect
// reasons; the gateway never needs styling, click events, etc.
type chatMessage struct {
	Text string `json:"text"`
}

// WriteLoginDisconnect writes packet 0x00 in StateLogin: a JSON chat
// component carrying reason, sent before the connection is closed.
func WriteLoginDisconnect(w io.Writer, reason string) error {
	body, err := json.Marshal(chatMessage{Text: reason})
	if err != nil {
		return errors.Wrap(err, "mcproto: marshal disconnect reason")
	}
	var payload bytes.Buffer
	if err := WriteString(&payload, string(body)); err != nil {
		return err
	}
	_, err = w.Write(BuildPacket(0x00, payload.Bytes()))
	return err
}
