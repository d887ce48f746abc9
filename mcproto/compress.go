package mcproto

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/pkg/errors"

	"github.com/mc-gateway/gateway/mcerr"
)

// ReadCompressedFrame reads a frame under an active compression threshold:
// [frame length varint][uncompressed-size varint][payload]. A zero
// uncompressed-size means payload is literal (below the threshold); anything
// else means payload is zlib-deflate of a logical packet of that size.
func ReadCompressedFrame(r io.Reader, maxFrameBytes int) ([]byte, error) {
	frame, err := ReadFrame(r, maxFrameBytes)
	if err != nil {
		return nil, err
	}

	body := bytes.NewReader(frame.Payload)
	uncompressedSize, err := ReadVarInt(body)
	if err != nil {
		return nil, err
	}
	if uncompressedSize == 0 {
		literal := make([]byte, body.Len())
		if _, err := io.ReadFull(body, literal); err != nil {
			return nil, err
		}
		return literal, nil
	}

	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	if int(uncompressedSize) > maxFrameBytes {
		return nil, errors.Wrapf(mcerr.ErrProtocolOversize, "uncompressed size %d exceeds maximum %d", uncompressedSize, maxFrameBytes)
	}

	zr, err := zlib.NewReader(body)
	if err != nil {
		return nil, errors.Wrap(mcerr.ErrProtocolMalformed, "invalid zlib stream in compressed frame")
	}
	defer zr.Close()

	out := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, errors.Wrap(mcerr.ErrProtocolMalformed, "short zlib stream in compressed frame")
	}
	return out, nil
}

// WriteCompressedFrame writes packet (id+body already combined) under the
// given compression threshold. Packets shorter than threshold are written
// literally with a zero uncompressed-size marker; threshold <= 0 disables
// compression, so every packet is written literally with that marker.
func WriteCompressedFrame(w io.Writer, packet []byte, threshold int) error {
	if threshold <= 0 || len(packet) < threshold {
		var inner bytes.Buffer
		_ = WriteVarInt(&inner, 0)
		inner.Write(packet)
		return WriteFrame(w, inner.Bytes())
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(packet); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	var inner bytes.Buffer
	_ = WriteVarInt(&inner, int32(len(packet)))
	inner.Write(compressed.Bytes())
	return WriteFrame(w, inner.Bytes())
}
