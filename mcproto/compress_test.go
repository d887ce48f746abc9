package mcproto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressedFrameRoundTrip(t *testing.T) {
	tests := []struct {
		Name      string
		Threshold int
		Packet    []byte
	}{
		{
			Name:      "below threshold stays literal",
			Threshold: 256,
			Packet:    bytes.Repeat([]byte{0x01}, 10),
		},
		{
			Name:      "above threshold is compressed",
			Threshold: 8,
			Packet:    bytes.Repeat([]byte{0x02, 0x03}, 200),
		},
		{
			Name:      "compression disabled",
			Threshold: -1,
			Packet:    []byte{0xAA, 0xBB, 0xCC},
		},
		{
			Name:      "empty packet",
			Threshold: 8,
			Packet:    []byte{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCompressedFrame(&buf, tt.Packet, tt.Threshold))

			got, err := ReadCompressedFrame(&buf, 0)
			require.NoError(t, err)
			require.Equal(t, tt.Packet, got)
		})
	}
}
