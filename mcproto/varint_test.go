package mcproto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarIntRoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 127, 128, 255, 25565, -2147483648, 2147483647}

	for _, v := range values {
		var buf bytes.Buffer
		require.NoError(t, WriteVarInt(&buf, v))
		assert.Equal(t, VarIntSize(v), buf.Len())

		got, err := ReadVarInt(&buf)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestReadVarIntRejectsTooLong(t *testing.T) {
	overlong := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	_, err := ReadVarInt(bytes.NewReader(overlong))
	require.Error(t, err)
}

func TestStringRoundTrip(t *testing.T) {
	values := []string{"", "localhost", "play.example.com", "a-very-long-hostname.example.internal.network"}

	for _, s := range values {
		var buf bytes.Buffer
		require.NoError(t, WriteString(&buf, s))

		got, err := ReadString(&buf)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestReadStringRejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVarInt(&buf, MaxStringLength+1))
	_, err := ReadString(&buf)
	require.Error(t, err)
}
