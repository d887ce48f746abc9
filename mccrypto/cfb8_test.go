package mccrypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamRoundTrip(t *testing.T) {
	secret := make([]byte, 16)
	for i := range secret {
		secret[i] = byte(i * 7)
	}

	enc, err := NewStream(secret)
	require.NoError(t, err)
	dec, err := NewStream(secret)
	require.NoError(t, err)

	plaintext := []byte("the quick brown fox jumps over the lazy dog, repeatedly, to exercise more than one AES block")
	ciphertext := enc.Encrypt(plaintext)
	require.NotEqual(t, plaintext, ciphertext)

	recovered := dec.Decrypt(ciphertext)
	require.Equal(t, plaintext, recovered)
}

func TestStreamByteAtATime(t *testing.T) {
	secret := make([]byte, 16)
	for i := range secret {
		secret[i] = byte(255 - i)
	}

	enc, err := NewStream(secret)
	require.NoError(t, err)
	dec, err := NewStream(secret)
	require.NoError(t, err)

	plaintext := []byte("streamed one byte per call")
	ciphertext := make([]byte, len(plaintext))
	for i, b := range plaintext {
		ciphertext[i] = enc.Encrypt([]byte{b})[0]
	}

	recovered := make([]byte, len(ciphertext))
	for i, b := range ciphertext {
		recovered[i] = dec.Decrypt([]byte{b})[0]
	}

	require.Equal(t, plaintext, recovered)
}
