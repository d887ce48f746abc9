package mccrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerHashKnownVectors(t *testing.T) {
	tests := []struct {
		Name     string
		Input    string
		Expected string
	}{
		{
			Name:     "jeb_",
			Input:    "jeb_",
			Expected: "-7c9d5b0044c130109a5d7b5fb5c317c02b4e28c1",
		},
		{
			Name:     "Notch",
			Input:    "Notch",
			Expected: "4ed1f46bbe04bc756bcb17c0c7ce3e4632f06a48",
		},
		{
			Name:     "simon",
			Input:    "simon",
			Expected: "88e16a1019277b15d58faf0541e11910eb756f6",
		},
	}

	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			got := ServerHash(tt.Input, nil, nil)
			assert.Equal(t, tt.Expected, got)
		})
	}
}

func TestServerHashIsDeterministic(t *testing.T) {
	secret := []byte("shared-secret-16")
	key := []byte("fake-public-key-der")

	a := ServerHash("", secret, key)
	b := ServerHash("", secret, key)
	assert.Equal(t, a, b)

	c := ServerHash("", []byte("different-secret"), key)
	assert.NotEqual(t, a, c)
}
