// Package mccrypto implements the Minecraft Java Edition login-encryption
// primitives: the server's RSA-1024 keypair, the AES-128/CFB8 stream cipher
// used once encryption is negotiated, and the signed server-id hash used in
// the Mojang session-server handshake. None of the pack's third-party
// libraries implement these Minecraft-specific constructions (ordinary Go
// TLS/crypto libraries assume CFB-128 and unsigned hash rendering), so this
// package is built directly on crypto/rsa, crypto/aes, crypto/cipher and
// crypto/sha1 — see DESIGN.md for the standard-library justification.
package mccrypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"

	"github.com/pkg/errors"
)

// KeyPair is the proxy's ephemeral RSA-1024 identity, generated once at
// startup and reused for every ClientOnly-mode encryption negotiation.
type KeyPair struct {
	Private *rsa.PrivateKey
	Public *rsa.PublicKey
	// PublicDER is the ASN.1 DER encoding of Public in the form the
	// EncryptionRequest packet and the server-id hash both expect.
	PublicDER []byte
}

// GenerateKeyPair creates a fresh 1024-bit RSA keypair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		return nil, errors.Wrap(err, "mccrypto: generate RSA keypair")
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "mccrypto: marshal public key")
	}
	return &KeyPair{
		Private: priv,
		Public: &priv.PublicKey,
		PublicDER: der,
	}, nil
}

// DecryptSharedSecret unwraps the client's PKCS#1 v1.5 encrypted shared
// secret using the proxy's private key.
func (k *KeyPair) DecryptSharedSecret(encrypted []byte) ([]byte, error) {
	secret, err := rsa.DecryptPKCS1v15(rand.Reader, k.Private, encrypted)
	if err != nil {
		return nil, errors.Wrap(err, "mccrypto: decrypt shared secret")
	}
	return secret, nil
}

// DecryptVerifyToken unwraps the client's echoed verify token.
func (k *KeyPair) DecryptVerifyToken(encrypted []byte) ([]byte, error) {
	token, err := rsa.DecryptPKCS1v15(rand.Reader, k.Private, encrypted)
	if err != nil {
		return nil, errors.Wrap(err, "mccrypto: decrypt verify token")
	}
	return token, nil
}

// EncryptWithPublicKey encrypts data (a shared secret or verify token) using
// the proxy's own public key, mirroring the client's outbound step. Used in
// tests and by any harness that exercises the handshake end to end.
func (k *KeyPair) EncryptWithPublicKey(data []byte) ([]byte, error) {
	return rsa.EncryptPKCS1v15(rand.Reader, k.Public, data)
}

// NewVerifyToken returns a fresh 4-byte random verify token.
func NewVerifyToken() ([]byte, error) {
	token := make([]byte, 4)
	if _, err := rand.Read(token); err != nil {
		return nil, errors.Wrap(err, "mccrypto: generate verify token")
	}
	return token, nil
}

// NewSharedSecret returns a fresh 16-byte AES-128 key, generated by
// whichever side of a handshake initiates encryption (the client in
// ClientOnly mode; the proxy itself, acting as a client, in ServerOnly
// mode).
func NewSharedSecret() ([]byte, error) {
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		return nil, errors.Wrap(err, "mccrypto: generate shared secret")
	}
	return secret, nil
}

// EncryptForPeer encrypts data with the RSA public key encoded in
// peerPublicKeyDER, mirroring the client's outbound encryption step
// against a server's EncryptionRequest. Used by ServerOnly mode, where the
// proxy plays the client role against the real backend.
func EncryptForPeer(peerPublicKeyDER, data []byte) ([]byte, error) {
	pub, err := x509.ParsePKIXPublicKey(peerPublicKeyDER)
	if err != nil {
		return nil, errors.Wrap(err, "mccrypto: parse peer public key")
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("mccrypto: peer public key is not RSA")
	}
	return rsa.EncryptPKCS1v15(rand.Reader, rsaPub, data)
}
