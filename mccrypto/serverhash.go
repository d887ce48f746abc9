package mccrypto

import (
	"crypto/sha1"
	"math/big"
)

// ServerHash computes the digest used as the server-id parameter of the
// Mojang session-server hasJoined request: SHA-1 over serverID, the shared
// secret, and the server's public key DER, rendered as Java's
// BigInteger(hash).toString(16) would — a signed two's-complement hex string,
// with a leading '-' for negative values and no internal sign characters.
// This differs from the usual unsigned-hex digest rendering and trips up any
// generic hex-encode helper, which is why it lives as its own function.
func ServerHash(serverID string, sharedSecret, publicKeyDER []byte) string {
	h := sha1.New()
	h.Write([]byte(serverID))
	h.Write(sharedSecret)
	h.Write(publicKeyDER)
	digest := h.Sum(nil)

	n := new(big.Int).SetBytes(digest)
	// SHA-1's top bit set means the two's-complement interpretation of the
	// digest is negative; recover it by subtracting 2^160.
	if digest[0]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(digest)*8)))
	}

	if n.Sign() < 0 {
		return "-" + new(big.Int).Neg(n).Text(16)
	}
	return n.Text(16)
}
