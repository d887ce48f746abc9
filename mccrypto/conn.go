package mccrypto

import "net"

// CipherConn wraps a net.Conn with the AES-128/CFB8 Stream negotiated during
// login encryption, so the rest of the pipeline (framing, relaying) can
// treat an encrypted connection exactly like a plain one.
type CipherConn struct {
	net.Conn
	stream *Stream
}

// NewCipherConn wraps conn, encrypting writes and decrypting reads through
// stream.
func NewCipherConn(conn net.Conn, stream *Stream) *CipherConn {
	return &CipherConn{Conn: conn, stream: stream}
}

// Read decrypts in place after delegating to the underlying connection.
func (c *CipherConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.stream.Decrypter.XORKeyStream(p[:n], p[:n])
	}
	return n, err
}

// Write encrypts p before delegating to the underlying connection. On a
// short underlying write it reports only the plaintext bytes actually
// accepted, matching net.Conn's contract.
func (c *CipherConn) Write(p []byte) (int, error) {
	enc := c.stream.Encrypt(p)
	n, err := c.Conn.Write(enc)
	if n == len(enc) {
		return len(p), err
	}
	return n, err
}
