package mccrypto

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/pkg/errors"
)

// cfb8 implements 8-bit cipher feedback mode over a block cipher. The
// standard library's crypto/cipher only exposes full-block-width CFB;
// Minecraft's login encryption specifically requires CFB8 (one byte of
// keystream consumed per plaintext byte), so the shift register is
// maintained by hand here.
type cfb8 struct {
	block cipher.Block
	shift []byte
	tmp []byte
	decrypt bool
}

func newCFB8(block cipher.Block, iv []byte, decrypt bool) (*cfb8, error) {
	if len(iv) != block.BlockSize() {
		return nil, errors.Errorf("mccrypto: CFB8 IV length %d does not match block size %d", len(iv), block.BlockSize())
	}
	shift := make([]byte, len(iv))
	copy(shift, iv)
	return &cfb8{
		block: block,
		shift: shift,
		tmp: make([]byte, block.BlockSize()),
		decrypt: decrypt,
	}, nil
}

// XORKeyStream encrypts or decrypts src in place into dst, one byte at a
// time, per the CFB8 shift-register algorithm: encrypt the shift register,
// XOR its first byte with the input byte to produce the output byte, then
// shift the register left and append the byte that was on the wire (the
// output byte when encrypting, the input byte when decrypting).
func (c *cfb8) XORKeyStream(dst, src []byte) {
	blockSize := c.block.BlockSize()
	for i := range src {
		c.block.Encrypt(c.tmp, c.shift)
		out := src[i] ^ c.tmp[0]

		wireByte := out
		if c.decrypt {
			wireByte = src[i]
		}

		copy(c.shift, c.shift[1:blockSize])
		c.shift[blockSize-1] = wireByte

		dst[i] = out
	}
}

// Stream is a bidirectional AES-128/CFB8 codec sharing one 16-byte key used
// as both the AES key and the initial CFB8 IV, per the Minecraft login
// encryption handshake.
type Stream struct {
	Encrypter *cfb8
	Decrypter *cfb8
}

// NewStream builds an AES-128/CFB8 encrypt/decrypt pair from the shared
// secret negotiated during login encryption.
func NewStream(sharedSecret []byte) (*Stream, error) {
	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return nil, errors.Wrap(err, "mccrypto: new AES cipher")
	}
	enc, err := newCFB8(block, sharedSecret, false)
	if err != nil {
		return nil, err
	}
	dec, err := newCFB8(block, sharedSecret, true)
	if err != nil {
		return nil, err
	}
	return &Stream{Encrypter: enc, Decrypter: dec}, nil
}

// Encrypt encrypts src into a newly allocated buffer.
func (s *Stream) Encrypt(src []byte) []byte {
	dst := make([]byte, len(src))
	s.Encrypter.XORKeyStream(dst, src)
	return dst
}

// Decrypt decrypts src into a newly allocated buffer.
func (s *Stream) Decrypt(src []byte) []byte {
	dst := make([]byte, len(src))
	s.Decrypter.XORKeyStream(dst, src)
	return dst
}
