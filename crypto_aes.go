package gozip

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// wzAESMACSize is the truncated HMAC-SHA1 authentication tag length WinZip
// AES appends after an entry's ciphertext.
const wzAESMACSize = 10

// wzAESVerifySize is the 2-byte password-verification value derived
// alongside the encryption/MAC keys.
const wzAESVerifySize = 2

// deriveAESKeys runs PBKDF2-HMAC-SHA1 with the WinZip AES iteration count
// (1000) over password and salt, producing a derived key block split into
// the AES encryption key, the HMAC-SHA1 MAC key, and the 2-byte password
// verification value, each of which the WZ_AES spec packs consecutively in
// that order.
func deriveAESKeys(password, salt []byte, keySize int) (encKey, macKey []byte, verify [wzAESVerifySize]byte) {
	dk := pbkdf2.Key(password, salt, 1000, 2*keySize+wzAESVerifySize, sha1.New)
	encKey = dk[:keySize]
	macKey = dk[keySize : 2*keySize]
	copy(verify[:], dk[2*keySize:])
	return
}

// aesCTRCipher implements WinZip's AES-CTR keystream: a 128-bit counter
// stored and incremented little-endian, starting at 1, distinct from
// crypto/cipher's big-endian-counter CTR mode.
type aesCTRCipher struct {
	block   cipher.Block
	buf     [aes.BlockSize]byte // keystream for the current counter block
	counter [aes.BlockSize]byte
	pos     int // bytes of buf already consumed
}

func newAESCTRCipher(key []byte) (*aesCTRCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	c := &aesCTRCipher{block: block, pos: aes.BlockSize}
	c.counter[0] = 1
	return c, nil
}

func (c *aesCTRCipher) incCounter() {
	for i := 0; i < aes.BlockSize; i++ {
		c.counter[i]++
		if c.counter[i] != 0 {
			break
		}
	}
}

// xor encrypts or decrypts buf in place (CTR mode is symmetric).
func (c *aesCTRCipher) xor(buf []byte) {
	for i := range buf {
		if c.pos == aes.BlockSize {
			c.block.Encrypt(c.buf[:], c.counter[:])
			c.incCounter()
			c.pos = 0
		}
		buf[i] ^= c.buf[c.pos]
		c.pos++
	}
}

// aesMAC accumulates a truncated HMAC-SHA1 tag over ciphertext bytes as
// they are produced or consumed, per WinZip's encrypt-then-MAC scheme.
type aesMAC struct {
	h hash.Hash
}

func newAESMAC(macKey []byte) *aesMAC {
	return &aesMAC{h: hmac.New(sha1.New, macKey)}
}

func (m *aesMAC) write(p []byte) {
	m.h.Write(p)
}

func (m *aesMAC) tag() [wzAESMACSize]byte {
	var out [wzAESMACSize]byte
	copy(out[:], m.h.Sum(nil))
	return out
}

// aesCipherStream bundles the CTR keystream and running MAC needed to
// encrypt-and-authenticate, or decrypt-and-verify, one entry's ciphertext.
type aesCipherStream struct {
	ctr *aesCTRCipher
	mac *aesMAC
}

func newAESCipherStream(encKey, macKey []byte) (*aesCipherStream, error) {
	ctr, err := newAESCTRCipher(encKey)
	if err != nil {
		return nil, err
	}
	return &aesCipherStream{ctr: ctr, mac: newAESMAC(macKey)}, nil
}

// encryptAndAuthenticate XORs buf (plaintext -> ciphertext in place) and
// feeds the resulting ciphertext into the running MAC.
func (s *aesCipherStream) encryptAndAuthenticate(buf []byte) {
	s.ctr.xor(buf)
	s.mac.write(buf)
}

// authenticateAndDecrypt feeds buf (still ciphertext) into the running MAC
// and then XORs it into plaintext in place. Order matters: the MAC must see
// ciphertext, not plaintext.
func (s *aesCipherStream) authenticateAndDecrypt(buf []byte) {
	s.mac.write(buf)
	s.ctr.xor(buf)
}

func (s *aesCipherStream) tag() [wzAESMACSize]byte {
	return s.mac.tag()
}

// littleEndianCounterValue is exposed only for tests asserting the counter
// starts at 1 and increments as an unsigned little-endian integer.
func littleEndianCounterValue(counter [aes.BlockSize]byte) uint64 {
	return binary.LittleEndian.Uint64(counter[:8])
}
