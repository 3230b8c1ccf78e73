package gozip

// ZipCrypto is PKWARE's original "traditional" encryption scheme: a 3-key
// stream cipher seeded from the password, predating any modern notion of
// authenticated encryption. It is supported for read and write compatibility
// only; callers wanting real confidentiality should use AES.

// zipCryptoHeaderLen is the fixed size of the encryption header prepended to
// ZipCrypto-encrypted entry data.
const zipCryptoHeaderLen = 12

var crcTable = buildCRCTable()

func buildCRCTable() [256]uint32 {
	var t [256]uint32
	for i := range t {
		c := uint32(i)
		for j := 0; j < 8; j++ {
			if c&1 != 0 {
				c = 0xEDB88320 ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		t[i] = c
	}
	return t
}

func crcStep(k uint32, c byte) uint32 {
	return (k >> 8) ^ crcTable[byte(k)^c]
}

// zipCryptoKeys holds the three running keys of the ZipCrypto stream
// cipher.
type zipCryptoKeys struct {
	k0, k1, k2 uint32
}

func newZipCryptoKeys(password []byte) *zipCryptoKeys {
	k := &zipCryptoKeys{k0: 0x12345678, k1: 0x23456789, k2: 0x34567890}
	for _, b := range password {
		k.update(b)
	}
	return k
}

func (k *zipCryptoKeys) update(c byte) {
	k.k0 = crcStep(k.k0, c)
	k.k1 = (k.k1 + (k.k0 & 0xFF)) * 0x08088405
	k.k1++
	k.k2 = crcStep(k.k2, byte(k.k1>>24))
}

// keystreamByte returns the next keystream byte without consuming it; the
// caller is responsible for calling update with the resulting plaintext
// byte afterward to advance the cipher state.
func (k *zipCryptoKeys) keystreamByte() byte {
	tmp := k.k2 | 2
	return byte((tmp * (tmp ^ 1)) >> 8)
}

// zipCryptoDecrypter decrypts a ZipCrypto ciphertext stream in place.
type zipCryptoDecrypter struct {
	keys *zipCryptoKeys
}

// newZipCryptoDecrypter consumes the 12-byte encryption header from header,
// verifying the password-check byte against checkByte (the high byte of
// either CRC-32 or DOS time, depending on flag bit 3). It returns
// ErrBadPassword if the check fails.
func newZipCryptoDecrypter(password []byte, header [zipCryptoHeaderLen]byte, checkByte byte) (*zipCryptoDecrypter, error) {
	d := &zipCryptoDecrypter{keys: newZipCryptoKeys(password)}
	var decoded [zipCryptoHeaderLen]byte
	for i, c := range header {
		decoded[i] = c ^ d.keys.keystreamByte()
		d.keys.update(decoded[i])
	}
	if decoded[zipCryptoHeaderLen-1] != checkByte {
		return nil, ErrBadPassword
	}
	return d, nil
}

// decrypt transforms ciphertext into plaintext in place.
func (d *zipCryptoDecrypter) decrypt(buf []byte) {
	for i, c := range buf {
		p := c ^ d.keys.keystreamByte()
		d.keys.update(p)
		buf[i] = p
	}
}

// zipCryptoEncrypter encrypts a plaintext stream in place, producing a
// ZipCrypto ciphertext.
type zipCryptoEncrypter struct {
	keys *zipCryptoKeys
}

// newZipCryptoEncrypter builds the 12-byte encryption header (11 bytes from
// random, the 12th equal to checkByte) and returns both the header (to be
// written first) and the encrypter for the data that follows.
func newZipCryptoEncrypter(password []byte, random [11]byte, checkByte byte) (*zipCryptoEncrypter, [zipCryptoHeaderLen]byte) {
	e := &zipCryptoEncrypter{keys: newZipCryptoKeys(password)}
	var header [zipCryptoHeaderLen]byte
	for i, p := range random {
		header[i] = p ^ e.keys.keystreamByte()
		e.keys.update(p)
	}
	header[zipCryptoHeaderLen-1] = checkByte ^ e.keys.keystreamByte()
	e.keys.update(checkByte)
	return e, header
}

// encrypt transforms plaintext into ciphertext in place.
func (e *zipCryptoEncrypter) encrypt(buf []byte) {
	for i, p := range buf {
		buf[i] = p ^ e.keys.keystreamByte()
		e.keys.update(p)
	}
}
