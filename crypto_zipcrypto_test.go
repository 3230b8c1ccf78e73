package gozip

import "testing"

func TestZipCryptoRoundTrip(t *testing.T) {
	password := []byte("hunter2")
	var random [11]byte
	for i := range random {
		random[i] = byte(i * 7)
	}
	const checkByte = 0xAB

	enc, header := newZipCryptoEncrypter(password, random, checkByte)
	plain := []byte("the quick brown fox jumps over the lazy dog")
	cipher := append([]byte(nil), plain...)
	enc.encrypt(cipher)

	dec, err := newZipCryptoDecrypter(password, header, checkByte)
	if err != nil {
		t.Fatalf("newZipCryptoDecrypter: %v", err)
	}
	dec.decrypt(cipher)
	if string(cipher) != string(plain) {
		t.Fatalf("decrypted = %q, want %q", cipher, plain)
	}
}

func TestZipCryptoBadPassword(t *testing.T) {
	var random [11]byte
	_, header := newZipCryptoEncrypter([]byte("correct"), random, 0x42)
	if _, err := newZipCryptoDecrypter([]byte("wrong"), header, 0x42); err != ErrBadPassword {
		t.Fatalf("err = %v, want ErrBadPassword", err)
	}
}

func TestZipCryptoEmptyPlaintext(t *testing.T) {
	var random [11]byte
	_, header := newZipCryptoEncrypter([]byte("pw"), random, 0x01)
	dec, err := newZipCryptoDecrypter([]byte("pw"), header, 0x01)
	if err != nil {
		t.Fatalf("newZipCryptoDecrypter: %v", err)
	}
	var empty []byte
	dec.decrypt(empty)
}
