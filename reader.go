package gozip

import (
	"bufio"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// MinReadSize is the smallest chunk the read pipeline pulls from the
// underlying stream at a time; matches the spec's windowed-pull design so
// that a decompressor making many small Read calls doesn't turn into many
// tiny positioned reads against the shared stream.
const MinReadSize = 4096

// MaxSeekReadSize bounds how much a forward Seek will read-and-discard
// before giving up and treating it as a backward seek (full pipeline
// rebuild) instead.
const MaxSeekReadSize = 16 << 20

// entryReader is the C5 streaming read pipeline for one archive member:
// local-header verification, decryption, decompression and CRC/HMAC
// verification, chained behind a single io.ReadCloser (plus optional Seek
// when the underlying stream supports it).
type entryReader struct {
	ss       *SharedStream
	header   *FileHeader
	password []byte

	dataStart int64 // absolute offset of the first ciphertext/plaintext byte
	cipherLen int64 // bytes of (possibly encrypted) compressed data
	macOffset int64 // absolute offset of the trailing 10-byte AES tag, 0 if none

	cipherPos int64 // how far into [dataStart, dataStart+cipherLen) we've consumed

	zipCrypto *zipCryptoDecrypter
	aesStream *aesCipherStream

	decomp io.ReadCloser
	crc    hash.Hash32

	plainPos uint64 // bytes of plaintext delivered to the caller so far
	verified bool
	closed   bool
}

// cipherSectionReader adapts the bounded ciphertext window of one entry to
// io.Reader, advancing entryReader's own cipherPos bookkeeping (used both
// for normal consumption and for computing how much remains when rebuilding
// the pipeline after a seek).
type cipherSectionReader struct {
	r *entryReader
}

func (c cipherSectionReader) Read(p []byte) (int, error) {
	r := c.r
	remaining := r.cipherLen - r.cipherPos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := r.ss.readAtMax(r.dataStart+r.cipherPos, p)
	r.cipherPos += int64(n)
	if err == nil && n == 0 {
		err = io.EOF
	}
	if n > 0 {
		if r.zipCrypto != nil {
			r.zipCrypto.decrypt(p[:n])
		} else if r.aesStream != nil {
			r.aesStream.authenticateAndDecrypt(p[:n])
		}
	}
	if err == nil && r.cipherPos >= r.cipherLen {
		err = io.EOF
	}
	return n, err
}

// newEntryReader opens the streaming read pipeline for fh, which must be an
// entry already populated by directory discovery (its HeaderOffset must be
// accurate). password is consulted only if the entry is encrypted.
func newEntryReader(ss *SharedStream, fh *FileHeader, password []byte) (*entryReader, error) {
	if fh.Flags&flagCompressedPatch != 0 {
		return nil, fmt.Errorf("gozip: compressed-patched data not supported: %w", ErrUnsupported)
	}
	if fh.Flags&flagStrongEncryption != 0 {
		return nil, fmt.Errorf("gozip: strong encryption not supported: %w", ErrUnsupported)
	}

	lh := make([]byte, fileHeaderLen)
	if _, err := ss.readAt(int64(fh.HeaderOffset), lh); err != nil {
		return nil, err
	}
	if lh[0] != 0x50 || lh[1] != 0x4b || lh[2] != 0x03 || lh[3] != 0x04 {
		return nil, fmt.Errorf("gozip: bad local file header signature for %q: %w", fh.Name, ErrCorrupt)
	}
	local, err := decodeLocalHeader(lh[4:])
	if err != nil {
		return nil, err
	}

	nameBuf := make([]byte, int(local.NameLen))
	pos := int64(fh.HeaderOffset) + fileHeaderLen
	if len(nameBuf) > 0 {
		if _, err := ss.readAt(pos, nameBuf); err != nil {
			return nil, err
		}
	}
	if string(nameBuf) != fh.Name {
		return nil, fmt.Errorf("gozip: local header name %q does not match central directory name %q: %w", nameBuf, fh.Name, ErrCorrupt)
	}
	pos += int64(local.NameLen) + int64(local.ExtraLen)

	r := &entryReader{ss: ss, header: fh, password: password, crc: crc32.NewIEEE()}

	cipherLen := int64(fh.CompressedSize64)

	if fh.Flags&flagEncrypted != 0 {
		if fh.AES != nil {
			saltSize := fh.AES.SaltSize()
			header := make([]byte, saltSize+2)
			if _, err := ss.readAt(pos, header); err != nil {
				return nil, err
			}
			pos += int64(len(header))
			encKey, macKey, verify := deriveAESKeys(password, header[:saltSize], fh.AES.KeySize())
			if verify != [2]byte{header[saltSize], header[saltSize+1]} {
				return nil, ErrBadPassword
			}
			stream, err := newAESCipherStream(encKey, macKey)
			if err != nil {
				return nil, err
			}
			r.aesStream = stream
			cipherLen -= int64(len(header)) + wzAESMACSize
			if cipherLen < 0 {
				return nil, fmt.Errorf("gozip: AES entry too short: %w", ErrCorrupt)
			}
			r.macOffset = pos + cipherLen
		} else {
			var header [zipCryptoHeaderLen]byte
			if _, err := ss.readAt(pos, header[:]); err != nil {
				return nil, err
			}
			pos += zipCryptoHeaderLen
			var checkByte byte
			if fh.Flags&flagDataDescriptor != 0 {
				_, modTime := timeToMsDosTime(fh.Modified)
				checkByte = byte(modTime >> 8)
			} else {
				checkByte = byte(fh.CRC32 >> 24)
			}
			dec, err := newZipCryptoDecrypter(password, header, checkByte)
			if err != nil {
				return nil, err
			}
			r.zipCrypto = dec
			cipherLen -= zipCryptoHeaderLen
			if cipherLen < 0 {
				return nil, fmt.Errorf("gozip: ZipCrypto entry too short: %w", ErrCorrupt)
			}
		}
	}

	r.dataStart = pos
	r.cipherLen = cipherLen

	method := fh.Method
	src := io.Reader(bufio.NewReaderSize(cipherSectionReader{r: r}, MinReadSize))
	switch method {
	case Store:
		r.decomp = io.NopCloser(src)
	case Deflate:
		r.decomp = newDeflateReader(src)
	case Bzip2:
		d, err := newBzip2Reader(src)
		if err != nil {
			return nil, err
		}
		r.decomp = d
	case LZMA:
		d, err := newLZMAReader(src)
		if err != nil {
			return nil, err
		}
		r.decomp = d
	default:
		return nil, fmt.Errorf("gozip: unsupported compression method %d: %w", method, ErrUnsupported)
	}

	return r, nil
}

// Read implements io.Reader, returning decompressed, decrypted plaintext
// and verifying the entry's checksum once the logical end is reached.
func (r *entryReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, fmt.Errorf("gozip: read from closed entry reader: %w", ErrInvalidMode)
	}
	remaining := r.header.UncompressedSize64 - r.plainPos
	if remaining == 0 {
		if !r.verified {
			if err := r.verify(); err != nil {
				return 0, err
			}
		}
		return 0, io.EOF
	}
	if uint64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := r.decomp.Read(p)
	if n > 0 {
		r.crc.Write(p[:n])
		r.plainPos += uint64(n)
	}
	if err == io.EOF {
		err = nil
		if r.plainPos < r.header.UncompressedSize64 {
			err = io.ErrUnexpectedEOF
		}
	}
	if err == nil && r.plainPos == r.header.UncompressedSize64 {
		if verr := r.verify(); verr != nil {
			return n, verr
		}
		if n == 0 {
			return 0, io.EOF
		}
	}
	return n, err
}

func (r *entryReader) verify() error {
	r.verified = true
	if r.aesStream != nil {
		if r.header.AES.Version == 2 && r.header.CRC32 == 0 {
			// CRC not carried for v2 entries; skip.
		} else if r.header.CRC32 != 0 {
			if r.crc.Sum32() != r.header.CRC32 {
				return ErrBadCRC32
			}
		}
		tagBuf := make([]byte, wzAESMACSize)
		if _, err := r.ss.readAt(r.macOffset, tagBuf); err != nil {
			return err
		}
		got := r.aesStream.tag()
		if !bytesEqual(got[:], tagBuf) {
			return ErrBadHMAC
		}
		return nil
	}
	if r.crc.Sum32() != r.header.CRC32 {
		return ErrBadCRC32
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Seek implements io.Seeker in terms of the plaintext stream. A forward
// seek within MaxSeekReadSize is satisfied by reading and discarding; a
// backward seek, or a forward seek past that bound, rebuilds the decode
// pipeline from the entry's local header and replays it up to the target
// offset. Rebuilding is necessary because the compression and cipher
// stages are stateful and can't be repositioned directly.
func (r *entryReader) Seek(offset int64, whence int) (int64, error) {
	if r.closed {
		return 0, fmt.Errorf("gozip: seek on closed entry reader: %w", ErrInvalidMode)
	}
	size := int64(r.header.UncompressedSize64)
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = int64(r.plainPos) + offset
	case io.SeekEnd:
		target = size + offset
	default:
		return 0, fmt.Errorf("gozip: invalid seek whence %d: %w", whence, ErrInvalidMode)
	}
	if target < 0 || target > size {
		return 0, fmt.Errorf("gozip: seek target %d out of range [0,%d]: %w", target, size, ErrCorrupt)
	}

	current := int64(r.plainPos)
	if target == current {
		return target, nil
	}
	if target < current || target-current > MaxSeekReadSize {
		if err := r.rebuild(); err != nil {
			return 0, err
		}
		current = 0
	}
	if err := r.discardForward(target - current); err != nil {
		return 0, err
	}
	return target, nil
}

// rebuild replaces the receiver's decode pipeline with a freshly opened one
// positioned at the start of the entry, releasing the old decompressor.
func (r *entryReader) rebuild() error {
	nr, err := newEntryReader(r.ss, r.header, r.password)
	if err != nil {
		return err
	}
	r.decomp.Close()
	*r = *nr
	return nil
}

// discardForward reads and throws away n bytes of plaintext, used to
// fast-forward a pipeline positioned earlier than the seek target.
func (r *entryReader) discardForward(n int64) error {
	buf := make([]byte, MinReadSize)
	for n > 0 {
		chunk := buf
		if int64(len(chunk)) > n {
			chunk = chunk[:n]
		}
		got, err := r.Read(chunk)
		n -= int64(got)
		if err != nil {
			if err == io.EOF && n == 0 {
				return nil
			}
			return err
		}
	}
	return nil
}

// Close releases resources held by the decompressor. It does not affect
// the underlying shared stream's lifetime; callers that obtained the reader
// via an Archive session should rely on the session to manage that.
func (r *entryReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.decomp.Close()
}
