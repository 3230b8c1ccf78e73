package gozip

import (
	"crypto/rand"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// EncryptionScheme selects the encryption, if any, applied to an entry
// written through an Archive session.
type EncryptionScheme int

const (
	EncryptionNone EncryptionScheme = iota
	EncryptionZipCrypto
	EncryptionAES128
	EncryptionAES192
	EncryptionAES256
)

func (s EncryptionScheme) aesStrength() byte {
	switch s {
	case EncryptionAES128:
		return 1
	case EncryptionAES192:
		return 2
	case EncryptionAES256:
		return 3
	default:
		return 0
	}
}

// WriteOptions configures one entry's write pipeline, passed to
// (*Archive).CreateEntry.
type WriteOptions struct {
	Method     uint16
	Level      int
	Encryption EncryptionScheme
	Password   []byte

	// Size, if > 0, is the caller's declared uncompressed size. It is
	// used only to decide whether to proactively reserve a ZIP64 extra
	// block; a wrong value never corrupts the archive; it can only cause
	// an avoidable ErrTooLarge if badly underestimated. -1 means unknown;
	// CreateEntry also treats 0 as unknown.
	Size int64

	// ForceZIP64 always reserves a ZIP64 extra block regardless of Size.
	// When the session has ZIP64 disabled, the entry is rejected with
	// ErrTooLarge instead.
	ForceZIP64 bool
}

// sequentialWriter is an io.Writer over a SharedStream that auto-advances
// its own write position, used for the entry data region which is always
// appended in strictly increasing offset order.
type sequentialWriter struct {
	ss  *SharedStream
	pos int64
}

func (w *sequentialWriter) Write(p []byte) (int, error) {
	n, err := w.ss.writeAt(w.pos, p)
	w.pos += int64(n)
	return n, err
}

// encryptingWriter encrypts (and, for AES, authenticates) each chunk before
// handing it to the underlying sequential writer. It copies the input so it
// never mutates a buffer owned by the compressor.
type encryptingWriter struct {
	dst       *sequentialWriter
	zipCrypto *zipCryptoEncrypter
	aesStream *aesCipherStream
	buf       []byte
}

func (w *encryptingWriter) Write(p []byte) (int, error) {
	if cap(w.buf) < len(p) {
		w.buf = make([]byte, len(p))
	}
	buf := w.buf[:len(p)]
	copy(buf, p)
	switch {
	case w.zipCrypto != nil:
		w.zipCrypto.encrypt(buf)
	case w.aesStream != nil:
		w.aesStream.encryptAndAuthenticate(buf)
	}
	n, err := w.dst.Write(buf)
	return n, err
}

// entryWriter is the C6 streaming write pipeline for one archive member.
type entryWriter struct {
	ss     *SharedStream
	header *FileHeader

	headerOffset uint64
	seekable     bool
	useDataDesc  bool
	zip64        bool
	allowZip64   bool

	comp     io.WriteCloser
	cipher   *encryptingWriter
	compCnt  *sequentialWriter
	crc      hash.Hash32
	plainLen uint64

	finalized bool
}

// newEntryWriter begins writing a new entry named name at the archive's
// current end of data (headerOffset), which the caller (the Archive
// session) is responsible for having reserved by having already called
// ss.beginWrite.
func newEntryWriter(ss *SharedStream, headerOffset uint64, seekable, allowZip64 bool, fh *FileHeader, opts WriteOptions) (*entryWriter, error) {
	if opts.ForceZIP64 && !allowZip64 {
		return nil, fmt.Errorf("gozip: entry %q: zip64 forced: %w", fh.Name, ErrTooLarge)
	}
	fh.Flags = 0
	fh.Method = opts.Method
	fh.HeaderOffset = headerOffset
	fh.CreatorVersion = fh.CreatorVersion&0xff00 | creatorUnix<<8
	fh.ReaderVersion = zipVersion20

	if !fh.NonUTF8 {
		nameValid, nameRequire := detectUTF8(fh.Name)
		commentValid, commentRequire := detectUTF8(fh.Comment)
		if (nameRequire || commentRequire) && nameValid && commentValid {
			fh.Flags |= flagUTF8
		}
	}

	// ZipCrypto entries always use a data descriptor: their password-check
	// byte comes from the DOS time, which readers expect only when flag
	// bit 3 is set.
	useDataDesc := !seekable || opts.Encryption == EncryptionZipCrypto
	if useDataDesc {
		fh.Flags |= flagDataDescriptor
	}
	if fh.Method == LZMA {
		fh.Flags |= 1 << 1 // EOS marker present
	}

	zip64 := allowZip64 && (opts.ForceZIP64 || opts.Size < 0 || float64(opts.Size)*1.05 > float64(zip64Threshold))
	if zip64 {
		fh.ReaderVersion = zipVersion45
	}

	w := &entryWriter{
		ss:         ss,
		header:     fh,
		headerOffset: headerOffset,
		seekable:   seekable,
		useDataDesc: useDataDesc,
		zip64:      zip64,
		allowZip64: allowZip64,
		crc:        crc32.NewIEEE(),
	}

	var encScheme = opts.Encryption
	if encScheme != EncryptionNone {
		fh.Flags |= flagEncrypted
	}

	extra := buildLocalZip64Placeholder(zip64)

	modDate, modTime := timeToMsDosTime(fh.Modified)
	hdr := encodeLocalHeaderFixed(fh.ReaderVersion, fh.Flags, fh.Method, modTime, modDate, 0, 0, 0, uint16(len(fh.Name)), uint16(len(extra)))
	sw := &sequentialWriter{ss: ss, pos: int64(headerOffset)}
	if _, err := sw.Write(hdr[:]); err != nil {
		return nil, err
	}
	if _, err := sw.Write([]byte(fh.Name)); err != nil {
		return nil, err
	}
	if _, err := sw.Write(extra); err != nil {
		return nil, err
	}

	cw := &encryptingWriter{dst: sw}
	switch encScheme {
	case EncryptionZipCrypto:
		var random [11]byte
		if _, err := rand.Read(random[:]); err != nil {
			return nil, err
		}
		_, checkByte := timeToMsDosTime(fh.Modified)
		enc, header := newZipCryptoEncrypter(opts.Password, random, byte(checkByte>>8))
		if _, err := sw.Write(header[:]); err != nil {
			return nil, err
		}
		cw.zipCrypto = enc
	case EncryptionAES128, EncryptionAES192, EncryptionAES256:
		strength := encScheme.aesStrength()
		info := &AESInfo{Version: 2, VendorID: [2]byte{'A', 'E'}, Strength: strength, RealMethod: fh.Method}
		fh.AES = info
		fh.Method = aesMethodSentinel
		salt := make([]byte, info.SaltSize())
		if _, err := rand.Read(salt); err != nil {
			return nil, err
		}
		encKey, macKey, verify := deriveAESKeys(opts.Password, salt, info.KeySize())
		if _, err := sw.Write(salt); err != nil {
			return nil, err
		}
		if _, err := sw.Write(verify[:]); err != nil {
			return nil, err
		}
		stream, err := newAESCipherStream(encKey, macKey)
		if err != nil {
			return nil, err
		}
		cw.aesStream = stream
	}
	w.cipher = cw
	w.compCnt = sw

	var comp io.WriteCloser
	switch opts.Method {
	case Store:
		comp = nopWriteCloser{cw}
	case Deflate:
		c, err := newDeflateWriter(cw, opts.Level)
		if err != nil {
			return nil, err
		}
		comp = c
	case Bzip2:
		c, err := newBzip2Writer(cw, opts.Level)
		if err != nil {
			return nil, err
		}
		comp = c
	case LZMA:
		c, err := newLZMAWriter(cw, -1)
		if err != nil {
			return nil, err
		}
		comp = c
	default:
		return nil, fmt.Errorf("gozip: unsupported compression method %d: %w", opts.Method, ErrUnsupported)
	}
	w.comp = comp

	return w, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// buildLocalZip64Placeholder returns a zero-filled ZIP64 extra field (tag,
// size, both 8-byte size fields) when zip64 is reserved, or nil otherwise.
// The local-header rule always carries both sizes together, unlike the
// central-directory rule of carrying only overflowing fields.
func buildLocalZip64Placeholder(zip64 bool) []byte {
	if !zip64 {
		return nil
	}
	zero := uint64(0)
	payload := encodeZip64Extra(&zero, &zero, nil, nil)
	return encodeExtraField(zip64ExtraID, payload)
}

// Write implements io.Writer: plaintext in, compressed-then-encrypted bytes
// out to the archive.
func (w *entryWriter) Write(p []byte) (int, error) {
	if w.finalized {
		return 0, fmt.Errorf("gozip: write to closed entry writer: %w", ErrInvalidMode)
	}
	n, err := w.comp.Write(p)
	if n > 0 {
		w.crc.Write(p[:n])
		w.plainLen += uint64(n)
	}
	return n, err
}

// Close flushes the compressor and cipher, finalizes the entry's header
// (either via a data descriptor or by patching the local header in place),
// and records the final metadata onto the FileHeader passed at
// construction so the caller (the Archive session) can append it to the
// archive's entry list.
func (w *entryWriter) Close() error {
	if w.finalized {
		return nil
	}
	w.finalized = true

	if err := w.comp.Close(); err != nil {
		return err
	}

	dataStart := w.dataStartOffset()
	compressedSize := uint64(w.compCnt.pos) - dataStart

	var macTag [wzAESMACSize]byte
	if w.cipher.aesStream != nil {
		macTag = w.cipher.aesStream.tag()
		if _, err := w.compCnt.Write(macTag[:]); err != nil {
			return err
		}
		compressedSize += wzAESMACSize
	}

	w.header.CompressedSize64 = compressedSize
	w.header.UncompressedSize64 = w.plainLen
	if w.cipher.aesStream != nil && w.header.AES.Version == 2 {
		w.header.CRC32 = 0
	} else {
		w.header.CRC32 = w.crc.Sum32()
	}

	if !w.zip64 {
		if w.header.CompressedSize64 > zip64Threshold || w.header.UncompressedSize64 > zip64Threshold {
			return fmt.Errorf("gozip: entry %q: %w", w.header.Name, ErrTooLarge)
		}
	}

	if w.useDataDesc {
		return w.writeDataDescriptor()
	}
	return w.patchLocalHeader()
}

// dataStartOffset recomputes where this entry's file data begins, by
// re-deriving the fixed layout rather than tracking a separate field:
// header + name + extra. The encryption header, if any, counts as part of
// the file data, so the compressed size measured from here includes it.
func (w *entryWriter) dataStartOffset() uint64 {
	extraLen := 0
	if w.zip64 {
		extraLen = 4 + 16 // tag+len, two uint64
	}
	return w.headerOffset + uint64(fileHeaderLen+len(w.header.Name)+extraLen)
}

func (w *entryWriter) writeDataDescriptor() error {
	var buf []byte
	if w.zip64 {
		buf = make([]byte, dataDescriptor64Len)
	} else {
		buf = make([]byte, dataDescriptorLen)
	}
	b := writeBuf(buf)
	b.uint32(dataDescriptorSignature)
	b.uint32(w.header.CRC32)
	if w.zip64 {
		b.uint64(w.header.CompressedSize64)
		b.uint64(w.header.UncompressedSize64)
	} else {
		b.uint32(uint32(w.header.CompressedSize64))
		b.uint32(uint32(w.header.UncompressedSize64))
	}
	_, err := w.compCnt.Write(buf)
	return err
}

func (w *entryWriter) patchLocalHeader() error {
	extra := buildLocalZip64Placeholder(w.zip64)
	if w.zip64 {
		cs, us := w.header.CompressedSize64, w.header.UncompressedSize64
		extra = encodeExtraField(zip64ExtraID, encodeZip64Extra(&us, &cs, nil, nil))
	}

	var compSize, uncompSize uint32
	if w.zip64 {
		compSize, uncompSize = uint32max, uint32max
	} else {
		compSize = uint32(w.header.CompressedSize64)
		uncompSize = uint32(w.header.UncompressedSize64)
	}

	modDate, modTime := timeToMsDosTime(w.header.Modified)
	hdr := encodeLocalHeaderFixed(w.header.ReaderVersion, w.header.Flags, w.header.Method, modTime, modDate,
		w.header.CRC32, compSize, uncompSize, uint16(len(w.header.Name)), uint16(len(extra)))

	patch := &sequentialWriter{ss: w.ss, pos: int64(w.headerOffset)}
	if _, err := patch.Write(hdr[:]); err != nil {
		return err
	}
	patch.pos += int64(len(w.header.Name))
	if len(extra) > 0 {
		if _, err := patch.Write(extra); err != nil {
			return err
		}
	}
	return nil
}
