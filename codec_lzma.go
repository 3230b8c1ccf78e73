package gozip

import (
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// The ZIP LZMA method (14) does not use the .lzma or .xz container formats.
// Instead each entry's compressed data starts with a small header specific
// to ZIP: a 2-byte LZMA SDK version (major, minor), a 2-byte little-endian
// properties-length (conventionally 5), followed by that many properties
// bytes -- one byte packing (lc, lp, pb) and a 4-byte little-endian
// dictionary size -- and then the raw LZMA1 stream. The stream ends with an
// end-of-stream marker when the writer is not given the uncompressed size,
// which is always the case for entries written by entryWriter (they also
// set general-purpose flag bit 1).

const (
	lzmaSDKVersionMajor = 9
	lzmaSDKVersionMinor = 20
	lzmaPropsSize        = 5
	lzmaDefaultDictCap   = 1 << 21 // 2 MiB, plenty for typical entries
)

func lzmaPropsByte(p lzma.Properties) byte {
	return byte((p.PB*5+p.LP)*9 + p.LC)
}

func lzmaParsePropsByte(b byte) (lzma.Properties, error) {
	if int(b) >= 9*5*5 {
		return lzma.Properties{}, fmt.Errorf("gozip: invalid lzma properties byte 0x%02x: %w", b, ErrCorrupt)
	}
	lc := int(b) % 9
	rest := int(b) / 9
	lp := rest % 5
	pb := rest / 5
	return lzma.NewProperties(lc, lp, pb)
}

// newLZMAWriter writes the ZIP-specific LZMA header to w and returns a
// WriteCloser for the raw LZMA1 stream that follows. uncompressedSize, if
// known, lets the encoder skip emitting an end-of-stream marker.
func newLZMAWriter(w io.Writer, uncompressedSize int64) (io.WriteCloser, error) {
	props, err := lzma.NewProperties(3, 0, 2)
	if err != nil {
		return nil, err
	}
	var hdr [4]byte
	b := writeBuf(hdr[:])
	b.uint8(lzmaSDKVersionMajor)
	b.uint8(lzmaSDKVersionMinor)
	b.uint16(lzmaPropsSize)
	if _, err := w.Write(hdr[:]); err != nil {
		return nil, err
	}

	var propsBuf [lzmaPropsSize]byte
	propsBuf[0] = lzmaPropsByte(props)
	pb := writeBuf(propsBuf[1:])
	pb.uint32(uint32(lzmaDefaultDictCap))
	if _, err := w.Write(propsBuf[:]); err != nil {
		return nil, err
	}

	cfg := lzma.WriterConfig{
		Properties:  &props,
		DictCap:     lzmaDefaultDictCap,
		SizeInBytes: uncompressedSize,
		EOSMarker:   uncompressedSize < 0,
	}
	return cfg.NewWriter(w)
}

// nopCloseReader adapts an io.Reader lacking Close (lzma.Reader has none)
// to io.ReadCloser.
type nopCloseReader struct{ io.Reader }

func (nopCloseReader) Close() error { return nil }

// newLZMAReader reads the ZIP-specific LZMA header from r and returns a
// ReadCloser over the decompressed data.
func newLZMAReader(r io.Reader) (io.ReadCloser, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("gozip: short lzma header: %w", ErrCorrupt)
	}
	b := readBuf(hdr[:])
	b.skip(2) // SDK major/minor version, not needed to decode
	propsLen := int(b.uint16())
	if propsLen < 1 {
		return nil, fmt.Errorf("gozip: invalid lzma properties length %d: %w", propsLen, ErrCorrupt)
	}
	propsBuf := make([]byte, propsLen)
	if _, err := io.ReadFull(r, propsBuf); err != nil {
		return nil, fmt.Errorf("gozip: short lzma properties: %w", ErrCorrupt)
	}
	props, err := lzmaParsePropsByte(propsBuf[0])
	if err != nil {
		return nil, err
	}
	dictCap := lzmaDefaultDictCap
	if propsLen >= 5 {
		pb := readBuf(propsBuf[1:5])
		dictCap = int(pb.uint32())
		if dictCap <= 0 {
			dictCap = lzmaDefaultDictCap
		}
	}

	cfg := lzma.ReaderConfig{
		Properties: &props,
		DictCap:    dictCap,
	}
	rd, err := cfg.NewReader(r)
	if err != nil {
		return nil, err
	}
	return nopCloseReader{rd}, nil
}
