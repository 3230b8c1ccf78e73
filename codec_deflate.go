package gozip

import (
	"compress/flate"
	"io"
)

// newDeflateWriter wraps w with a raw (no zlib/gzip wrapper) DEFLATE
// compressor, matching the ZIP format's -15 window convention.
func newDeflateWriter(w io.Writer, level int) (io.WriteCloser, error) {
	if level == 0 {
		level = flate.DefaultCompression
	}
	return flate.NewWriter(w, level)
}

// newDeflateReader wraps r with a raw DEFLATE decompressor.
func newDeflateReader(r io.Reader) io.ReadCloser {
	return flate.NewReader(r)
}
