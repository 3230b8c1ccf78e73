package gozip

import (
	"io"

	"github.com/dsnet/compress/bzip2"
)

// newBzip2Writer wraps w with a BZIP2 compressor. The standard library's
// compress/bzip2 is decode-only, so writing uses dsnet/compress/bzip2
// instead.
func newBzip2Writer(w io.Writer, level int) (io.WriteCloser, error) {
	if level < bzip2.BestSpeed || level > bzip2.BestCompression {
		level = bzip2.DefaultCompression
	}
	return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: level})
}

// newBzip2Reader wraps r with a BZIP2 decompressor.
func newBzip2Reader(r io.Reader) (io.ReadCloser, error) {
	return bzip2.NewReader(r, nil)
}
