package gozip

import (
	"bytes"
	"fmt"
)

// eocdSignatureBytes and friends are the little-endian magic bytes for the
// trailer records, used for backward byte-scanning during discovery.
var (
	eocdSignatureBytes       = []byte{0x50, 0x4b, 0x05, 0x06}
	eocd64LocatorSignature   = []byte{0x50, 0x4b, 0x06, 0x07}
	eocd64RecordSignatureLE  = []byte{0x50, 0x4b, 0x06, 0x06}
)

// maxEOCDTail is the largest trailer window discovery will scan: the EOCD's
// comment field is at most 65535 bytes, plus the 22-byte fixed record.
const maxEOCDTail = 65557

// discoveredDirectory is what directory discovery hands back to the archive
// session: the decoded entries (in central-directory order, with
// HeaderOffset already concat-corrected), the archive comment, the absolute
// offset at which the next local header should be written (start_dir), and
// the concat offset itself (kept so a close-without-modification can
// re-emit central-directory records using the original, pre-correction
// header_offset values it read them with -- entries already carry the
// corrected value, so writers must subtract concatOffset back out when
// persisting header_offset into a central record).
type discoveredDirectory struct {
	entries      []*FileHeader
	comment      string
	startDir     uint64
	concatOffset int64
}

// discoverCentralDirectory locates the EOCD (and, if present, the ZIP64
// EOCD + locator), walks the central directory, and returns the resulting
// entries. It returns ErrNotAZip if no EOCD signature can be found at all.
func discoverCentralDirectory(ss *SharedStream) (*discoveredDirectory, error) {
	size, err := ss.size()
	if err != nil {
		return nil, err
	}

	eocdAbs, rec, err := locateEOCD(ss, size)
	if err != nil {
		return nil, err
	}

	cdOffset := uint64(rec.CDOffset)
	cdSize := uint64(rec.CDSize)
	entriesTotal := uint64(rec.EntriesTotal)
	anchor := eocdAbs

	if eocdAbs >= directory64LocLen {
		locBuf := make([]byte, directory64LocLen)
		n, rerr := ss.readAt(eocdAbs-directory64LocLen, locBuf)
		if rerr == nil && n == directory64LocLen && bytes.Equal(locBuf[:4], eocd64LocatorSignature) {
			loc, derr := decodeEOCD64Locator(locBuf)
			if derr != nil {
				return nil, derr
			}
			if loc.TotalDisks != 1 || loc.CDDiskNumber != 0 {
				return nil, fmt.Errorf("gozip: multi-disk archive: %w", ErrUnsupported)
			}
			// loc.EOCD64Offset is the offset PKWARE recorded at write time,
			// which is logical (relative to the start of archive data) and
			// therefore wrong by exactly the concat offset for any archive
			// with a prepended stub (e.g. a self-extractor). The ZIP64 EOCD
			// always sits immediately before its locator, which sits
			// immediately before the 32-bit EOCD we just found physically,
			// so derive the physical offset from that layout instead of
			// trusting the stored pointer (matches CPython's
			// _EndRecData64, which seeks to
			// eocd32_offset - sizeEndCentDir64 - sizeEndCentDir64Locator).
			eocd64Abs := eocdAbs - directory64LocLen - directory64EndLen
			if eocd64Abs < 0 {
				return nil, fmt.Errorf("gozip: zip64 EOCD locator points before start of file: %w", ErrCorrupt)
			}
			eocd64Buf := make([]byte, directory64EndLen)
			if _, err := ss.readAt(eocd64Abs, eocd64Buf); err != nil {
				return nil, fmt.Errorf("gozip: reading zip64 EOCD: %w", err)
			}
			if !bytes.Equal(eocd64Buf[:4], eocd64RecordSignatureLE) {
				return nil, fmt.Errorf("gozip: zip64 EOCD locator points to bad signature: %w", ErrCorrupt)
			}
			rec64, derr := decodeEOCD64(eocd64Buf)
			if derr != nil {
				return nil, derr
			}
			if rec64.DiskNumber != 0 || rec64.CDDiskNumber != 0 {
				return nil, fmt.Errorf("gozip: multi-disk archive: %w", ErrUnsupported)
			}
			cdOffset = rec64.CDOffset
			cdSize = rec64.CDSize
			entriesTotal = rec64.EntriesTotal
			anchor = eocd64Abs
		}
	}

	concat := anchor - int64(cdSize) - int64(cdOffset)
	startDir := cdOffset + uint64(concat)

	cdBuf := make([]byte, cdSize)
	if cdSize > 0 {
		if _, err := ss.readAt(int64(startDir), cdBuf); err != nil {
			return nil, fmt.Errorf("gozip: reading central directory: %w", err)
		}
	}

	entries, err := walkCentralDirectory(cdBuf, entriesTotal, concat)
	if err != nil {
		return nil, err
	}

	return &discoveredDirectory{
		entries:      entries,
		comment:      rec.Comment,
		startDir:     startDir,
		concatOffset: concat,
	}, nil
}

// locateEOCD finds and decodes the (32-bit) end-of-central-directory
// record, returning its absolute file offset.
func locateEOCD(ss *SharedStream, size int64) (int64, eocd, error) {
	if size >= directoryEndLen {
		tail := make([]byte, directoryEndLen)
		if _, err := ss.readAt(size-directoryEndLen, tail); err == nil {
			if bytes.Equal(tail[:4], eocdSignatureBytes) {
				rec, derr := decodeEOCD(tail)
				if derr == nil && len(rec.Comment) == 0 {
					return size - directoryEndLen, rec, nil
				}
			}
		}
	}

	window := size
	if window > maxEOCDTail {
		window = maxEOCDTail
	}
	if window < directoryEndLen {
		return 0, eocd{}, fmt.Errorf("gozip: file too short to contain EOCD: %w", ErrNotAZip)
	}
	tailStart := size - window
	tail := make([]byte, window)
	if _, err := ss.readAt(tailStart, tail); err != nil {
		return 0, eocd{}, err
	}

	idx := -1
	for i := len(tail) - directoryEndLen; i >= 0; i-- {
		if bytes.Equal(tail[i:i+4], eocdSignatureBytes) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, eocd{}, ErrNotAZip
	}

	rec, err := decodeEOCD(tail[idx:])
	if err != nil {
		return 0, eocd{}, err
	}
	return tailStart + int64(idx), rec, nil
}

// walkCentralDirectory parses cdBuf into FileHeader entries, adding concat
// to every decoded header_offset so it is expressed as an absolute offset
// in the underlying stream, past any preceding stub.
func walkCentralDirectory(cdBuf []byte, entriesTotal uint64, concat int64) ([]*FileHeader, error) {
	entries := make([]*FileHeader, 0, entriesTotal)
	buf := cdBuf
	for len(buf) > 0 {
		if len(buf) < 4 || !bytes.Equal(buf[:4], []byte{0x50, 0x4b, 0x01, 0x02}) {
			return nil, fmt.Errorf("gozip: bad central directory record signature: %w", ErrCorrupt)
		}
		e, consumed, err := decodeCentralDirEntry(buf[4:])
		if err != nil {
			return nil, err
		}
		buf = buf[4+consumed:]

		if e.ExtractVersion&0xff > 63 {
			return nil, fmt.Errorf("gozip: unsupported extract version %d.%d: %w", e.ExtractVersion/10, e.ExtractVersion%10, ErrUnsupported)
		}
		if e.Flags&flagEncryptedCD != 0 {
			return nil, fmt.Errorf("gozip: encrypted central directory: %w", ErrUnsupported)
		}

		fh := &FileHeader{
			Name:               e.Name,
			Comment:            e.Comment,
			CreatorVersion:     e.CreatorVersion,
			ReaderVersion:      e.ExtractVersion,
			Flags:              e.Flags,
			Method:             e.Method,
			Modified:           msDosTimeToTime(e.ModDate, e.ModTime),
			CRC32:              e.CRC32,
			CompressedSize64:   e.CompressedSize,
			UncompressedSize64: e.UncompressedSize,
			ExternalAttrs:      e.ExternalAttrs,
			InternalAttrs:      e.InternalAttrs,
			Volume:             e.Volume,
			HeaderOffset:       e.HeaderOffset,
		}
		fh.NonUTF8 = e.Flags&flagUTF8 == 0

		fields, err := parseExtra(e.Extra)
		if err != nil {
			return nil, err
		}
		if z := findExtra(fields, zip64ExtraID); z != nil {
			needUncompressed := e.UncompressedSize == uint32max
			needCompressed := e.CompressedSize == uint32max
			needOffset := e.HeaderOffset == uint32max
			needDisk := e.Volume == uint16max
			parsed, err := decodeZip64Extra(z, needUncompressed, needCompressed, needOffset, needDisk)
			if err != nil {
				return nil, err
			}
			if parsed.UncompressedSize != nil {
				fh.UncompressedSize64 = *parsed.UncompressedSize
			}
			if parsed.CompressedSize != nil {
				fh.CompressedSize64 = *parsed.CompressedSize
			}
			if parsed.HeaderOffset != nil {
				fh.HeaderOffset = *parsed.HeaderOffset
			}
			if parsed.DiskStart != nil {
				fh.Volume = uint16(*parsed.DiskStart)
			}
		}
		fh.HeaderOffset = uint64(int64(fh.HeaderOffset) + concat)

		if a := findExtra(fields, aesExtraID); a != nil {
			info, err := decodeAESExtra(a)
			if err != nil {
				return nil, err
			}
			fh.AES = info
			fh.Method = info.RealMethod
		}

		fh.Extra = e.Extra
		entries = append(entries, fh)
	}
	return entries, nil
}
