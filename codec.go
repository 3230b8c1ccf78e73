package gozip

import (
	"encoding/binary"
	"fmt"
	"time"
)

// readBuf is the decode counterpart of writeBuf (writer.go): a little-endian
// cursor over a fixed-size byte slice.
type readBuf []byte

func (b *readBuf) uint8() uint8 {
	v := (*b)[0]
	*b = (*b)[1:]
	return v
}

func (b *readBuf) uint16() uint16 {
	v := binary.LittleEndian.Uint16(*b)
	*b = (*b)[2:]
	return v
}

func (b *readBuf) uint32() uint32 {
	v := binary.LittleEndian.Uint32(*b)
	*b = (*b)[4:]
	return v
}

func (b *readBuf) uint64() uint64 {
	v := binary.LittleEndian.Uint64(*b)
	*b = (*b)[8:]
	return v
}

func (b *readBuf) skip(n int) {
	*b = (*b)[n:]
}

func (b *readBuf) bytes(n int) []byte {
	v := (*b)[:n]
	*b = (*b)[n:]
	return v
}

// msDosTimeToTime converts MS-DOS date/time fields to a time.Time. The
// resolution is 2s and there is no timezone information in the DOS fields,
// so the result is in UTC -- mirrors archive/zip's and zipserve's behavior.
func msDosTimeToTime(dosDate, dosTime uint16) time.Time {
	return time.Date(
		1980+int(dosDate>>9),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),

		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f)*2,
		0,
		time.UTC,
	)
}

// localHeader is the decoded, fixed-size part of a local file header
// (record "Local file header", PK\x03\x04), before name/extra are read.
type localHeader struct {
	ExtractVersion uint16
	Flags          uint16
	Method         uint16
	ModTime        uint16
	ModDate        uint16
	CRC32          uint32
	CompressedSize uint32
	UncompressedSize uint32
	NameLen        uint16
	ExtraLen       uint16
}

// decodeLocalHeader parses the fixed part of a local file header that
// follows its 4-byte signature. buf must be exactly fileHeaderLen-4 bytes;
// the signature itself is not included (callers read and check it
// separately so they can distinguish "no more entries" from "corrupt
// record").
func decodeLocalHeader(buf []byte) (localHeader, error) {
	if len(buf) != fileHeaderLen-4 {
		return localHeader{}, fmt.Errorf("gozip: short local header: %w", ErrCorrupt)
	}
	b := readBuf(buf)
	var h localHeader
	h.ExtractVersion = b.uint16()
	h.Flags = b.uint16()
	h.Method = b.uint16()
	h.ModTime = b.uint16()
	h.ModDate = b.uint16()
	h.CRC32 = b.uint32()
	h.CompressedSize = b.uint32()
	h.UncompressedSize = b.uint32()
	h.NameLen = b.uint16()
	h.ExtraLen = b.uint16()
	return h, nil
}

// encodeLocalHeaderFixed packs the 30-byte fixed part of a local file
// header. crc/compSize/uncompSize/extractVersion/nameLen/extraLen are
// passed explicitly (rather than read off *FileHeader) so that callers can
// reuse this both for the placeholder (data-descriptor pending) emission
// and the final patched emission.
func encodeLocalHeaderFixed(extractVersion, flags, method, modTime, modDate uint16,
	crc32v, compSize, uncompSize uint32, nameLen, extraLen uint16) [fileHeaderLen]byte {
	var buf [fileHeaderLen]byte
	b := writeBuf(buf[:])
	b.uint32(uint32(fileHeaderSignature))
	b.uint16(extractVersion)
	b.uint16(flags)
	b.uint16(method)
	b.uint16(modTime)
	b.uint16(modDate)
	b.uint32(crc32v)
	b.uint32(compSize)
	b.uint32(uncompSize)
	b.uint16(nameLen)
	b.uint16(extraLen)
	return buf
}

// centralDirEntry is the decoded central-directory file header (record
// "Central directory entry", PK\x01\x02) including variable-length name,
// extra and comment.
type centralDirEntry struct {
	CreatorVersion   uint16
	ExtractVersion   uint16
	Flags            uint16
	Method           uint16
	ModTime          uint16
	ModDate          uint16
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	Volume           uint16
	InternalAttrs    uint16
	ExternalAttrs    uint32
	HeaderOffset     uint64
	Name             string
	Extra            []byte
	Comment          string
}

// decodeCentralDirEntry parses one central-directory record starting at the
// front of buf (which must begin with the PK\x01\x02 signature already
// stripped by the caller) and returns the decoded entry along with the
// number of bytes consumed from buf, not including the signature.
func decodeCentralDirEntry(buf []byte) (centralDirEntry, int, error) {
	const fixedLen = directoryHeaderLen - 4 // signature already consumed by caller
	if len(buf) < fixedLen {
		return centralDirEntry{}, 0, fmt.Errorf("gozip: truncated central directory record: %w", ErrCorrupt)
	}
	b := readBuf(buf[:fixedLen])
	var e centralDirEntry
	e.CreatorVersion = b.uint16()
	e.ExtractVersion = b.uint16()
	e.Flags = b.uint16()
	e.Method = b.uint16()
	e.ModTime = b.uint16()
	e.ModDate = b.uint16()
	e.CRC32 = b.uint32()
	e.CompressedSize = uint64(b.uint32())
	e.UncompressedSize = uint64(b.uint32())
	nameLen := int(b.uint16())
	extraLen := int(b.uint16())
	commentLen := int(b.uint16())
	e.Volume = b.uint16()
	e.InternalAttrs = b.uint16()
	e.ExternalAttrs = b.uint32()
	e.HeaderOffset = uint64(b.uint32())

	rest := buf[fixedLen:]
	need := nameLen + extraLen + commentLen
	if len(rest) < need {
		return centralDirEntry{}, 0, fmt.Errorf("gozip: truncated central directory record name/extra/comment: %w", ErrCorrupt)
	}
	e.Name = string(rest[:nameLen])
	rest = rest[nameLen:]
	e.Extra = append([]byte(nil), rest[:extraLen]...)
	rest = rest[extraLen:]
	e.Comment = string(rest[:commentLen])

	return e, fixedLen + need, nil
}

// encodeCentralDirEntryFixed packs the 46-byte fixed part of a
// central-directory record.
func encodeCentralDirEntryFixed(e *centralDirEntry, nameLen, extraLen, commentLen uint16) [directoryHeaderLen]byte {
	var buf [directoryHeaderLen]byte
	b := writeBuf(buf[:])
	b.uint32(uint32(directoryHeaderSignature))
	b.uint16(e.CreatorVersion)
	b.uint16(e.ExtractVersion)
	b.uint16(e.Flags)
	b.uint16(e.Method)
	b.uint16(e.ModTime)
	b.uint16(e.ModDate)
	b.uint32(e.CRC32)
	b.uint32(uint32(e.CompressedSize))
	b.uint32(uint32(e.UncompressedSize))
	b.uint16(nameLen)
	b.uint16(extraLen)
	b.uint16(commentLen)
	b.uint16(e.Volume)
	b.uint16(e.InternalAttrs)
	b.uint32(e.ExternalAttrs)
	b.uint32(uint32(e.HeaderOffset))
	return buf
}

// eocd is the decoded end-of-central-directory record (PK\x05\x06).
type eocd struct {
	DiskNumber        uint16
	CDDiskNumber      uint16
	EntriesThisDisk   uint16
	EntriesTotal      uint16
	CDSize            uint32
	CDOffset          uint32
	Comment           string
}

func decodeEOCD(buf []byte) (eocd, error) {
	if len(buf) < directoryEndLen {
		return eocd{}, fmt.Errorf("gozip: short EOCD: %w", ErrCorrupt)
	}
	b := readBuf(buf[4:directoryEndLen]) // skip signature
	var e eocd
	e.DiskNumber = b.uint16()
	e.CDDiskNumber = b.uint16()
	e.EntriesThisDisk = b.uint16()
	e.EntriesTotal = b.uint16()
	e.CDSize = b.uint32()
	e.CDOffset = b.uint32()
	commentLen := int(b.uint16())
	rest := buf[directoryEndLen:]
	if len(rest) < commentLen {
		return eocd{}, fmt.Errorf("gozip: truncated EOCD comment: %w", ErrCorrupt)
	}
	e.Comment = string(rest[:commentLen])
	return e, nil
}

// eocd64 is the decoded ZIP64 end-of-central-directory record (PK\x06\x06).
type eocd64 struct {
	VersionMadeBy     uint16
	VersionNeeded     uint16
	DiskNumber        uint32
	CDDiskNumber      uint32
	EntriesThisDisk   uint64
	EntriesTotal      uint64
	CDSize            uint64
	CDOffset          uint64
}

func decodeEOCD64(buf []byte) (eocd64, error) {
	if len(buf) < directory64EndLen {
		return eocd64{}, fmt.Errorf("gozip: short EOCD64: %w", ErrCorrupt)
	}
	b := readBuf(buf[12:directory64EndLen]) // skip signature + record size
	var e eocd64
	e.VersionMadeBy = b.uint16()
	e.VersionNeeded = b.uint16()
	e.DiskNumber = b.uint32()
	e.CDDiskNumber = b.uint32()
	e.EntriesThisDisk = b.uint64()
	e.EntriesTotal = b.uint64()
	e.CDSize = b.uint64()
	e.CDOffset = b.uint64()
	return e, nil
}

// eocd64Locator is the decoded ZIP64 end-of-central-directory locator
// (PK\x06\x07).
type eocd64Locator struct {
	CDDiskNumber uint32
	EOCD64Offset uint64
	TotalDisks   uint32
}

func decodeEOCD64Locator(buf []byte) (eocd64Locator, error) {
	if len(buf) < directory64LocLen {
		return eocd64Locator{}, fmt.Errorf("gozip: short EOCD64 locator: %w", ErrCorrupt)
	}
	b := readBuf(buf[4:directory64LocLen]) // skip signature
	var l eocd64Locator
	l.CDDiskNumber = b.uint32()
	l.EOCD64Offset = b.uint64()
	l.TotalDisks = b.uint32()
	return l, nil
}

// A written entry's data descriptor is never read back: the read path
// always resolves CRC32 and sizes from the central directory (see
// discovery.go), since every archive this package opens is backed by a
// seekable stream. Only the writer (entrywriter.go's writeDataDescriptor)
// encodes one, to satisfy readers that do stream forward without a central
// directory index.
