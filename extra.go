package gozip

import "fmt"

// extraField is one decoded tag/value pair from a local or central-directory
// Extra field. Unknown tags are preserved verbatim so a round-tripped entry
// keeps vendor extensions it does not understand.
type extraField struct {
	Tag  uint16
	Data []byte
}

// parseExtra splits a raw Extra byte blob into its tag/length/value records.
// It tolerates a dangling, too-short trailing record by ignoring it (some
// writers in the wild pad Extra with garbage); it does not tolerate a record
// whose declared length overruns the blob.
func parseExtra(extra []byte) ([]extraField, error) {
	var fields []extraField
	for len(extra) >= 4 {
		b := readBuf(extra[:4])
		tag := b.uint16()
		size := int(b.uint16())
		extra = extra[4:]
		if size > len(extra) {
			return nil, fmt.Errorf("gozip: extra field 0x%04x overruns record: %w", tag, ErrCorrupt)
		}
		fields = append(fields, extraField{Tag: tag, Data: extra[:size:size]})
		extra = extra[size:]
	}
	return fields, nil
}

// findExtra returns the first field with the given tag, or nil if absent.
func findExtra(fields []extraField, tag uint16) []byte {
	for _, f := range fields {
		if f.Tag == tag {
			return f.Data
		}
	}
	return nil
}

// encodeExtraField packs a single tag/data pair with its 4-byte tag+length
// prefix.
func encodeExtraField(tag uint16, data []byte) []byte {
	buf := make([]byte, 4+len(data))
	b := writeBuf(buf)
	b.uint16(tag)
	b.uint16(uint16(len(data)))
	copy(buf[4:], data)
	return buf
}

// zip64Extra holds the subset of fields a ZIP64 extra record (tag 0x0001)
// may carry. Per APPNOTE 4.5.3, only fields whose 32-bit counterpart in the
// fixed header is the 0xffffffff sentinel are present, and they appear in
// the fixed order uncompressed size, compressed size, header offset, disk
// start number -- never sparse in the middle.
type zip64Extra struct {
	UncompressedSize *uint64
	CompressedSize   *uint64
	HeaderOffset     *uint64
	DiskStart        *uint32
}

// decodeZip64Extra parses a ZIP64 extra record's payload. needUncompressed,
// needCompressed and needOffset tell it which fields the fixed-size header
// signaled as overflowed (via 0xffffffff/0xffff sentinels) and therefore
// present, in order, in data.
func decodeZip64Extra(data []byte, needUncompressed, needCompressed, needOffset, needDisk bool) (zip64Extra, error) {
	var z zip64Extra
	b := readBuf(data)
	need := func(n int) error {
		if len(b) < n {
			return fmt.Errorf("gozip: truncated zip64 extra field: %w", ErrCorrupt)
		}
		return nil
	}
	if needUncompressed {
		if err := need(8); err != nil {
			return z, err
		}
		v := b.uint64()
		z.UncompressedSize = &v
	}
	if needCompressed {
		if err := need(8); err != nil {
			return z, err
		}
		v := b.uint64()
		z.CompressedSize = &v
	}
	if needOffset {
		if err := need(8); err != nil {
			return z, err
		}
		v := b.uint64()
		z.HeaderOffset = &v
	}
	if needDisk {
		if err := need(4); err != nil {
			return z, err
		}
		v := b.uint32()
		z.DiskStart = &v
	}
	return z, nil
}

// encodeZip64Extra packs the ZIP64 extra record payload (without the
// tag/length prefix) for exactly the fields supplied, in APPNOTE order.
func encodeZip64Extra(uncompressed, compressed, offset *uint64, diskStart *uint32) []byte {
	size := 0
	if uncompressed != nil {
		size += 8
	}
	if compressed != nil {
		size += 8
	}
	if offset != nil {
		size += 8
	}
	if diskStart != nil {
		size += 4
	}
	buf := make([]byte, size)
	b := writeBuf(buf)
	if uncompressed != nil {
		b.uint64(*uncompressed)
	}
	if compressed != nil {
		b.uint64(*compressed)
	}
	if offset != nil {
		b.uint64(*offset)
	}
	if diskStart != nil {
		b.uint32(*diskStart)
	}
	return buf
}

// aesExtraID is the WinZip AES extra field tag, APPNOTE-registered to
// WinZip ("AE").
const aesExtraID = 0x9901

// decodeAESExtra parses a WinZip AES extra field (tag 0x9901) payload.
func decodeAESExtra(data []byte) (*AESInfo, error) {
	if len(data) != 7 {
		return nil, fmt.Errorf("gozip: malformed AES extra field: %w", ErrCorrupt)
	}
	b := readBuf(data)
	info := &AESInfo{}
	info.Version = int(b.uint16())
	info.VendorID[0] = b.uint8()
	info.VendorID[1] = b.uint8()
	info.Strength = b.uint8()
	info.RealMethod = b.uint16()
	if info.Version != 1 && info.Version != 2 {
		return nil, fmt.Errorf("gozip: unsupported AES extra field version %d: %w", info.Version, ErrUnsupported)
	}
	if info.Strength < 1 || info.Strength > 3 {
		return nil, fmt.Errorf("gozip: unsupported AES strength %d: %w", info.Strength, ErrUnsupported)
	}
	return info, nil
}

// encodeAESExtra packs a WinZip AES extra field payload (without the
// tag/length prefix).
func encodeAESExtra(info *AESInfo) []byte {
	buf := make([]byte, 7)
	b := writeBuf(buf)
	b.uint16(uint16(info.Version))
	vendor := info.VendorID
	if vendor == ([2]byte{}) {
		vendor = [2]byte{'A', 'E'}
	}
	b.uint8(vendor[0])
	b.uint8(vendor[1])
	b.uint8(info.Strength)
	b.uint16(info.RealMethod)
	return buf
}
