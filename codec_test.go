package gozip

import "testing"

func TestLocalHeaderRoundTrip(t *testing.T) {
	fixed := encodeLocalHeaderFixed(zipVersion45, flagUTF8, Deflate, 0x1234, 0x5678,
		0xdeadbeef, 111, 222, 7, 9)

	got, err := decodeLocalHeader(fixed[4:])
	if err != nil {
		t.Fatalf("decodeLocalHeader: %v", err)
	}
	want := localHeader{
		ExtractVersion:   zipVersion45,
		Flags:            flagUTF8,
		Method:           Deflate,
		ModTime:          0x1234,
		ModDate:          0x5678,
		CRC32:            0xdeadbeef,
		CompressedSize:   111,
		UncompressedSize: 222,
		NameLen:          7,
		ExtraLen:         9,
	}
	if got != want {
		t.Fatalf("decodeLocalHeader = %+v, want %+v", got, want)
	}
}

func TestDecodeLocalHeaderShort(t *testing.T) {
	if _, err := decodeLocalHeader(make([]byte, fileHeaderLen-1)); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestCentralDirEntryRoundTrip(t *testing.T) {
	e := &centralDirEntry{
		CreatorVersion:   zipVersion20,
		ExtractVersion:   zipVersion20,
		Flags:            flagUTF8,
		Method:           Store,
		ModTime:          1,
		ModDate:          2,
		CRC32:            3,
		CompressedSize:   4,
		UncompressedSize: 5,
		Volume:           0,
		InternalAttrs:    0,
		ExternalAttrs:    0755 << 16,
		HeaderOffset:     100,
	}
	fixed := encodeCentralDirEntryFixed(e, uint16(len("hello.txt")), 0, 0)

	got, n, err := decodeCentralDirEntry(append(append([]byte(nil), fixed[4:]...), []byte("hello.txt")...))
	if err != nil {
		t.Fatalf("decodeCentralDirEntry: %v", err)
	}
	if got.Name != "hello.txt" {
		t.Fatalf("Name = %q, want hello.txt", got.Name)
	}
	if got.ExternalAttrs != e.ExternalAttrs || got.HeaderOffset != e.HeaderOffset {
		t.Fatalf("decoded entry mismatch: %+v", got)
	}
	if n != directoryHeaderLen-4+len("hello.txt") {
		t.Fatalf("consumed %d bytes, want %d", n, directoryHeaderLen-4+len("hello.txt"))
	}
}

func TestDecodeEOCD(t *testing.T) {
	var buf [directoryEndLen]byte
	b := writeBuf(buf[:])
	b.uint32(uint32(directoryEndSignature))
	b.uint16(0)
	b.uint16(0)
	b.uint16(3)
	b.uint16(3)
	b.uint32(1000)
	b.uint32(2000)
	b.uint16(uint16(len("hi")))
	full := append(append([]byte(nil), buf[:]...), []byte("hi")...)

	got, err := decodeEOCD(full)
	if err != nil {
		t.Fatalf("decodeEOCD: %v", err)
	}
	if got.EntriesTotal != 3 || got.CDSize != 1000 || got.CDOffset != 2000 || got.Comment != "hi" {
		t.Fatalf("decodeEOCD = %+v", got)
	}
}

func TestDecodeEOCDTruncatedComment(t *testing.T) {
	var buf [directoryEndLen]byte
	b := writeBuf(buf[:])
	b.uint32(uint32(directoryEndSignature))
	b.uint16(0)
	b.uint16(0)
	b.uint16(0)
	b.uint16(0)
	b.uint32(0)
	b.uint32(0)
	b.uint16(5) // claims a 5-byte comment that isn't there

	if _, err := decodeEOCD(buf[:]); err == nil {
		t.Fatal("expected error for truncated comment")
	}
}

func TestDecodeEOCD64Locator(t *testing.T) {
	var buf [directory64LocLen]byte
	b := writeBuf(buf[:])
	b.uint32(uint32(directory64LocSignature))
	b.uint32(0)
	b.uint64(12345)
	b.uint32(1)

	got, err := decodeEOCD64Locator(buf[:])
	if err != nil {
		t.Fatalf("decodeEOCD64Locator: %v", err)
	}
	if got.EOCD64Offset != 12345 || got.TotalDisks != 1 {
		t.Fatalf("decodeEOCD64Locator = %+v", got)
	}
}

func TestMsDosTimeToTime(t *testing.T) {
	got := msDosTimeToTime(0x0021, 0x0000) // 1980-01-01, 00:00:00
	if got.Year() != 1980 || got.Month() != 1 || got.Day() != 1 {
		t.Fatalf("msDosTimeToTime = %v", got)
	}
}
