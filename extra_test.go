package gozip

import (
	"bytes"
	"testing"
)

func TestParseExtraRoundTrip(t *testing.T) {
	raw := append(encodeExtraField(0x1234, []byte("hello")), encodeExtraField(aesExtraID, []byte("abcdefg"))...)

	fields, err := parseExtra(raw)
	if err != nil {
		t.Fatalf("parseExtra: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(fields))
	}
	if !bytes.Equal(findExtra(fields, 0x1234), []byte("hello")) {
		t.Fatalf("findExtra(0x1234) = %v", findExtra(fields, 0x1234))
	}
	if findExtra(fields, 0x9999) != nil {
		t.Fatal("expected nil for missing tag")
	}
}

func TestParseExtraOverrun(t *testing.T) {
	buf := []byte{0x01, 0x00, 0xff, 0xff} // claims 65535 bytes of data, has none
	if _, err := parseExtra(buf); err == nil {
		t.Fatal("expected error for overrunning extra field")
	}
}

func TestParseExtraDanglingTrailer(t *testing.T) {
	// A valid field followed by 2 stray bytes (less than the 4-byte header).
	buf := append(encodeExtraField(1, []byte("x")), 0xAA, 0xBB)
	fields, err := parseExtra(buf)
	if err != nil {
		t.Fatalf("parseExtra: %v", err)
	}
	if len(fields) != 1 {
		t.Fatalf("got %d fields, want 1", len(fields))
	}
}

func TestZip64ExtraRoundTrip(t *testing.T) {
	uc, cs := uint64(1<<33), uint64(1<<32)
	payload := encodeZip64Extra(&uc, &cs, nil, nil)

	got, err := decodeZip64Extra(payload, true, true, false, false)
	if err != nil {
		t.Fatalf("decodeZip64Extra: %v", err)
	}
	if got.UncompressedSize == nil || *got.UncompressedSize != uc {
		t.Fatalf("UncompressedSize = %v, want %d", got.UncompressedSize, uc)
	}
	if got.CompressedSize == nil || *got.CompressedSize != cs {
		t.Fatalf("CompressedSize = %v, want %d", got.CompressedSize, cs)
	}
	if got.HeaderOffset != nil {
		t.Fatal("HeaderOffset should be nil when not requested")
	}
}

func TestZip64ExtraTruncated(t *testing.T) {
	if _, err := decodeZip64Extra([]byte{1, 2, 3}, true, false, false, false); err == nil {
		t.Fatal("expected error for truncated zip64 extra")
	}
}

func TestAESExtraRoundTrip(t *testing.T) {
	info := &AESInfo{Version: 2, VendorID: [2]byte{'A', 'E'}, Strength: 3, RealMethod: Deflate}
	payload := encodeAESExtra(info)

	got, err := decodeAESExtra(payload)
	if err != nil {
		t.Fatalf("decodeAESExtra: %v", err)
	}
	if *got != *info {
		t.Fatalf("decodeAESExtra = %+v, want %+v", got, info)
	}
}

func TestAESExtraRejectsBadVersion(t *testing.T) {
	info := &AESInfo{Version: 3, VendorID: [2]byte{'A', 'E'}, Strength: 1, RealMethod: Store}
	payload := encodeAESExtra(info)
	if _, err := decodeAESExtra(payload); err == nil {
		t.Fatal("expected error for unsupported AES extra version")
	}
}

func TestAESExtraRejectsBadStrength(t *testing.T) {
	info := &AESInfo{Version: 1, VendorID: [2]byte{'A', 'E'}, Strength: 9, RealMethod: Store}
	payload := encodeAESExtra(info)
	if _, err := decodeAESExtra(payload); err == nil {
		t.Fatal("expected error for unsupported AES strength")
	}
}
