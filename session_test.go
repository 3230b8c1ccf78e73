package gozip

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

func newTestArchive(t *testing.T) (*Archive, *memFile) {
	t.Helper()
	m := &memFile{}
	a, err := OpenStream(m, ModeWrite, SessionOptions{})
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	return a, m
}

func reopenForRead(t *testing.T, m *memFile) *Archive {
	t.Helper()
	a, err := OpenStream(m, ModeRead, SessionOptions{})
	if err != nil {
		t.Fatalf("OpenStream(ModeRead): %v", err)
	}
	return a
}

func TestSessionWriteReadRoundTrip(t *testing.T) {
	a, m := newTestArchive(t)

	plain := []byte("hello, world! this is a deflate-friendly repeated repeated repeated string.")
	if err := a.WriteBytes("hello.txt", plain, WriteOptions{Method: Deflate}); err != nil {
		t.Fatalf("WriteBytes(deflate): %v", err)
	}
	stored := []byte("stored content, byte for byte")
	if err := a.WriteBytes("stored.bin", stored, WriteOptions{Method: Store}); err != nil {
		t.Fatalf("WriteBytes(store): %v", err)
	}
	if err := a.SetComment("a test archive"); err != nil {
		t.Fatalf("SetComment: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := reopenForRead(t, m)
	defer r.Close()

	if r.Comment() != "a test archive" {
		t.Fatalf("Comment = %q", r.Comment())
	}
	names := r.Names()
	if len(names) != 2 || names[0] != "hello.txt" || names[1] != "stored.bin" {
		t.Fatalf("Names = %v", names)
	}

	got, err := r.Read("hello.txt", nil)
	if err != nil {
		t.Fatalf("Read(hello.txt): %v", err)
	}
	if string(got) != string(plain) {
		t.Fatalf("Read(hello.txt) = %q, want %q", got, plain)
	}

	got2, err := r.Read("stored.bin", nil)
	if err != nil {
		t.Fatalf("Read(stored.bin): %v", err)
	}
	if string(got2) != string(stored) {
		t.Fatalf("Read(stored.bin) = %q, want %q", got2, stored)
	}
}

func TestSessionEncryptedZipCryptoRoundTrip(t *testing.T) {
	a, m := newTestArchive(t)

	plain := []byte("top secret payload")
	opts := WriteOptions{Method: Deflate, Encryption: EncryptionZipCrypto, Password: []byte("swordfish")}
	if err := a.WriteBytes("secret.txt", plain, opts); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := reopenForRead(t, m)
	defer r.Close()

	if _, err := r.Read("secret.txt", []byte("wrong password")); err != ErrBadPassword {
		t.Fatalf("Read with wrong password = %v, want ErrBadPassword", err)
	}

	got, err := r.Read("secret.txt", []byte("swordfish"))
	if err != nil {
		t.Fatalf("Read with correct password: %v", err)
	}
	if string(got) != string(plain) {
		t.Fatalf("Read = %q, want %q", got, plain)
	}
}

func TestSessionEncryptedAESRoundTrip(t *testing.T) {
	a, m := newTestArchive(t)

	plain := []byte("AES protected payload, a little longer to span a full keystream block or two.")
	opts := WriteOptions{Method: Deflate, Encryption: EncryptionAES256, Password: []byte("hunter2")}
	if err := a.WriteBytes("secret.bin", plain, opts); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := reopenForRead(t, m)
	defer r.Close()

	got, err := r.Read("secret.bin", []byte("hunter2"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(plain) {
		t.Fatalf("Read = %q, want %q", got, plain)
	}
}

func TestSessionWriteFromFileLikeSource(t *testing.T) {
	a, m := newTestArchive(t)

	fh := &FileHeader{Name: "timed.txt", Modified: time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)}
	w, err := a.CreateEntry(fh, WriteOptions{Method: Store, Size: 5})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if _, err := io.WriteString(w, "abcde"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := a.CloseEntry(w); err != nil {
		t.Fatalf("CloseEntry: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := reopenForRead(t, m)
	defer r.Close()
	info, err := r.Info("timed.txt")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Modified.Year() != 2024 || info.Modified.Month() != 6 || info.Modified.Day() != 15 {
		t.Fatalf("Modified = %v", info.Modified)
	}
}

func TestSessionDuplicateNameWarning(t *testing.T) {
	a, _ := newTestArchive(t)
	if err := a.WriteBytes("dup.txt", []byte("first"), WriteOptions{Method: Store}); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if err := a.WriteBytes("dup.txt", []byte("second"), WriteOptions{Method: Store}); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	warnings := a.Warnings()
	if len(warnings) != 1 || warnings[0].Name != "dup.txt" {
		t.Fatalf("Warnings = %+v", warnings)
	}
	got, err := a.Read("dup.txt", nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("Read(dup.txt) = %q, want last-writer-wins %q", got, "second")
	}
	a.Close()
}

func TestSessionStrictUniqueNamesRejectsDuplicate(t *testing.T) {
	m := &memFile{}
	a, err := OpenStream(m, ModeWrite, SessionOptions{StrictUniqueNames: true})
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	if err := a.WriteBytes("dup.txt", []byte("first"), WriteOptions{Method: Store}); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if err := a.WriteBytes("dup.txt", []byte("second"), WriteOptions{Method: Store}); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("second WriteBytes = %v, want ErrDuplicateName", err)
	}
	a.Close()
}

func TestSessionTestDetectsCorruption(t *testing.T) {
	a, m := newTestArchive(t)
	if err := a.WriteBytes("ok.txt", []byte("fine"), WriteOptions{Method: Store}); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Flip a byte inside the entry's stored content ("fine") to corrupt it.
	idx := bytes.Index(m.buf, []byte("fine"))
	if idx < 0 {
		t.Fatal("could not locate stored content in archive bytes")
	}
	m.buf[idx] = 'X'

	r := reopenForRead(t, m)
	defer r.Close()
	bad, err := r.Test()
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if bad == nil || *bad != "ok.txt" {
		t.Fatalf("Test() = %v, want ok.txt", bad)
	}
}

func TestSessionReadOnlyRejectsWrite(t *testing.T) {
	a, m := newTestArchive(t)
	if err := a.WriteBytes("x.txt", []byte("y"), WriteOptions{Method: Store}); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := reopenForRead(t, m)
	defer r.Close()
	if err := r.WriteBytes("y.txt", []byte("z"), WriteOptions{Method: Store}); err == nil {
		t.Fatal("expected error writing to a read-only archive")
	}
}
