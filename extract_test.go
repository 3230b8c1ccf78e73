package gozip

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeEntryNameDropsTraversal(t *testing.T) {
	cases := map[string]string{
		"a/b/c.txt":        filepath.Join("a", "b", "c.txt"),
		"../../etc/passwd": filepath.Join("etc", "passwd"),
		"./x/../y.txt":     filepath.Join("x", "y.txt"),
		"a//b":             filepath.Join("a", "b"),
		"":                 "",
	}
	for in, want := range cases {
		if got := sanitizeEntryName(in); got != want {
			t.Errorf("sanitizeEntryName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractAllRoundTrip(t *testing.T) {
	a, m := newTestArchive(t)
	if err := a.WriteBytes("a/b.txt", []byte("contents of b"), WriteOptions{Method: Deflate}); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if err := a.WriteBytes("top.txt", []byte("top level"), WriteOptions{Method: Store}); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := reopenForRead(t, m)
	defer r.Close()

	dir := t.TempDir()
	if err := r.ExtractAll(dir, ExtractOptions{}); err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "a", "b.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "contents of b" {
		t.Fatalf("a/b.txt = %q", got)
	}

	got2, err := os.ReadFile(filepath.Join(dir, "top.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got2) != "top level" {
		t.Fatalf("top.txt = %q", got2)
	}
}

func TestExtractAllRejectsPathEscape(t *testing.T) {
	a, m := newTestArchive(t)
	if err := a.WriteBytes("../evil.txt", []byte("pwned"), WriteOptions{Method: Store}); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := reopenForRead(t, m)
	defer r.Close()

	dir := t.TempDir()
	if err := r.ExtractAll(dir, ExtractOptions{}); err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "evil.txt")); err == nil {
		t.Fatal("entry escaped the extraction directory")
	}
	if _, err := os.Stat(filepath.Join(dir, "evil.txt")); err != nil {
		t.Fatalf("expected sanitized entry inside dir: %v", err)
	}
}
