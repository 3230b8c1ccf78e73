// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gozip

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestWriterUTF8(t *testing.T) {
	var utf8Tests = []struct {
		name    string
		comment string
		nonUTF8 bool
		flags   uint16
	}{
		{
			name:    "hi, hello",
			comment: "in the world",
			flags:   0x0,
		},
		{
			name:    "hi, こんにちわ",
			comment: "in the world",
			flags:   0x800,
		},
		{
			name:    "hi, こんにちわ",
			comment: "in the world",
			nonUTF8: true,
			flags:   0x0,
		},
		{
			name:    "hi, hello",
			comment: "in the 世界",
			flags:   0x800,
		},
		{
			name:    "the replacement rune is �",
			comment: "the replacement rune is �",
			flags:   0x800,
		},
		{
			// Name is Japanese encoded in Shift JIS.
			name:    "\x93\xfa\x96{\x8c\xea.txt",
			comment: "in the 世界",
			flags:   0x000, // UTF-8 must not be set: name isn't valid UTF-8
		},
	}

	a, m := newTestArchive(t)
	for i, test := range utf8Tests {
		fh := &FileHeader{Name: test.name, Comment: test.comment, NonUTF8: test.nonUTF8, Method: Store}
		w, err := a.CreateEntry(fh, WriteOptions{Method: Store})
		if err != nil {
			t.Fatalf("case %d: CreateEntry: %v", i, err)
		}
		if err := a.CloseEntry(w); err != nil {
			t.Fatalf("case %d: CloseEntry: %v", i, err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := reopenForRead(t, m)
	defer r.Close()
	if len(r.entries) != len(utf8Tests) {
		t.Fatalf("got %d entries, want %d", len(r.entries), len(utf8Tests))
	}
	for i, test := range utf8Tests {
		// Several cases share a name, and the name index keeps only the
		// last entry of each name, so look entries up by position.
		info := r.entries[i]
		if info.Name != test.name {
			t.Fatalf("case %d: Name = %q, want %q", i, info.Name, test.name)
		}
		if info.Flags != test.flags {
			t.Errorf("case %d (name=%q comment=%q nonUTF8=%v): flags=%#x, want %#x", i, test.name, test.comment, test.nonUTF8, info.Flags, test.flags)
		}
	}
}

func TestWriterTime(t *testing.T) {
	a, m := newTestArchive(t)
	fh := &FileHeader{
		Name:     "test.txt",
		Modified: time.Date(2017, 10, 31, 21, 11, 57, 0, time.FixedZone("", int(-7*time.Hour/time.Second))),
	}
	w, err := a.CreateEntry(fh, WriteOptions{Method: Store})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if err := a.CloseEntry(w); err != nil {
		t.Fatalf("CloseEntry: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := reopenForRead(t, m)
	defer r.Close()
	info, err := r.Info("test.txt")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}

	// Only the MS-DOS date/time fields are stored: they keep Modified's
	// wall-clock fields in its own location at 2-second resolution, and
	// are read back as UTC.
	if got, want := info.Modified, time.Date(2017, 10, 31, 21, 11, 56, 0, time.UTC); !got.Equal(want) {
		t.Errorf("round-tripped Modified = %v, want %v", got, want)
	}
}

func TestWriterCommentLength(t *testing.T) {
	var tests = []struct {
		comment string
		ok      bool
	}{
		{"hi, hello", true},
		{"hi, こんにちわ", true},
		{strings.Repeat("a", uint16max), true},
		{strings.Repeat("a", uint16max+1), false},
	}

	for _, test := range tests {
		a, m := newTestArchive(t)
		err := a.SetComment(test.comment)
		if !test.ok {
			if err == nil {
				t.Errorf("SetComment(%d bytes): got nil, want error", len(test.comment))
			}
			continue
		}
		if err != nil {
			t.Fatalf("SetComment: %v", err)
		}
		if err := a.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		r := reopenForRead(t, m)
		if r.Comment() != test.comment {
			t.Errorf("Comment: got %d bytes, want %d", len(r.Comment()), len(test.comment))
		}
		r.Close()
	}
}

func TestWriterDirAttributes(t *testing.T) {
	a, m := newTestArchive(t)
	fh := &FileHeader{Name: "dir/"}
	fh.SetMode(os.ModeDir | 0755)
	w, err := a.CreateEntry(fh, WriteOptions{Method: Store})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if err := a.CloseEntry(w); err != nil {
		t.Fatalf("CloseEntry: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := reopenForRead(t, m)
	defer r.Close()
	info, err := r.Info("dir/")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.UncompressedSize64 != 0 || info.CompressedSize64 != 0 {
		t.Errorf("directory entry sizes = %d/%d, want 0/0", info.CompressedSize64, info.UncompressedSize64)
	}
}
