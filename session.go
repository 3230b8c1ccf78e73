package gozip

import (
	"fmt"
	"io"
	"os"
)

// Mode selects how an Archive session opens its underlying stream.
type Mode int

const (
	// ModeRead opens an existing archive for reading only. Directory
	// discovery must succeed or Open fails with ErrNotAZip/ErrCorrupt.
	ModeRead Mode = iota
	// ModeWrite truncates (or creates) the stream and starts a fresh,
	// empty archive.
	ModeWrite
	// ModeCreate is like ModeWrite but fails if the target already
	// exists (exclusive create).
	ModeCreate
	// ModeAppend opens an existing archive and allows adding new
	// entries after the existing ones. If directory discovery fails,
	// the stream is treated as non-ZIP content to append after,
	// matching the original's append-to-anything behavior.
	ModeAppend
)

// SessionOptions configures an Archive session.
type SessionOptions struct {
	// DisableZIP64 turns off the ZIP64 extension on write, so that an
	// entry or archive that would need it fails with ErrTooLarge instead
	// of being promoted. The zero value (false) leaves ZIP64 enabled,
	// matching every mainstream ZIP writer's default; Go's zero-valued
	// bool can't otherwise distinguish "unset" from "explicitly off", so
	// the field is named for the off case rather than the on case.
	// Reading ZIP64 archives is always supported regardless of this
	// setting.
	DisableZIP64 bool

	// StrictUniqueNames rejects a second CreateEntry/Write call using a
	// name already present in the archive with ErrDuplicateName, instead
	// of the default warn-and-append behavior (both entries are kept;
	// the last one wins in the name index).
	StrictUniqueNames bool
}

// DuplicateNameWarning records that CreateEntry was called with a name
// already present in the archive's entry sequence, when
// SessionOptions.StrictUniqueNames is false.
type DuplicateNameWarning struct {
	Name  string
	Index int // index of the new (now last-writer-wins) entry
}

// Archive is a general-purpose ZIP archive session over a seekable byte
// stream: open for reading, appending, or writing from scratch, with
// per-entry streaming read and write pipelines.
type Archive struct {
	ss       *SharedStream
	opts     SessionOptions
	mode     Mode

	entries []*FileHeader
	byName  map[string]int

	comment      string
	startDir     uint64
	concatOffset int64

	modified bool
	closed   bool

	defaultPassword []byte
	defaultEnc       EncryptionScheme

	warnings []DuplicateNameWarning
}

// Open opens path for reading.
func Open(path string, opts SessionOptions) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return openArchive(f, true, ModeRead, opts)
}

// Create creates path exclusively (failing if it already exists) and
// returns a fresh, empty write session.
func Create(path string, opts SessionOptions) (*Archive, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		return nil, err
	}
	return openArchive(f, true, ModeCreate, opts)
}

// CreateTruncate creates or truncates path and returns a fresh, empty
// write session, corresponding to mode "w".
func CreateTruncate(path string, opts SessionOptions) (*Archive, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, err
	}
	return openArchive(f, true, ModeWrite, opts)
}

// OpenAppend opens path for appending new entries after its existing
// contents. If path does not already contain a valid archive, its bytes
// are kept and new entries are appended after them (self-extracting stub
// compatible).
func OpenAppend(path string, opts SessionOptions) (*Archive, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	return openArchive(f, true, ModeAppend, opts)
}

// OpenStream opens an Archive over an already-open seekable stream; the
// caller retains ownership (OpenStream never closes s). mode selects read,
// write-from-scratch, or append semantics exactly like the path-based
// constructors.
func OpenStream(s stream, mode Mode, opts SessionOptions) (*Archive, error) {
	return openArchive(s, false, mode, opts)
}

func openArchive(s stream, owned bool, mode Mode, opts SessionOptions) (*Archive, error) {
	a := &Archive{ss: newSharedStream(s, closerOf(s), owned), opts: opts, mode: mode, byName: map[string]int{}}

	switch mode {
	case ModeWrite, ModeCreate:
		a.startDir = 0
		a.modified = true
	case ModeRead:
		dir, err := discoverCentralDirectory(a.ss)
		if err != nil {
			a.ss.release()
			return nil, err
		}
		a.loadDiscovered(dir)
	case ModeAppend:
		dir, err := discoverCentralDirectory(a.ss)
		if err != nil {
			size, serr := a.ss.size()
			if serr != nil {
				a.ss.release()
				return nil, serr
			}
			a.startDir = uint64(size)
		} else {
			a.loadDiscovered(dir)
		}
	default:
		a.ss.release()
		return nil, fmt.Errorf("gozip: unknown mode %d: %w", mode, ErrInvalidMode)
	}

	return a, nil
}

func (a *Archive) loadDiscovered(dir *discoveredDirectory) {
	a.entries = dir.entries
	a.comment = dir.comment
	a.startDir = dir.startDir
	a.concatOffset = dir.concatOffset
	for i, e := range a.entries {
		a.byName[e.Name] = i
	}
}

// closerOf returns s as an io.Closer if it implements one, else nil.
func closerOf(s stream) ioCloser {
	if c, ok := s.(ioCloser); ok {
		return c
	}
	return nil
}

type ioCloser interface {
	Close() error
}

// Names returns entry names in insertion (central-directory) order.
func (a *Archive) Names() []string {
	names := make([]string, len(a.entries))
	for i, e := range a.entries {
		names[i] = e.Name
	}
	return names
}

// Info returns the metadata for name, or ErrMissingEntry if absent.
func (a *Archive) Info(name string) (*FileHeader, error) {
	idx, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("gozip: %q: %w", name, ErrMissingEntry)
	}
	return a.entries[idx], nil
}

// Comment returns the archive-level comment.
func (a *Archive) Comment() string { return a.comment }

// SetComment sets the archive-level comment and marks the archive
// modified. A comment longer than 65535 bytes is not truncated: it is
// rejected with an error wrapping ErrCorrupt and the current comment is
// kept.
func (a *Archive) SetComment(c string) error {
	if len(c) > uint16max {
		return fmt.Errorf("gozip: comment too long: %w", ErrCorrupt)
	}
	a.comment = c
	a.modified = true
	return nil
}

// SetPassword sets the default password consulted by Read/OpenEntryRead
// when no explicit password is given.
func (a *Archive) SetPassword(pwd []byte) { a.defaultPassword = pwd }

// SetEncryption sets the default encryption scheme used by CreateEntry/
// Write when WriteOptions.Encryption is EncryptionNone.
func (a *Archive) SetEncryption(scheme EncryptionScheme, pwd []byte) {
	a.defaultEnc = scheme
	a.defaultPassword = pwd
}

// Warnings returns the duplicate-name warnings accumulated so far.
func (a *Archive) Warnings() []DuplicateNameWarning { return a.warnings }

// OpenEntryRead opens a streaming reader for name. pwd overrides the
// archive's default password if non-nil.
func (a *Archive) OpenEntryRead(name string, pwd []byte) (*entryReader, error) {
	if a.closed {
		return nil, ErrInvalidMode
	}
	fh, err := a.Info(name)
	if err != nil {
		return nil, err
	}
	password := a.defaultPassword
	if pwd != nil {
		password = pwd
	}
	return newEntryReader(a.ss, fh, password)
}

// Read is a convenience over OpenEntryRead that returns the full contents.
func (a *Archive) Read(name string, pwd []byte) ([]byte, error) {
	r, err := a.OpenEntryRead(name, pwd)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readAllEntry(r)
}

func readAllEntry(r *entryReader) ([]byte, error) {
	buf := make([]byte, 0, r.header.UncompressedSize64)
	tmp := make([]byte, MinReadSize)
	for {
		n, err := r.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if err != nil {
			if err == io.EOF {
				return buf, nil
			}
			return buf, err
		}
		if n == 0 {
			return buf, nil
		}
	}
}

// CreateEntry begins writing a new entry described by fh, whose Name,
// Modified, ExternalAttrs etc. the caller has already filled in (e.g. via
// FileInfoHeader). It returns a streaming writer; the caller must Write the
// content and pass the writer to CloseEntry, which both finalizes the
// entry's on-disk header and registers it in the archive's entry list.
func (a *Archive) CreateEntry(fh *FileHeader, opts WriteOptions) (*entryWriter, error) {
	if a.closed {
		return nil, ErrInvalidMode
	}
	if a.mode == ModeRead {
		return nil, fmt.Errorf("gozip: write on read-only archive: %w", ErrInvalidMode)
	}
	if _, dup := a.byName[fh.Name]; dup {
		if a.opts.StrictUniqueNames {
			return nil, fmt.Errorf("gozip: %q: %w", fh.Name, ErrDuplicateName)
		}
	}
	if err := a.ss.beginWrite(); err != nil {
		return nil, err
	}

	enc := opts.Encryption
	if enc == EncryptionNone {
		enc = a.defaultEnc
	}
	pwd := opts.Password
	if pwd == nil {
		pwd = a.defaultPassword
	}
	opts.Encryption = enc
	opts.Password = pwd
	if opts.Size == 0 {
		opts.Size = -1
	}

	seekable := a.streamIsSeekable()
	w, err := newEntryWriter(a.ss, a.startDir, seekable, !a.opts.DisableZIP64, fh, opts)
	if err != nil {
		a.ss.endWrite()
		return nil, err
	}
	return w, nil
}

// streamIsSeekable reports whether writes can be patched back in place
// rather than needing a trailing data descriptor. Every Archive session's
// underlying stream satisfies io.Seeker by construction (see the `stream`
// interface), so this is always true for entries created through
// CreateEntry/Write/WriteBytes; entryWriter still takes the
// data-descriptor path for ZipCrypto entries, and for direct, non-session
// use against a true streaming io.Writer (see DESIGN.md).
func (a *Archive) streamIsSeekable() bool {
	return true
}

// finishEntry is called by the Archive after an entryWriter.Close
// succeeds, appending the entry to the sequence and name index and
// advancing start_dir.
func (a *Archive) finishEntry(w *entryWriter) {
	idx := len(a.entries)
	a.entries = append(a.entries, w.header)
	if _, dup := a.byName[w.header.Name]; dup && !a.opts.StrictUniqueNames {
		a.warnings = append(a.warnings, DuplicateNameWarning{Name: w.header.Name, Index: idx})
	}
	a.byName[w.header.Name] = idx
	a.startDir = uint64(w.compCnt.pos)
	a.modified = true
	a.ss.endWrite()
}

// CloseEntry finalizes a writer obtained from CreateEntry and registers it
// with the archive. Prefer this over calling entryWriter.Close directly so
// the entry is actually linked into the archive's directory.
func (a *Archive) CloseEntry(w *entryWriter) error {
	if err := w.Close(); err != nil {
		a.ss.endWrite()
		return err
	}
	a.finishEntry(w)
	return nil
}

// AbandonEntry discards a writer obtained from CreateEntry without adding it
// to the archive's directory, truncating the underlying stream back to the
// entry's header offset when the stream supports truncation. Use this
// instead of just dropping the writer when content production fails
// partway through, so the abandoned bytes don't linger as unreferenced
// padding in the final archive.
func (a *Archive) AbandonEntry(w *entryWriter) error {
	if w.finalized {
		return fmt.Errorf("gozip: abandon on an already-closed entry writer: %w", ErrInvalidMode)
	}
	w.finalized = true
	w.comp.Close()
	err := a.ss.truncate(int64(w.headerOffset))
	a.ss.endWrite()
	return err
}

// Write stats path, builds a FileHeader from it, and streams its contents
// into a new entry named arcname (path's base name if arcname is empty).
func (a *Archive) Write(path, arcname string, opts WriteOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	fh, err := FileInfoHeader(info)
	if err != nil {
		return err
	}
	if arcname != "" {
		fh.Name = arcname
	}
	if opts.Size <= 0 {
		opts.Size = info.Size()
	}
	w, err := a.CreateEntry(fh, opts)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		a.ss.endWrite()
		return err
	}
	return a.CloseEntry(w)
}

// WriteBytes encodes and writes data as a new entry named name.
func (a *Archive) WriteBytes(name string, data []byte, opts WriteOptions) error {
	fh := &FileHeader{Name: name}
	opts.Size = int64(len(data))
	w, err := a.CreateEntry(fh, opts)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		a.ss.endWrite()
		return err
	}
	return a.CloseEntry(w)
}

// Test fully reads every entry, returning the name of the first one that
// cannot be opened or read, including one that fails CRC/HMAC
// verification, or nil if all entries check out.
func (a *Archive) Test() (*string, error) {
	for _, e := range a.entries {
		r, err := a.OpenEntryRead(e.Name, nil)
		if err != nil {
			name := e.Name
			return &name, nil
		}
		_, err = readAllEntry(r)
		r.Close()
		if err != nil {
			name := e.Name
			return &name, nil
		}
	}
	return nil, nil
}

// Close finalizes the archive: if modified, writes the central directory
// and EOCD (plus ZIP64 EOCD + locator if needed); then releases the
// underlying stream.
func (a *Archive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if a.modified {
		if err := a.writeCentralDirectory(); err != nil {
			a.ss.release()
			return err
		}
	}
	return a.ss.release()
}
