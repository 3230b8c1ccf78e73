package gozip

import "errors"

// Sentinel errors returned by the archive session and pipelines. Wrap with
// fmt.Errorf("%w: ...") at call sites; do not replace these with per-call
// error structs.
var (
	ErrNotAZip      = errors.New("gozip: not a zip file")
	ErrCorrupt      = errors.New("gozip: corrupt archive")
	ErrUnsupported  = errors.New("gozip: unsupported feature")
	ErrBadPassword  = errors.New("gozip: incorrect password")
	ErrBadCRC32     = errors.New("gozip: crc-32 mismatch")
	ErrBadHMAC      = errors.New("gozip: hmac mismatch")
	ErrTooLarge     = errors.New("gozip: archive requires zip64 but it is disabled")
	ErrBusy         = errors.New("gozip: archive is busy")
	ErrMissingEntry = errors.New("gozip: no such entry")
	ErrInvalidMode  = errors.New("gozip: invalid operation for the archive's mode")

	// ErrDuplicateName is returned by CreateEntry/Write when
	// SessionOptions.StrictUniqueNames is set and the name already exists.
	ErrDuplicateName = errors.New("gozip: duplicate entry name")
)
