package gozip

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// sanitizeEntryName applies the extract path-safety rules to an archive
// member name: replace the archive's forward-slash separator with the OS
// separator, drop drive letters/UNC prefixes and "", ".", ".." components,
// and on Windows replace characters illegal in path components and strip
// trailing dots. The result is always relative; callers join it under a
// trusted base directory.
func sanitizeEntryName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	parts := strings.Split(name, "/")
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		if len(p) >= 2 && p[1] == ':' {
			// drive letter component, e.g. "C:"
			continue
		}
		clean = append(clean, sanitizeWindowsComponent(p))
	}
	return filepath.Join(clean...)
}

// windowsIllegal is the set of characters Windows forbids in a path
// component; on other platforms these are left alone since they're valid
// filename bytes there.
const windowsIllegal = `:<>|"?*`

func sanitizeWindowsComponent(p string) string {
	if os.PathSeparator != '\\' {
		return p
	}
	var b strings.Builder
	for _, r := range p {
		if strings.ContainsRune(windowsIllegal, r) {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	p = b.String()
	return strings.TrimRight(p, ".")
}

// ExtractOptions configures (*Archive).ExtractAll.
type ExtractOptions struct {
	// Members restricts extraction to the named entries, in this order.
	// A nil slice extracts everything.
	Members []string
	Password []byte
}

// ExtractAll writes every selected entry's content under dir, recreating
// directories as needed. Symbolic links recorded in an entry's external
// attributes are never recreated as live links: the link target text is
// written as an ordinary file's content instead, matching the archive
// reader's conservative extraction stance (a live symlink written during
// extraction is itself a traversal vector).
func (a *Archive) ExtractAll(dir string, opts ExtractOptions) error {
	names := opts.Members
	if names == nil {
		names = a.Names()
	}
	for _, name := range names {
		if err := a.extractOne(dir, name, opts.Password); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) extractOne(dir, name string, password []byte) error {
	fh, err := a.Info(name)
	if err != nil {
		return err
	}
	rel := sanitizeEntryName(name)
	if rel == "" {
		slog.Debug("gozip: skipping entry with empty sanitized path", "name", name)
		return nil
	}
	target := filepath.Join(dir, rel)

	if strings.HasSuffix(name, "/") {
		return os.MkdirAll(target, 0777)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0777); err != nil {
		return err
	}

	r, err := a.OpenEntryRead(name, password)
	if err != nil {
		return err
	}
	defer r.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fh.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, r)
	return err
}
