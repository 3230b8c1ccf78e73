package gozip

import "fmt"

// writeCentralDirectory emits the central directory, EOCD64 + locator (if
// needed), and EOCD at a.startDir, the offset of the first byte after the
// last entry's data. This is the only place the central directory is
// materialized, matching the spec's close()-writes-directory-iff-modified
// rule.
func (a *Archive) writeCentralDirectory() error {
	sw := &sequentialWriter{ss: a.ss, pos: int64(a.startDir)}

	for _, e := range a.entries {
		rawOffset := uint64(int64(e.HeaderOffset) - a.concatOffset)

		needUncompressed := e.UncompressedSize64 > zip64Threshold
		needCompressed := e.CompressedSize64 > zip64Threshold
		needOffset := rawOffset > zip64Threshold

		zip64 := needUncompressed || needCompressed || needOffset
		if zip64 && a.opts.DisableZIP64 {
			return fmt.Errorf("gozip: entry %q requires zip64 but it is disabled: %w", e.Name, ErrTooLarge)
		}

		extra := append([]byte(nil), e.Extra...)
		creatorVersion := e.CreatorVersion
		extractVersion := e.ReaderVersion
		compSize := e.CompressedSize64
		uncompSize := e.UncompressedSize64
		offset := rawOffset

		if zip64 {
			if extractVersion < zipVersion45 {
				extractVersion = zipVersion45
			}
			var uc, cs, off *uint64
			if needUncompressed {
				v := e.UncompressedSize64
				uc = &v
				uncompSize = uint32max
			}
			if needCompressed {
				v := e.CompressedSize64
				cs = &v
				compSize = uint32max
			}
			if needOffset {
				v := rawOffset
				off = &v
				offset = uint32max
			}
			extra = append(extra, encodeExtraField(zip64ExtraID, encodeZip64Extra(uc, cs, off, nil))...)
		}

		method := e.Method
		if e.AES != nil {
			method = aesMethodSentinel
			if fields, _ := parseExtra(e.Extra); findExtra(fields, aesExtraID) == nil {
				extra = append(extra, encodeExtraField(aesExtraID, encodeAESExtra(e.AES))...)
			}
		}

		if len(e.Name) > uint16max {
			return fmt.Errorf("gozip: entry name too long: %w", ErrCorrupt)
		}
		if len(extra) > uint16max || len(e.Comment) > uint16max {
			return fmt.Errorf("gozip: entry extra/comment too long: %w", ErrCorrupt)
		}

		modDate, modTime := timeToMsDosTime(e.Modified)
		cd := centralDirEntry{
			CreatorVersion:   creatorVersion,
			ExtractVersion:   extractVersion,
			Flags:            e.Flags,
			Method:           method,
			ModTime:          modTime,
			ModDate:          modDate,
			CRC32:            e.CRC32,
			CompressedSize:   compSize,
			UncompressedSize: uncompSize,
			Volume:           e.Volume,
			InternalAttrs:    e.InternalAttrs,
			ExternalAttrs:    e.ExternalAttrs,
			HeaderOffset:     offset,
		}
		fixed := encodeCentralDirEntryFixed(&cd, uint16(len(e.Name)), uint16(len(extra)), uint16(len(e.Comment)))
		if _, err := sw.Write(fixed[:]); err != nil {
			return err
		}
		if _, err := sw.Write([]byte(e.Name)); err != nil {
			return err
		}
		if _, err := sw.Write(extra); err != nil {
			return err
		}
		if _, err := sw.Write([]byte(e.Comment)); err != nil {
			return err
		}
	}

	cdSize := uint64(sw.pos - int64(a.startDir))
	cdOffset := a.startDir
	entryCount := uint64(len(a.entries))

	needEOCD64 := entryCount > uint16max || cdSize > uint32max || cdOffset > uint32max
	if needEOCD64 && a.opts.DisableZIP64 {
		return fmt.Errorf("gozip: archive requires zip64 end-of-central-directory but it is disabled: %w", ErrTooLarge)
	}

	if needEOCD64 {
		eocd64Offset := uint64(sw.pos)
		var buf [directory64EndLen]byte
		b := writeBuf(buf[:])
		b.uint32(uint32(directory64EndSignature))
		b.uint64(directory64EndLen - 12)
		b.uint16(zipVersion45)
		b.uint16(zipVersion45)
		b.uint32(0)
		b.uint32(0)
		b.uint64(entryCount)
		b.uint64(entryCount)
		b.uint64(cdSize)
		b.uint64(cdOffset)
		if _, err := sw.Write(buf[:]); err != nil {
			return err
		}

		var locBuf [directory64LocLen]byte
		lb := writeBuf(locBuf[:])
		lb.uint32(uint32(directory64LocSignature))
		lb.uint32(0)
		lb.uint64(eocd64Offset)
		lb.uint32(1)
		if _, err := sw.Write(locBuf[:]); err != nil {
			return err
		}
	}

	recordsField := entryCount
	sizeField := cdSize
	offsetField := cdOffset
	if needEOCD64 {
		recordsField = uint16max
		sizeField = uint32max
		offsetField = uint32max
	}

	var end [directoryEndLen]byte
	eb := writeBuf(end[:])
	eb.uint32(uint32(directoryEndSignature))
	eb.uint16(0)
	eb.uint16(0)
	eb.uint16(uint16(recordsField))
	eb.uint16(uint16(recordsField))
	eb.uint32(uint32(sizeField))
	eb.uint32(uint32(offsetField))
	eb.uint16(uint16(len(a.comment)))
	if _, err := sw.Write(end[:]); err != nil {
		return err
	}
	if _, err := sw.Write([]byte(a.comment)); err != nil {
		return err
	}

	return nil
}
