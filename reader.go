package zipcore

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Archive is the read-side view of a fully-parsed ZIP central directory:
// an ordered list of entries plus a path index, built once at Open and
// immutable thereafter.
type Archive struct {
	r       io.ReaderAt
	size    int64
	entries []*Entry
	index   map[string]*Entry
	comment string
	logger  *slog.Logger
}

// Open parses the central directory of a seekable ZIP stream of the given
// size. The caller retains ownership of r.
func Open(r io.ReaderAt, size int64, opts ...ReaderOption) (*Archive, error) {
	cfg := readerConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	if size < eocdLen {
		return nil, ErrEOCDNotFound
	}

	eocdOffset, eocd, err := findEOCD(r, size)
	if err != nil {
		return nil, err
	}
	cfg.logger.Debug("zipcore: found eocd", "offset", eocdOffset)

	if eocd.thisDisk != 0 || eocd.cdrDisk != 0 || eocd.diskEntries != eocd.totalEntries {
		return nil, ErrMultiDisk
	}

	cdrOffset := uint64(eocd.cdrOffset)
	cdrLen := uint64(eocd.cdrSize)
	totalEntries := uint64(eocd.totalEntries)

	if needsZip64(eocd) {
		locOffset, err := findZip64Locator(r, eocdOffset)
		if err != nil {
			return nil, err
		}
		z64, err := readZip64EOCD(r, locOffset)
		if err != nil {
			return nil, err
		}
		if z64.thisDisk != 0 || z64.cdrDisk != 0 {
			return nil, ErrMultiDisk
		}
		cdrOffset = z64.cdrOffset
		cdrLen = z64.cdrSize
		totalEntries = z64.totalEntries
		cfg.logger.Debug("zipcore: promoted to zip64 eocd", "cdrOffset", cdrOffset, "entries", totalEntries)
	}

	if int64(cdrOffset)+int64(cdrLen) > size {
		return nil, fmt.Errorf("zipcore: central directory range exceeds stream: %w", ErrFormatViolation)
	}

	a := &Archive{
		r:       r,
		size:    size,
		index:   make(map[string]*Entry, totalEntries),
		comment: eocd.comment,
		logger:  cfg.logger,
	}
	if err := a.parseCDR(cdrOffset, cdrLen, totalEntries); err != nil {
		return nil, err
	}
	return a, nil
}

// OpenFile opens path and parses its central directory. The returned
// io.Closer must be closed by the caller once the Archive is no longer
// needed.
func OpenFile(path string) (*Archive, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("zipcore: open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("zipcore: stat file: %w", err)
	}
	a, err := Open(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return a, f, nil
}

// Entries returns every entry in central-directory order.
func (a *Archive) Entries() []*Entry { return a.entries }

// Get looks up an entry by path; on duplicate paths, the first occurrence
// in the central directory wins.
func (a *Archive) Get(path string) (*Entry, bool) {
	e, ok := a.index[path]
	return e, ok
}

// At returns the entry at index i in central-directory order.
func (a *Archive) At(i int) *Entry { return a.entries[i] }

// Comment returns the archive-wide comment recorded in the EOCD.
func (a *Archive) Comment() string { return a.comment }

func (a *Archive) parseCDR(cdrOffset, cdrLen, totalEntries uint64) error {
	sr := io.NewSectionReader(a.r, int64(cdrOffset), int64(cdrLen))
	var cursor int64
	for i := uint64(0); i < totalEntries; i++ {
		e, n, err := readCDREntry(sr)
		if err != nil {
			return err
		}
		cursor += n
		if cursor > int64(cdrLen) {
			return fmt.Errorf("zipcore: read past central directory: %w", ErrFormatViolation)
		}
		e.archive = a
		a.entries = append(a.entries, e)
		if _, exists := a.index[e.Name]; !exists {
			a.index[e.Name] = e
		}
	}
	return nil
}

func readCDREntry(r io.Reader) (*Entry, int64, error) {
	var fixed [cdrEntryLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, 0, fmt.Errorf("zipcore: cdr entry: %w", ErrTruncated)
	}
	rec, err := unmarshalCDREntry(fixed[:])
	if err != nil {
		return nil, 0, err
	}
	total := int64(cdrEntryLen)

	name := make([]byte, rec.nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, 0, fmt.Errorf("zipcore: cdr entry name: %w", ErrTruncated)
	}
	total += int64(rec.nameLen)

	extraBytes := make([]byte, rec.extraLen)
	if _, err := io.ReadFull(r, extraBytes); err != nil {
		return nil, 0, fmt.Errorf("zipcore: cdr entry extra: %w", ErrTruncated)
	}
	total += int64(rec.extraLen)

	comment := make([]byte, rec.commentLen)
	if _, err := io.ReadFull(r, comment); err != nil {
		return nil, 0, fmt.Errorf("zipcore: cdr entry comment: %w", ErrTruncated)
	}
	total += int64(rec.commentLen)

	extras, err := parseExtras(extraBytes)
	if err != nil {
		return nil, 0, err
	}

	uncompressed := uint64(rec.uncompressedSize)
	compressed := uint64(rec.compressedSize)
	offset := uint64(rec.localHeaderOffset)
	diskStart := rec.diskStart

	needUnc := rec.uncompressedSize == sentinel32
	needComp := rec.compressedSize == sentinel32
	needOff := rec.localHeaderOffset == sentinel32
	needDisk := rec.diskStart == sentinel16

	if needUnc || needComp || needOff || needDisk {
		if data, ok := findZip64Extra(extras); ok {
			u, c, o, d, err := promoteZip64(data, needUnc, needComp, needOff, needDisk)
			if err != nil {
				return nil, 0, err
			}
			if needUnc {
				uncompressed = u
			}
			if needComp {
				compressed = c
			}
			if needOff {
				offset = o
			}
			if needDisk {
				diskStart = uint16(d)
			}
		}
	}
	if diskStart != 0 {
		return nil, 0, ErrMultiDisk
	}

	e := &Entry{
		Name:              string(name),
		Comment:           string(comment),
		Method:            rec.method,
		Modified:          dosToTime(rec.modDate, rec.modTime),
		CRC32:             rec.crc32,
		UncompressedSize:  uncompressed,
		CompressedSize:    compressed,
		LocalHeaderOffset: offset,
		VersionMadeBy:     rec.versionMadeBy,
		VersionNeeded:     rec.versionNeeded,
		Flags:             rec.flags,
		InternalAttr:      rec.internalAttr,
		ExternalAttr:      rec.externalAttr,
		DiskStart:         diskStart,
		extras:            extras,
	}
	return e, total, nil
}

// extract implements Entry.Extract: seek to the local header, skip past
// name and extras, decompress exactly CompressedSize bytes, and verify the
// result's CRC-32 against the central directory's recorded value.
func (a *Archive) extract(e *Entry, sink io.Writer) (uint64, error) {
	if int64(e.LocalHeaderOffset)+localFileHeaderLen > a.size {
		return 0, fmt.Errorf("zipcore: local header offset out of range: %w", ErrFormatViolation)
	}
	sr := io.NewSectionReader(a.r, int64(e.LocalHeaderOffset), a.size-int64(e.LocalHeaderOffset))

	var fixed [localFileHeaderLen]byte
	if _, err := io.ReadFull(sr, fixed[:]); err != nil {
		return 0, fmt.Errorf("zipcore: local header: %w", ErrTruncated)
	}
	lh, err := unmarshalLocalFileHeader(fixed[:])
	if err != nil {
		return 0, err
	}
	if _, err := io.CopyN(io.Discard, sr, int64(lh.nameLen)+int64(lh.extraLen)); err != nil {
		return 0, fmt.Errorf("zipcore: local header name/extra: %w", ErrTruncated)
	}

	crc, err := extractBody(e.Method, sr, sink, e.CompressedSize, e.UncompressedSize)
	if err != nil {
		return 0, err
	}
	if crc != e.CRC32 {
		return 0, fmt.Errorf("zipcore: entry %q: %w", e.Name, ErrChecksum)
	}
	return e.UncompressedSize, nil
}

// localExtras implements Entry.LocalExtras: re-read the local header's
// name/extra lengths directly from the backing stream.
func (a *Archive) localExtras(e *Entry) ([]ExtraField, error) {
	var lenBuf [4]byte
	if _, err := a.r.ReadAt(lenBuf[:], int64(e.LocalHeaderOffset)+26); err != nil {
		return nil, fmt.Errorf("zipcore: local header lengths: %w", ErrTruncated)
	}
	nameLen := binary.LittleEndian.Uint16(lenBuf[0:2])
	extraLen := binary.LittleEndian.Uint16(lenBuf[2:4])
	if extraLen == 0 {
		return nil, nil
	}
	extraBuf := make([]byte, extraLen)
	off := int64(e.LocalHeaderOffset) + localFileHeaderLen + int64(nameLen)
	if _, err := a.r.ReadAt(extraBuf, off); err != nil {
		return nil, fmt.Errorf("zipcore: local header extras: %w", ErrTruncated)
	}
	return parseExtras(extraBuf)
}

// findEOCD locates the end-of-central-directory record by reading a single
// bounded buffer covering the maximum possible EOCD+comment size and
// scanning within it, rather than one byte at a time. Scanning forward and
// keeping the last validating candidate preserves "last-match wins": a
// genuine EOCD can never be followed by another valid EOCD, since nothing
// but its own comment follows it, so the right-most candidate whose
// declared comment length reaches exactly to the end of the stream is the
// real one.
func findEOCD(r io.ReaderAt, size int64) (int64, eocdRecord, error) {
	searchLen := int64(maxEOCDSearch)
	if searchLen > size {
		searchLen = size
	}
	base := size - searchLen
	buf := make([]byte, searchLen)
	if _, err := r.ReadAt(buf, base); err != nil && err != io.EOF {
		return 0, eocdRecord{}, fmt.Errorf("zipcore: read tail: %w", err)
	}

	best := -1
	for i := 0; i+4 <= len(buf); i++ {
		if binary.LittleEndian.Uint32(buf[i:]) != sigEOCD {
			continue
		}
		if i+eocdLen > len(buf) {
			continue
		}
		commentLen := int(binary.LittleEndian.Uint16(buf[i+20 : i+22]))
		if int64(i+eocdLen+commentLen) == searchLen {
			best = i
		}
	}
	if best < 0 {
		return 0, eocdRecord{}, ErrEOCDNotFound
	}
	rec, err := unmarshalEOCD(buf[best:])
	if err != nil {
		return 0, eocdRecord{}, err
	}
	return base + int64(best), rec, nil
}

func needsZip64(rec eocdRecord) bool {
	return rec.diskEntries == sentinel16 || rec.totalEntries == sentinel16 ||
		rec.cdrSize == sentinel32 || rec.cdrOffset == sentinel32
}

// findZip64Locator scans backward from the EOCD for the zip64 locator
// magic. A conforming writer places it immediately before the EOCD; the
// bounded backward scan tolerates archives with a little slack in between.
func findZip64Locator(r io.ReaderAt, eocdOffset int64) (int64, error) {
	const maxScan = 4096
	start := eocdOffset - zip64LocatorLen
	lowest := eocdOffset - maxScan
	if lowest < 0 {
		lowest = 0
	}
	for off := start; off >= lowest; off-- {
		var sig [4]byte
		if _, err := r.ReadAt(sig[:], off); err != nil {
			continue
		}
		if binary.LittleEndian.Uint32(sig[:]) == sigZip64Locator {
			return off, nil
		}
	}
	return 0, ErrZIP64LocatorNotFound
}

func readZip64EOCD(r io.ReaderAt, locOffset int64) (zip64EOCDRecord, error) {
	var locBuf [zip64LocatorLen]byte
	if _, err := r.ReadAt(locBuf[:], locOffset); err != nil {
		return zip64EOCDRecord{}, fmt.Errorf("zipcore: zip64 locator: %w", ErrTruncated)
	}
	loc, err := unmarshalZip64Locator(locBuf[:])
	if err != nil {
		return zip64EOCDRecord{}, err
	}

	var fixed [zip64EOCDFixedLen]byte
	if _, err := r.ReadAt(fixed[:], int64(loc.zip64EOCDOffset)); err != nil {
		return zip64EOCDRecord{}, fmt.Errorf("zipcore: zip64 eocd: %w", ErrTruncated)
	}
	return unmarshalZip64EOCD(fixed[:])
}
