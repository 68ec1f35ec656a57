package zipcore

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

const sentinelThreshold = 0xFFFFFFFF

// Writer streams members into a ZIP archive. It is a one-way state machine:
// Open until Close, after which Add, AddBytes, and AddDir fail with
// ErrClosed; a later Close returns the final byte count with no error, and
// BytesWritten keeps returning that count.
// Members appear in the archive in the order Add/AddBytes/AddDir was called;
// there is no reordering or batching.
type Writer struct {
	w       io.Writer
	closer  io.Closer
	offset  uint64
	members []*member
	comment string
	madeBy  version
	logger  *slog.Logger
	closed  bool
}

// Create opens a writer session over w. The caller retains ownership of w;
// Close never closes it.
func Create(w io.Writer, opts ...WriterOption) *Writer {
	cfg := writerConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Writer{w: w, comment: cfg.comment, madeBy: cfg.madeBy, logger: cfg.logger}
}

// CreateFile opens path and returns a Writer that owns the file handle;
// Close closes it.
func CreateFile(path string, opts ...WriterOption) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("zipcore: create file: %w", err)
	}
	w := Create(f, opts...)
	w.closer = f
	return w, nil
}

// BytesWritten returns the number of bytes emitted so far.
func (w *Writer) BytesWritten() uint64 {
	return w.offset
}

// Add streams r's contents into the archive as path, using the FOOTER
// (data-descriptor) flag so the backing stream is never seeked backward.
func (w *Writer) Add(path string, r io.Reader, opts ...EntryOption) (uint64, error) {
	cfg := entryConfig{method: Deflate, modified: time.Now()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return w.add(path, KindFile, r, cfg)
}

// AddBytes streams payload into the archive as path.
func (w *Writer) AddBytes(path string, payload []byte, opts ...EntryOption) (uint64, error) {
	cfg := entryConfig{method: Deflate, modified: time.Now()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return w.add(path, KindFile, bytes.NewReader(payload), cfg)
}

// AddDir adds a zero-length directory entry. The method is always STORE,
// regardless of WithMethod.
func (w *Writer) AddDir(path string, opts ...EntryOption) (uint64, error) {
	cfg := entryConfig{method: Store, modified: time.Now()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return w.add(path, KindDir, nil, cfg)
}

func (w *Writer) add(path string, kind Kind, body io.Reader, cfg entryConfig) (uint64, error) {
	if w.closed {
		return 0, fmt.Errorf("zipcore: add: %w", ErrClosed)
	}
	if err := validatePath(path); err != nil {
		return 0, err
	}
	method := cfg.method
	if kind == KindDir {
		method = Store
	} else if method != Store && method != Deflate {
		return 0, fmt.Errorf("zipcore: add %q: %w", path, ErrUnsupportedMethod)
	}

	startOffset := w.offset
	forceZip64 := cfg.forceZip64 || startOffset >= sentinelThreshold
	flags := flagFooter | flagEFS

	modDate, modTime := timeToDOS(cfg.modified)

	var extra []byte
	if forceZip64 {
		extra = buildExtras([]ExtraField{buildZip64Extra(0, 0, 0, 0, true, true, false, false)})
	}

	lh := localFileHeader{
		versionNeeded: versionNeededValue(forceZip64),
		flags:         flags,
		method:        method,
		modDate:       modDate,
		modTime:       modTime,
		nameLen:       uint16(len(path)),
		extraLen:      uint16(len(extra)),
	}
	if forceZip64 {
		lh.compressedSize = sentinel32
		lh.uncompressedSize = sentinel32
	}

	if _, err := w.writeRaw(lh.marshal()); err != nil {
		return 0, err
	}
	if _, err := w.writeRaw([]byte(path)); err != nil {
		return 0, err
	}
	if _, err := w.writeRaw(extra); err != nil {
		return 0, err
	}

	var res writeResult
	if kind == KindFile {
		var err error
		res, err = compressBody(method, trackedWriter{w}, body)
		if err != nil {
			return 0, err
		}
	}

	memberZip64 := forceZip64 || res.uncompressedSize >= sentinelThreshold || res.compressedSize >= sentinelThreshold

	dd := dataDescriptor{
		crc32:            res.crc32,
		compressedSize:   res.compressedSize,
		uncompressedSize: res.uncompressedSize,
		zip64:            memberZip64,
	}
	if _, err := w.writeRaw(dd.marshal()); err != nil {
		return 0, err
	}

	w.members = append(w.members, &member{
		path:              path,
		kind:              kind,
		method:            method,
		modified:          cfg.modified,
		comment:           cfg.comment,
		flags:             flags,
		zip64:             memberZip64,
		crc32:             res.crc32,
		uncompressedSize:  res.uncompressedSize,
		compressedSize:    res.compressedSize,
		localHeaderOffset: startOffset,
	})

	w.logger.Debug("zipcore: wrote member", "path", path, "method", method, "zip64", memberZip64, "size", res.uncompressedSize)
	return w.offset - startOffset, nil
}

// Close finalizes the archive: the central directory, an optional ZIP64
// EOCD record and locator, and the EOCD. It is idempotent — a second call
// returns the already-finalized byte count with no error — but the first
// call's I/O errors are not retried.
func (w *Writer) Close() (uint64, error) {
	if w.closed {
		return w.offset, nil
	}

	cdrStart := w.offset
	for _, m := range w.members {
		if err := w.writeCDREntry(m); err != nil {
			return w.offset, err
		}
	}
	cdrLen := w.offset - cdrStart
	entryCount := len(w.members)

	needZip64EOCD := cdrStart >= sentinelThreshold || cdrLen >= sentinelThreshold || entryCount >= sentinel16
	if needZip64EOCD {
		zEOCDOffset := w.offset
		rec := zip64EOCDRecord{
			versionMadeBy: w.madeBy.encode(),
			versionNeeded: versionNeededValue(true),
			diskEntries:   uint64(entryCount),
			totalEntries:  uint64(entryCount),
			cdrSize:       cdrLen,
			cdrOffset:     cdrStart,
		}
		if _, err := w.writeRaw(rec.marshal()); err != nil {
			return w.offset, err
		}
		loc := zip64Locator{zip64EOCDOffset: zEOCDOffset, totalDisks: 1}
		if _, err := w.writeRaw(loc.marshal()); err != nil {
			return w.offset, err
		}
	}

	eocdRec := eocdRecord{
		diskEntries:  sentinelOr16(entryCount),
		totalEntries: sentinelOr16(entryCount),
		cdrSize:      sentinelOr32(cdrLen),
		cdrOffset:    sentinelOr32(cdrStart),
		comment:      w.comment,
	}
	if _, err := w.writeRaw(eocdRec.marshal()); err != nil {
		return w.offset, err
	}

	w.closed = true
	w.logger.Debug("zipcore: closed archive", "entries", entryCount, "zip64", needZip64EOCD, "bytes", w.offset)

	if w.closer != nil {
		if err := w.closer.Close(); err != nil {
			return w.offset, fmt.Errorf("zipcore: close: %w", err)
		}
	}
	return w.offset, nil
}

func (w *Writer) writeCDREntry(m *member) error {
	needSizes := m.zip64
	needOffset := m.localHeaderOffset >= sentinelThreshold
	var extra []byte
	if needSizes || needOffset {
		extra = buildExtras([]ExtraField{buildZip64Extra(
			m.uncompressedSize, m.compressedSize, m.localHeaderOffset, 0,
			needSizes, needSizes, needOffset, false,
		)})
	}

	modDate, modTime := timeToDOS(m.modified)
	var externalAttr uint32
	if m.kind == KindDir {
		externalAttr = 0x10 // MS-DOS directory attribute bit
	}

	compressedSize := uint32(m.compressedSize)
	uncompressedSize := uint32(m.uncompressedSize)
	if needSizes {
		compressedSize, uncompressedSize = sentinel32, sentinel32
	}
	localHeaderOffset := uint32(m.localHeaderOffset)
	if needOffset {
		localHeaderOffset = sentinel32
	}

	entry := cdrEntry{
		versionMadeBy:     w.madeBy.encode(),
		versionNeeded:     versionNeededValue(m.zip64 || needOffset),
		flags:             m.flags,
		method:            m.method,
		modDate:           modDate,
		modTime:           modTime,
		crc32:             m.crc32,
		compressedSize:    compressedSize,
		uncompressedSize:  uncompressedSize,
		nameLen:           uint16(len(m.path)),
		extraLen:          uint16(len(extra)),
		commentLen:        uint16(len(m.comment)),
		externalAttr:      externalAttr,
		localHeaderOffset: localHeaderOffset,
	}
	if _, err := w.writeRaw(entry.marshal()); err != nil {
		return err
	}
	if _, err := w.writeRaw([]byte(m.path)); err != nil {
		return err
	}
	if _, err := w.writeRaw(extra); err != nil {
		return err
	}
	if _, err := w.writeRaw([]byte(m.comment)); err != nil {
		return err
	}
	return nil
}

func (w *Writer) writeRaw(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := w.w.Write(p)
	w.offset += uint64(n)
	if err != nil {
		return n, fmt.Errorf("zipcore: write: %w", err)
	}
	return n, nil
}

// trackedWriter adapts a Writer to io.Writer for the compression pipeline,
// so body bytes flow through the same offset accounting as header writes.
type trackedWriter struct{ w *Writer }

func (t trackedWriter) Write(p []byte) (int, error) { return t.w.writeRaw(p) }

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("zipcore: %w: empty path", ErrInvalidInput)
	}
	if len(path) > 65534 {
		return fmt.Errorf("zipcore: %w: path exceeds 65534 bytes", ErrInvalidInput)
	}
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("zipcore: %w: path must not start with '/'", ErrInvalidInput)
	}
	return nil
}

func sentinelOr32(v uint64) uint32 {
	if v >= sentinelThreshold {
		return sentinel32
	}
	return uint32(v)
}

func sentinelOr16(v int) uint16 {
	if v >= sentinel16 {
		return sentinel16
	}
	return uint16(v)
}
