package zipcore

import (
	"io"
	"strings"
	"time"
)

// Kind distinguishes the two shapes a write-side Member can take. It
// replaces the base+subtype inclusion-polymorphism the source models this
// with: dispatch is a plain switch on Kind and Method instead of virtual
// calls.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

// member is the writer's internal record of one entry that has already
// been fully streamed: constructed once inside add, then immutable until
// Close walks the slice to emit the central directory.
type member struct {
	path              string
	kind              Kind
	method            uint16
	modified          time.Time
	comment           string
	flags             uint16
	zip64             bool
	crc32             uint32
	uncompressedSize  uint64
	compressedSize    uint64
	localHeaderOffset uint64
}

// Entry is the read-side view of one archived item, built while parsing
// the central directory and immutable thereafter.
type Entry struct {
	Name              string
	Comment           string
	Method            uint16
	Modified          time.Time
	CRC32             uint32
	UncompressedSize  uint64
	CompressedSize    uint64
	LocalHeaderOffset uint64
	VersionMadeBy     uint16
	VersionNeeded     uint16
	Flags             uint16
	InternalAttr      uint16
	ExternalAttr      uint32
	DiskStart         uint16

	extras            []ExtraField
	archive           *Archive
	localExtras       []ExtraField
	localExtrasLoaded bool
}

// IsDir reports whether the entry represents a directory, either by the
// MS-DOS directory attribute bit or the conventional trailing slash.
func (e *Entry) IsDir() bool {
	return e.ExternalAttr&0x10 != 0 || strings.HasSuffix(e.Name, "/")
}

// Extras returns the entry's central-directory-side extra fields (as
// opposed to LocalExtras, which are fetched lazily from the local header).
func (e *Entry) Extras() []ExtraField {
	return e.extras
}

// Extract decompresses the entry's body into sink and returns the number
// of uncompressed bytes written. The CRC-32 of the decompressed bytes is
// verified against the value recorded in the central directory; a mismatch
// is reported as ErrChecksum.
func (e *Entry) Extract(sink io.Writer) (uint64, error) {
	if e.archive == nil {
		return 0, errNotBound
	}
	return e.archive.extract(e, sink)
}

// LocalExtras fetches and memoizes the extra fields recorded in this
// entry's local header, which may differ from the central directory's copy
// (most notably, a streaming writer's local header carries zip64 size
// placeholders the central directory later overwrites with real values).
func (e *Entry) LocalExtras() ([]ExtraField, error) {
	if e.localExtrasLoaded {
		return e.localExtras, nil
	}
	if e.archive == nil {
		return nil, errNotBound
	}
	extras, err := e.archive.localExtras(e)
	if err != nil {
		return nil, err
	}
	e.localExtras = extras
	e.localExtrasLoaded = true
	return extras, nil
}

// Header is the per-entry metadata StreamReader.Next returns while walking
// an archive forward, one local header at a time.
type Header struct {
	Name               string
	Flags              uint16
	Method             uint16
	Modified           time.Time
	CRC32              uint32
	CompressedSize64   uint64
	UncompressedSize64 uint64
	Extra              []byte
	NonUTF8            bool
	VersionNeeded      uint16

	isZip64 bool
}

// IsDir reports whether the header names a directory entry.
func (h *Header) IsDir() bool {
	return strings.HasSuffix(h.Name, "/")
}

// hasFooter reports whether the local header deferred crc/sizes to a
// trailing data descriptor.
func (h *Header) hasFooter() bool {
	return h.Flags&flagFooter != 0
}
