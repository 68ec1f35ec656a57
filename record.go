package zipcore

import "fmt"

// Compression methods understood by this package.
const (
	Store   uint16 = 0
	Deflate uint16 = 8
)

// General-purpose bit flags.
const (
	flagFooter uint16 = 1 << 3  // bit 3: crc/sizes deferred to the data descriptor
	flagEFS    uint16 = 1 << 11 // bit 11: name/comment are UTF-8
)

const (
	sigLocalFileHeader = 0x04034b50
	sigDataDescriptor  = 0x08074b50
	sigCDREntry        = 0x02014b50
	sigEOCD            = 0x06054b50
	sigZip64EOCD       = 0x06064b50
	sigZip64Locator    = 0x07064b50

	localFileHeaderLen  = 30
	cdrEntryLen         = 46
	eocdLen             = 22
	zip64LocatorLen     = 20
	zip64EOCDFixedLen   = 56 // magic + size-of-remainder + the 44 fixed bytes that follow
	dataDescriptorLen   = 16 // magic + crc32 + 2×u32 sizes
	zip64DataDescLen    = 24 // magic + crc32 + 2×u64 sizes

	sentinel16 = 0xFFFF
	sentinel32 = 0xFFFFFFFF

	maxEOCDComment = 0xFFFF
	maxEOCDSearch  = eocdLen + maxEOCDComment
)

const zip64ExtraID = 0x0001

// versionNeededValue returns the "version needed to extract" field: 2.0 for
// classic members, 4.6 for zip64-aware members.
func versionNeededValue(zip64 bool) uint16 {
	if zip64 {
		return 46
	}
	return 20
}

// --- local file header ---

type localFileHeader struct {
	versionNeeded    uint16
	flags            uint16
	method           uint16
	modDate          uint16
	modTime          uint16
	crc32            uint32
	compressedSize   uint32
	uncompressedSize uint32
	nameLen          uint16
	extraLen         uint16
}

func (h localFileHeader) marshal() []byte {
	buf := make(writeBuf, localFileHeaderLen)
	b := buf
	b.uint32(sigLocalFileHeader)
	b.uint16(h.versionNeeded)
	b.uint16(h.flags)
	b.uint16(h.method)
	b.uint16(h.modTime)
	b.uint16(h.modDate)
	b.uint32(h.crc32)
	b.uint32(h.compressedSize)
	b.uint32(h.uncompressedSize)
	b.uint16(h.nameLen)
	b.uint16(h.extraLen)
	return buf
}

func unmarshalLocalFileHeader(p []byte) (localFileHeader, error) {
	if len(p) < localFileHeaderLen {
		return localFileHeader{}, fmt.Errorf("zipcore: local header: %w", ErrTruncated)
	}
	b := readBuf(p)
	if sig := b.uint32(); sig != sigLocalFileHeader {
		return localFileHeader{}, fmt.Errorf("zipcore: local header: %w", ErrBadMagic)
	}
	var h localFileHeader
	h.versionNeeded = b.uint16()
	h.flags = b.uint16()
	h.method = b.uint16()
	h.modTime = b.uint16()
	h.modDate = b.uint16()
	h.crc32 = b.uint32()
	h.compressedSize = b.uint32()
	h.uncompressedSize = b.uint32()
	h.nameLen = b.uint16()
	h.extraLen = b.uint16()
	return h, nil
}

// --- data descriptor ---

type dataDescriptor struct {
	crc32            uint32
	compressedSize   uint64
	uncompressedSize uint64
	zip64            bool
}

func (d dataDescriptor) marshal() []byte {
	size := dataDescriptorLen
	if d.zip64 {
		size = zip64DataDescLen
	}
	buf := make(writeBuf, size)
	b := buf
	b.uint32(sigDataDescriptor)
	b.uint32(d.crc32)
	if d.zip64 {
		b.uint64(d.compressedSize)
		b.uint64(d.uncompressedSize)
	} else {
		b.uint32(uint32(d.compressedSize))
		b.uint32(uint32(d.uncompressedSize))
	}
	return buf
}

// unmarshalDataDescriptorBody decodes the crc32+sizes that follow the
// signature (already consumed by the caller, which is why this doesn't
// check a magic number).
func unmarshalDataDescriptorBody(p []byte, zip64 bool) (dataDescriptor, error) {
	need := 12
	if zip64 {
		need = 20
	}
	if len(p) < need {
		return dataDescriptor{}, fmt.Errorf("zipcore: data descriptor: %w", ErrTruncated)
	}
	b := readBuf(p)
	d := dataDescriptor{zip64: zip64}
	d.crc32 = b.uint32()
	if zip64 {
		d.compressedSize = b.uint64()
		d.uncompressedSize = b.uint64()
	} else {
		d.compressedSize = uint64(b.uint32())
		d.uncompressedSize = uint64(b.uint32())
	}
	return d, nil
}

// --- central directory entry ---

type cdrEntry struct {
	versionMadeBy     uint16
	versionNeeded     uint16
	flags             uint16
	method            uint16
	modDate           uint16
	modTime           uint16
	crc32             uint32
	compressedSize    uint32
	uncompressedSize  uint32
	nameLen           uint16
	extraLen          uint16
	commentLen        uint16
	diskStart         uint16
	internalAttr      uint16
	externalAttr      uint32
	localHeaderOffset uint32
}

func (e cdrEntry) marshal() []byte {
	buf := make(writeBuf, cdrEntryLen)
	b := buf
	b.uint32(sigCDREntry)
	b.uint16(e.versionMadeBy)
	b.uint16(e.versionNeeded)
	b.uint16(e.flags)
	b.uint16(e.method)
	b.uint16(e.modTime)
	b.uint16(e.modDate)
	b.uint32(e.crc32)
	b.uint32(e.compressedSize)
	b.uint32(e.uncompressedSize)
	b.uint16(e.nameLen)
	b.uint16(e.extraLen)
	b.uint16(e.commentLen)
	b.uint16(e.diskStart)
	b.uint16(e.internalAttr)
	b.uint32(e.externalAttr)
	b.uint32(e.localHeaderOffset)
	return buf
}

func unmarshalCDREntry(p []byte) (cdrEntry, error) {
	if len(p) < cdrEntryLen {
		return cdrEntry{}, fmt.Errorf("zipcore: cdr entry: %w", ErrTruncated)
	}
	b := readBuf(p)
	if sig := b.uint32(); sig != sigCDREntry {
		return cdrEntry{}, fmt.Errorf("zipcore: cdr entry: %w", ErrBadMagic)
	}
	var e cdrEntry
	e.versionMadeBy = b.uint16()
	e.versionNeeded = b.uint16()
	e.flags = b.uint16()
	e.method = b.uint16()
	e.modTime = b.uint16()
	e.modDate = b.uint16()
	e.crc32 = b.uint32()
	e.compressedSize = b.uint32()
	e.uncompressedSize = b.uint32()
	e.nameLen = b.uint16()
	e.extraLen = b.uint16()
	e.commentLen = b.uint16()
	e.diskStart = b.uint16()
	e.internalAttr = b.uint16()
	e.externalAttr = b.uint32()
	e.localHeaderOffset = b.uint32()
	return e, nil
}

// --- end of central directory ---

type eocdRecord struct {
	thisDisk     uint16
	cdrDisk      uint16
	diskEntries  uint16
	totalEntries uint16
	cdrSize      uint32
	cdrOffset    uint32
	comment      string
}

func (r eocdRecord) marshal() []byte {
	buf := make(writeBuf, eocdLen+len(r.comment))
	b := buf
	b.uint32(sigEOCD)
	b.uint16(r.thisDisk)
	b.uint16(r.cdrDisk)
	b.uint16(r.diskEntries)
	b.uint16(r.totalEntries)
	b.uint32(r.cdrSize)
	b.uint32(r.cdrOffset)
	b.uint16(uint16(len(r.comment)))
	b.bytes([]byte(r.comment))
	return buf
}

func unmarshalEOCD(p []byte) (eocdRecord, error) {
	if len(p) < eocdLen {
		return eocdRecord{}, fmt.Errorf("zipcore: eocd: %w", ErrTruncated)
	}
	b := readBuf(p)
	if sig := b.uint32(); sig != sigEOCD {
		return eocdRecord{}, fmt.Errorf("zipcore: eocd: %w", ErrBadMagic)
	}
	var r eocdRecord
	r.thisDisk = b.uint16()
	r.cdrDisk = b.uint16()
	r.diskEntries = b.uint16()
	r.totalEntries = b.uint16()
	r.cdrSize = b.uint32()
	r.cdrOffset = b.uint32()
	commentLen := int(b.uint16())
	if len(p) < eocdLen+commentLen {
		return eocdRecord{}, fmt.Errorf("zipcore: eocd comment: %w", ErrTruncated)
	}
	r.comment = string(p[eocdLen : eocdLen+commentLen])
	return r, nil
}

// --- zip64 end of central directory record ---

type zip64EOCDRecord struct {
	versionMadeBy uint16
	versionNeeded uint16
	thisDisk      uint32
	cdrDisk       uint32
	diskEntries   uint64
	totalEntries  uint64
	cdrSize       uint64
	cdrOffset     uint64
}

func (r zip64EOCDRecord) marshal() []byte {
	buf := make(writeBuf, zip64EOCDFixedLen)
	b := buf
	b.uint32(sigZip64EOCD)
	b.uint64(44) // size of remainder: everything after this field, no extensible data
	b.uint16(r.versionMadeBy)
	b.uint16(r.versionNeeded)
	b.uint32(r.thisDisk)
	b.uint32(r.cdrDisk)
	b.uint64(r.diskEntries)
	b.uint64(r.totalEntries)
	b.uint64(r.cdrSize)
	b.uint64(r.cdrOffset)
	return buf
}

func unmarshalZip64EOCD(p []byte) (zip64EOCDRecord, error) {
	if len(p) < zip64EOCDFixedLen {
		return zip64EOCDRecord{}, fmt.Errorf("zipcore: zip64 eocd: %w", ErrTruncated)
	}
	b := readBuf(p)
	if sig := b.uint32(); sig != sigZip64EOCD {
		return zip64EOCDRecord{}, fmt.Errorf("zipcore: zip64 eocd: %w", ErrBadMagic)
	}
	b.uint64() // size of remainder, unused: no extensible data is parsed
	var r zip64EOCDRecord
	r.versionMadeBy = b.uint16()
	r.versionNeeded = b.uint16()
	r.thisDisk = b.uint32()
	r.cdrDisk = b.uint32()
	r.diskEntries = b.uint64()
	r.totalEntries = b.uint64()
	r.cdrSize = b.uint64()
	r.cdrOffset = b.uint64()
	return r, nil
}

// --- zip64 end of central directory locator ---

type zip64Locator struct {
	zip64EOCDDisk   uint32
	zip64EOCDOffset uint64
	totalDisks      uint32
}

func (l zip64Locator) marshal() []byte {
	buf := make(writeBuf, zip64LocatorLen)
	b := buf
	b.uint32(sigZip64Locator)
	b.uint32(l.zip64EOCDDisk)
	b.uint64(l.zip64EOCDOffset)
	b.uint32(l.totalDisks)
	return buf
}

func unmarshalZip64Locator(p []byte) (zip64Locator, error) {
	if len(p) < zip64LocatorLen {
		return zip64Locator{}, fmt.Errorf("zipcore: zip64 locator: %w", ErrTruncated)
	}
	b := readBuf(p)
	if sig := b.uint32(); sig != sigZip64Locator {
		return zip64Locator{}, fmt.Errorf("zipcore: zip64 locator: %w", ErrBadMagic)
	}
	var l zip64Locator
	l.zip64EOCDDisk = b.uint32()
	l.zip64EOCDOffset = b.uint64()
	l.totalDisks = b.uint32()
	return l, nil
}
