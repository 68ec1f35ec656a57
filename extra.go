package zipcore

import "fmt"

// Extra field codes this package recognizes while scanning (it only ever
// synthesizes zip64ExtraID on write; the rest are skipped safely on read).
const (
	ntfsExtraID        = 0x000a
	unixExtraID        = 0x000d
	extTimeExtraID     = 0x5455
	infoZipUnixExtraID = 0x5855
)

// ExtraField is one TLV record from a local or central-directory extras
// block, exposed to callers via Entry.LocalExtras for extras this package
// doesn't interpret itself.
type ExtraField struct {
	Code uint16
	Data []byte
}

// parseExtras walks a concatenated TLV region until it's exhausted. A
// trailing partial record (shorter than 4 bytes, or a declared size that
// overruns the remaining bytes) is a format violation: producers must fill
// the extras region exactly.
func parseExtras(b []byte) ([]ExtraField, error) {
	var fields []ExtraField
	buf := readBuf(b)
	for len(buf) > 0 {
		if len(buf) < 4 {
			return nil, fmt.Errorf("zipcore: extra field header: %w", ErrFormatViolation)
		}
		code := buf.uint16()
		size := int(buf.uint16())
		if len(buf) < size {
			return nil, fmt.Errorf("zipcore: extra field payload: %w", ErrFormatViolation)
		}
		data := append([]byte(nil), buf.sub(size)...)
		fields = append(fields, ExtraField{Code: code, Data: data})
	}
	return fields, nil
}

// buildExtras serializes a sequence of extra fields back into a TLV region.
func buildExtras(fields []ExtraField) []byte {
	n := 0
	for _, f := range fields {
		n += 4 + len(f.Data)
	}
	buf := make(writeBuf, n)
	b := buf
	for _, f := range fields {
		b.uint16(f.Code)
		b.uint16(uint16(len(f.Data)))
		b.bytes(f.Data)
	}
	return buf
}

// findZip64Extra returns the first zip64 extra field in fields, if any.
func findZip64Extra(fields []ExtraField) ([]byte, bool) {
	for _, f := range fields {
		if f.Code == zip64ExtraID {
			return f.Data, true
		}
	}
	return nil, false
}

// promoteZip64 reads whichever 64-bit fields were sentinelized in the
// enclosing fixed record, in APPNOTE's fixed order (uncompressed size,
// compressed size, local header offset, disk start). Presence is driven by
// the caller's sentinel checks on the fixed record, not by payload length
// alone, since a writer only ever emits the subset that overflowed.
func promoteZip64(data []byte, needUncompressed, needCompressed, needOffset, needDisk bool) (uncompressed, compressed, offset uint64, disk uint32, err error) {
	buf := readBuf(data)
	if needUncompressed {
		if len(buf) < 8 {
			return 0, 0, 0, 0, fmt.Errorf("zipcore: zip64 extra: %w", ErrFormatViolation)
		}
		uncompressed = buf.uint64()
	}
	if needCompressed {
		if len(buf) < 8 {
			return 0, 0, 0, 0, fmt.Errorf("zipcore: zip64 extra: %w", ErrFormatViolation)
		}
		compressed = buf.uint64()
	}
	if needOffset {
		if len(buf) < 8 {
			return 0, 0, 0, 0, fmt.Errorf("zipcore: zip64 extra: %w", ErrFormatViolation)
		}
		offset = buf.uint64()
	}
	if needDisk {
		if len(buf) < 4 {
			return 0, 0, 0, 0, fmt.Errorf("zipcore: zip64 extra: %w", ErrFormatViolation)
		}
		disk = buf.uint32()
	}
	return uncompressed, compressed, offset, disk, nil
}

// buildZip64Extra serializes the ZIP64 extra (code 0x0001), including only
// the fields the caller marks present, in APPNOTE's fixed order. An entry
// with nothing present encodes to a zero-length payload, which callers
// should omit from the extras list entirely rather than emit.
func buildZip64Extra(uncompressed, compressed, offset uint64, disk uint32, hasUncompressed, hasCompressed, hasOffset, hasDisk bool) ExtraField {
	n := 0
	if hasUncompressed {
		n += 8
	}
	if hasCompressed {
		n += 8
	}
	if hasOffset {
		n += 8
	}
	if hasDisk {
		n += 4
	}
	buf := make(writeBuf, n)
	b := buf
	if hasUncompressed {
		b.uint64(uncompressed)
	}
	if hasCompressed {
		b.uint64(compressed)
	}
	if hasOffset {
		b.uint64(offset)
	}
	if hasDisk {
		b.uint32(disk)
	}
	return ExtraField{Code: zip64ExtraID, Data: buf}
}
