package zipcore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// discardCentralDirectory skips the central directory, zip64 end record,
// zip64 locator, and EOCD that follow the last entry in a forward-only
// stream, so a caller chaining another archive onto the same stream can
// keep reading from where this one's trailer ends.
func discardCentralDirectory(br *bufio.Reader) error {
	for {
		sigBytes, err := br.Peek(4)
		if err != nil {
			return fmt.Errorf("zipcore: central directory trailer: %w", ErrTruncated)
		}
		switch binary.LittleEndian.Uint32(sigBytes) {
		case sigCDREntry:
			if err := discardCDREntry(br); err != nil {
				return err
			}
		case sigEOCD:
			if err := discardEOCD(br); err != nil {
				return err
			}
			return io.EOF
		case sigZip64EOCD:
			if err := discardZip64EOCD(br); err != nil {
				return err
			}
		case sigZip64Locator:
			if _, err := br.Discard(zip64LocatorLen); err != nil {
				return fmt.Errorf("zipcore: zip64 locator: %w", ErrTruncated)
			}
		default:
			return fmt.Errorf("zipcore: central directory trailer: %w", ErrBadMagic)
		}
	}
}

func discardCDREntry(br *bufio.Reader) error {
	if _, err := br.Discard(28); err != nil {
		return fmt.Errorf("zipcore: cdr entry: %w", ErrTruncated)
	}
	lb, err := br.Peek(6)
	if err != nil {
		return fmt.Errorf("zipcore: cdr entry lengths: %w", ErrTruncated)
	}
	lengths := int(binary.LittleEndian.Uint16(lb[0:2])) + // name
		int(binary.LittleEndian.Uint16(lb[2:4])) + // extra
		int(binary.LittleEndian.Uint16(lb[4:6])) // comment
	if _, err := br.Discard(18 + lengths); err != nil {
		return fmt.Errorf("zipcore: cdr entry body: %w", ErrTruncated)
	}
	return nil
}

func discardEOCD(br *bufio.Reader) error {
	if _, err := br.Discard(20); err != nil {
		return fmt.Errorf("zipcore: eocd: %w", ErrTruncated)
	}
	commentLen, err := br.Peek(2)
	if err != nil {
		return fmt.Errorf("zipcore: eocd comment length: %w", ErrTruncated)
	}
	if _, err := br.Discard(2 + int(binary.LittleEndian.Uint16(commentLen))); err != nil {
		return fmt.Errorf("zipcore: eocd comment: %w", ErrTruncated)
	}
	return nil
}

func discardZip64EOCD(br *bufio.Reader) error {
	lb, err := br.Peek(12)
	if err != nil {
		return fmt.Errorf("zipcore: zip64 eocd: %w", ErrTruncated)
	}
	totalSize := 12 + binary.LittleEndian.Uint64(lb[4:12])
	if totalSize > 0x7FFFFFFF {
		return fmt.Errorf("zipcore: zip64 eocd: %w", ErrFormatViolation)
	}
	if _, err := br.Discard(int(totalSize)); err != nil {
		return fmt.Errorf("zipcore: zip64 eocd body: %w", ErrTruncated)
	}
	return nil
}
