package zipcore

import "errors"

// Sentinel errors returned by this package. Callers should match with
// errors.Is: most errors surfaced across an operation boundary are wrapped
// with additional context via fmt.Errorf's %w verb, though some (such as
// ErrEOCDNotFound and ErrMultiDisk from Open) are returned bare.
var (
	ErrInvalidInput         = errors.New("zipcore: invalid input")
	ErrUnsupportedMethod    = errors.New("zipcore: unsupported compression method")
	ErrMultiDisk            = errors.New("zipcore: multi-disk archives are not supported")
	ErrTruncated            = errors.New("zipcore: truncated input")
	ErrBadMagic             = errors.New("zipcore: bad magic")
	ErrFormatViolation      = errors.New("zipcore: format violation")
	ErrDecode               = errors.New("zipcore: decode error")
	ErrChecksum             = errors.New("zipcore: checksum mismatch")
	ErrClosed               = errors.New("zipcore: writer is closed")
	ErrEOCDNotFound         = errors.New("zipcore: end of central directory not found")
	ErrZIP64LocatorNotFound = errors.New("zipcore: zip64 end of central directory locator not found")
	ErrCodecInit            = errors.New("zipcore: codec initialization failed")

	errNotBound = errors.New("zipcore: entry is not bound to an archive")
)
