package zipcore

import (
	"log/slog"
	"time"
)

// entryConfig collects the options accepted by Add, AddBytes, and AddDir.
type entryConfig struct {
	method     uint16
	modified   time.Time
	comment    string
	forceZip64 bool
}

// EntryOption configures a single call to Writer.Add, Writer.AddBytes, or
// Writer.AddDir.
type EntryOption func(*entryConfig)

// WithMethod selects STORE or DEFLATE for this entry. AddDir always forces
// STORE regardless of this option.
func WithMethod(method uint16) EntryOption {
	return func(cfg *entryConfig) { cfg.method = method }
}

// WithModTime overrides the entry's modification time (default time.Now()).
// It is stored at DOS-time's 2-second resolution.
func WithModTime(t time.Time) EntryOption {
	return func(cfg *entryConfig) { cfg.modified = t }
}

// WithComment attaches a per-entry comment, 0-65535 bytes.
func WithComment(c string) EntryOption {
	return func(cfg *entryConfig) { cfg.comment = c }
}

// WithZIP64 forces ZIP64 promotion for this member even if its size and
// offset would otherwise fit in 32 bits.
func WithZIP64(force bool) EntryOption {
	return func(cfg *entryConfig) { cfg.forceZip64 = force }
}

// writerConfig collects the options accepted by Create and CreateFile.
type writerConfig struct {
	comment string
	madeBy  version
	logger  *slog.Logger
}

// WriterOption configures a Writer at construction time.
type WriterOption func(*writerConfig)

// WithArchiveComment sets the archive-wide comment written into the EOCD.
func WithArchiveComment(c string) WriterOption {
	return func(cfg *writerConfig) { cfg.comment = c }
}

// WithMadeBy overrides the version-made-by field recorded in every central
// directory entry (default 0.0, host-unspecified).
func WithMadeBy(major, minor, compat uint8) WriterOption {
	return func(cfg *writerConfig) { cfg.madeBy = version{major: major, minor: minor, compat: compat} }
}

// WithWriterLogger injects a structured logger for debug-level tracing of
// writer state transitions (default slog.Default()).
func WithWriterLogger(l *slog.Logger) WriterOption {
	return func(cfg *writerConfig) { cfg.logger = l }
}

// readerConfig collects the options accepted by Open and OpenFile.
type readerConfig struct {
	logger *slog.Logger
}

// ReaderOption configures an Archive at open time.
type ReaderOption func(*readerConfig)

// WithReaderLogger injects a structured logger for debug-level tracing of
// the EOCD/ZIP64 location search (default slog.Default()).
func WithReaderLogger(l *slog.Logger) ReaderOption {
	return func(cfg *readerConfig) { cfg.logger = l }
}
