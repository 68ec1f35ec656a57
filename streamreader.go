package zipcore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"unicode/utf8"
)

const (
	streamReadAhead  = 28
	streamMaxRead    = 4096
	streamBufferSize = streamMaxRead + streamReadAhead
)

// StreamReader provides sequential, forward-only access to a ZIP archive
// over a plain io.Reader. Next advances to the next local file header
// (including the first); the StreamReader itself is then an io.Reader over
// that entry's decompressed bytes until the next call to Next. Unlike
// Archive, it never seeks and never trusts the central directory — which
// means it also never skips forward to it: every entry is taken on faith
// from its local header and verified as it streams.
type StreamReader struct {
	io.Reader
	br            *bufio.Reader
	decompressors map[uint16]Decompressor
	logger        *slog.Logger
}

// OpenStream wraps r for sequential reading.
func OpenStream(r io.Reader, opts ...ReaderOption) *StreamReader {
	cfg := readerConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &StreamReader{br: bufio.NewReaderSize(r, streamBufferSize), logger: cfg.logger}
}

// Next advances to the next entry. io.EOF is returned once the central
// directory trailer has been reached and discarded; calling Next again
// after that presumes another archive immediately follows on the same
// stream and resumes scanning into it.
func (r *StreamReader) Next() (*Header, error) {
	if r.Reader != nil {
		if _, err := io.Copy(io.Discard, r.Reader); err != nil {
			return nil, err
		}
	}

	for {
		sig, err := r.br.Peek(4)
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("zipcore: stream: %w", ErrTruncated)
		}
		switch binary.LittleEndian.Uint32(sig) {
		case sigLocalFileHeader:
			goto found
		case sigCDREntry:
			return nil, discardCentralDirectory(r.br)
		default:
			r.br.Discard(1)
		}
	}
found:

	h, err := readStreamHeader(r.br)
	if err != nil {
		return nil, err
	}

	dcomp := r.decompressor(h.Method)
	if dcomp == nil {
		return nil, fmt.Errorf("zipcore: method %d: %w", h.Method, ErrUnsupportedMethod)
	}

	hasher := crc32.NewIEEE()
	var body io.Reader
	if h.hasFooter() {
		dr := &descriptorReader{br: r.br, header: h}
		body = dcomp(dr)
	} else {
		body = dcomp(io.LimitReader(r.br, int64(h.CompressedSize64)))
	}
	r.Reader = &crcReader{reader: body, hash: hasher, header: h}

	r.logger.Debug("zipcore: stream advanced", "name", h.Name, "method", h.Method, "footer", h.hasFooter())
	return h, nil
}

func readStreamHeader(r io.Reader) (*Header, error) {
	var buf [localFileHeaderLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, fmt.Errorf("zipcore: local header: %w", ErrTruncated)
	}
	lh, err := unmarshalLocalFileHeader(buf[:])
	if err != nil {
		return nil, err
	}

	nameBuf := make([]byte, lh.nameLen)
	if _, err := io.ReadFull(r, nameBuf); err != nil {
		return nil, fmt.Errorf("zipcore: local header name: %w", ErrTruncated)
	}
	extraBuf := make([]byte, lh.extraLen)
	if _, err := io.ReadFull(r, extraBuf); err != nil {
		return nil, fmt.Errorf("zipcore: local header extra: %w", ErrTruncated)
	}

	h := &Header{
		Name:          string(nameBuf),
		Flags:         lh.flags,
		Method:        lh.method,
		Modified:      dosToTime(lh.modDate, lh.modTime),
		CRC32:         lh.crc32,
		Extra:         extraBuf,
		VersionNeeded: lh.versionNeeded,
	}
	h.NonUTF8 = !isUTF8Flagged(h.Flags, h.Name)

	needUSize := lh.uncompressedSize == sentinel32
	needCSize := lh.compressedSize == sentinel32
	h.isZip64 = needUSize && needCSize
	h.CompressedSize64 = uint64(lh.compressedSize)
	h.UncompressedSize64 = uint64(lh.uncompressedSize)

	if !h.hasFooter() && (needUSize || needCSize) {
		extras, err := parseExtras(extraBuf)
		if err != nil {
			return nil, err
		}
		if data, ok := findZip64Extra(extras); ok {
			u, c, _, _, err := promoteZip64(data, needUSize, needCSize, false, false)
			if err != nil {
				return nil, err
			}
			if needUSize {
				h.UncompressedSize64 = u
			}
			if needCSize {
				h.CompressedSize64 = c
			}
		}
	}
	return h, nil
}

func isUTF8Flagged(flags uint16, name string) bool {
	valid, require := detectUTF8(name)
	if !valid {
		return false
	}
	if !require {
		return true
	}
	return flags&flagEFS != 0
}

// detectUTF8 reports whether s is valid UTF-8, and whether it must be
// considered UTF-8 (i.e. not compatible with CP-437, ASCII, or other common
// single-byte encodings PKWARE implementations have historically assumed).
func detectUTF8(s string) (valid, require bool) {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r < 0x20 || r > 0x7d || r == 0x5c {
			if !utf8.ValidRune(r) || (r == utf8.RuneError && size == 1) {
				return false, false
			}
			require = true
		}
	}
	return true, require
}

// Buffered returns any bytes beyond the end of the archive that have
// already been read into the internal buffer, needed if the caller plans
// to process anything after it that isn't another archive.
func (r *StreamReader) Buffered() io.Reader { return r.br }

// RegisterDecompressor installs a decompressor scoped to this StreamReader,
// overriding the package-level registry for this instance only.
func (r *StreamReader) RegisterDecompressor(method uint16, dcomp Decompressor) {
	if r.decompressors == nil {
		r.decompressors = make(map[uint16]Decompressor)
	}
	r.decompressors[method] = dcomp
}

func (r *StreamReader) decompressor(method uint16) Decompressor {
	if r.decompressors != nil {
		if d, ok := r.decompressors[method]; ok {
			return d
		}
	}
	return decompressorFor(method)
}

// crcReader wraps a decompressed entry body, accumulating its CRC-32 and
// checking it against the header's recorded value once the body reports
// io.EOF. For footer entries, header.CRC32 is only populated at that point
// by descriptorReader, which runs underneath and completes first.
type crcReader struct {
	reader  io.Reader
	hash    uint32Hash
	header  *Header
	checked bool
}

type uint32Hash interface {
	io.Writer
	Sum32() uint32
}

func (c *crcReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	if n > 0 {
		c.hash.Write(p[:n])
	}
	if err == io.EOF && !c.checked {
		c.checked = true
		if got := c.hash.Sum32(); got != c.header.CRC32 {
			return n, fmt.Errorf("zipcore: entry %q: %w", c.header.Name, ErrChecksum)
		}
	}
	return n, err
}

// descriptorReader feeds compressed bytes to a decompressor while watching
// for the data descriptor's signature, for entries whose local header
// deferred crc/sizes (the FOOTER flag). It holds back up to 3 bytes at a
// time so a signature split across two Read calls is never missed, then
// once found consumes the descriptor body itself and reports io.EOF,
// writing the recovered crc/sizes back into the shared Header.
type descriptorReader struct {
	br      *bufio.Reader
	header  *Header
	pending []byte
	done    bool
}

func (d *descriptorReader) Read(p []byte) (int, error) {
	if d.done {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) {
		b, err := d.br.ReadByte()
		if err != nil {
			return n, fmt.Errorf("zipcore: data descriptor: %w", ErrTruncated)
		}
		d.pending = append(d.pending, b)
		if len(d.pending) < 4 {
			continue
		}
		if binary.LittleEndian.Uint32(d.pending) == sigDataDescriptor {
			if err := d.consumeDescriptor(); err != nil {
				return n, err
			}
			d.done = true
			return n, io.EOF
		}
		p[n] = d.pending[0]
		n++
		d.pending = d.pending[1:]
	}
	return n, nil
}

func (d *descriptorReader) consumeDescriptor() error {
	need := dataDescriptorLen - 4
	if d.header.isZip64 {
		need = zip64DataDescLen - 4
	}
	buf := make([]byte, need)
	if _, err := io.ReadFull(d.br, buf); err != nil {
		return fmt.Errorf("zipcore: data descriptor body: %w", ErrTruncated)
	}
	dd, err := unmarshalDataDescriptorBody(buf, d.header.isZip64)
	if err != nil {
		return err
	}
	d.header.CRC32 = dd.crc32
	d.header.CompressedSize64 = dd.compressedSize
	d.header.UncompressedSize64 = dd.uncompressedSize
	return nil
}
