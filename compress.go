package zipcore

import (
	"fmt"
	"hash/crc32"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
)

// chunkSize bounds every streaming buffer in the compression pipeline, per
// the two-8KiB-buffers-per-context resource budget.
const chunkSize = 8 * 1024

// writeResult carries the running totals produced while streaming a
// member's body through the write-side pipeline.
type writeResult struct {
	crc32            uint32
	uncompressedSize uint64
	compressedSize   uint64
}

// countingWriter tracks bytes written through it, so the pipeline can
// report compressed_size without the caller needing a seekable destination.
type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}

// compressBody streams src through the codec for method, writing to dst
// and returning the running CRC-32 and byte counts. It never seeks dst.
func compressBody(method uint16, dst io.Writer, src io.Reader) (writeResult, error) {
	switch method {
	case Store:
		return storeBody(dst, src)
	case Deflate:
		return deflateBody(dst, src)
	default:
		return writeResult{}, fmt.Errorf("zipcore: compress: %w", ErrUnsupportedMethod)
	}
}

func storeBody(dst io.Writer, src io.Reader) (writeResult, error) {
	cw := &countingWriter{w: dst}
	hasher := crc32.NewIEEE()
	buf := make([]byte, chunkSize)
	var total uint64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
			if _, werr := cw.Write(buf[:n]); werr != nil {
				return writeResult{}, fmt.Errorf("zipcore: store write: %w", werr)
			}
			total += uint64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return writeResult{}, fmt.Errorf("zipcore: store read: %w", rerr)
		}
	}
	return writeResult{crc32: hasher.Sum32(), uncompressedSize: total, compressedSize: cw.n}, nil
}

func deflateBody(dst io.Writer, src io.Reader) (writeResult, error) {
	cw := &countingWriter{w: dst}
	fw, err := flate.NewWriter(cw, flate.DefaultCompression)
	if err != nil {
		return writeResult{}, fmt.Errorf("zipcore: %w: %v", ErrCodecInit, err)
	}
	hasher := crc32.NewIEEE()
	buf := make([]byte, chunkSize)
	var total uint64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
			if _, werr := fw.Write(buf[:n]); werr != nil {
				return writeResult{}, fmt.Errorf("zipcore: deflate write: %w", werr)
			}
			total += uint64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return writeResult{}, fmt.Errorf("zipcore: deflate read: %w", rerr)
		}
	}
	if err := fw.Close(); err != nil {
		return writeResult{}, fmt.Errorf("zipcore: deflate finalize: %w", err)
	}
	return writeResult{crc32: hasher.Sum32(), uncompressedSize: total, compressedSize: cw.n}, nil
}

// extractBody decompresses exactly compressedSize bytes from src (random
// access path, where sizes are already known from the central directory),
// writes uncompressedSize bytes to sink, and returns the CRC-32 of what was
// produced for the caller to compare against the entry's recorded value.
func extractBody(method uint16, src io.Reader, sink io.Writer, compressedSize, uncompressedSize uint64) (uint32, error) {
	switch method {
	case Store:
		return extractStore(src, sink, compressedSize)
	case Deflate:
		return extractDeflate(src, sink, compressedSize, uncompressedSize)
	default:
		return 0, fmt.Errorf("zipcore: extract: %w", ErrUnsupportedMethod)
	}
}

func extractStore(src io.Reader, sink io.Writer, size uint64) (uint32, error) {
	hasher := crc32.NewIEEE()
	lr := io.LimitReader(src, int64(size))
	buf := make([]byte, chunkSize)
	n, err := io.CopyBuffer(io.MultiWriter(sink, hasher), lr, buf)
	if err != nil {
		return 0, fmt.Errorf("zipcore: store extract: %w", err)
	}
	if uint64(n) != size {
		return 0, fmt.Errorf("zipcore: store extract: %w", ErrTruncated)
	}
	return hasher.Sum32(), nil
}

func extractDeflate(src io.Reader, sink io.Writer, compressedSize, uncompressedSize uint64) (uint32, error) {
	lr := io.LimitReader(src, int64(compressedSize))
	fr := flate.NewReader(lr)
	defer fr.Close()
	hasher := crc32.NewIEEE()
	buf := make([]byte, chunkSize)
	n, err := io.CopyBuffer(io.MultiWriter(sink, hasher), fr, buf)
	if err != nil {
		if err == io.ErrUnexpectedEOF {
			return 0, fmt.Errorf("zipcore: inflate: %w", ErrTruncated)
		}
		return 0, fmt.Errorf("zipcore: %w: %v", ErrDecode, err)
	}
	if uint64(n) != uncompressedSize {
		return 0, fmt.Errorf("zipcore: inflate: %w", ErrTruncated)
	}
	return hasher.Sum32(), nil
}

// Decompressor returns a new decompressing reader over r, used by
// StreamReader where sizes aren't known ahead of a seekable central
// directory. The built-in Store and Deflate decompressors are always
// registered; RegisterDecompressor can add others.
type Decompressor func(r io.Reader) io.ReadCloser

var (
	flateReaderPool sync.Pool
	decompressors   sync.Map // map[uint16]Decompressor
)

func init() {
	decompressors.Store(Store, Decompressor(io.NopCloser))
	decompressors.Store(Deflate, Decompressor(newPooledFlateReader))
}

// pooledFlateReader hands its klauspost/compress/flate reader back to a
// shared pool on Close, and newPooledFlateReader takes one from that pool
// when one is available. StreamReader does not close an entry's body when
// it advances, so the readers it creates are not returned to the pool.
type pooledFlateReader struct {
	mu sync.Mutex
	fr io.ReadCloser
}

func (r *pooledFlateReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fr == nil {
		return 0, fmt.Errorf("zipcore: read after close")
	}
	return r.fr.Read(p)
}

func (r *pooledFlateReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.fr != nil {
		err = r.fr.Close()
		flateReaderPool.Put(r.fr)
		r.fr = nil
	}
	return err
}

func newPooledFlateReader(r io.Reader) io.ReadCloser {
	fr, ok := flateReaderPool.Get().(io.ReadCloser)
	if ok {
		fr.(flate.Resetter).Reset(r, nil)
	} else {
		fr = flate.NewReader(r)
	}
	return &pooledFlateReader{fr: fr}
}

// RegisterDecompressor installs a custom decompressor for method, which
// must not already have one (Store and Deflate are reserved).
func RegisterDecompressor(method uint16, dcomp Decompressor) {
	if _, dup := decompressors.LoadOrStore(method, dcomp); dup {
		panic("zipcore: decompressor already registered")
	}
}

func decompressorFor(method uint16) Decompressor {
	v, ok := decompressors.Load(method)
	if !ok {
		return nil
	}
	return v.(Decompressor)
}
