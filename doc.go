// Package zipcore implements the PKWARE APPNOTE.TXT ZIP format, including
// the ZIP64 extension for archives and members exceeding 32-bit limits.
//
// The package provides a streaming Writer that emits local headers, a
// data-descriptor footer, a central directory, and an end-of-central
// directory record; a random-access Archive reader that locates the EOCD by
// scanning from the tail of a seekable stream; and a StreamReader for
// forward-only consumption of a ZIP stream (e.g. over a pipe or an HTTP
// response body) that never touches the central directory for navigation.
//
// DEFLATE is provided by github.com/klauspost/compress/flate in raw (no
// zlib wrapper) form. CRC-32 is computed incrementally with hash/crc32.
//
// Out of scope: multi-disk archives, encryption, and compression methods
// other than STORE and DEFLATE.
package zipcore
