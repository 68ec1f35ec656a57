package zipcore

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestWriterArchiveRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		method  uint16
		payload string
	}{
		{"empty-store", Store, ""},
		{"empty-deflate", Deflate, ""},
		{"small-store", Store, "hello, zip"},
		{"small-deflate", Deflate, strings.Repeat("the quick brown fox jumps over the lazy dog ", 200)},
	}

	var buf bytes.Buffer
	w := Create(&buf, WithArchiveComment("round trip fixture"))

	for _, c := range cases {
		if _, err := w.AddBytes(c.name, []byte(c.payload), WithMethod(c.method)); err != nil {
			t.Fatalf("AddBytes(%s): %v", c.name, err)
		}
	}
	if _, err := w.AddDir("assets/"); err != nil {
		t.Fatalf("AddDir: %v", err)
	}
	if _, err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	a, err := Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := a.Comment(); got != "round trip fixture" {
		t.Errorf("Comment() = %q, want %q", got, "round trip fixture")
	}
	if len(a.Entries()) != len(cases)+1 {
		t.Fatalf("Entries() len = %d, want %d", len(a.Entries()), len(cases)+1)
	}

	for _, c := range cases {
		e, ok := a.Get(c.name)
		if !ok {
			t.Errorf("Get(%s): not found", c.name)
			continue
		}
		var out bytes.Buffer
		if _, err := e.Extract(&out); err != nil {
			t.Errorf("Extract(%s): %v", c.name, err)
			continue
		}
		if out.String() != c.payload {
			t.Errorf("Extract(%s) = %q, want %q", c.name, out.String(), c.payload)
		}
	}

	dir, ok := a.Get("assets/")
	if !ok {
		t.Fatal("Get(assets/): not found")
	}
	if !dir.IsDir() {
		t.Errorf("assets/ IsDir() = false, want true")
	}
}

func TestWriterForcedZIP64Member(t *testing.T) {
	var buf bytes.Buffer
	w := Create(&buf)

	payload := []byte("tiny body, forced into zip64 bookkeeping")
	if _, err := w.AddBytes("forced.bin", payload, WithMethod(Store), WithZIP64(true)); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	if _, err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	a, err := Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	e, ok := a.Get("forced.bin")
	if !ok {
		t.Fatal("Get(forced.bin): not found")
	}
	if e.VersionNeeded != versionNeededValue(true) {
		t.Errorf("VersionNeeded = %d, want %d", e.VersionNeeded, versionNeededValue(true))
	}
	var out bytes.Buffer
	if _, err := e.Extract(&out); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Equal(out.Bytes(), payload) {
		t.Errorf("Extract() = %q, want %q", out.Bytes(), payload)
	}
}

func TestWriterClosedRejectsFurtherWrites(t *testing.T) {
	var buf bytes.Buffer
	w := Create(&buf)
	if _, err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := w.AddBytes("too-late", nil); err == nil {
		t.Error("AddBytes after Close: got nil error, want ErrClosed")
	}
}

func TestWriterRejectsAbsolutePath(t *testing.T) {
	var buf bytes.Buffer
	w := Create(&buf)
	if _, err := w.AddBytes("/etc/passwd", nil); err == nil {
		t.Error("AddBytes(/etc/passwd): got nil error, want ErrInvalidInput")
	}
}

func TestEntryChecksumMismatchDetected(t *testing.T) {
	var buf bytes.Buffer
	w := Create(&buf)
	if _, err := w.AddBytes("a.txt", []byte("original contents")); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	if _, err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw := buf.Bytes()
	// Flip a byte inside the STORE-ish deflate body region, well before the
	// central directory, to corrupt the payload without disturbing the
	// records' declared lengths.
	for i := 40; i < len(raw)-40; i++ {
		raw[i] ^= 0xFF
		break
	}

	a, err := Open(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		// A corrupted byte can legitimately break the central directory scan
		// too; either outcome demonstrates the corruption was not silently
		// accepted.
		return
	}
	e, ok := a.Get("a.txt")
	if !ok {
		return
	}
	if _, err := e.Extract(io.Discard); err == nil {
		t.Error("Extract on corrupted body: got nil error, want ErrChecksum or ErrDecode")
	}
}
