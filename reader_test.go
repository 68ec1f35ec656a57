package zipcore

import (
	"bytes"
	"testing"
)

func TestFindEOCDIgnoresFakeMagicInComment(t *testing.T) {
	var buf bytes.Buffer
	w := Create(&buf, WithArchiveComment("decoy ahead: \x50\x4b\x05\x06 not a real eocd, just bytes in a comment"))
	if _, err := w.AddBytes("only.txt", []byte("payload")); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	if _, err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	a, err := Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(a.Entries()) != 1 {
		t.Fatalf("Entries() len = %d, want 1", len(a.Entries()))
	}
	e, ok := a.Get("only.txt")
	if !ok {
		t.Fatal("Get(only.txt): not found")
	}
	var out bytes.Buffer
	if _, err := e.Extract(&out); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out.String() != "payload" {
		t.Errorf("Extract() = %q, want %q", out.String(), "payload")
	}
}

func TestOpenRejectsTruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	w := Create(&buf)
	if _, err := w.AddBytes("a.txt", []byte("content")); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	if _, err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	truncated := buf.Bytes()[:buf.Len()-10]
	if _, err := Open(bytes.NewReader(truncated), int64(len(truncated))); err == nil {
		t.Error("Open on truncated stream: got nil error, want ErrEOCDNotFound")
	}
}

func TestArchiveAtAndComment(t *testing.T) {
	var buf bytes.Buffer
	w := Create(&buf, WithArchiveComment("hello"))
	if _, err := w.AddBytes("one", []byte("1")); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	if _, err := w.AddBytes("two", []byte("2")); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	if _, err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	a, err := Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if a.Comment() != "hello" {
		t.Errorf("Comment() = %q, want %q", a.Comment(), "hello")
	}
	if a.At(0).Name != "one" || a.At(1).Name != "two" {
		t.Errorf("At() order = %q, %q, want one, two", a.At(0).Name, a.At(1).Name)
	}
}
