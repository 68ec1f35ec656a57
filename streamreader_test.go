package zipcore

import (
	"bytes"
	"io"
	"testing"
)

func TestStreamReaderMatchesWriterOutput(t *testing.T) {
	var buf bytes.Buffer
	w := Create(&buf)

	want := map[string]string{
		"readme.txt": "forward-only reading should see this",
		"data.bin":   "",
	}
	for name, payload := range want {
		if _, err := w.AddBytes(name, []byte(payload)); err != nil {
			t.Fatalf("AddBytes(%s): %v", name, err)
		}
	}
	if _, err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	sr := OpenStream(bytes.NewReader(buf.Bytes()))
	seen := map[string]string{}
	for {
		h, err := sr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		body, err := io.ReadAll(sr)
		if err != nil {
			t.Fatalf("read body of %s: %v", h.Name, err)
		}
		seen[h.Name] = string(body)
	}

	if len(seen) != len(want) {
		t.Fatalf("saw %d entries, want %d", len(seen), len(want))
	}
	for name, payload := range want {
		if got := seen[name]; got != payload {
			t.Errorf("entry %s = %q, want %q", name, got, payload)
		}
	}
}

func TestStreamReaderBufferedAfterEOF(t *testing.T) {
	var buf bytes.Buffer
	w := Create(&buf)
	if _, err := w.AddBytes("x", []byte("payload")); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	if _, err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	buf.WriteString("trailing garbage after archive end")

	sr := OpenStream(bytes.NewReader(buf.Bytes()))
	for {
		_, err := sr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		io.Copy(io.Discard, sr)
	}

	rest, err := io.ReadAll(sr.Buffered())
	if err != nil {
		t.Fatalf("read Buffered: %v", err)
	}
	if string(rest) != "trailing garbage after archive end" {
		t.Errorf("Buffered() = %q, want trailing garbage", rest)
	}
}
