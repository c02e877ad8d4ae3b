package stream

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

// ============================================================
// Compression Tests
// ============================================================

func TestCompression_RoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat(`{"savable_type":"scene.Node","name":"root"}`, 64))

	for _, c := range []Compression{None, Zstd, LZ4} {
		t.Run(c.String(), func(t *testing.T) {
			packed, err := Compress(payload, Options{Compression: c})
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			if got := Sniff(packed); got != c {
				t.Errorf("Sniff = %s, want %s", got, c)
			}
			if c != None && len(packed) >= len(payload) {
				t.Errorf("compressed size %d not below %d", len(packed), len(payload))
			}

			out, found, err := Decompress(packed)
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if found != c {
				t.Errorf("detected %s, want %s", found, c)
			}
			if !bytes.Equal(out, payload) {
				t.Errorf("payload mismatch after round trip")
			}
		})
	}
}

func TestCompression_Levels(t *testing.T) {
	payload := bytes.Repeat([]byte("abcdefgh"), 512)
	for _, opts := range []Options{
		{Compression: Zstd, Level: 1},
		{Compression: Zstd, Level: 19},
		{Compression: LZ4, Level: 1},
		{Compression: LZ4, Level: 9},
		{Compression: LZ4, Level: 42},
	} {
		packed, err := Compress(payload, opts)
		if err != nil {
			t.Fatalf("Compress(%+v): %v", opts, err)
		}
		out, _, err := Decompress(packed)
		if err != nil {
			t.Fatalf("Decompress(%+v): %v", opts, err)
		}
		if !bytes.Equal(out, payload) {
			t.Errorf("%+v: payload mismatch", opts)
		}
	}
}

func TestReader_ShortInput(t *testing.T) {
	r, c, err := NewReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()
	if c != None {
		t.Errorf("compression = %s, want none", c)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("got %q", data)
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in   string
		want Compression
		ok   bool
	}{
		{"", None, true},
		{"none", None, true},
		{"ZSTD", Zstd, true},
		{"zst", Zstd, true},
		{"lz4", LZ4, true},
		{"gzip", None, false},
	}
	for _, tt := range tests {
		got, ok := ParseCompression(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseCompression(%q) = %s, %v; want %s, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNewWriter_Unsupported(t *testing.T) {
	if _, err := NewWriter(io.Discard, Options{Compression: Compression(9)}); err == nil {
		t.Fatal("expected error for unknown compression")
	}
}

// ============================================================
// Frame Tests
// ============================================================

func TestFrameWriter_Header(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)

	if err := w.WriteDocument("json", None, []byte("{}")); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}

	want := "@savable{v=1 seq=0 format=json len=2 crc=" + hex8(Checksum([]byte("{}"))) + "}\n{}\n"
	if got := buf.String(); got != want {
		t.Errorf("got:\n%q\nwant:\n%q", got, want)
	}
}

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)

	docs := [][]byte{
		[]byte(`{"a":1}`),
		[]byte("line one\nline two\n"),
		{},
	}
	for i, d := range docs {
		c := None
		if i == 1 {
			c = Zstd
		}
		if err := w.WriteDocument("yaml", c, d); err != nil {
			t.Fatalf("WriteDocument %d: %v", i, err)
		}
	}
	if !IsBundle(buf.Bytes()) {
		t.Fatal("IsBundle = false for a bundle")
	}

	frames, err := NewFrameReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(frames) != len(docs) {
		t.Fatalf("got %d frames, want %d", len(frames), len(docs))
	}
	for i, f := range frames {
		if f.Seq != uint64(i) {
			t.Errorf("frame %d: seq = %d", i, f.Seq)
		}
		if f.Format != "yaml" {
			t.Errorf("frame %d: format = %q", i, f.Format)
		}
		if !bytes.Equal(f.Payload, docs[i]) {
			t.Errorf("frame %d: payload = %q, want %q", i, f.Payload, docs[i])
		}
		if f.CRC == nil {
			t.Errorf("frame %d: missing crc", i)
		}
	}
	if frames[1].Compression != Zstd {
		t.Errorf("frame 1 compression = %s", frames[1].Compression)
	}
}

func TestFrameReader_ChecksumMismatch(t *testing.T) {
	input := "@savable{v=1 seq=0 len=2 crc=00000000}\n{}\n"

	_, err := NewFrameReader(strings.NewReader(input)).Next()
	var ce *ChecksumError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ChecksumError, got %v", err)
	}

	f, err := NewFrameReader(strings.NewReader(input), WithoutCRCVerification()).Next()
	if err != nil {
		t.Fatalf("Next without verification: %v", err)
	}
	if string(f.Payload) != "{}" {
		t.Errorf("payload = %q", f.Payload)
	}
}

func TestFrameReader_BadHeaders(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not a frame", "{\"a\":1}\n"},
		{"missing len", "@savable{v=1 seq=0}\n"},
		{"bad version", "@savable{v=9 len=0}\n\n"},
		{"bad comp", "@savable{v=1 comp=brotli len=0}\n\n"},
		{"bad crc", "@savable{v=1 len=0 crc=zz}\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrameReader(strings.NewReader(tt.input)).Next()
			var he *HeaderError
			if !errors.As(err, &he) {
				t.Errorf("expected HeaderError, got %v", err)
			}
		})
	}
}

func TestFrameReader_MaxPayload(t *testing.T) {
	input := "@savable{v=1 len=10}\n0123456789\n"
	_, err := NewFrameReader(strings.NewReader(input), WithMaxPayload(4)).Next()
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected payload too large, got %v", err)
	}
}

func TestFrameReader_Truncated(t *testing.T) {
	input := "@savable{v=1 len=10}\n0123"
	_, err := NewFrameReader(strings.NewReader(input)).Next()
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected unexpected EOF, got %v", err)
	}
}

func TestFrameReader_Empty(t *testing.T) {
	_, err := NewFrameReader(strings.NewReader("")).Next()
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func hex8(v uint32) string {
	const digits = "0123456789abcdef"
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = digits[v&0xf]
		v >>= 4
	}
	return string(b)
}
