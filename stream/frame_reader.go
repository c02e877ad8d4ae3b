package stream

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FrameReader reads the frames of a bundle in order.
type FrameReader struct {
	r          *bufio.Reader
	maxPayload int
	verifyCRC  bool
	n          int
}

// FrameReaderOption configures a FrameReader.
type FrameReaderOption func(*FrameReader)

// WithMaxPayload bounds the payload size a header may declare.
func WithMaxPayload(max int) FrameReaderOption {
	return func(r *FrameReader) { r.maxPayload = max }
}

// WithoutCRCVerification skips checksum checks.
func WithoutCRCVerification() FrameReaderOption {
	return func(r *FrameReader) { r.verifyCRC = false }
}

// NewFrameReader reads frames from r.
func NewFrameReader(r io.Reader, opts ...FrameReaderOption) *FrameReader {
	fr := &FrameReader{
		r:          bufio.NewReader(r),
		maxPayload: MaxPayloadSize,
		verifyCRC:  true,
	}
	for _, opt := range opts {
		opt(fr)
	}
	return fr
}

// Next returns the next frame, or io.EOF after the last one.
func (r *FrameReader) Next() (*Frame, error) {
	line, err := r.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && strings.TrimSpace(line) == "" {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("stream: read header: %w", err)
	}
	f, size, err := r.parseHeader(line)
	if err != nil {
		return nil, err
	}
	if size > r.maxPayload {
		return nil, &HeaderError{Reason: fmt.Sprintf("payload too large: %d > %d", size, r.maxPayload), Seq: r.n}
	}
	f.Payload = make([]byte, size)
	if _, err := io.ReadFull(r.r, f.Payload); err != nil {
		return nil, fmt.Errorf("stream: read payload: %w", err)
	}
	// The trailing newline is optional at end of input.
	if b, err := r.r.Peek(1); err == nil && b[0] == '\n' {
		_, _ = r.r.Discard(1)
	}
	if r.verifyCRC && f.CRC != nil {
		if got := Checksum(f.Payload); got != *f.CRC {
			return nil, &ChecksumError{Seq: f.Seq, Expected: *f.CRC, Got: got}
		}
	}
	r.n++
	return f, nil
}

func (r *FrameReader) parseHeader(line string) (*Frame, int, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, frameTag) || !strings.HasSuffix(line, "}") {
		return nil, 0, &HeaderError{Reason: "expected " + frameTag + "...}", Seq: r.n}
	}
	body := line[len(frameTag) : len(line)-1]

	f := &Frame{Version: FrameVersion}
	size := -1
	for _, pair := range strings.Fields(body) {
		key, val, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		switch key {
		case "v":
			v, err := strconv.ParseUint(val, 10, 8)
			if err != nil || uint8(v) > FrameVersion {
				return nil, 0, &HeaderError{Reason: "unsupported version " + val, Seq: r.n}
			}
			f.Version = uint8(v)
		case "seq":
			seq, err := strconv.ParseUint(val, 10, 64)
			if err != nil {
				return nil, 0, &HeaderError{Reason: "invalid seq " + val, Seq: r.n}
			}
			f.Seq = seq
		case "format":
			f.Format = val
		case "comp":
			c, ok := ParseCompression(val)
			if !ok {
				return nil, 0, &HeaderError{Reason: "unknown compression " + val, Seq: r.n}
			}
			f.Compression = c
		case "len":
			l, err := strconv.ParseUint(val, 10, 32)
			if err != nil {
				return nil, 0, &HeaderError{Reason: "invalid len " + val, Seq: r.n}
			}
			size = int(l)
		case "crc":
			crc, err := strconv.ParseUint(strings.TrimPrefix(val, "crc32:"), 16, 32)
			if err != nil {
				return nil, 0, &HeaderError{Reason: "invalid crc " + val, Seq: r.n}
			}
			c := uint32(crc)
			f.CRC = &c
		}
	}
	if size < 0 {
		return nil, 0, &HeaderError{Reason: "missing len", Seq: r.n}
	}
	return f, size, nil
}

// ReadAll reads every remaining frame.
func (r *FrameReader) ReadAll() ([]*Frame, error) {
	var frames []*Frame
	for {
		f, err := r.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
}
