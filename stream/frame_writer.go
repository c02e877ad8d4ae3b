package stream

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FrameWriter appends documents to a bundle.
type FrameWriter struct {
	w   io.Writer
	seq uint64
}

// NewFrameWriter returns a writer that emits frames to w with sequence
// numbers starting at zero.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes f. A zero Seq is replaced by the writer's counter, and
// the CRC is always computed from the payload.
func (w *FrameWriter) WriteFrame(f *Frame) error {
	seq := f.Seq
	if seq == 0 {
		seq = w.seq
	}
	w.seq = seq + 1

	var h strings.Builder
	h.WriteString(frameTag)
	h.WriteString("v=")
	h.WriteString(strconv.Itoa(int(FrameVersion)))
	h.WriteString(" seq=")
	h.WriteString(strconv.FormatUint(seq, 10))
	if f.Format != "" {
		h.WriteString(" format=")
		h.WriteString(f.Format)
	}
	if f.Compression != None {
		h.WriteString(" comp=")
		h.WriteString(f.Compression.String())
	}
	h.WriteString(" len=")
	h.WriteString(strconv.Itoa(len(f.Payload)))
	fmt.Fprintf(&h, " crc=%08x", Checksum(f.Payload))
	h.WriteString("}\n")

	if _, err := io.WriteString(w.w, h.String()); err != nil {
		return fmt.Errorf("stream: write header: %w", err)
	}
	if _, err := w.w.Write(f.Payload); err != nil {
		return fmt.Errorf("stream: write payload: %w", err)
	}
	if _, err := io.WriteString(w.w, "\n"); err != nil {
		return fmt.Errorf("stream: write trailer: %w", err)
	}
	return nil
}

// WriteDocument writes payload as the next frame.
func (w *FrameWriter) WriteDocument(format string, c Compression, payload []byte) error {
	return w.WriteFrame(&Frame{Format: format, Compression: c, Payload: payload})
}
