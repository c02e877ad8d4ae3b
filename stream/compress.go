package stream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Options configures NewWriter.
type Options struct {
	Compression Compression

	// Level is the compression level: 1-22 for zstd (default 3), 1-9 for
	// lz4 (default fast). Zero selects the default.
	Level int
}

var lz4Levels = []lz4.CompressionLevel{
	lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
	lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

// NewWriter returns a writer that compresses into w. Close flushes the
// envelope but does not close w. With None it passes writes through.
func NewWriter(w io.Writer, opts Options) (io.WriteCloser, error) {
	switch opts.Compression {
	case None:
		return nopWriteCloser{w}, nil
	case Zstd:
		level := zstd.SpeedDefault
		if opts.Level > 0 {
			level = zstd.EncoderLevelFromZstd(opts.Level)
		}
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level))
		if err != nil {
			return nil, fmt.Errorf("stream: zstd writer: %w", err)
		}
		return enc, nil
	case LZ4:
		zw := lz4.NewWriter(w)
		if opts.Level > 0 {
			level := lz4Levels[min(opts.Level, len(lz4Levels)-1)]
			if err := zw.Apply(lz4.CompressionLevelOption(level)); err != nil {
				return nil, fmt.Errorf("stream: lz4 writer: %w", err)
			}
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("stream: unsupported compression %s", opts.Compression)
	}
}

// NewReader detects the envelope of r and returns a reader of the
// decompressed bytes along with the compression found.
func NewReader(r io.Reader) (io.ReadCloser, Compression, error) {
	br := bufio.NewReader(r)
	prefix, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, None, fmt.Errorf("stream: sniff: %w", err)
	}
	c := Sniff(prefix)
	switch c {
	case Zstd:
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, c, fmt.Errorf("stream: zstd reader: %w", err)
		}
		return dec.IOReadCloser(), c, nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(br)), c, nil
	default:
		return io.NopCloser(br), c, nil
	}
}

// Compress returns data wrapped in the given envelope.
func Compress(data []byte, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, opts)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("stream: compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("stream: compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress unwraps data whatever its envelope.
func Decompress(data []byte) ([]byte, Compression, error) {
	r, c, err := NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, c, err
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, c, fmt.Errorf("stream: decompress %s: %w", c, err)
	}
	return out, c, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
