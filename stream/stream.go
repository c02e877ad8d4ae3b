// Package stream wraps encoded documents for transport and storage.
//
// It provides two layers, both optional:
//   - a compression envelope (zstd or lz4 frames) detected on read from
//     the leading magic bytes, so readers never need to be told which
//     compression a file uses
//   - a bundle framing that stores several documents back to back, each
//     behind a one-line text header carrying its length and CRC-32
//
// Neither layer looks inside the payload.
package stream

import (
	"bytes"
	"fmt"
	"strings"
)

// Compression selects the envelope around a document.
type Compression uint8

const (
	None Compression = iota
	Zstd
	LZ4
)

// String returns the stable name used by flags and bundle headers.
func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a compression name.
func ParseCompression(s string) (Compression, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "", "off":
		return None, true
	case "zstd", "zst":
		return Zstd, true
	case "lz4":
		return LZ4, true
	default:
		return None, false
	}
}

// Magic numbers of the supported envelopes.
var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Sniff identifies the envelope from the first bytes of a stream.
func Sniff(prefix []byte) Compression {
	switch {
	case bytes.HasPrefix(prefix, zstdMagic):
		return Zstd
	case bytes.HasPrefix(prefix, lz4Magic):
		return LZ4
	default:
		return None
	}
}
