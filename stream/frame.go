package stream

import (
	"fmt"
	"hash/crc32"
)

// FrameVersion is the bundle header version.
const FrameVersion uint8 = 1

// frameTag opens every bundle header line.
const frameTag = "@savable{"

// MaxPayloadSize is the default largest payload a FrameReader accepts.
const MaxPayloadSize = 256 * 1024 * 1024

// Frame is one document in a bundle.
//
// The header is a single text line followed by exactly Len payload bytes
// and a newline:
//
//	@savable{v=1 seq=0 format=json comp=zstd len=123 crc=1a2b3c4d}
//	<payload>
type Frame struct {
	Version     uint8
	Seq         uint64
	Format      string      // payload document format name, e.g. "json"
	Compression Compression // envelope of the payload bytes
	Payload     []byte
	CRC         *uint32 // nil when the header carries none
}

// IsBundle reports whether data starts with a bundle header.
func IsBundle(prefix []byte) bool {
	return len(prefix) >= len(frameTag) && string(prefix[:len(frameTag)]) == frameTag
}

var crcTable = crc32.MakeTable(crc32.IEEE)

// Checksum returns the CRC-32 (IEEE) of data.
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, crcTable)
}

// HeaderError reports an unparsable bundle header.
type HeaderError struct {
	Reason string
	Seq    int // index of the frame in the bundle
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("stream: frame %d: %s", e.Seq, e.Reason)
}

// ChecksumError is returned when a payload does not match its header CRC.
type ChecksumError struct {
	Seq      uint64
	Expected uint32
	Got      uint32
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("stream: frame %d: crc mismatch: expected %08x, got %08x", e.Seq, e.Expected, e.Got)
}
