package doc

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Format identifies a wire representation of a document tree.
type Format uint8

const (
	// FormatAuto sniffs the representation from the first bytes (read only).
	FormatAuto Format = iota
	FormatJSON
	FormatYAML
	FormatCBOR
)

// String returns the stable format name.
func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatCBOR:
		return "cbor"
	default:
		return fmt.Sprintf("unknown(%d)", f)
	}
}

// FormatByName returns a format by its stable name.
func FormatByName(name string) (Format, bool) {
	switch strings.ToLower(name) {
	case "auto", "":
		return FormatAuto, true
	case "json", "jsonc":
		return FormatJSON, true
	case "yaml", "yml":
		return FormatYAML, true
	case "cbor":
		return FormatCBOR, true
	default:
		return FormatAuto, false
	}
}

// Sniff guesses the format of data.
//
// CBOR top-level arrays and maps start with a byte >= 0x80, which never
// begins a UTF-8 JSON or YAML document. JSON starts with '{' or '[' (or a
// comment in JSONC). Anything else is treated as YAML.
func Sniff(data []byte) Format {
	if len(data) > 0 && data[0] >= 0x80 && !bytes.HasPrefix(data, []byte("\xef\xbb\xbf")) {
		return FormatCBOR
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), " \t\r\n")
	if len(trimmed) == 0 {
		return FormatJSON
	}
	switch trimmed[0] {
	case '{', '[':
		return FormatJSON
	case '/':
		if bytes.HasPrefix(trimmed, []byte("//")) || bytes.HasPrefix(trimmed, []byte("/*")) {
			return FormatJSON
		}
	}
	return FormatYAML
}

// MaxDepth bounds the nesting of lists and maps a parser accepts.
const MaxDepth = 10000

// ParseOptions configures Parse.
type ParseOptions struct {
	// Format of the input; FormatAuto sniffs.
	Format Format

	// Lenient accepts JSON comments and trailing commas.
	Lenient bool
}

// Parse parses a whole document in the given representation.
func Parse(data []byte, opts ParseOptions) (*Node, error) {
	format := opts.Format
	if format == FormatAuto {
		format = Sniff(data)
	}
	switch format {
	case FormatJSON:
		data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
		if opts.Lenient {
			return ParseJSONC(data)
		}
		return ParseJSON(data)
	case FormatYAML:
		return ParseYAML(data)
	case FormatCBOR:
		return ParseCBOR(data)
	default:
		return nil, fmt.Errorf("doc: unsupported format %s", format)
	}
}

// ParseReader reads r to the end and parses it.
func ParseReader(r io.Reader, opts ParseOptions) (*Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("doc: read: %w", err)
	}
	return Parse(data, opts)
}

// Write writes n to w in the given representation.
// jsonOpts only applies to FormatJSON.
func Write(w io.Writer, n *Node, format Format, jsonOpts JSONOptions) error {
	switch format {
	case FormatJSON, FormatAuto:
		return WriteJSON(w, n, jsonOpts)
	case FormatYAML:
		return WriteYAML(w, n)
	case FormatCBOR:
		return WriteCBOR(w, n)
	default:
		return fmt.Errorf("doc: unsupported format %s", format)
	}
}
