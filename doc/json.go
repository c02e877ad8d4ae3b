package doc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/tidwall/jsonc"
)

// ============================================================
// JSON Parsing
// ============================================================
//
// The parser walks the token stream instead of unmarshalling into
// map[string]any so that map key order survives the round trip and
// integers keep their full int64 range.

// ParseJSON parses a JSON document into a tree.
func ParseJSON(data []byte) (*Node, error) {
	return ParseJSONReader(bytes.NewReader(data))
}

// ParseJSONC parses JSON with comments and trailing commas.
func ParseJSONC(data []byte) (*Node, error) {
	return ParseJSON(jsonc.ToJSON(data))
}

// ParseJSONReader parses exactly one JSON document from r.
func ParseJSONReader(r io.Reader) (*Node, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	n, err := parseJSONValue(dec, 0)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("doc: JSON parse error: trailing data after document")
		}
		return nil, fmt.Errorf("doc: JSON parse error: %w", err)
	}
	return n, nil
}

func parseJSONValue(dec *json.Decoder, depth int) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("doc: JSON parse error: unexpected end of input")
		}
		return nil, fmt.Errorf("doc: JSON parse error: %w", err)
	}
	return parseJSONToken(dec, tok, depth)
}

func parseJSONToken(dec *json.Decoder, tok json.Token, depth int) (*Node, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return Str(t), nil
	case json.Number:
		return parseJSONNumber(t.String())
	case json.Delim:
		if depth >= MaxDepth {
			return nil, fmt.Errorf("doc: JSON parse error: nesting exceeds %d levels", MaxDepth)
		}
		switch t {
		case '[':
			list := List()
			for dec.More() {
				elem, err := parseJSONValue(dec, depth+1)
				if err != nil {
					return nil, inElement(len(list.listVal), err)
				}
				list.listVal = append(list.listVal, elem)
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("doc: JSON parse error: %w", err)
			}
			return list, nil
		case '{':
			obj := Map()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("doc: JSON parse error: %w", err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("doc: JSON parse error: object key is %T", keyTok)
				}
				val, err := parseJSONValue(dec, depth+1)
				if err != nil {
					return nil, inField(key, err)
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("doc: JSON parse error: %w", err)
			}
			return obj, nil
		}
	}
	return nil, fmt.Errorf("doc: unsupported JSON token: %v", tok)
}

func parseJSONNumber(s string) (*Node, error) {
	if !strings.ContainsAny(s, ".eE") {
		i, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return Int(i), nil
		}
		// Out of int64 range: keep the magnitude as a float.
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("doc: invalid number %q: %w", s, err)
	}
	return Float(f), nil
}

// ============================================================
// JSON Emission
// ============================================================

// JSONOptions configures the JSON emitter.
type JSONOptions struct {
	// Pretty adds newlines and indentation.
	Pretty bool

	// Indent string for pretty mode (default: "  ")
	Indent string

	// SortKeys emits map keys in lexical order instead of insertion order.
	SortKeys bool
}

// DefaultJSONOptions returns compact, insertion-ordered output.
func DefaultJSONOptions() JSONOptions {
	return JSONOptions{Indent: "  "}
}

// PrettyJSONOptions returns indented, insertion-ordered output.
func PrettyJSONOptions() JSONOptions {
	return JSONOptions{Pretty: true, Indent: "  "}
}

// MarshalJSON converts a tree to compact JSON.
func MarshalJSON(n *Node) ([]byte, error) {
	return MarshalJSONWithOptions(n, DefaultJSONOptions())
}

// MarshalJSONWithOptions converts a tree to JSON with custom options.
func MarshalJSONWithOptions(n *Node, opts JSONOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, n, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON writes a tree as JSON to w.
func WriteJSON(w io.Writer, n *Node, opts JSONOptions) error {
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	e := &jsonEmitter{opts: opts}
	if err := e.emit(n, 0); err != nil {
		return err
	}
	if opts.Pretty {
		e.buf.WriteByte('\n')
	}
	_, err := w.Write(e.buf.Bytes())
	return err
}

type jsonEmitter struct {
	buf  bytes.Buffer
	opts JSONOptions
}

func (e *jsonEmitter) emit(n *Node, depth int) error {
	switch n.Kind() {
	case KindNull:
		e.buf.WriteString("null")
	case KindBool:
		if n.boolVal {
			e.buf.WriteString("true")
		} else {
			e.buf.WriteString("false")
		}
	case KindInt:
		e.buf.WriteString(strconv.FormatInt(n.intVal, 10))
	case KindFloat:
		s, err := jsonFloat(n.floatVal)
		if err != nil {
			return err
		}
		e.buf.WriteString(s)
	case KindStr:
		if err := e.emitString(n.strVal); err != nil {
			return err
		}
	case KindList:
		return e.emitList(n, depth)
	case KindMap:
		return e.emitMap(n, depth)
	default:
		return fmt.Errorf("doc: unsupported node kind: %s", n.Kind())
	}
	return nil
}

// jsonFloat formats a float so that it reads back as a float node.
func jsonFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("doc: NaN/Infinity not allowed in JSON")
	}
	s := canonFloat(f)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s, nil
}

func (e *jsonEmitter) emitString(s string) error {
	quoted, err := gojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("doc: quote string: %w", err)
	}
	e.buf.Write(quoted)
	return nil
}

func (e *jsonEmitter) emitList(n *Node, depth int) error {
	if len(n.listVal) == 0 {
		e.buf.WriteString("[]")
		return nil
	}
	e.buf.WriteByte('[')
	for i, elem := range n.listVal {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.newline(depth + 1)
		if err := e.emit(elem, depth+1); err != nil {
			return err
		}
	}
	e.newline(depth)
	e.buf.WriteByte(']')
	return nil
}

func (e *jsonEmitter) emitMap(n *Node, depth int) error {
	if len(n.mapVal) == 0 {
		e.buf.WriteString("{}")
		return nil
	}
	entries := n.mapVal
	if e.opts.SortKeys {
		entries = sortEntries(entries)
	}
	e.buf.WriteByte('{')
	for i, entry := range entries {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.newline(depth + 1)
		if err := e.emitString(entry.Key); err != nil {
			return err
		}
		e.buf.WriteByte(':')
		if e.opts.Pretty {
			e.buf.WriteByte(' ')
		}
		if err := e.emit(entry.Value, depth+1); err != nil {
			return fmt.Errorf("%s: %w", entry.Key, err)
		}
	}
	e.newline(depth)
	e.buf.WriteByte('}')
	return nil
}

func (e *jsonEmitter) newline(depth int) {
	if !e.opts.Pretty {
		return
	}
	e.buf.WriteByte('\n')
	for i := 0; i < depth; i++ {
		e.buf.WriteString(e.opts.Indent)
	}
}
