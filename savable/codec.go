package savable

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/Neumenon/savable/doc"
)

// Strings used for non-finite floats. JSON has no literal for them.
const (
	nanText    = "NaN"
	posInfText = "Infinity"
	negInfText = "-Infinity"
)

// scalarCodec converts one native kind to and from a tree node.
type scalarCodec[T any] struct {
	kind   string
	encode func(T) *doc.Node
	decode func(*doc.Node) (T, error)
	equal  func(a, b T) bool
}

type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32
}

func intCodec[T integer](kind string) scalarCodec[T] {
	return scalarCodec[T]{
		kind:   kind,
		encode: func(v T) *doc.Node { return doc.Int(int64(v)) },
		decode: func(n *doc.Node) (T, error) {
			i, err := decodeInt64(n)
			if err != nil {
				return 0, err
			}
			v := T(i)
			if int64(v) != i {
				return 0, fmt.Errorf("%d overflows %s", i, kind)
			}
			return v, nil
		},
		equal: func(a, b T) bool { return a == b },
	}
}

var (
	uint8Codec   = intCodec[uint8]("byte")
	int16Codec   = intCodec[int16]("short")
	goIntCodec   = intCodec[int]("int")
	int32Codec   = intCodec[int32]("int32")
	int64Codec   = intCodec[int64]("long")
	float32Codec = scalarCodec[float32]{
		kind:   "float",
		encode: func(v float32) *doc.Node { return encodeFloat(float64(v), 32) },
		decode: func(n *doc.Node) (float32, error) {
			f, err := decodeFloat(n, 32)
			return float32(f), err
		},
		equal: func(a, b float32) bool { return a == b || (a != a && b != b) },
	}
	float64Codec = scalarCodec[float64]{
		kind:   "double",
		encode: func(v float64) *doc.Node { return encodeFloat(v, 64) },
		decode: func(n *doc.Node) (float64, error) { return decodeFloat(n, 64) },
		equal:  func(a, b float64) bool { return a == b || (math.IsNaN(a) && math.IsNaN(b)) },
	}
	boolCodec = scalarCodec[bool]{
		kind:   "bool",
		encode: doc.Bool,
		decode: decodeBool,
		equal:  func(a, b bool) bool { return a == b },
	}
	stringCodec = scalarCodec[string]{
		kind:   "string",
		encode: doc.Str,
		decode: func(n *doc.Node) (string, error) { return n.AsStr() },
		equal:  func(a, b string) bool { return a == b },
	}
	bytesCodec = scalarCodec[[]byte]{
		kind:   "bytes",
		encode: func(v []byte) *doc.Node { return doc.Str(base64.StdEncoding.EncodeToString(v)) },
		decode: decodeBytes,
		equal:  bytesEqual,
	}
)

func decodeInt64(n *doc.Node) (int64, error) {
	switch n.Kind() {
	case doc.KindInt:
		return n.AsInt()
	case doc.KindFloat:
		f, _ := n.AsFloat()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, fmt.Errorf("%v is not an integer", f)
		}
		return int64(f), nil
	case doc.KindStr:
		s, _ := n.AsStr()
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, err
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected integer, got %s", n.Kind())
	}
}

// encodeFloat writes finite values as numbers and the rest as text.
// bitSize 32 keeps the shortest decimal form of a float32.
func encodeFloat(f float64, bitSize int) *doc.Node {
	switch {
	case math.IsNaN(f):
		return doc.Str(nanText)
	case math.IsInf(f, 1):
		return doc.Str(posInfText)
	case math.IsInf(f, -1):
		return doc.Str(negInfText)
	}
	if bitSize == 32 {
		short, err := strconv.ParseFloat(strconv.FormatFloat(f, 'g', -1, 32), 64)
		if err == nil {
			f = short
		}
	}
	return doc.Float(f)
}

func decodeFloat(n *doc.Node, bitSize int) (float64, error) {
	var f float64
	switch n.Kind() {
	case doc.KindFloat:
		f, _ = n.AsFloat()
	case doc.KindInt:
		i, _ := n.AsInt()
		f = float64(i)
	case doc.KindStr:
		s, _ := n.AsStr()
		switch s = strings.TrimSpace(s); s {
		case nanText:
			return math.NaN(), nil
		case posInfText:
			return math.Inf(1), nil
		case negInfText:
			return math.Inf(-1), nil
		}
		v, err := strconv.ParseFloat(s, bitSize)
		if err != nil {
			return 0, err
		}
		return v, nil
	default:
		return 0, fmt.Errorf("expected number, got %s", n.Kind())
	}
	// The shortest text of MaxFloat32 reads back slightly above it, so
	// test what the conversion produces rather than the raw magnitude.
	if bitSize == 32 && !math.IsInf(f, 0) && math.IsInf(float64(float32(f)), 0) {
		return 0, fmt.Errorf("%v overflows float", f)
	}
	return f, nil
}

func decodeBool(n *doc.Node) (bool, error) {
	switch n.Kind() {
	case doc.KindBool:
		return n.AsBool()
	case doc.KindStr:
		s, _ := n.AsStr()
		return strconv.ParseBool(strings.TrimSpace(s))
	default:
		return false, fmt.Errorf("expected bool, got %s", n.Kind())
	}
}

// decodeBytes accepts base64 text, or a list of byte values.
func decodeBytes(n *doc.Node) ([]byte, error) {
	switch n.Kind() {
	case doc.KindStr:
		s, _ := n.AsStr()
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("base64: %w", err)
		}
		return b, nil
	case doc.KindList:
		items, _ := n.AsList()
		out := make([]byte, len(items))
		for i, item := range items {
			v, err := uint8Codec.decode(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected base64 string, got %s", n.Kind())
	}
}

func bytesEqual(a, b []byte) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return bytes.Equal(a, b)
}

// sliceEqual is slices.EqualFunc that also tells nil from empty.
func sliceEqual[T any](a, b []T, eq func(T, T) bool) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return slices.EqualFunc(a, b, eq)
}

func slice2DEqual[T any](a, b [][]T, eq func(T, T) bool) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return slices.EqualFunc(a, b, func(x, y []T) bool { return sliceEqual(x, y, eq) })
}

func encodeSlice[T any](c scalarCodec[T], v []T) *doc.Node {
	items := make([]*doc.Node, len(v))
	for i, x := range v {
		items[i] = c.encode(x)
	}
	return doc.List(items...)
}

// writeScalar adds name unless v equals def.
func writeScalar[T any](o *OutputCapsule, c scalarCodec[T], name string, v, def T) error {
	if c.equal(v, def) {
		return nil
	}
	return o.put(name, c.encode(v))
}

func writeArray[T any](o *OutputCapsule, c scalarCodec[T], name string, v, def []T) error {
	if v == nil || sliceEqual(v, def, c.equal) {
		return nil
	}
	return o.put(name, encodeSlice(c, v))
}

func writeArray2D[T any](o *OutputCapsule, c scalarCodec[T], name string, v, def [][]T) error {
	if v == nil || slice2DEqual(v, def, c.equal) {
		return nil
	}
	rows := make([]*doc.Node, len(v))
	for i, row := range v {
		if row == nil {
			rows[i] = doc.Null()
			continue
		}
		rows[i] = encodeSlice(c, row)
	}
	return o.put(name, doc.List(rows...))
}

func readScalar[T any](in *InputCapsule, c scalarCodec[T], name string, def T) (T, error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	v, err := c.decode(n)
	if err != nil {
		return def, malformed(name, in.cur.childPath(name), "%s: %w", c.kind, err)
	}
	return v, nil
}

// decodeSlice decodes the elements of a list-shaped node. Null elements
// become the zero value.
func decodeSlice[T any](in *InputCapsule, c scalarCodec[T], name string, n *doc.Node, indices ...int) ([]T, error) {
	items, err := in.elements(name, n, indices...)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(items))
	for i, item := range items {
		if item.IsNull() {
			continue
		}
		v, err := c.decode(item)
		if err != nil {
			path := in.cur.childPath(name, append(slices.Clone(indices), i)...)
			return nil, malformed(name, path, "%s: %w", c.kind, err)
		}
		out[i] = v
	}
	return out, nil
}

func readArray[T any](in *InputCapsule, c scalarCodec[T], name string, def []T) ([]T, error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	v, err := decodeSlice(in, c, name, n)
	if err != nil {
		return def, err
	}
	return v, nil
}

func readArray2D[T any](in *InputCapsule, c scalarCodec[T], name string, def [][]T) ([][]T, error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	rows, err := in.elements(name, n)
	if err != nil {
		return def, err
	}
	out := make([][]T, len(rows))
	for i, row := range rows {
		if row.IsNull() {
			continue
		}
		v, err := decodeSlice(in, c, name, row, i)
		if err != nil {
			return def, err
		}
		out[i] = v
	}
	return out, nil
}
