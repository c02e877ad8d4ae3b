package savable

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"

	"github.com/Neumenon/savable/doc"
)

// InputCapsule is the read side of one decode. Objects receive it in Read
// and pull their fields from the mapping currently in scope.
//
// Every ReadX returns the caller's default when the field is absent or
// null. A present field that cannot be decoded returns the default and an
// error wrapping ErrMalformedField.
type InputCapsule struct {
	registry      *Registry
	cur           *Cursor
	formatVersion int
	assets        any
	strict        bool
	logger        *slog.Logger
	problems      []error
}

// FormatVersion returns the document's format_version, 0 when absent.
func (in *InputCapsule) FormatVersion() int { return in.formatVersion }

// Assets returns the side channel handed to the importer, untouched.
func (in *InputCapsule) Assets() any { return in.assets }

// Path returns the location of the object being read.
func (in *InputCapsule) Path() string { return in.cur.Path() }

// Cursor exposes the traversal state, mainly for tests and diagnostics.
func (in *InputCapsule) Cursor() *Cursor { return in.cur }

// Problems returns the nested-object failures recovered so far.
func (in *InputCapsule) Problems() []error { return slices.Clone(in.problems) }

// Has reports whether the current object carries a non-null field name.
func (in *InputCapsule) Has(name string) bool {
	_, ok := in.field(name)
	return ok
}

// SavableVersion returns the layout version recorded for the hierarchy
// level ancestorID of the object being read. It is 0 when the object
// recorded no versions or ancestorID is not in its hierarchy.
func (in *InputCapsule) SavableVersion(ancestorID string) int {
	f := in.cur.top()
	if f.versions == nil || f.subject == nil {
		return 0
	}
	idx := slices.Index(hierarchyOf(f.subject, f.id), ancestorID)
	if idx < 0 || idx >= len(f.versions) {
		return 0
	}
	return f.versions[idx]
}

func (in *InputCapsule) field(name string) (*doc.Node, bool) {
	n, ok := in.cur.Current().Lookup(name)
	if !ok || n.IsNull() {
		return nil, false
	}
	return n, true
}

// elements returns the items of a list-shaped field. A sized container
// {"size": N, "data": [...]} is accepted in place of the list.
func (in *InputCapsule) elements(name string, n *doc.Node, indices ...int) ([]*doc.Node, error) {
	path := in.cur.childPath(name, indices...)
	switch n.Kind() {
	case doc.KindList:
		items, _ := n.AsList()
		return items, nil
	case doc.KindMap:
		data, ok := n.Lookup("data")
		if !ok || !data.IsList() {
			return nil, malformed(name, path, "sized container without data list")
		}
		items, _ := data.AsList()
		if err := checkSize(name, path, n, len(items)); err != nil {
			return nil, err
		}
		return items, nil
	default:
		return nil, malformed(name, path, "expected list, got %s", n.Kind())
	}
}

func checkSize(name, path string, container *doc.Node, got int) error {
	size, ok := container.Lookup("size")
	if !ok || size.IsNull() {
		return nil
	}
	want, err := decodeInt64(size)
	if err != nil {
		return malformed(name, path, "size: %w", err)
	}
	if want != int64(got) {
		return fieldErr(ErrWrongContainerSize, name, path,
			fmt.Errorf("size says %d, data contains %d", want, got))
	}
	return nil
}

// ReadUint8 reads a byte written as a number or numeric string.
func (in *InputCapsule) ReadUint8(name string, def uint8) (uint8, error) {
	return readScalar(in, uint8Codec, name, def)
}

// ReadBytes reads a base64 string. A list of byte values is also accepted.
func (in *InputCapsule) ReadBytes(name string, def []byte) ([]byte, error) {
	return readScalar(in, bytesCodec, name, def)
}

func (in *InputCapsule) ReadBytes2D(name string, def [][]byte) ([][]byte, error) {
	return readArray(in, bytesCodec, name, def)
}

func (in *InputCapsule) ReadInt16(name string, def int16) (int16, error) {
	return readScalar(in, int16Codec, name, def)
}

func (in *InputCapsule) ReadInt16Array(name string, def []int16) ([]int16, error) {
	return readArray(in, int16Codec, name, def)
}

func (in *InputCapsule) ReadInt16Array2D(name string, def [][]int16) ([][]int16, error) {
	return readArray2D(in, int16Codec, name, def)
}

func (in *InputCapsule) ReadInt(name string, def int) (int, error) {
	return readScalar(in, goIntCodec, name, def)
}

func (in *InputCapsule) ReadIntArray(name string, def []int) ([]int, error) {
	return readArray(in, goIntCodec, name, def)
}

func (in *InputCapsule) ReadIntArray2D(name string, def [][]int) ([][]int, error) {
	return readArray2D(in, goIntCodec, name, def)
}

// ReadInt32 rejects values outside the 32-bit range.
func (in *InputCapsule) ReadInt32(name string, def int32) (int32, error) {
	return readScalar(in, int32Codec, name, def)
}

func (in *InputCapsule) ReadInt32Array(name string, def []int32) ([]int32, error) {
	return readArray(in, int32Codec, name, def)
}

func (in *InputCapsule) ReadInt32Array2D(name string, def [][]int32) ([][]int32, error) {
	return readArray2D(in, int32Codec, name, def)
}

func (in *InputCapsule) ReadInt64(name string, def int64) (int64, error) {
	return readScalar(in, int64Codec, name, def)
}

func (in *InputCapsule) ReadInt64Array(name string, def []int64) ([]int64, error) {
	return readArray(in, int64Codec, name, def)
}

func (in *InputCapsule) ReadInt64Array2D(name string, def [][]int64) ([][]int64, error) {
	return readArray2D(in, int64Codec, name, def)
}

// ReadFloat32 accepts numbers, numeric strings and "NaN", "Infinity",
// "-Infinity".
func (in *InputCapsule) ReadFloat32(name string, def float32) (float32, error) {
	return readScalar(in, float32Codec, name, def)
}

func (in *InputCapsule) ReadFloat32Array(name string, def []float32) ([]float32, error) {
	return readArray(in, float32Codec, name, def)
}

func (in *InputCapsule) ReadFloat32Array2D(name string, def [][]float32) ([][]float32, error) {
	return readArray2D(in, float32Codec, name, def)
}

func (in *InputCapsule) ReadFloat64(name string, def float64) (float64, error) {
	return readScalar(in, float64Codec, name, def)
}

func (in *InputCapsule) ReadFloat64Array(name string, def []float64) ([]float64, error) {
	return readArray(in, float64Codec, name, def)
}

func (in *InputCapsule) ReadFloat64Array2D(name string, def [][]float64) ([][]float64, error) {
	return readArray2D(in, float64Codec, name, def)
}

func (in *InputCapsule) ReadBool(name string, def bool) (bool, error) {
	return readScalar(in, boolCodec, name, def)
}

func (in *InputCapsule) ReadBoolArray(name string, def []bool) ([]bool, error) {
	return readArray(in, boolCodec, name, def)
}

func (in *InputCapsule) ReadBoolArray2D(name string, def [][]bool) ([][]bool, error) {
	return readArray2D(in, boolCodec, name, def)
}

func (in *InputCapsule) ReadString(name string, def string) (string, error) {
	return readScalar(in, stringCodec, name, def)
}

func (in *InputCapsule) ReadStringArray(name string, def []string) ([]string, error) {
	return readArray(in, stringCodec, name, def)
}

func (in *InputCapsule) ReadStringArray2D(name string, def [][]string) ([][]string, error) {
	return readArray2D(in, stringCodec, name, def)
}

// bitIndices decodes a list of non-negative bit indices.
func (in *InputCapsule) bitIndices(name string, n *doc.Node) ([]uint64, error) {
	items, err := in.elements(name, n)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(items))
	for i, item := range items {
		v, err := decodeInt64(item)
		if err == nil && v < 0 {
			err = fmt.Errorf("negative bit index %d", v)
		}
		if err != nil {
			return nil, malformed(name, in.cur.childPath(name, i), "bit index: %w", err)
		}
		out[i] = uint64(v)
	}
	return out, nil
}

// MaxBitSetIndex is the largest index ReadBitSet accepts. Bit set storage
// grows with the largest index, so sparse sets with high indices should be
// read with ReadBitmap instead.
const MaxBitSetIndex = 1<<24 - 1

// ReadBitSet returns a bit set with exactly the listed bits set.
func (in *InputCapsule) ReadBitSet(name string, def *bitset.BitSet) (*bitset.BitSet, error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	indices, err := in.bitIndices(name, n)
	if err != nil {
		return def, err
	}
	for i, v := range indices {
		if v > MaxBitSetIndex {
			return def, malformed(name, in.cur.childPath(name, i), "bit index %d exceeds %d", v, MaxBitSetIndex)
		}
	}
	var length uint
	if len(indices) > 0 {
		length = uint(slices.Max(indices)) + 1
	}
	bs := bitset.New(length)
	for _, i := range indices {
		bs.Set(uint(i))
	}
	return bs, nil
}

// ReadBitmap reads the WriteBitSet shape into a roaring bitmap.
func (in *InputCapsule) ReadBitmap(name string, def *roaring.Bitmap) (*roaring.Bitmap, error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	indices, err := in.bitIndices(name, n)
	if err != nil {
		return def, err
	}
	bm := roaring.New()
	for _, i := range indices {
		if i > math.MaxUint32 {
			return def, malformed(name, in.cur.childPath(name), "bit index %d overflows bitmap", i)
		}
		bm.Add(uint32(i))
	}
	return bm, nil
}

// ReadTime reads an RFC 3339 timestamp.
func (in *InputCapsule) ReadTime(name string, def time.Time) (time.Time, error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	s, err := n.AsStr()
	if err != nil {
		return def, malformed(name, in.cur.childPath(name), "time: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return def, malformed(name, in.cur.childPath(name), "time: %w", err)
	}
	return t, nil
}

// ReadEnum resolves the stored name against values by their String form.
// A name matching none of them returns ErrUnknownEnumValue.
func ReadEnum[E fmt.Stringer](in *InputCapsule, name string, def E, values ...E) (E, error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	path := in.cur.childPath(name)
	s, err := n.AsStr()
	if err != nil {
		return def, malformed(name, path, "enum: %w", err)
	}
	for _, v := range values {
		if v.String() == s {
			return v, nil
		}
	}
	return def, fieldErr(ErrUnknownEnumValue, name, path, fmt.Errorf("%q", s))
}
