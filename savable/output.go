package savable

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"

	"github.com/Neumenon/savable/doc"
)

// OutputCapsule is the write side of one encode. Objects receive it in
// Write and add their fields to the mapping currently in scope.
//
// A capsule belongs to a single traversal and must not be shared.
type OutputCapsule struct {
	registry *Registry
	cur      *Cursor
	logger   *slog.Logger
	visiting map[uintptr]struct{}
}

func newOutputCapsule(reg *Registry, root *doc.Node, maxDepth int, logger *slog.Logger) *OutputCapsule {
	return &OutputCapsule{
		registry: reg,
		cur:      newCursor(root, maxDepth),
		logger:   logger,
		visiting: make(map[uintptr]struct{}),
	}
}

// Path returns the location of the object being written.
func (o *OutputCapsule) Path() string { return o.cur.Path() }

// Cursor exposes the traversal state, mainly for tests and diagnostics.
func (o *OutputCapsule) Cursor() *Cursor { return o.cur }

func (o *OutputCapsule) put(name string, n *doc.Node) error {
	if o.cur.State() != InObject {
		return fmt.Errorf("savable: write %q in state %s: %w", name, o.cur.State(), ErrCursor)
	}
	path := o.cur.childPath(name)
	if name == "" {
		return fieldErr(ErrMalformedField, name, path, errors.New("empty field name"))
	}
	if isReserved(name, o.cur.Depth() == 0) {
		return fieldErr(ErrReservedField, name, path, nil)
	}
	o.cur.Current().Set(name, n)
	return nil
}

// WriteUint8 writes a single byte as a number.
func (o *OutputCapsule) WriteUint8(v uint8, name string, def uint8) error {
	return writeScalar(o, uint8Codec, name, v, def)
}

// WriteBytes writes a byte slice as one base64 string.
func (o *OutputCapsule) WriteBytes(v []byte, name string, def []byte) error {
	if v == nil || bytesEqual(v, def) {
		return nil
	}
	return o.put(name, bytesCodec.encode(v))
}

// WriteBytes2D writes a list of base64 strings.
func (o *OutputCapsule) WriteBytes2D(v [][]byte, name string, def [][]byte) error {
	return writeArray(o, bytesCodec, name, v, def)
}

func (o *OutputCapsule) WriteInt16(v int16, name string, def int16) error {
	return writeScalar(o, int16Codec, name, v, def)
}

func (o *OutputCapsule) WriteInt16Array(v []int16, name string, def []int16) error {
	return writeArray(o, int16Codec, name, v, def)
}

func (o *OutputCapsule) WriteInt16Array2D(v [][]int16, name string, def [][]int16) error {
	return writeArray2D(o, int16Codec, name, v, def)
}

func (o *OutputCapsule) WriteInt(v int, name string, def int) error {
	return writeScalar(o, goIntCodec, name, v, def)
}

func (o *OutputCapsule) WriteIntArray(v []int, name string, def []int) error {
	return writeArray(o, goIntCodec, name, v, def)
}

func (o *OutputCapsule) WriteIntArray2D(v [][]int, name string, def [][]int) error {
	return writeArray2D(o, goIntCodec, name, v, def)
}

func (o *OutputCapsule) WriteInt32(v int32, name string, def int32) error {
	return writeScalar(o, int32Codec, name, v, def)
}

func (o *OutputCapsule) WriteInt32Array(v []int32, name string, def []int32) error {
	return writeArray(o, int32Codec, name, v, def)
}

func (o *OutputCapsule) WriteInt32Array2D(v [][]int32, name string, def [][]int32) error {
	return writeArray2D(o, int32Codec, name, v, def)
}

func (o *OutputCapsule) WriteInt64(v int64, name string, def int64) error {
	return writeScalar(o, int64Codec, name, v, def)
}

func (o *OutputCapsule) WriteInt64Array(v []int64, name string, def []int64) error {
	return writeArray(o, int64Codec, name, v, def)
}

func (o *OutputCapsule) WriteInt64Array2D(v [][]int64, name string, def [][]int64) error {
	return writeArray2D(o, int64Codec, name, v, def)
}

// WriteFloat32 writes v in its shortest decimal form. NaN and the
// infinities are written as the strings "NaN", "Infinity", "-Infinity".
func (o *OutputCapsule) WriteFloat32(v float32, name string, def float32) error {
	return writeScalar(o, float32Codec, name, v, def)
}

func (o *OutputCapsule) WriteFloat32Array(v []float32, name string, def []float32) error {
	return writeArray(o, float32Codec, name, v, def)
}

func (o *OutputCapsule) WriteFloat32Array2D(v [][]float32, name string, def [][]float32) error {
	return writeArray2D(o, float32Codec, name, v, def)
}

// WriteFloat64 follows the same non-finite rules as WriteFloat32.
func (o *OutputCapsule) WriteFloat64(v float64, name string, def float64) error {
	return writeScalar(o, float64Codec, name, v, def)
}

func (o *OutputCapsule) WriteFloat64Array(v []float64, name string, def []float64) error {
	return writeArray(o, float64Codec, name, v, def)
}

func (o *OutputCapsule) WriteFloat64Array2D(v [][]float64, name string, def [][]float64) error {
	return writeArray2D(o, float64Codec, name, v, def)
}

func (o *OutputCapsule) WriteBool(v bool, name string, def bool) error {
	return writeScalar(o, boolCodec, name, v, def)
}

func (o *OutputCapsule) WriteBoolArray(v []bool, name string, def []bool) error {
	return writeArray(o, boolCodec, name, v, def)
}

func (o *OutputCapsule) WriteBoolArray2D(v [][]bool, name string, def [][]bool) error {
	return writeArray2D(o, boolCodec, name, v, def)
}

func (o *OutputCapsule) WriteString(v string, name string, def string) error {
	return writeScalar(o, stringCodec, name, v, def)
}

func (o *OutputCapsule) WriteStringArray(v []string, name string, def []string) error {
	return writeArray(o, stringCodec, name, v, def)
}

func (o *OutputCapsule) WriteStringArray2D(v [][]string, name string, def [][]string) error {
	return writeArray2D(o, stringCodec, name, v, def)
}

// WriteBitSet writes the ascending indices of the set bits.
func (o *OutputCapsule) WriteBitSet(v *bitset.BitSet, name string, def *bitset.BitSet) error {
	if v == nil || bitSetEqual(v, def) {
		return nil
	}
	items := make([]*doc.Node, 0, v.Count())
	for i, ok := v.NextSet(0); ok; i, ok = v.NextSet(i + 1) {
		items = append(items, doc.Int(int64(i)))
	}
	return o.put(name, doc.List(items...))
}

// WriteBitmap writes a roaring bitmap in the same shape as WriteBitSet.
func (o *OutputCapsule) WriteBitmap(v *roaring.Bitmap, name string, def *roaring.Bitmap) error {
	if v == nil || (def != nil && v.Equals(def)) {
		return nil
	}
	items := make([]*doc.Node, 0, v.GetCardinality())
	it := v.Iterator()
	for it.HasNext() {
		items = append(items, doc.Int(int64(it.Next())))
	}
	return o.put(name, doc.List(items...))
}

// WriteEnum writes the symbolic name of v.
func (o *OutputCapsule) WriteEnum(v fmt.Stringer, name string, def fmt.Stringer) error {
	if isNil(v) {
		return nil
	}
	s := v.String()
	if !isNil(def) && def.String() == s {
		return nil
	}
	return o.put(name, doc.Str(s))
}

// WriteTime writes v as RFC 3339 text with nanoseconds.
func (o *OutputCapsule) WriteTime(v time.Time, name string, def time.Time) error {
	if v.Equal(def) {
		return nil
	}
	return o.put(name, doc.Str(v.Format(time.RFC3339Nano)))
}

func bitSetEqual(a, b *bitset.BitSet) bool {
	if a == nil || b == nil {
		return a == b
	}
	n := a.Count()
	return n == b.Count() && a.IntersectionCardinality(b) == n
}
