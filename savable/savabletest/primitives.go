package savabletest

import (
	"errors"

	"github.com/Neumenon/savable/savable"
)

// Primitives holds one field of every primitive kind, all with zero
// defaults, so a zero value encodes to an empty field mapping.
type Primitives struct {
	Byte      uint8
	Bytes     []byte
	Bytes2D   [][]byte
	Short     int16
	Shorts    []int16
	Shorts2D  [][]int16
	Int       int
	Ints      []int
	Ints2D    [][]int
	Int32     int32
	Int32s    []int32
	Int32s2D  [][]int32
	Long      int64
	Longs     []int64
	Longs2D   [][]int64
	Float     float32
	Floats    []float32
	Floats2D  [][]float32
	Double    float64
	Doubles   []float64
	Doubles2D [][]float64
	Bool      bool
	Bools     []bool
	Bools2D   [][]bool
	String    string
	Strings   []string
	Strings2D [][]string
}

func (p *Primitives) Write(out *savable.OutputCapsule) error {
	return errors.Join(
		out.WriteUint8(p.Byte, "byte", 0),
		out.WriteBytes(p.Bytes, "bytes", nil),
		out.WriteBytes2D(p.Bytes2D, "bytes2d", nil),
		out.WriteInt16(p.Short, "short", 0),
		out.WriteInt16Array(p.Shorts, "shorts", nil),
		out.WriteInt16Array2D(p.Shorts2D, "shorts2d", nil),
		out.WriteInt(p.Int, "int", 0),
		out.WriteIntArray(p.Ints, "ints", nil),
		out.WriteIntArray2D(p.Ints2D, "ints2d", nil),
		out.WriteInt32(p.Int32, "int32", 0),
		out.WriteInt32Array(p.Int32s, "int32s", nil),
		out.WriteInt32Array2D(p.Int32s2D, "int32s2d", nil),
		out.WriteInt64(p.Long, "long", 0),
		out.WriteInt64Array(p.Longs, "longs", nil),
		out.WriteInt64Array2D(p.Longs2D, "longs2d", nil),
		out.WriteFloat32(p.Float, "float", 0),
		out.WriteFloat32Array(p.Floats, "floats", nil),
		out.WriteFloat32Array2D(p.Floats2D, "floats2d", nil),
		out.WriteFloat64(p.Double, "double", 0),
		out.WriteFloat64Array(p.Doubles, "doubles", nil),
		out.WriteFloat64Array2D(p.Doubles2D, "doubles2d", nil),
		out.WriteBool(p.Bool, "bool", false),
		out.WriteBoolArray(p.Bools, "bools", nil),
		out.WriteBoolArray2D(p.Bools2D, "bools2d", nil),
		out.WriteString(p.String, "string", ""),
		out.WriteStringArray(p.Strings, "strings", nil),
		out.WriteStringArray2D(p.Strings2D, "strings2d", nil),
	)
}

func (p *Primitives) Read(in *savable.InputCapsule) error {
	var errs [27]error
	p.Byte, errs[0] = in.ReadUint8("byte", 0)
	p.Bytes, errs[1] = in.ReadBytes("bytes", nil)
	p.Bytes2D, errs[2] = in.ReadBytes2D("bytes2d", nil)
	p.Short, errs[3] = in.ReadInt16("short", 0)
	p.Shorts, errs[4] = in.ReadInt16Array("shorts", nil)
	p.Shorts2D, errs[5] = in.ReadInt16Array2D("shorts2d", nil)
	p.Int, errs[6] = in.ReadInt("int", 0)
	p.Ints, errs[7] = in.ReadIntArray("ints", nil)
	p.Ints2D, errs[8] = in.ReadIntArray2D("ints2d", nil)
	p.Int32, errs[9] = in.ReadInt32("int32", 0)
	p.Int32s, errs[10] = in.ReadInt32Array("int32s", nil)
	p.Int32s2D, errs[11] = in.ReadInt32Array2D("int32s2d", nil)
	p.Long, errs[12] = in.ReadInt64("long", 0)
	p.Longs, errs[13] = in.ReadInt64Array("longs", nil)
	p.Longs2D, errs[14] = in.ReadInt64Array2D("longs2d", nil)
	p.Float, errs[15] = in.ReadFloat32("float", 0)
	p.Floats, errs[16] = in.ReadFloat32Array("floats", nil)
	p.Floats2D, errs[17] = in.ReadFloat32Array2D("floats2d", nil)
	p.Double, errs[18] = in.ReadFloat64("double", 0)
	p.Doubles, errs[19] = in.ReadFloat64Array("doubles", nil)
	p.Doubles2D, errs[20] = in.ReadFloat64Array2D("doubles2d", nil)
	p.Bool, errs[21] = in.ReadBool("bool", false)
	p.Bools, errs[22] = in.ReadBoolArray("bools", nil)
	p.Bools2D, errs[23] = in.ReadBoolArray2D("bools2d", nil)
	p.String, errs[24] = in.ReadString("string", "")
	p.Strings, errs[25] = in.ReadStringArray("strings", nil)
	p.Strings2D, errs[26] = in.ReadStringArray2D("strings2d", nil)
	return errors.Join(errs[:]...)
}

// Faulty fails its own Read when Fail is stored as true.
type Faulty struct {
	Fail bool
	Note string
}

// ErrFaulty is returned by Faulty.Read.
var ErrFaulty = errors.New("faulty object refused to load")

func (f *Faulty) Write(out *savable.OutputCapsule) error {
	if err := out.WriteBool(f.Fail, "fail", false); err != nil {
		return err
	}
	return out.WriteString(f.Note, "note", "")
}

func (f *Faulty) Read(in *savable.InputCapsule) error {
	var err error
	if f.Fail, err = in.ReadBool("fail", false); err != nil {
		return err
	}
	if f.Fail {
		return ErrFaulty
	}
	f.Note, err = in.ReadString("note", "")
	return err
}

// Holder wraps arbitrary nested objects for container tests.
type Holder struct {
	One     savable.Savable
	Array   []savable.Savable
	Array2D [][]savable.Savable
	List    []savable.Savable
	Lists   [][]savable.Savable
	Lists2D [][][]savable.Savable
	ByName  map[string]savable.Savable
	ByID    map[int]savable.Savable
	Pairs   []savable.SavablePair
}

func (h *Holder) Write(out *savable.OutputCapsule) error {
	return errors.Join(
		out.WriteSavable(h.One, "one", nil),
		out.WriteSavableArray(h.Array, "array", nil),
		out.WriteSavableArray2D(h.Array2D, "array2d", nil),
		out.WriteSavableList(h.List, "list", nil),
		out.WriteSavableListArray(h.Lists, "lists", nil),
		out.WriteSavableListArray2D(h.Lists2D, "lists2d", nil),
		out.WriteStringSavableMap(h.ByName, "by_name", nil),
		out.WriteIntSavableMap(h.ByID, "by_id", nil),
		out.WriteSavableMap(h.Pairs, "pairs", nil),
	)
}

func (h *Holder) Read(in *savable.InputCapsule) error {
	var errs [9]error
	h.One, errs[0] = in.ReadSavable("one", nil)
	h.Array, errs[1] = in.ReadSavableArray("array", nil)
	h.Array2D, errs[2] = in.ReadSavableArray2D("array2d", nil)
	h.List, errs[3] = in.ReadSavableList("list", nil)
	h.Lists, errs[4] = in.ReadSavableListArray("lists", nil)
	h.Lists2D, errs[5] = in.ReadSavableListArray2D("lists2d", nil)
	h.ByName, errs[6] = in.ReadStringSavableMap("by_name", nil)
	h.ByID, errs[7] = in.ReadIntSavableMap("by_id", nil)
	h.Pairs, errs[8] = in.ReadSavableMap("pairs", nil)
	return errors.Join(errs[:]...)
}
