package savable

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Neumenon/savable/buffer"
	"github.com/Neumenon/savable/doc"
)

// bufferValues reads [0, limit) without disturbing the caller's position.
// Fewer readable values than the limit means the backing storage no longer
// covers it.
func bufferValues[T buffer.Number](b *buffer.Buffer[T]) ([]T, error) {
	pos := b.Position()
	defer func() { _ = b.SetPosition(pos) }()

	b.Rewind()
	out := make([]T, 0, b.Limit())
	for b.HasRemaining() {
		v, err := b.Get()
		if err != nil {
			break
		}
		out = append(out, v)
	}
	if len(out) != b.Limit() {
		return nil, fmt.Errorf("%d values readable, limit is %d", len(out), b.Limit())
	}
	return out, nil
}

func encodeBuffer[T buffer.Number](c scalarCodec[T], name, path string, b *buffer.Buffer[T]) (*doc.Node, error) {
	values, err := bufferValues(b)
	if err != nil {
		return nil, fieldErr(ErrBufferConsistency, name, path, err)
	}
	return encodeSlice(c, values), nil
}

func writeBuffer[T buffer.Number](o *OutputCapsule, c scalarCodec[T], name string, v, def *buffer.Buffer[T]) error {
	if v == nil {
		return nil
	}
	n, err := encodeBuffer(c, name, o.cur.childPath(name), v)
	if err != nil {
		return err
	}
	if def != nil && buffer.Equal(v, def) {
		return nil
	}
	return o.put(name, n)
}

func writeBufferList[T buffer.Number](o *OutputCapsule, c scalarCodec[T], name string, v, def []*buffer.Buffer[T]) error {
	if len(v) == 0 || (def != nil && slices.EqualFunc(v, def, buffer.Equal[T])) {
		return nil
	}
	items := make([]*doc.Node, len(v))
	for i, b := range v {
		if b == nil {
			items[i] = doc.Null()
			continue
		}
		n, err := encodeBuffer(c, name, o.cur.childPath(name, i), b)
		if err != nil {
			return err
		}
		items[i] = n
	}
	return o.put(name, doc.List(items...))
}

// decodeBuffer accepts a number list, a sized container, or the older
// {"size": N, "data": "v v v"} text form.
func decodeBuffer[T buffer.Number](in *InputCapsule, c scalarCodec[T], name string, n *doc.Node, indices ...int) (*buffer.Buffer[T], error) {
	if data, ok := n.Lookup("data"); ok && data.Kind() == doc.KindStr {
		path := in.cur.childPath(name, indices...)
		text, _ := data.AsStr()
		fields := strings.Fields(text)
		if err := checkSize(name, path, n, len(fields)); err != nil {
			return nil, err
		}
		values := make([]T, len(fields))
		for i, f := range fields {
			v, err := c.decode(doc.Str(f))
			if err != nil {
				return nil, malformed(name, path, "%s: element %d: %w", c.kind, i, err)
			}
			values[i] = v
		}
		return buffer.Of(values...), nil
	}
	values, err := decodeSlice(in, c, name, n, indices...)
	if err != nil {
		return nil, err
	}
	return buffer.Of(values...), nil
}

func readBuffer[T buffer.Number](in *InputCapsule, c scalarCodec[T], name string, def *buffer.Buffer[T]) (*buffer.Buffer[T], error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	b, err := decodeBuffer(in, c, name, n)
	if err != nil {
		return def, err
	}
	return b, nil
}

func readBufferList[T buffer.Number](in *InputCapsule, c scalarCodec[T], name string, def []*buffer.Buffer[T]) ([]*buffer.Buffer[T], error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	items, err := in.elements(name, n)
	if err != nil {
		return def, err
	}
	out := make([]*buffer.Buffer[T], len(items))
	for i, item := range items {
		if item.IsNull() {
			continue
		}
		b, err := decodeBuffer(in, c, name, item, i)
		if err != nil {
			return def, err
		}
		out[i] = b
	}
	return out, nil
}

// WriteFloatBuffer writes the elements in [0, limit) as a number list.
// The buffer's position is left unchanged. A limit beyond the backing
// storage fails with ErrBufferConsistency.
func (o *OutputCapsule) WriteFloatBuffer(v *buffer.Floats, name string, def *buffer.Floats) error {
	return writeBuffer(o, float32Codec, name, v, def)
}

func (o *OutputCapsule) WriteIntBuffer(v *buffer.Ints, name string, def *buffer.Ints) error {
	return writeBuffer(o, int32Codec, name, v, def)
}

func (o *OutputCapsule) WriteShortBuffer(v *buffer.Shorts, name string, def *buffer.Shorts) error {
	return writeBuffer(o, int16Codec, name, v, def)
}

func (o *OutputCapsule) WriteByteBuffer(v *buffer.Bytes, name string, def *buffer.Bytes) error {
	return writeBuffer(o, uint8Codec, name, v, def)
}

// WriteFloatBufferList writes one number list per buffer; nil buffers
// become null.
func (o *OutputCapsule) WriteFloatBufferList(v []*buffer.Floats, name string, def []*buffer.Floats) error {
	return writeBufferList(o, float32Codec, name, v, def)
}

func (o *OutputCapsule) WriteByteBufferList(v []*buffer.Bytes, name string, def []*buffer.Bytes) error {
	return writeBufferList(o, uint8Codec, name, v, def)
}

// ReadFloatBuffer returns a buffer whose capacity and limit equal the
// number of stored elements, positioned at zero.
func (in *InputCapsule) ReadFloatBuffer(name string, def *buffer.Floats) (*buffer.Floats, error) {
	return readBuffer(in, float32Codec, name, def)
}

func (in *InputCapsule) ReadIntBuffer(name string, def *buffer.Ints) (*buffer.Ints, error) {
	return readBuffer(in, int32Codec, name, def)
}

func (in *InputCapsule) ReadShortBuffer(name string, def *buffer.Shorts) (*buffer.Shorts, error) {
	return readBuffer(in, int16Codec, name, def)
}

func (in *InputCapsule) ReadByteBuffer(name string, def *buffer.Bytes) (*buffer.Bytes, error) {
	return readBuffer(in, uint8Codec, name, def)
}

func (in *InputCapsule) ReadFloatBufferList(name string, def []*buffer.Floats) ([]*buffer.Floats, error) {
	return readBufferList(in, float32Codec, name, def)
}

func (in *InputCapsule) ReadByteBufferList(name string, def []*buffer.Bytes) ([]*buffer.Bytes, error) {
	return readBufferList(in, uint8Codec, name, def)
}
