// Package buffer provides fixed-capacity numeric buffers with a read/write
// position and a limit, the shape vertex and index data takes in the
// object graphs savable encodes.
//
// A buffer never grows. Reads and writes advance the position and stop at
// the limit; the limit never exceeds the capacity of the backing storage
// unless that storage is replaced with Remap.
package buffer

import (
	"errors"
	"fmt"
)

// ErrOverflow is returned when a relative put runs past the limit.
var ErrOverflow = errors.New("buffer: overflow")

// ErrUnderflow is returned when a relative get runs past the limit.
var ErrUnderflow = errors.New("buffer: underflow")

// Number is the set of element types a Buffer can hold.
type Number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~float32 | ~float64
}

// Buffer is a fixed-capacity sequence of numbers with a position and a limit.
type Buffer[T Number] struct {
	data  []T
	pos   int
	limit int
}

// Floats holds float32 elements (vertex positions, normals, UVs).
type Floats = Buffer[float32]

// Ints holds int32 elements (32-bit indices).
type Ints = Buffer[int32]

// Shorts holds int16 elements (16-bit indices).
type Shorts = Buffer[int16]

// Bytes holds byte elements.
type Bytes = Buffer[byte]

// New allocates a zeroed buffer whose limit equals its capacity.
func New[T Number](capacity int) *Buffer[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer[T]{data: make([]T, capacity), limit: capacity}
}

// Wrap returns a buffer backed by data (no copy) with limit len(data).
func Wrap[T Number](data []T) *Buffer[T] {
	return &Buffer[T]{data: data, limit: len(data)}
}

// Of copies values into a new buffer.
func Of[T Number](values ...T) *Buffer[T] {
	b := New[T](len(values))
	copy(b.data, values)
	return b
}

// Capacity returns the size of the backing storage.
func (b *Buffer[T]) Capacity() int { return len(b.data) }

// Position returns the index of the next relative get or put.
func (b *Buffer[T]) Position() int { return b.pos }

// Limit returns the index of the first element that must not be read or written.
func (b *Buffer[T]) Limit() int { return b.limit }

// Remaining returns Limit - Position.
func (b *Buffer[T]) Remaining() int { return b.limit - b.pos }

// HasRemaining reports whether any element is left before the limit.
func (b *Buffer[T]) HasRemaining() bool { return b.pos < b.limit }

// SetPosition moves the position. It must lie within [0, Limit].
func (b *Buffer[T]) SetPosition(pos int) error {
	if pos < 0 || pos > b.limit {
		return fmt.Errorf("buffer: position %d outside [0, %d]", pos, b.limit)
	}
	b.pos = pos
	return nil
}

// SetLimit moves the limit. It must lie within [0, Capacity].
// The position is clamped to the new limit.
func (b *Buffer[T]) SetLimit(limit int) error {
	if limit < 0 || limit > len(b.data) {
		return fmt.Errorf("buffer: limit %d outside [0, %d]", limit, len(b.data))
	}
	b.limit = limit
	if b.pos > limit {
		b.pos = limit
	}
	return nil
}

// Rewind sets the position to zero.
func (b *Buffer[T]) Rewind() { b.pos = 0 }

// Flip sets the limit to the position and the position to zero.
func (b *Buffer[T]) Flip() {
	b.limit = b.pos
	b.pos = 0
}

// Clear resets position to zero and limit to capacity.
func (b *Buffer[T]) Clear() {
	b.pos = 0
	b.limit = len(b.data)
}

// Get reads the element at the position and advances it.
func (b *Buffer[T]) Get() (T, error) {
	var zero T
	if b.pos >= b.limit || b.pos >= len(b.data) {
		return zero, ErrUnderflow
	}
	v := b.data[b.pos]
	b.pos++
	return v, nil
}

// Put writes v at the position and advances it.
func (b *Buffer[T]) Put(v T) error {
	if b.pos >= b.limit || b.pos >= len(b.data) {
		return ErrOverflow
	}
	b.data[b.pos] = v
	b.pos++
	return nil
}

// PutAll writes values starting at the position.
func (b *Buffer[T]) PutAll(values ...T) error {
	if len(values) > b.Remaining() {
		return ErrOverflow
	}
	for _, v := range values {
		if err := b.Put(v); err != nil {
			return err
		}
	}
	return nil
}

// At returns the element at index i without moving the position.
func (b *Buffer[T]) At(i int) (T, error) {
	var zero T
	if i < 0 || i >= b.limit || i >= len(b.data) {
		return zero, fmt.Errorf("buffer: index %d outside [0, %d)", i, b.limit)
	}
	return b.data[i], nil
}

// Values returns a copy of the elements in [0, Limit).
func (b *Buffer[T]) Values() []T {
	n := min(b.limit, len(b.data))
	out := make([]T, n)
	copy(out, b.data[:n])
	return out
}

// Remap replaces the backing storage while keeping position and limit.
//
// This mirrors a buffer whose memory is remapped underneath it; a limit
// larger than the new storage makes the buffer inconsistent until the
// limit is lowered.
func (b *Buffer[T]) Remap(data []T) {
	b.data = data
}

// Consistent reports whether the limit fits inside the backing storage.
func (b *Buffer[T]) Consistent() bool {
	return b.limit <= len(b.data)
}

// Equal reports whether a and b hold the same elements in [0, Limit).
// Positions are not compared.
func Equal[T Number](a, b *Buffer[T]) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.limit != b.limit || !a.Consistent() || !b.Consistent() {
		return false
	}
	for i := 0; i < a.limit; i++ {
		if a.data[i] != b.data[i] {
			return false
		}
	}
	return true
}
