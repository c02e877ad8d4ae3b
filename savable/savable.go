package savable

import (
	"reflect"
	"slices"
)

// Savable is implemented by every object that can be part of an encoded
// graph. Write enumerates the object's fields through out; Read populates
// an empty instance from in.
type Savable interface {
	Write(out *OutputCapsule) error
	Read(in *InputCapsule) error
}

// Identified lets a type name itself instead of relying on the registry's
// type table. The identifier must still be registered for reading.
type Identified interface {
	SavableType() string
}

// Versioned types record one layout version per hierarchy level,
// most-derived level first.
type Versioned interface {
	SavableVersions() []int
}

// Hierarchy lists the identifiers of each level of a type's declared
// ancestry, most-derived first. Types without it have a single level.
type Hierarchy interface {
	TypeHierarchy() []string
}

// Equaler lets a type define the equality used for default elision.
// Without it, reflect.DeepEqual decides.
type Equaler interface {
	Equal(other Savable) bool
}

// SavablePair is one entry of an object-keyed map.
type SavablePair struct {
	Key   Savable
	Value Savable
}

// Savables converts a typed slice for the []Savable write operations.
func Savables[T Savable](items []T) []Savable {
	if items == nil {
		return nil
	}
	out := make([]Savable, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

// StringSavables converts a typed map for WriteStringSavableMap.
func StringSavables[T Savable](m map[string]T) map[string]Savable {
	if m == nil {
		return nil
	}
	out := make(map[string]Savable, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IntSavables converts a typed map for WriteIntSavableMap.
func IntSavables[T Savable](m map[int]T) map[int]Savable {
	if m == nil {
		return nil
	}
	out := make(map[int]Savable, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// isNil reports whether v is nil or a typed nil pointer, map, or slice.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// identity returns a key for pointer-shaped values so cycles can be found.
func identity(v Savable) (uintptr, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return 0, false
	}
	return rv.Pointer(), true
}

func savableEqual(a, b Savable) bool {
	aNil, bNil := isNil(a), isNil(b)
	if aNil || bNil {
		return aNil == bNil
	}
	if eq, ok := a.(Equaler); ok {
		return eq.Equal(b)
	}
	return reflect.DeepEqual(a, b)
}

func savableSliceEqual(a, b []Savable) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return slices.EqualFunc(a, b, savableEqual)
}

func savableSlice2DEqual(a, b [][]Savable) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return slices.EqualFunc(a, b, savableSliceEqual)
}

func savableSlice3DEqual(a, b [][][]Savable) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return slices.EqualFunc(a, b, savableSlice2DEqual)
}

// hierarchyOf returns the identifier chain used to resolve versions.
func hierarchyOf(s Savable, id string) []string {
	if h, ok := s.(Hierarchy); ok {
		if chain := h.TypeHierarchy(); len(chain) > 0 {
			return chain
		}
	}
	return []string{id}
}
