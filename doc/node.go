package doc

import (
	"fmt"
	"math"
)

// Kind represents document node kinds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindStr
	KindList
	KindMap
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindStr:
		return "str"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Node is one node of a document tree.
//
// A nil *Node behaves like a null node for every read accessor.
type Node struct {
	kind Kind

	// Scalar values (only one valid based on kind)
	boolVal  bool
	intVal   int64
	floatVal float64
	strVal   string

	// Container values
	listVal []*Node
	mapVal  []Entry
}

// Entry is a key-value pair of a map node.
type Entry struct {
	Key   string
	Value *Node
}

// ============================================================
// Constructors
// ============================================================

// Null creates a null node.
func Null() *Node {
	return &Node{kind: KindNull}
}

// Bool creates a boolean node.
func Bool(v bool) *Node {
	return &Node{kind: KindBool, boolVal: v}
}

// Int creates an integer node.
func Int(v int64) *Node {
	return &Node{kind: KindInt, intVal: v}
}

// Float creates a float node.
func Float(v float64) *Node {
	return &Node{kind: KindFloat, floatVal: v}
}

// Str creates a string node.
func Str(v string) *Node {
	return &Node{kind: KindStr, strVal: v}
}

// List creates a list node.
func List(values ...*Node) *Node {
	return &Node{kind: KindList, listVal: values}
}

// Map creates a map node from entries. Later duplicates replace earlier keys.
func Map(entries ...Entry) *Node {
	n := &Node{kind: KindMap, mapVal: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		n.Set(e.Key, e.Value)
	}
	return n
}

// Field creates an Entry for use in Map construction.
func Field(key string, value *Node) Entry {
	return Entry{Key: key, Value: value}
}

// ============================================================
// Accessors
// ============================================================

// Kind returns the node kind.
func (n *Node) Kind() Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

// IsNull returns true if this is a null node.
func (n *Node) IsNull() bool {
	return n == nil || n.kind == KindNull
}

// IsList returns true if this is a list node.
func (n *Node) IsList() bool {
	return n != nil && n.kind == KindList
}

// IsMap returns true if this is a map node.
func (n *Node) IsMap() bool {
	return n != nil && n.kind == KindMap
}

// AsBool returns the boolean value.
func (n *Node) AsBool() (bool, error) {
	if n == nil {
		return false, fmt.Errorf("doc: nil node")
	}
	if n.kind != KindBool {
		return false, fmt.Errorf("doc: expected bool, got %s", n.kind)
	}
	return n.boolVal, nil
}

// AsInt returns the integer value.
func (n *Node) AsInt() (int64, error) {
	if n == nil {
		return 0, fmt.Errorf("doc: nil node")
	}
	if n.kind != KindInt {
		return 0, fmt.Errorf("doc: expected int, got %s", n.kind)
	}
	return n.intVal, nil
}

// AsFloat returns the float value.
func (n *Node) AsFloat() (float64, error) {
	if n == nil {
		return 0, fmt.Errorf("doc: nil node")
	}
	if n.kind != KindFloat {
		return 0, fmt.Errorf("doc: expected float, got %s", n.kind)
	}
	return n.floatVal, nil
}

// AsStr returns the string value.
func (n *Node) AsStr() (string, error) {
	if n == nil {
		return "", fmt.Errorf("doc: nil node")
	}
	if n.kind != KindStr {
		return "", fmt.Errorf("doc: expected str, got %s", n.kind)
	}
	return n.strVal, nil
}

// AsList returns the list elements.
func (n *Node) AsList() ([]*Node, error) {
	if n == nil {
		return nil, fmt.Errorf("doc: nil node")
	}
	if n.kind != KindList {
		return nil, fmt.Errorf("doc: expected list, got %s", n.kind)
	}
	return n.listVal, nil
}

// AsMap returns the map entries in insertion order.
func (n *Node) AsMap() ([]Entry, error) {
	if n == nil {
		return nil, fmt.Errorf("doc: nil node")
	}
	if n.kind != KindMap {
		return nil, fmt.Errorf("doc: expected map, got %s", n.kind)
	}
	return n.mapVal, nil
}

// Number returns a numeric node as float64 if int or float.
func (n *Node) Number() (float64, bool) {
	switch n.Kind() {
	case KindInt:
		return float64(n.intVal), true
	case KindFloat:
		return n.floatVal, true
	default:
		return 0, false
	}
}

// IsNumeric returns true if int or float.
func (n *Node) IsNumeric() bool {
	k := n.Kind()
	return k == KindInt || k == KindFloat
}

// Len returns the length of a list or map.
func (n *Node) Len() int {
	switch n.Kind() {
	case KindList:
		return len(n.listVal)
	case KindMap:
		return len(n.mapVal)
	default:
		return 0
	}
}

// Get returns a value by key from a map, or nil if absent.
func (n *Node) Get(key string) *Node {
	if n.Kind() != KindMap {
		return nil
	}
	for _, e := range n.mapVal {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

// Lookup returns a value by key and whether the key is present.
// A present key may map to a null node.
func (n *Node) Lookup(key string) (*Node, bool) {
	if n.Kind() != KindMap {
		return nil, false
	}
	for _, e := range n.mapVal {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Has reports whether a map holds key.
func (n *Node) Has(key string) bool {
	_, ok := n.Lookup(key)
	return ok
}

// Keys returns the map keys in insertion order.
func (n *Node) Keys() []string {
	if n.Kind() != KindMap {
		return nil
	}
	keys := make([]string, len(n.mapVal))
	for i, e := range n.mapVal {
		keys[i] = e.Key
	}
	return keys
}

// Index returns the i-th element of a list.
func (n *Node) Index(i int) (*Node, error) {
	if n.Kind() != KindList {
		return nil, fmt.Errorf("doc: not a list")
	}
	if i < 0 || i >= len(n.listVal) {
		return nil, fmt.Errorf("doc: index %d out of bounds (len=%d)", i, len(n.listVal))
	}
	return n.listVal[i], nil
}

// ============================================================
// Mutators
// ============================================================

// Set sets a value on a map, replacing an existing key in place.
func (n *Node) Set(key string, val *Node) {
	if n == nil || n.kind != KindMap {
		panic("doc: cannot set on non-map")
	}
	if val == nil {
		val = Null()
	}
	for i := range n.mapVal {
		if n.mapVal[i].Key == key {
			n.mapVal[i].Value = val
			return
		}
	}
	n.mapVal = append(n.mapVal, Entry{Key: key, Value: val})
}

// Delete removes key from a map. It reports whether the key was present.
func (n *Node) Delete(key string) bool {
	if n.Kind() != KindMap {
		return false
	}
	for i := range n.mapVal {
		if n.mapVal[i].Key == key {
			n.mapVal = append(n.mapVal[:i], n.mapVal[i+1:]...)
			return true
		}
	}
	return false
}

// Append adds a value to a list.
func (n *Node) Append(val *Node) {
	if n == nil || n.kind != KindList {
		panic("doc: cannot append to non-list")
	}
	if val == nil {
		val = Null()
	}
	n.listVal = append(n.listVal, val)
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.listVal != nil {
		c.listVal = make([]*Node, len(n.listVal))
		for i, e := range n.listVal {
			c.listVal[i] = e.Clone()
		}
	}
	if n.mapVal != nil {
		c.mapVal = make([]Entry, len(n.mapVal))
		for i, e := range n.mapVal {
			c.mapVal[i] = Entry{Key: e.Key, Value: e.Value.Clone()}
		}
	}
	return &c
}

// ============================================================
// Equality
// ============================================================

// Equal reports whether two trees are structurally equal.
// Map key order is not significant; NaN floats compare equal to each other.
func Equal(a, b *Node) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case KindNull:
		return true
	case KindBool:
		return a.boolVal == b.boolVal
	case KindInt:
		return a.intVal == b.intVal
	case KindFloat:
		if math.IsNaN(a.floatVal) && math.IsNaN(b.floatVal) {
			return true
		}
		return a.floatVal == b.floatVal
	case KindStr:
		return a.strVal == b.strVal
	case KindList:
		if len(a.listVal) != len(b.listVal) {
			return false
		}
		for i := range a.listVal {
			if !Equal(a.listVal[i], b.listVal[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.mapVal) != len(b.mapVal) {
			return false
		}
		for _, e := range a.mapVal {
			other, ok := b.Lookup(e.Key)
			if !ok || !Equal(e.Value, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
