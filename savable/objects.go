package savable

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/Neumenon/savable/doc"
)

// ============================================================
// Encoding
// ============================================================

func versionsOf(v Savable) []int {
	if vv, ok := v.(Versioned); ok {
		if versions := vv.SavableVersions(); len(versions) > 0 {
			return versions
		}
	}
	return nil
}

func formatVersions(versions []int) string {
	parts := make([]string, len(versions))
	for i, v := range versions {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// parseVersions accepts "1,0,2" or a list of integers. A nil, null or
// empty value means no versions were recorded.
func parseVersions(n *doc.Node) ([]int, error) {
	switch n.Kind() {
	case doc.KindNull:
		return nil, nil
	case doc.KindStr:
		s, _ := n.AsStr()
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		parts := strings.Split(s, ",")
		out := make([]int, len(parts))
		for i, p := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case doc.KindList:
		items, _ := n.AsList()
		out := make([]int, len(items))
		for i, item := range items {
			v, err := goIntCodec.decode(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected version list, got %s", n.Kind())
	}
}

// writeFields runs v.Write with fields in scope. The identity of v is held
// for the duration so a graph that loops back on itself fails with ErrCycle
// instead of recursing until the depth limit.
func (o *OutputCapsule) writeFields(v Savable, id string, fields *doc.Node, path string, within bool) error {
	if key, ok := identity(v); ok {
		if _, seen := o.visiting[key]; seen {
			return &FieldError{Kind: ErrCycle, Path: path, Type: id, Err: fmt.Errorf("%s already being written", id)}
		}
		o.visiting[key] = struct{}{}
		defer delete(o.visiting, key)
	}

	versions := versionsOf(v)
	if versions != nil {
		fields.Set(KeyHierarchyVersions, doc.Str(formatVersions(versions)))
	}
	if !within {
		if err := o.cur.enter(v, id, versions); err != nil {
			return err
		}
		return v.Write(o)
	}
	f := frame{node: fields, subject: v, id: id, versions: versions, path: path}
	return o.cur.within(f, func() error { return v.Write(o) })
}

// encodeObject returns the [id, {fields}] form of v.
func (o *OutputCapsule) encodeObject(v Savable, name, path string) (*doc.Node, error) {
	id, err := o.registry.IdentifierOf(v)
	if err != nil {
		return nil, fieldErr(ErrUnknownType, name, path, err)
	}
	fields := doc.Map()
	if err := o.writeFields(v, id, fields, path, true); err != nil {
		return nil, err
	}
	return doc.List(doc.Str(id), fields), nil
}

// encodeObjects encodes items in order. Nil items become null when keepNil
// is set and are dropped otherwise.
func (o *OutputCapsule) encodeObjects(name string, items []Savable, keepNil bool, indices ...int) (*doc.Node, error) {
	out := make([]*doc.Node, 0, len(items))
	for i, item := range items {
		if isNil(item) {
			if keepNil {
				out = append(out, doc.Null())
			}
			continue
		}
		n, err := o.encodeObject(item, name, o.cur.childPath(name, append(slices.Clone(indices), i)...))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return doc.List(out...), nil
}

func (o *OutputCapsule) encodeObjects2D(name string, rows [][]Savable, keepNil bool, indices ...int) (*doc.Node, error) {
	out := make([]*doc.Node, len(rows))
	for i, row := range rows {
		if row == nil {
			out[i] = doc.Null()
			continue
		}
		n, err := o.encodeObjects(name, row, keepNil, append(slices.Clone(indices), i)...)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return doc.List(out...), nil
}

// WriteSavable writes v as ["<type>", {fields}] unless it is nil or equal
// to def.
func (o *OutputCapsule) WriteSavable(v Savable, name string, def Savable) error {
	if isNil(v) || savableEqual(v, def) {
		return nil
	}
	n, err := o.encodeObject(v, name, o.cur.childPath(name))
	if err != nil {
		return err
	}
	return o.put(name, n)
}

// WriteSavableArray writes a list of objects. Nil elements are kept as null
// so indices survive. An empty array is not written.
func (o *OutputCapsule) WriteSavableArray(v []Savable, name string, def []Savable) error {
	if len(v) == 0 || savableSliceEqual(v, def) {
		return nil
	}
	n, err := o.encodeObjects(name, v, true)
	if err != nil {
		return err
	}
	return o.put(name, n)
}

// WriteSavableArray2D writes a jagged array of objects; nil rows become null.
func (o *OutputCapsule) WriteSavableArray2D(v [][]Savable, name string, def [][]Savable) error {
	if len(v) == 0 || savableSlice2DEqual(v, def) {
		return nil
	}
	n, err := o.encodeObjects2D(name, v, true)
	if err != nil {
		return err
	}
	return o.put(name, n)
}

// WriteSavableList writes a list of objects, dropping nil elements. A list
// with no element left is not written.
func (o *OutputCapsule) WriteSavableList(v []Savable, name string, def []Savable) error {
	if len(v) == 0 || savableSliceEqual(v, def) {
		return nil
	}
	n, err := o.encodeObjects(name, v, false)
	if err != nil {
		return err
	}
	if n.Len() == 0 {
		return nil
	}
	return o.put(name, n)
}

// WriteSavableListArray writes an array of lists.
func (o *OutputCapsule) WriteSavableListArray(v [][]Savable, name string, def [][]Savable) error {
	if len(v) == 0 || savableSlice2DEqual(v, def) {
		return nil
	}
	n, err := o.encodeObjects2D(name, v, false)
	if err != nil {
		return err
	}
	return o.put(name, n)
}

// WriteSavableListArray2D writes a two-dimensional array of lists.
func (o *OutputCapsule) WriteSavableListArray2D(v [][][]Savable, name string, def [][][]Savable) error {
	if len(v) == 0 || savableSlice3DEqual(v, def) {
		return nil
	}
	planes := make([]*doc.Node, len(v))
	for i, plane := range v {
		if plane == nil {
			planes[i] = doc.Null()
			continue
		}
		n, err := o.encodeObjects2D(name, plane, false, i)
		if err != nil {
			return err
		}
		planes[i] = n
	}
	return o.put(name, doc.List(planes...))
}

func savableMapEqual[K comparable](a, b map[K]Savable) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return maps.EqualFunc(a, b, savableEqual)
}

// WriteStringSavableMap writes a mapping from each key to its encoded
// value. Keys are sorted; nil values are skipped.
func (o *OutputCapsule) WriteStringSavableMap(v map[string]Savable, name string, def map[string]Savable) error {
	if len(v) == 0 || savableMapEqual(v, def) {
		return nil
	}
	out := doc.Map()
	for _, key := range slices.Sorted(maps.Keys(v)) {
		item := v[key]
		if isNil(item) {
			continue
		}
		n, err := o.encodeObject(item, name, o.cur.childPath(name)+"/"+key)
		if err != nil {
			return err
		}
		out.Set(key, n)
	}
	return o.put(name, out)
}

// WriteIntSavableMap is WriteStringSavableMap with decimal keys in
// ascending numeric order.
func (o *OutputCapsule) WriteIntSavableMap(v map[int]Savable, name string, def map[int]Savable) error {
	if len(v) == 0 || savableMapEqual(v, def) {
		return nil
	}
	out := doc.Map()
	for _, key := range slices.Sorted(maps.Keys(v)) {
		item := v[key]
		if isNil(item) {
			continue
		}
		n, err := o.encodeObject(item, name, o.cur.childPath(name, key))
		if err != nil {
			return err
		}
		out.Set(strconv.Itoa(key), n)
	}
	return o.put(name, out)
}

func pairsEqual(a, b []SavablePair) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return slices.EqualFunc(a, b, func(x, y SavablePair) bool {
		return savableEqual(x.Key, y.Key) && savableEqual(x.Value, y.Value)
	})
}

// WriteSavableMap writes an object-keyed map as a list of
// [encoded key, encoded value] pairs. Pairs with a nil key are skipped; a
// nil value is written as null.
func (o *OutputCapsule) WriteSavableMap(v []SavablePair, name string, def []SavablePair) error {
	if len(v) == 0 || pairsEqual(v, def) {
		return nil
	}
	out := make([]*doc.Node, 0, len(v))
	for i, pair := range v {
		if isNil(pair.Key) {
			continue
		}
		path := o.cur.childPath(name, i)
		key, err := o.encodeObject(pair.Key, name, path+"/0")
		if err != nil {
			return err
		}
		val := doc.Null()
		if !isNil(pair.Value) {
			if val, err = o.encodeObject(pair.Value, name, path+"/1"); err != nil {
				return err
			}
		}
		out = append(out, doc.List(key, val))
	}
	return o.put(name, doc.List(out...))
}

// ============================================================
// Decoding
// ============================================================

// settle applies the recovery policy to a nested-object failure. Outside
// strict mode the failure is recorded, logged, and swallowed. Depth and
// cursor failures always propagate.
func (in *InputCapsule) settle(err error) error {
	if err == nil {
		return nil
	}
	if in.strict || errors.Is(err, ErrDepthExceeded) || errors.Is(err, ErrCursor) {
		return err
	}
	in.problems = append(in.problems, err)

	attrs := []any{"error", err}
	var fe *FieldError
	if errors.As(err, &fe) {
		attrs = append(attrs, "field", fe.Field, "path", fe.Path)
		if fe.Type != "" {
			attrs = append(attrs, "type", fe.Type)
		}
	}
	in.logger.Warn("savable: nested object skipped", attrs...)
	return nil
}

// readFields runs obj.Read with fields in scope.
func (in *InputCapsule) readFields(obj Savable, id string, fields *doc.Node, versions []int, path string) error {
	f := frame{node: fields, subject: obj, id: id, versions: versions, path: path}
	return in.cur.within(f, func() error { return obj.Read(in) })
}

// decodeObject constructs and populates the object encoded in n.
func (in *InputCapsule) decodeObject(name, path string, n *doc.Node) (Savable, error) {
	items, err := n.AsList()
	if err != nil || len(items) != 2 {
		return nil, malformed(name, path, "object must be [type, fields], got %s of length %d", n.Kind(), n.Len())
	}
	id, err := items[0].AsStr()
	if err != nil {
		return nil, malformed(name, path, "type identifier: %w", err)
	}
	fields := items[1]
	if !fields.IsMap() {
		return nil, &FieldError{Kind: ErrMalformedField, Field: name, Path: path, Type: id,
			Err: fmt.Errorf("fields: expected map, got %s", fields.Kind())}
	}
	versions, err := parseVersions(fields.Get(KeyHierarchyVersions))
	if err != nil {
		return nil, &FieldError{Kind: ErrMalformedField, Field: name, Path: path, Type: id,
			Err: fmt.Errorf("%s: %w", KeyHierarchyVersions, err)}
	}

	obj, err := in.registry.Construct(id)
	if err != nil {
		return nil, &FieldError{Kind: ErrUnknownType, Field: name, Path: path, Type: id, Err: err}
	}
	if err := in.readFields(obj, id, fields, versions, path); err != nil {
		return nil, readFailure(name, path, id, err)
	}
	return obj, nil
}

// readFailure wraps an error returned from an object's Read. Errors that
// already describe a read failure or a depth overrun pass through so the
// chain does not grow with every enclosing object.
func readFailure(name, path, id string, err error) error {
	var fe *FieldError
	if errors.As(err, &fe) && (fe.Kind == ErrFieldReadFailure || fe.Kind == ErrDepthExceeded) {
		return err
	}
	if errors.Is(err, ErrCursor) {
		return err
	}
	return &FieldError{Kind: ErrFieldReadFailure, Field: name, Path: path, Type: id, Err: err}
}

// decodeObjects decodes a list of objects. Null and failed elements become
// nil when keepNil is set and are dropped otherwise.
func (in *InputCapsule) decodeObjects(name string, n *doc.Node, keepNil bool, indices ...int) ([]Savable, error) {
	items, err := in.elements(name, n, indices...)
	if err != nil {
		return nil, err
	}
	out := make([]Savable, 0, len(items))
	for i, item := range items {
		var v Savable
		if !item.IsNull() {
			path := in.cur.childPath(name, append(slices.Clone(indices), i)...)
			if v, err = in.decodeObject(name, path, item); err != nil {
				if err := in.settle(err); err != nil {
					return nil, err
				}
			}
		}
		if v == nil && !keepNil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (in *InputCapsule) decodeObjects2D(name string, n *doc.Node, keepNil bool, indices ...int) ([][]Savable, error) {
	rows, err := in.elements(name, n, indices...)
	if err != nil {
		return nil, err
	}
	out := make([][]Savable, len(rows))
	for i, row := range rows {
		if row.IsNull() {
			continue
		}
		v, err := in.decodeObjects(name, row, keepNil, append(slices.Clone(indices), i)...)
		if err != nil {
			if err := in.settle(err); err != nil {
				return nil, err
			}
			continue
		}
		out[i] = v
	}
	return out, nil
}

// ReadSavable constructs the object stored under name from its type
// identifier and populates it. An absent field returns def. A failure to
// construct or populate the object also returns def; the failure is
// recorded in Problems and returned only in strict mode.
func (in *InputCapsule) ReadSavable(name string, def Savable) (Savable, error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	v, err := in.decodeObject(name, in.cur.childPath(name), n)
	if err != nil {
		return def, in.settle(err)
	}
	return v, nil
}

// ReadSavableArray reads a list of objects. Elements that are null or fail
// to decode are nil in the result.
func (in *InputCapsule) ReadSavableArray(name string, def []Savable) ([]Savable, error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	v, err := in.decodeObjects(name, n, true)
	if err != nil {
		return def, in.settle(err)
	}
	return v, nil
}

func (in *InputCapsule) ReadSavableArray2D(name string, def [][]Savable) ([][]Savable, error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	v, err := in.decodeObjects2D(name, n, true)
	if err != nil {
		return def, in.settle(err)
	}
	return v, nil
}

// ReadSavableList reads a list of objects, dropping elements that fail.
func (in *InputCapsule) ReadSavableList(name string, def []Savable) ([]Savable, error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	v, err := in.decodeObjects(name, n, false)
	if err != nil {
		return def, in.settle(err)
	}
	return v, nil
}

func (in *InputCapsule) ReadSavableListArray(name string, def [][]Savable) ([][]Savable, error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	v, err := in.decodeObjects2D(name, n, false)
	if err != nil {
		return def, in.settle(err)
	}
	return v, nil
}

func (in *InputCapsule) ReadSavableListArray2D(name string, def [][][]Savable) ([][][]Savable, error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	planes, err := in.elements(name, n)
	if err != nil {
		return def, in.settle(err)
	}
	out := make([][][]Savable, len(planes))
	for i, plane := range planes {
		if plane.IsNull() {
			continue
		}
		v, err := in.decodeObjects2D(name, plane, false, i)
		if err != nil {
			if err := in.settle(err); err != nil {
				return def, err
			}
			continue
		}
		out[i] = v
	}
	return out, nil
}

// objectMap returns the entries of a map-shaped field.
func (in *InputCapsule) objectMap(name string, n *doc.Node) ([]doc.Entry, error) {
	entries, err := n.AsMap()
	if err != nil {
		return nil, malformed(name, in.cur.childPath(name), "%w", err)
	}
	return entries, nil
}

// ReadStringSavableMap reads a mapping of objects. Entries that are null or
// fail to decode are left out.
func (in *InputCapsule) ReadStringSavableMap(name string, def map[string]Savable) (map[string]Savable, error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	entries, err := in.objectMap(name, n)
	if err != nil {
		return def, in.settle(err)
	}
	out := make(map[string]Savable, len(entries))
	for _, e := range entries {
		if e.Value.IsNull() {
			continue
		}
		v, err := in.decodeObject(name, in.cur.childPath(name)+"/"+e.Key, e.Value)
		if err != nil {
			if err := in.settle(err); err != nil {
				return def, err
			}
			continue
		}
		out[e.Key] = v
	}
	return out, nil
}

// ReadIntSavableMap reads a mapping whose keys are decimal integers.
func (in *InputCapsule) ReadIntSavableMap(name string, def map[int]Savable) (map[int]Savable, error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	entries, err := in.objectMap(name, n)
	if err != nil {
		return def, in.settle(err)
	}
	out := make(map[int]Savable, len(entries))
	for _, e := range entries {
		path := in.cur.childPath(name) + "/" + e.Key
		key, err := strconv.Atoi(strings.TrimSpace(e.Key))
		if err != nil {
			if err := in.settle(malformed(name, path, "map key: %w", err)); err != nil {
				return def, err
			}
			continue
		}
		if e.Value.IsNull() {
			continue
		}
		v, err := in.decodeObject(name, path, e.Value)
		if err != nil {
			if err := in.settle(err); err != nil {
				return def, err
			}
			continue
		}
		out[key] = v
	}
	return out, nil
}

// isObjectNode reports whether n looks like ["<type>", {...}].
func isObjectNode(n *doc.Node) bool {
	if n.Kind() != doc.KindList || n.Len() != 2 {
		return false
	}
	id, _ := n.Index(0)
	fields, _ := n.Index(1)
	return id.Kind() == doc.KindStr && fields.IsMap()
}

// ReadSavableMap reads the list-of-pairs form written by WriteSavableMap.
// The older flat form [k1, v1, k2, v2, ...] is also accepted. A pair whose
// key or value fails to decode is left out.
func (in *InputCapsule) ReadSavableMap(name string, def []SavablePair) ([]SavablePair, error) {
	n, ok := in.field(name)
	if !ok {
		return def, nil
	}
	items, err := in.elements(name, n)
	if err != nil {
		return def, in.settle(err)
	}

	var raw [][2]*doc.Node
	if len(items) > 0 && isObjectNode(items[0]) {
		if len(items)%2 != 0 {
			return def, in.settle(malformed(name, in.cur.childPath(name), "flat object map has odd length %d", len(items)))
		}
		for i := 0; i < len(items); i += 2 {
			raw = append(raw, [2]*doc.Node{items[i], items[i+1]})
		}
	} else {
		for i, item := range items {
			if item.Kind() != doc.KindList || item.Len() != 2 {
				if err := in.settle(malformed(name, in.cur.childPath(name, i), "map entry must be [key, value]")); err != nil {
					return def, err
				}
				continue
			}
			k, _ := item.Index(0)
			v, _ := item.Index(1)
			raw = append(raw, [2]*doc.Node{k, v})
		}
	}

	out := make([]SavablePair, 0, len(raw))
	for i, kv := range raw {
		path := in.cur.childPath(name, i)
		if kv[0].IsNull() {
			continue
		}
		key, err := in.decodeObject(name, path+"/0", kv[0])
		if err != nil {
			if err := in.settle(err); err != nil {
				return def, err
			}
			continue
		}
		var val Savable
		if !kv[1].IsNull() {
			if val, err = in.decodeObject(name, path+"/1", kv[1]); err != nil {
				if err := in.settle(err); err != nil {
					return def, err
				}
				continue
			}
		}
		out = append(out, SavablePair{Key: key, Value: val})
	}
	return out, nil
}

// ============================================================
// Typed helpers
// ============================================================

func mismatch[T any](name, path string, got Savable) error {
	var want T
	return fieldErr(ErrTypeMismatch, name, path, fmt.Errorf("got %T, want %T", got, want))
}

// ReadAs is ReadSavable for a known concrete type. A decoded object of any
// other type is a recoverable ErrTypeMismatch and def is returned.
func ReadAs[T Savable](in *InputCapsule, name string, def T) (T, error) {
	if !in.Has(name) {
		return def, nil
	}
	v, err := in.ReadSavable(name, nil)
	if err != nil || v == nil {
		return def, err
	}
	t, ok := v.(T)
	if !ok {
		return def, in.settle(mismatch[T](name, in.cur.childPath(name), v))
	}
	return t, nil
}

func convertAll[T Savable](in *InputCapsule, name string, items []Savable, keepNil bool) ([]T, error) {
	out := make([]T, 0, len(items))
	for i, item := range items {
		t, ok := item.(T)
		if !ok && item != nil {
			if err := in.settle(mismatch[T](name, in.cur.childPath(name, i), item)); err != nil {
				return nil, err
			}
		}
		if !ok && !keepNil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ReadArrayAs is ReadSavableArray for a known element type. Elements of
// another type become the zero value.
func ReadArrayAs[T Savable](in *InputCapsule, name string, def []T) ([]T, error) {
	if !in.Has(name) {
		return def, nil
	}
	items, err := in.ReadSavableArray(name, nil)
	if err != nil || items == nil {
		return def, err
	}
	out, err := convertAll[T](in, name, items, true)
	if err != nil {
		return def, err
	}
	return out, nil
}

// ReadListAs is ReadSavableList for a known element type. Elements of
// another type are dropped.
func ReadListAs[T Savable](in *InputCapsule, name string, def []T) ([]T, error) {
	if !in.Has(name) {
		return def, nil
	}
	items, err := in.ReadSavableList(name, nil)
	if err != nil || items == nil {
		return def, err
	}
	out, err := convertAll[T](in, name, items, false)
	if err != nil {
		return def, err
	}
	return out, nil
}

// ReadStringMapAs is ReadStringSavableMap for a known value type. Values of
// another type are left out.
func ReadStringMapAs[T Savable](in *InputCapsule, name string, def map[string]T) (map[string]T, error) {
	if !in.Has(name) {
		return def, nil
	}
	m, err := in.ReadStringSavableMap(name, nil)
	if err != nil || m == nil {
		return def, err
	}
	out := make(map[string]T, len(m))
	for key, item := range m {
		t, ok := item.(T)
		if !ok {
			if err := in.settle(mismatch[T](name, in.cur.childPath(name)+"/"+key, item)); err != nil {
				return def, err
			}
			continue
		}
		out[key] = t
	}
	return out, nil
}
