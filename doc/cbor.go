package doc

import (
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"reflect"
	"slices"

	"github.com/fxamacker/cbor/v2"
)

// ============================================================
// CBOR Bridge
// ============================================================
//
// CBOR documents use Core Deterministic Encoding, so map keys are
// sorted on the wire. Insertion order is not recoverable from CBOR;
// decoded maps come back in key order.

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("doc: CBOR encoder initialization failed: " + err.Error())
	}
	// The library defaults (32 levels, 131072 elements) are far below what
	// a MaxDepth object graph or a large vertex buffer needs.
	cborDecMode, err = cbor.DecOptions{
		DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
		MaxNestedLevels:  MaxDepth,
		MaxArrayElements: math.MaxInt32,
		MaxMapPairs:      math.MaxInt32,
	}.DecMode()
	if err != nil {
		panic("doc: CBOR decoder initialization failed: " + err.Error())
	}
}

// MarshalCBOR converts a tree to CBOR.
func MarshalCBOR(n *Node) ([]byte, error) {
	data, err := cborEncMode.Marshal(toPlain(n))
	if err != nil {
		return nil, fmt.Errorf("doc: CBOR encode: %w", err)
	}
	return data, nil
}

// WriteCBOR writes a tree as one CBOR data item to w.
func WriteCBOR(w io.Writer, n *Node) error {
	if err := cborEncMode.NewEncoder(w).Encode(toPlain(n)); err != nil {
		return fmt.Errorf("doc: CBOR encode: %w", err)
	}
	return nil
}

// ParseCBOR parses one CBOR data item into a tree.
func ParseCBOR(data []byte) (*Node, error) {
	var v any
	if err := cborDecMode.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("doc: CBOR parse error: %w", err)
	}
	return fromPlain(v)
}

// toPlain converts a tree to the plain Go values the CBOR encoder accepts.
func toPlain(n *Node) any {
	switch n.Kind() {
	case KindBool:
		return n.boolVal
	case KindInt:
		return n.intVal
	case KindFloat:
		return n.floatVal
	case KindStr:
		return n.strVal
	case KindList:
		out := make([]any, len(n.listVal))
		for i, elem := range n.listVal {
			out[i] = toPlain(elem)
		}
		return out
	case KindMap:
		out := make(map[string]any, len(n.mapVal))
		for _, e := range n.mapVal {
			out[e.Key] = toPlain(e.Value)
		}
		return out
	default:
		return nil
	}
}

func fromPlain(v any) (*Node, error) {
	switch val := v.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return Float(float64(val)), nil
		}
		return Int(int64(val)), nil
	case float32:
		return Float(float64(val)), nil
	case float64:
		return Float(val), nil
	case string:
		return Str(val), nil
	case []byte:
		return Str(base64.StdEncoding.EncodeToString(val)), nil
	case []any:
		list := List()
		for i, elem := range val {
			n, err := fromPlain(elem)
			if err != nil {
				return nil, inElement(i, err)
			}
			list.listVal = append(list.listVal, n)
		}
		return list, nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		obj := Map()
		for _, k := range keys {
			n, err := fromPlain(val[k])
			if err != nil {
				return nil, inField(k, err)
			}
			obj.Set(k, n)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("doc: unsupported CBOR value: %T", v)
	}
}
