package doc

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ============================================================
// YAML Bridge
// ============================================================
//
// Goes through yaml.Node rather than map[string]any so mapping order
// is kept in both directions.

// ParseYAML parses a single YAML document into a tree.
func ParseYAML(data []byte) (*Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("doc: YAML parse error: %w", err)
	}
	if root.Kind == 0 {
		return Null(), nil
	}
	d := &yamlDecoder{}
	return d.node(&root, 0, 0)
}

// maxYAMLAliasDepth bounds how many aliases may be followed inside one
// another.
const maxYAMLAliasDepth = 64

// maxYAMLAliasNodes bounds the nodes materialized by alias expansion, so a
// small document of nested aliases cannot expand exponentially.
const maxYAMLAliasNodes = 1_000_000

type yamlDecoder struct {
	expanded int // nodes produced while inside an alias
}

func (d *yamlDecoder) node(y *yaml.Node, depth, aliasDepth int) (*Node, error) {
	if aliasDepth > 0 {
		d.expanded++
		if d.expanded > maxYAMLAliasNodes {
			return nil, fmt.Errorf("doc: YAML aliases expand to more than %d nodes", maxYAMLAliasNodes)
		}
	}
	if depth > MaxDepth {
		return nil, fmt.Errorf("doc: YAML nesting exceeds %d levels", MaxDepth)
	}

	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return Null(), nil
		}
		return d.node(y.Content[0], depth, aliasDepth)

	case yaml.AliasNode:
		if aliasDepth >= maxYAMLAliasDepth {
			return nil, fmt.Errorf("doc: YAML alias nesting too deep at line %d", y.Line)
		}
		return d.node(y.Alias, depth, aliasDepth+1)

	case yaml.SequenceNode:
		list := List()
		for i, c := range y.Content {
			elem, err := d.node(c, depth+1, aliasDepth)
			if err != nil {
				return nil, inElement(i, err)
			}
			list.listVal = append(list.listVal, elem)
		}
		return list, nil

	case yaml.MappingNode:
		if len(y.Content)%2 != 0 {
			return nil, fmt.Errorf("doc: malformed YAML mapping at line %d", y.Line)
		}
		obj := Map()
		for i := 0; i < len(y.Content); i += 2 {
			k, v := y.Content[i], y.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("doc: YAML mapping key at line %d is not a scalar", k.Line)
			}
			val, err := d.node(v, depth+1, aliasDepth)
			if err != nil {
				return nil, inField(k.Value, err)
			}
			obj.Set(k.Value, val)
		}
		return obj, nil

	case yaml.ScalarNode:
		return fromYAMLScalar(y)

	default:
		return nil, fmt.Errorf("doc: unsupported YAML node kind %d", y.Kind)
	}
}

func fromYAMLScalar(y *yaml.Node) (*Node, error) {
	switch y.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := y.Decode(&b); err != nil {
			return nil, fmt.Errorf("doc: invalid YAML bool %q: %w", y.Value, err)
		}
		return Bool(b), nil
	case "!!int":
		var i int64
		if err := y.Decode(&i); err != nil {
			// Too large for int64: keep the magnitude.
			var f float64
			if ferr := y.Decode(&f); ferr != nil {
				return nil, fmt.Errorf("doc: invalid YAML int %q: %w", y.Value, err)
			}
			return Float(f), nil
		}
		return Int(i), nil
	case "!!float":
		var f float64
		if err := y.Decode(&f); err != nil {
			return nil, fmt.Errorf("doc: invalid YAML float %q: %w", y.Value, err)
		}
		return Float(f), nil
	default:
		return Str(y.Value), nil
	}
}

// ToYAML converts a tree to a yaml.Node.
func ToYAML(n *Node) *yaml.Node {
	switch n.Kind() {
	case KindNull:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(n.boolVal)}
	case KindInt:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(n.intVal, 10)}
	case KindFloat:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: yamlFloat(n.floatVal)}
	case KindStr:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: n.strVal}
	case KindList:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, elem := range n.listVal {
			seq.Content = append(seq.Content, ToYAML(elem))
		}
		// Short scalar rows read better inline.
		if len(n.listVal) > 0 && allScalars(n.listVal) {
			seq.Style = yaml.FlowStyle
		}
		return seq
	case KindMap:
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, e := range n.mapVal {
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Key},
				ToYAML(e.Value))
		}
		return m
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}

func allScalars(nodes []*Node) bool {
	for _, n := range nodes {
		if k := n.Kind(); k == KindList || k == KindMap {
			return false
		}
	}
	return true
}

func yamlFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := canonFloat(f)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// MarshalYAML converts a tree to YAML text.
func MarshalYAML(n *Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteYAML(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteYAML writes a tree as a YAML document to w.
func WriteYAML(w io.Writer, n *Node) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ToYAML(n)); err != nil {
		return fmt.Errorf("doc: YAML encode: %w", err)
	}
	return enc.Close()
}
