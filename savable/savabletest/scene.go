package savabletest

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"

	"github.com/Neumenon/savable/savable"
)

// LightType is stored by name.
type LightType int

const (
	Directional LightType = iota
	Point
	Spot
)

func (t LightType) String() string {
	switch t {
	case Directional:
		return "Directional"
	case Point:
		return "Point"
	case Spot:
		return "Spot"
	default:
		return "Unknown"
	}
}

// LightTypes lists every LightType for ReadEnum.
var LightTypes = []LightType{Directional, Point, Spot}

// Light is a light source.
type Light struct {
	Type      LightType
	Color     *ColorRGBA
	Position  *Vector3
	Intensity float64
	Enabled   bool
}

func (l *Light) Write(out *savable.OutputCapsule) error {
	if err := out.WriteEnum(l.Type, "type", Directional); err != nil {
		return err
	}
	if err := out.WriteSavable(l.Color, "color", White()); err != nil {
		return err
	}
	if err := out.WriteSavable(l.Position, "position", nil); err != nil {
		return err
	}
	if err := out.WriteFloat64(l.Intensity, "intensity", 1); err != nil {
		return err
	}
	return out.WriteBool(l.Enabled, "enabled", true)
}

func (l *Light) Read(in *savable.InputCapsule) error {
	var err error
	if l.Type, err = savable.ReadEnum(in, "type", Directional, LightTypes...); err != nil {
		return err
	}
	if l.Color, err = savable.ReadAs(in, "color", White()); err != nil {
		return err
	}
	if l.Position, err = savable.ReadAs[*Vector3](in, "position", nil); err != nil {
		return err
	}
	if l.Intensity, err = in.ReadFloat64("intensity", 1); err != nil {
		return err
	}
	l.Enabled, err = in.ReadBool("enabled", true)
	return err
}

// Material describes surface appearance.
type Material struct {
	Name      string
	Diffuse   *ColorRGBA
	Shininess float32
	Textures  []string
	Flags     *bitset.BitSet
	Params    map[string]savable.Savable
}

func (m *Material) Write(out *savable.OutputCapsule) error {
	if err := out.WriteString(m.Name, "name", ""); err != nil {
		return err
	}
	if err := out.WriteSavable(m.Diffuse, "diffuse", White()); err != nil {
		return err
	}
	if err := out.WriteFloat32(m.Shininess, "shininess", 0); err != nil {
		return err
	}
	if err := out.WriteStringArray(m.Textures, "textures", nil); err != nil {
		return err
	}
	if err := out.WriteBitSet(m.Flags, "flags", nil); err != nil {
		return err
	}
	return out.WriteStringSavableMap(m.Params, "params", nil)
}

func (m *Material) Read(in *savable.InputCapsule) error {
	var err error
	if m.Name, err = in.ReadString("name", ""); err != nil {
		return err
	}
	if m.Diffuse, err = savable.ReadAs(in, "diffuse", White()); err != nil {
		return err
	}
	if m.Shininess, err = in.ReadFloat32("shininess", 0); err != nil {
		return err
	}
	if m.Textures, err = in.ReadStringArray("textures", nil); err != nil {
		return err
	}
	if m.Flags, err = in.ReadBitSet("flags", nil); err != nil {
		return err
	}
	m.Params, err = in.ReadStringSavableMap("params", nil)
	return err
}

// Node is a scene graph node. Parent is rebuilt on read, never stored.
type Node struct {
	Name        string
	Transform   *Vector3
	Material    savable.Savable
	Children    []*Node
	Lights      map[string]savable.Savable
	Attachments map[int]savable.Savable
	Links       []savable.SavablePair
	Tags        []string
	Layers      *roaring.Bitmap
	Created     time.Time
	Parent      *Node
}

func (n *Node) Write(out *savable.OutputCapsule) error {
	if err := out.WriteString(n.Name, "name", ""); err != nil {
		return err
	}
	if err := out.WriteSavable(n.Transform, "transform", nil); err != nil {
		return err
	}
	if err := out.WriteSavable(n.Material, "material", nil); err != nil {
		return err
	}
	if err := out.WriteSavableList(savable.Savables(n.Children), "children", nil); err != nil {
		return err
	}
	if err := out.WriteStringSavableMap(n.Lights, "lights", nil); err != nil {
		return err
	}
	if err := out.WriteIntSavableMap(n.Attachments, "attachments", nil); err != nil {
		return err
	}
	if err := out.WriteSavableMap(n.Links, "links", nil); err != nil {
		return err
	}
	if err := out.WriteStringArray(n.Tags, "tags", nil); err != nil {
		return err
	}
	if err := out.WriteBitmap(n.Layers, "layers", nil); err != nil {
		return err
	}
	return out.WriteTime(n.Created, "created", time.Time{})
}

func (n *Node) Read(in *savable.InputCapsule) error {
	var err error
	if n.Name, err = in.ReadString("name", ""); err != nil {
		return err
	}
	if n.Transform, err = savable.ReadAs[*Vector3](in, "transform", nil); err != nil {
		return err
	}
	if n.Material, err = in.ReadSavable("material", nil); err != nil {
		return err
	}
	if n.Children, err = savable.ReadListAs[*Node](in, "children", nil); err != nil {
		return err
	}
	for _, c := range n.Children {
		c.Parent = n
	}
	if n.Lights, err = in.ReadStringSavableMap("lights", nil); err != nil {
		return err
	}
	if n.Attachments, err = in.ReadIntSavableMap("attachments", nil); err != nil {
		return err
	}
	if n.Links, err = in.ReadSavableMap("links", nil); err != nil {
		return err
	}
	if n.Tags, err = in.ReadStringArray("tags", nil); err != nil {
		return err
	}
	if n.Layers, err = in.ReadBitmap("layers", nil); err != nil {
		return err
	}
	n.Created, err = in.ReadTime("created", time.Time{})
	return err
}

// Find returns the first descendant (or n itself) with the given name.
func (n *Node) Find(name string) *Node {
	if n == nil {
		return nil
	}
	if n.Name == name {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}
