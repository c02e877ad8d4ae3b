// Package savabletest provides sample object types and a populated
// registry for tests, benchmarks and the command-line tools.
//
// The types model a small scene graph: vectors and colors, materials,
// lights, nodes with children, and a versioned mesh whose layout changed
// between releases.
package savabletest

import (
	"github.com/Neumenon/savable/savable"
)

// Vector3 is a point or direction.
type Vector3 struct {
	X, Y, Z float32
}

func (v *Vector3) Write(out *savable.OutputCapsule) error {
	if err := out.WriteFloat32(v.X, "x", 0); err != nil {
		return err
	}
	if err := out.WriteFloat32(v.Y, "y", 0); err != nil {
		return err
	}
	return out.WriteFloat32(v.Z, "z", 0)
}

func (v *Vector3) Read(in *savable.InputCapsule) error {
	var err error
	if v.X, err = in.ReadFloat32("x", 0); err != nil {
		return err
	}
	if v.Y, err = in.ReadFloat32("y", 0); err != nil {
		return err
	}
	v.Z, err = in.ReadFloat32("z", 0)
	return err
}

// Equal compares by value.
func (v *Vector3) Equal(other savable.Savable) bool {
	o, ok := other.(*Vector3)
	if !ok {
		return false
	}
	if v == nil || o == nil {
		return v == o
	}
	return *v == *o
}

// ColorRGBA is a color with alpha; alpha defaults to opaque.
type ColorRGBA struct {
	R, G, B, A float32
}

// White is fully opaque white.
func White() *ColorRGBA { return &ColorRGBA{1, 1, 1, 1} }

func (c *ColorRGBA) Write(out *savable.OutputCapsule) error {
	if err := out.WriteFloat32(c.R, "r", 0); err != nil {
		return err
	}
	if err := out.WriteFloat32(c.G, "g", 0); err != nil {
		return err
	}
	if err := out.WriteFloat32(c.B, "b", 0); err != nil {
		return err
	}
	return out.WriteFloat32(c.A, "a", 1)
}

func (c *ColorRGBA) Read(in *savable.InputCapsule) error {
	var err error
	if c.R, err = in.ReadFloat32("r", 0); err != nil {
		return err
	}
	if c.G, err = in.ReadFloat32("g", 0); err != nil {
		return err
	}
	if c.B, err = in.ReadFloat32("b", 0); err != nil {
		return err
	}
	c.A, err = in.ReadFloat32("a", 1)
	return err
}

func (c *ColorRGBA) Equal(other savable.Savable) bool {
	o, ok := other.(*ColorRGBA)
	if !ok {
		return false
	}
	if c == nil || o == nil {
		return c == o
	}
	return *c == *o
}
