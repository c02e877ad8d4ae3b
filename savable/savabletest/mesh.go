package savabletest

import (
	"github.com/Neumenon/savable/buffer"
	"github.com/Neumenon/savable/savable"
)

// Type identifiers of the mesh hierarchy, most-derived first.
const (
	MeshID     = "scene.Mesh"
	GeometryID = "scene.Geometry"
)

// Current layout versions of each hierarchy level.
const (
	MeshVersion     = 2
	GeometryVersion = 1
)

// Mesh is versioned geometry. Version 0 meshes stored their positions
// under "vertices"; version 2 renamed the field to "positions" and added
// the explicit "vertex_count".
type Mesh struct {
	Name        string
	Positions   *buffer.Floats
	Indices     *buffer.Ints
	Indices16   *buffer.Shorts
	Colors      *buffer.Bytes
	LODs        []*buffer.Floats
	Blobs       []*buffer.Bytes
	VertexCount int

	// Layout is the mesh version the fields were read with.
	Layout int
}

func (m *Mesh) SavableVersions() []int { return []int{MeshVersion, GeometryVersion} }

func (m *Mesh) TypeHierarchy() []string { return []string{MeshID, GeometryID} }

func (m *Mesh) Write(out *savable.OutputCapsule) error {
	if err := out.WriteString(m.Name, "name", ""); err != nil {
		return err
	}
	if err := out.WriteInt(m.VertexCount, "vertex_count", 0); err != nil {
		return err
	}
	if err := out.WriteFloatBuffer(m.Positions, "positions", nil); err != nil {
		return err
	}
	if err := out.WriteIntBuffer(m.Indices, "indices", nil); err != nil {
		return err
	}
	if err := out.WriteShortBuffer(m.Indices16, "indices16", nil); err != nil {
		return err
	}
	if err := out.WriteByteBuffer(m.Colors, "colors", nil); err != nil {
		return err
	}
	if err := out.WriteFloatBufferList(m.LODs, "lods", nil); err != nil {
		return err
	}
	return out.WriteByteBufferList(m.Blobs, "blobs", nil)
}

func (m *Mesh) Read(in *savable.InputCapsule) error {
	var err error
	m.Layout = in.SavableVersion(MeshID)
	if m.Name, err = in.ReadString("name", ""); err != nil {
		return err
	}
	if m.Layout >= 2 {
		if m.VertexCount, err = in.ReadInt("vertex_count", 0); err != nil {
			return err
		}
		if m.Positions, err = in.ReadFloatBuffer("positions", nil); err != nil {
			return err
		}
	} else {
		if m.Positions, err = in.ReadFloatBuffer("vertices", nil); err != nil {
			return err
		}
		if m.Positions != nil {
			m.VertexCount = m.Positions.Limit() / 3
		}
	}
	if m.Indices, err = in.ReadIntBuffer("indices", nil); err != nil {
		return err
	}
	if m.Indices16, err = in.ReadShortBuffer("indices16", nil); err != nil {
		return err
	}
	if m.Colors, err = in.ReadByteBuffer("colors", nil); err != nil {
		return err
	}
	if m.LODs, err = in.ReadFloatBufferList("lods", nil); err != nil {
		return err
	}
	m.Blobs, err = in.ReadByteBufferList("blobs", nil)
	return err
}

// Triangle returns a one-triangle mesh.
func Triangle() *Mesh {
	return &Mesh{
		Name:        "triangle",
		Positions:   buffer.Of[float32](0, 0, 0, 1, 0, 0, 0, 1, 0),
		Indices:     buffer.Of[int32](0, 1, 2),
		Indices16:   buffer.Of[int16](0, 1, 2),
		Colors:      buffer.Of[byte](255, 0, 0, 255),
		VertexCount: 3,
	}
}
