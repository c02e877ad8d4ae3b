package savabletest

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"

	"github.com/Neumenon/savable/buffer"
	"github.com/Neumenon/savable/savable"
)

// Type identifiers of the sample types.
const (
	Vector3ID    = "math.Vector3"
	ColorID      = "math.ColorRGBA"
	LightID      = "scene.Light"
	MaterialID   = "scene.Material"
	NodeID       = "scene.Node"
	PrimitivesID = "test.Primitives"
	FaultyID     = "test.Faulty"
	HolderID     = "test.Holder"
)

// NewRegistry returns a registry holding every sample type, plus the
// legacy alias "scene.Spatial" for scene.Node.
func NewRegistry() *savable.Registry {
	r := savable.NewRegistry()
	must(savable.RegisterType[Vector3](r, Vector3ID))
	must(savable.RegisterType[ColorRGBA](r, ColorID))
	must(savable.RegisterType[Light](r, LightID))
	must(savable.RegisterType[Material](r, MaterialID))
	must(savable.RegisterType[Node](r, NodeID))
	must(savable.RegisterType[Mesh](r, MeshID))
	must(savable.RegisterType[Primitives](r, PrimitivesID))
	must(savable.RegisterType[Faulty](r, FaultyID))
	must(savable.RegisterType[Holder](r, HolderID))
	must(r.Alias("scene.Spatial", NodeID))
	return r
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Scene returns a small graph exercising every object shape.
func Scene() *Node {
	red := &Material{
		Name:      "red",
		Diffuse:   &ColorRGBA{R: 1, A: 1},
		Shininess: 12.5,
		Textures:  []string{"albedo.png", "normal.png"},
		Flags:     bitset.New(8).Set(1).Set(2).Set(4),
		Params: map[string]savable.Savable{
			"tint":   &ColorRGBA{R: 0.5, G: 0.25, B: 0.125, A: 1},
			"offset": &Vector3{X: 1, Y: 2, Z: 3},
		},
	}
	leaf := &Node{
		Name:      "leaf",
		Transform: &Vector3{X: -1.5, Y: 0, Z: 2},
		Material:  red,
		Tags:      []string{"static"},
	}
	lamp := &Node{
		Name: "lamp",
		Lights: map[string]savable.Savable{
			"key":  &Light{Type: Spot, Color: White(), Position: &Vector3{Y: 10}, Intensity: 2.5, Enabled: true},
			"fill": &Light{Type: Point, Color: &ColorRGBA{G: 1, A: 1}, Intensity: 0.5},
		},
	}
	root := &Node{
		Name:     "root",
		Children: []*Node{leaf, lamp},
		Attachments: map[int]savable.Savable{
			0: Triangle(),
			7: &Vector3{Z: 1},
		},
		Links: []savable.SavablePair{
			{Key: &Vector3{X: 1}, Value: red},
			{Key: &ColorRGBA{B: 1, A: 1}, Value: nil},
		},
		Layers:  roaring.BitmapOf(0, 3, 65536),
		Created: time.Date(2024, 3, 1, 12, 30, 0, 500, time.UTC),
	}
	for _, c := range root.Children {
		c.Parent = root
	}
	return root
}

// RandomScene returns a deterministic tree of roughly n nodes, each with a
// mesh attachment, for size and speed measurements.
func RandomScene(n int, seed uint64) *Node {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	root := &Node{Name: "root"}
	nodes := []*Node{root}
	for i := 1; i < n; i++ {
		parent := nodes[rng.IntN(len(nodes))]
		child := &Node{
			Name:      fmt.Sprintf("node-%d", i),
			Transform: &Vector3{X: rng.Float32(), Y: rng.Float32(), Z: rng.Float32()},
			Parent:    parent,
		}
		if i%4 == 0 {
			child.Attachments = map[int]savable.Savable{0: randomMesh(rng, 16+rng.IntN(64))}
		}
		parent.Children = append(parent.Children, child)
		nodes = append(nodes, child)
	}
	return root
}

func randomMesh(rng *rand.Rand, vertices int) *Mesh {
	pos := buffer.New[float32](vertices * 3)
	for pos.HasRemaining() {
		_ = pos.Put(rng.Float32()*10 - 5)
	}
	idx := buffer.New[int32](vertices)
	for idx.HasRemaining() {
		_ = idx.Put(int32(rng.IntN(vertices)))
	}
	return &Mesh{Name: "mesh", Positions: pos, Indices: idx, VertexCount: vertices}
}
