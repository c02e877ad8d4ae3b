package savable_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Neumenon/savable/buffer"
	"github.com/Neumenon/savable/doc"
	"github.com/Neumenon/savable/savable"
	"github.com/Neumenon/savable/savable/savabletest"
)

// ============================================================
// Graph Round Trip Tests
// ============================================================

func TestScene_RoundTrip(t *testing.T) {
	want := savabletest.Scene()
	got := roundTrip(t, want)

	if diff := cmp.Diff(want, got, graphOpts); diff != "" {
		t.Fatalf("scene mismatch (-want +got):\n%s", diff)
	}
	for _, c := range got.Children {
		assert.Same(t, got, c.Parent)
	}
}

func TestScene_WireShape(t *testing.T) {
	tree, err := newExporter(savable.ExportOptions{}).EncodeTree(savabletest.Scene())
	require.NoError(t, err)

	keys := tree.Keys()
	require.GreaterOrEqual(t, len(keys), 2)
	assert.Equal(t, []string{savable.KeyFormatVersion, savable.KeySavableType}, keys[:2])

	children := tree.Get("children")
	require.Equal(t, 2, children.Len())
	first, _ := children.Index(0)
	id, _ := first.Index(0)
	fields, _ := first.Index(1)
	idText, _ := id.AsStr()
	assert.Equal(t, savabletest.NodeID, idText)
	assert.True(t, fields.IsMap())

	// Integer-keyed maps keep ascending numeric key order.
	assert.Equal(t, []string{"0", "7"}, tree.Get("attachments").Keys())

	// A nil pair value is kept as null.
	links := tree.Get("links")
	require.Equal(t, 2, links.Len())
	second, _ := links.Index(1)
	val, _ := second.Index(1)
	assert.True(t, val.IsNull())
}

func TestScene_PolymorphicMap(t *testing.T) {
	got := roundTrip(t, savabletest.Scene())
	leaf := got.Find("leaf")
	require.NotNil(t, leaf)

	mat, ok := leaf.Material.(*savabletest.Material)
	require.True(t, ok, "material is %T", leaf.Material)
	assert.IsType(t, &savabletest.ColorRGBA{}, mat.Params["tint"])
	assert.IsType(t, &savabletest.Vector3{}, mat.Params["offset"])

	lamp := got.Find("lamp")
	require.NotNil(t, lamp)
	key := lamp.Lights["key"].(*savabletest.Light)
	assert.Equal(t, savabletest.Spot, key.Type)
	assert.Equal(t, savabletest.White(), key.Color)

	fill := lamp.Lights["fill"].(*savabletest.Light)
	assert.False(t, fill.Enabled)
	assert.Nil(t, fill.Position)
}

func TestScene_SharedObjectIsNotACycle(t *testing.T) {
	shared := &savabletest.Vector3{X: 4}
	root := &savabletest.Holder{
		List:   []savable.Savable{shared, shared},
		ByName: map[string]savable.Savable{"a": shared},
	}
	got := roundTrip(t, root)
	require.Len(t, got.List, 2)
	assert.NotSame(t, got.List[0], got.List[1])
	assert.Equal(t, shared, got.ByName["a"])
}

func TestHolder_Containers(t *testing.T) {
	v := &savabletest.Vector3{X: 1}
	c := &savabletest.ColorRGBA{G: 1, A: 1}
	want := &savabletest.Holder{
		One:     v,
		Array:   []savable.Savable{v, nil, c},
		Array2D: [][]savable.Savable{{v, nil}, nil, {c}},
		List:    []savable.Savable{c, v},
		Lists:   [][]savable.Savable{{v}, {c, v}},
		Lists2D: [][][]savable.Savable{{{v}, {c}}, nil},
		ByName:  map[string]savable.Savable{"v": v, "c": c},
		ByID:    map[int]savable.Savable{10: v, 2: c},
		Pairs:   []savable.SavablePair{{Key: v, Value: c}, {Key: c, Value: nil}},
	}
	got := roundTrip(t, want)
	if diff := cmp.Diff(want, got, graphOpts); diff != "" {
		t.Fatalf("holder mismatch (-want +got):\n%s", diff)
	}
}

func TestHolder_ListDropsNil(t *testing.T) {
	v := &savabletest.Vector3{Y: 2}
	got := roundTrip(t, &savabletest.Holder{
		List:   []savable.Savable{nil, v, nil},
		ByName: map[string]savable.Savable{"gone": nil, "kept": v},
		Pairs:  []savable.SavablePair{{Key: nil, Value: v}, {Key: v, Value: v}},
	})
	assert.Equal(t, []savable.Savable{v}, got.List)
	assert.Equal(t, map[string]savable.Savable{"kept": v}, got.ByName)
	assert.Len(t, got.Pairs, 1)
}

func TestHolder_AllNilListNotWritten(t *testing.T) {
	tree, err := newExporter(savable.ExportOptions{}).EncodeTree(&savabletest.Holder{
		List: []savable.Savable{nil, (*savabletest.Vector3)(nil)},
	})
	require.NoError(t, err)
	assert.Nil(t, tree.Get("list"))

	got := roundTrip(t, &savabletest.Holder{List: []savable.Savable{nil}})
	assert.Empty(t, got.List)
}

func TestObjectMap_FlatLegacyForm(t *testing.T) {
	vec := object(savabletest.Vector3ID, doc.Field("x", doc.Float(1)))
	col := object(savabletest.ColorID, doc.Field("r", doc.Float(1)))
	tree := doc.Map(
		doc.Field(savable.KeySavableType, doc.Str(savabletest.HolderID)),
		doc.Field("pairs", doc.List(vec, col, col, doc.Null())),
	)
	v, _, err := newImporter(savable.ImportOptions{}).DecodeTree(tree, nil)
	require.NoError(t, err)

	h := v.(*savabletest.Holder)
	require.Len(t, h.Pairs, 2)
	assert.Equal(t, &savabletest.Vector3{X: 1}, h.Pairs[0].Key)
	assert.Equal(t, &savabletest.ColorRGBA{R: 1, A: 1}, h.Pairs[0].Value)
	assert.Nil(t, h.Pairs[1].Value)

	tree.Set("pairs", doc.List(vec, col, vec))
	_, rep, err := newImporter(savable.ImportOptions{}).DecodeTree(tree, nil)
	require.NoError(t, err)
	require.Len(t, rep.Problems, 1)
	assert.ErrorIs(t, rep.Problems[0], savable.ErrMalformedField)
}

// ============================================================
// Versioning Tests
// ============================================================

func TestMesh_CurrentLayout(t *testing.T) {
	tree, err := newExporter(savable.ExportOptions{}).EncodeTree(savabletest.Triangle())
	require.NoError(t, err)
	versions, _ := tree.Get(savable.KeyHierarchyVersions).AsStr()
	assert.Equal(t, "2,1", versions)

	got := roundTrip(t, savabletest.Triangle())
	assert.Equal(t, savabletest.MeshVersion, got.Layout)
	assert.Equal(t, 3, got.VertexCount)
	if diff := cmp.Diff(savabletest.Triangle(), got, graphOpts); diff != "" {
		t.Errorf("mesh mismatch (-want +got):\n%s", diff)
	}
}

func TestMesh_LegacyLayouts(t *testing.T) {
	vertices := doc.List(doc.Int(0), doc.Int(0), doc.Int(0), doc.Int(1), doc.Int(1), doc.Int(1))
	tests := []struct {
		name     string
		versions *doc.Node
		layout   int
	}{
		{"no versions", nil, 0},
		{"version one", doc.Str("1,1"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := doc.Map(
				doc.Field(savable.KeyFormatVersion, doc.Int(1)),
				doc.Field(savable.KeySavableType, doc.Str(savabletest.MeshID)),
				doc.Field("name", doc.Str("old")),
				doc.Field("vertices", vertices),
			)
			if tt.versions != nil {
				tree.Set(savable.KeyHierarchyVersions, tt.versions)
			}
			v, rep, err := newImporter(savable.ImportOptions{}).DecodeTree(tree, nil)
			require.NoError(t, err)
			assert.Equal(t, 1, rep.FormatVersion)

			m := v.(*savabletest.Mesh)
			assert.Equal(t, tt.layout, m.Layout)
			assert.Equal(t, 2, m.VertexCount)
			assert.Equal(t, []float32{0, 0, 0, 1, 1, 1}, m.Positions.Values())
		})
	}
}

func TestMesh_NestedVersionsAsList(t *testing.T) {
	mesh := object(savabletest.MeshID,
		doc.Field(savable.KeyHierarchyVersions, doc.List(doc.Int(2), doc.Int(1))),
		doc.Field("vertex_count", doc.Int(1)),
		doc.Field("positions", doc.List(doc.Int(1), doc.Int(2), doc.Int(3))),
	)
	tree := doc.Map(
		doc.Field(savable.KeySavableType, doc.Str(savabletest.HolderID)),
		doc.Field("one", mesh),
	)
	v, _, err := newImporter(savable.ImportOptions{}).DecodeTree(tree, nil)
	require.NoError(t, err)

	m := v.(*savabletest.Holder).One.(*savabletest.Mesh)
	assert.Equal(t, 2, m.Layout)
	assert.Equal(t, 1, m.VertexCount)
}

func TestSavableVersion_Lookup(t *testing.T) {
	tree := rootDoc(doc.Field(savable.KeyHierarchyVersions, doc.Str("3,2")))
	root := &probe{hierarchy: []string{"a", "b", "c"}}
	root.read = func(in *savable.InputCapsule) error {
		assert.Equal(t, 3, in.SavableVersion("a"))
		assert.Equal(t, 2, in.SavableVersion("b"))
		assert.Equal(t, 0, in.SavableVersion("c"), "level without a recorded version")
		assert.Equal(t, 0, in.SavableVersion("zzz"), "level outside the hierarchy")
		return nil
	}
	_, err := newImporter(savable.ImportOptions{}).DecodeInto(tree, root)
	require.NoError(t, err)
}

// ============================================================
// Buffer Tests
// ============================================================

func TestBuffer_WriteKeepsPosition(t *testing.T) {
	b := buffer.Of[float32](1, 2, 3)
	require.NoError(t, b.SetPosition(2))

	tree, err := encodeProbe(t, func(out *savable.OutputCapsule) error {
		return out.WriteFloatBuffer(b, "b", nil)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, b.Position())

	text, _ := doc.MarshalJSON(tree.Get("b"))
	assert.Equal(t, "[1.0,2.0,3.0]", string(text))
}

func TestBuffer_TruncatedStorage(t *testing.T) {
	b := buffer.Of[float32](1, 2, 3, 4)
	require.NoError(t, b.SetPosition(1))
	b.Remap([]float32{1, 2})

	_, err := encodeProbe(t, func(out *savable.OutputCapsule) error {
		return out.WriteFloatBuffer(b, "b", nil)
	})
	assert.ErrorIs(t, err, savable.ErrBufferConsistency)
	assert.Equal(t, 1, b.Position())

	_, err = encodeProbe(t, func(out *savable.OutputCapsule) error {
		return out.WriteFloatBufferList([]*buffer.Floats{buffer.Of[float32](1), b}, "lods", nil)
	})
	assert.ErrorIs(t, err, savable.ErrBufferConsistency)
}

func TestBuffer_ReadForms(t *testing.T) {
	legacy := doc.Map(doc.Field("size", doc.Int(3)), doc.Field("data", doc.Str("1 2.5 3")))
	badSize := doc.Map(doc.Field("size", doc.Int(5)), doc.Field("data", doc.Str("1 2")))
	tree := rootDoc(
		doc.Field("list", doc.List(doc.Int(7), doc.Int(8))),
		doc.Field("legacy", legacy),
		doc.Field("bad", badSize),
		doc.Field("lods", doc.List(doc.List(doc.Int(1)), doc.Null())),
	)
	_, err := decodeProbe(t, tree, savable.ImportOptions{}, func(in *savable.InputCapsule) error {
		ints, err := in.ReadIntBuffer("list", nil)
		require.NoError(t, err)
		assert.Equal(t, []int32{7, 8}, ints.Values())
		assert.Equal(t, 0, ints.Position())
		assert.Equal(t, 2, ints.Capacity())

		floats, err := in.ReadFloatBuffer("legacy", nil)
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2.5, 3}, floats.Values())
		assert.Equal(t, 3, floats.Limit())

		_, err = in.ReadFloatBuffer("bad", nil)
		assert.ErrorIs(t, err, savable.ErrWrongContainerSize)

		lods, err := in.ReadFloatBufferList("lods", nil)
		require.NoError(t, err)
		require.Len(t, lods, 2)
		assert.Equal(t, []float32{1}, lods[0].Values())
		assert.Nil(t, lods[1])
		return nil
	})
	require.NoError(t, err)
}

// ============================================================
// Recovery Policy Tests
// ============================================================

func faultyHolder() *savabletest.Holder {
	return &savabletest.Holder{
		One:   &savabletest.Faulty{Fail: true},
		Array: []savable.Savable{&savabletest.Vector3{X: 1}, &savabletest.Faulty{Fail: true}},
		List: []savable.Savable{
			&savabletest.Vector3{X: 1},
			&savabletest.Faulty{Fail: true},
			&savabletest.Vector3{X: 2},
		},
		ByName: map[string]savable.Savable{
			"ok":  &savabletest.Faulty{Note: "fine"},
			"bad": &savabletest.Faulty{Fail: true},
		},
	}
}

func TestRecovery_Lenient(t *testing.T) {
	var logs bytes.Buffer
	im := newImporter(savable.ImportOptions{
		Logger: slog.New(slog.NewJSONHandler(&logs, nil)),
	})
	data, err := newExporter(savable.ExportOptions{}).Marshal(faultyHolder())
	require.NoError(t, err)

	v, rep, err := im.DecodeWithReport(bytes.NewReader(data))
	require.NoError(t, err)
	h := v.(*savabletest.Holder)

	assert.Nil(t, h.One)
	assert.Equal(t, []savable.Savable{&savabletest.Vector3{X: 1}, nil}, h.Array)
	assert.Equal(t, []savable.Savable{&savabletest.Vector3{X: 1}, &savabletest.Vector3{X: 2}}, h.List)
	assert.Equal(t, map[string]savable.Savable{"ok": &savabletest.Faulty{Note: "fine"}}, h.ByName)

	require.Len(t, rep.Problems, 4)
	for _, p := range rep.Problems {
		assert.ErrorIs(t, p, savable.ErrFieldReadFailure)
		assert.ErrorIs(t, p, savabletest.ErrFaulty)
	}
	assert.ErrorIs(t, rep.Err(), savabletest.ErrFaulty)

	var fe *savable.FieldError
	require.ErrorAs(t, rep.Problems[0], &fe)
	assert.Equal(t, "one", fe.Field)
	assert.Equal(t, "/one", fe.Path)
	assert.Equal(t, savabletest.FaultyID, fe.Type)

	assert.Equal(t, 4, strings.Count(logs.String(), "nested object skipped"))
	assert.Contains(t, logs.String(), `"type":"test.Faulty"`)
}

func TestRecovery_Strict(t *testing.T) {
	data, err := newExporter(savable.ExportOptions{}).Marshal(faultyHolder())
	require.NoError(t, err)

	_, err = newImporter(savable.ImportOptions{Strict: true}).Unmarshal(data)
	assert.ErrorIs(t, err, savable.ErrFieldReadFailure)
	assert.ErrorIs(t, err, savabletest.ErrFaulty)
}

func TestRecovery_RootFailureIsFatal(t *testing.T) {
	data, err := newExporter(savable.ExportOptions{}).Marshal(&savabletest.Faulty{Fail: true})
	require.NoError(t, err)

	v, err := newImporter(savable.ImportOptions{}).Unmarshal(data)
	assert.Nil(t, v)
	assert.ErrorIs(t, err, savable.ErrFieldReadFailure)
}

func TestRecovery_UnknownNestedType(t *testing.T) {
	tree := doc.Map(
		doc.Field(savable.KeySavableType, doc.Str(savabletest.HolderID)),
		doc.Field("one", object("nope.Missing")),
		doc.Field("list", doc.List(object("nope.Missing"), object(savabletest.Vector3ID))),
	)
	v, rep, err := newImporter(savable.ImportOptions{}).DecodeTree(tree, nil)
	require.NoError(t, err)

	h := v.(*savabletest.Holder)
	assert.Nil(t, h.One)
	assert.Equal(t, []savable.Savable{&savabletest.Vector3{}}, h.List)

	require.Len(t, rep.Problems, 2)
	var fe *savable.FieldError
	require.ErrorAs(t, rep.Problems[0], &fe)
	assert.ErrorIs(t, fe, savable.ErrUnknownType)
	assert.Equal(t, "nope.Missing", fe.Type)

	_, _, err = newImporter(savable.ImportOptions{Strict: true}).DecodeTree(tree, nil)
	assert.ErrorIs(t, err, savable.ErrUnknownType)
}

func TestRecovery_MalformedObject(t *testing.T) {
	tree := doc.Map(
		doc.Field(savable.KeySavableType, doc.Str(savabletest.HolderID)),
		doc.Field("one", doc.List(doc.Str(savabletest.Vector3ID))),
		doc.Field("list", doc.List(doc.List(doc.Int(1), doc.Map()))),
		doc.Field("by_name", doc.Map(doc.Field("x", object(savabletest.Vector3ID, doc.Field("x", doc.Str("wide")))))),
	)
	v, rep, err := newImporter(savable.ImportOptions{}).DecodeTree(tree, nil)
	require.NoError(t, err)
	h := v.(*savabletest.Holder)
	assert.Nil(t, h.One)
	assert.Empty(t, h.List)
	assert.Empty(t, h.ByName)

	require.Len(t, rep.Problems, 3)
	assert.ErrorIs(t, rep.Problems[0], savable.ErrMalformedField)
	assert.ErrorIs(t, rep.Problems[1], savable.ErrMalformedField)
	assert.ErrorIs(t, rep.Problems[2], savable.ErrFieldReadFailure)
	assert.ErrorIs(t, rep.Problems[2], savable.ErrMalformedField)
}

func TestRecovery_TypeMismatch(t *testing.T) {
	tree := doc.Map(
		doc.Field(savable.KeySavableType, doc.Str(savabletest.LightID)),
		doc.Field("position", object(savabletest.ColorID)),
		doc.Field("intensity", doc.Float(3)),
	)
	v, rep, err := newImporter(savable.ImportOptions{}).DecodeTree(tree, nil)
	require.NoError(t, err)

	l := v.(*savabletest.Light)
	assert.Nil(t, l.Position)
	assert.Equal(t, 3.0, l.Intensity)
	require.Len(t, rep.Problems, 1)
	assert.ErrorIs(t, rep.Problems[0], savable.ErrTypeMismatch)
}

// ============================================================
// Graph Shape Limit Tests
// ============================================================

func chain(depth int) *savabletest.Node {
	root := &savabletest.Node{Name: "n0"}
	cur := root
	for i := 1; i < depth; i++ {
		next := &savabletest.Node{Name: "n", Parent: cur}
		cur.Children = []*savabletest.Node{next}
		cur = next
	}
	return root
}

func TestGraph_Cycle(t *testing.T) {
	root := &savabletest.Node{Name: "loop"}
	child := &savabletest.Node{Name: "child", Parent: root}
	root.Children = []*savabletest.Node{child}
	child.Children = []*savabletest.Node{root}

	_, err := newExporter(savable.ExportOptions{}).EncodeTree(root)
	require.ErrorIs(t, err, savable.ErrCycle)

	var fe *savable.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "/children/0/children/0", fe.Path)
}

func TestGraph_DepthLimit(t *testing.T) {
	deep := chain(10)

	_, err := newExporter(savable.ExportOptions{MaxDepth: 5}).EncodeTree(deep)
	assert.ErrorIs(t, err, savable.ErrDepthExceeded)

	data, err := newExporter(savable.ExportOptions{}).Marshal(deep)
	require.NoError(t, err)

	_, err = newImporter(savable.ImportOptions{MaxDepth: 5}).Unmarshal(data)
	assert.ErrorIs(t, err, savable.ErrDepthExceeded)

	got, err := newImporter(savable.ImportOptions{MaxDepth: 9}).Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "n0", got.(*savabletest.Node).Name)
}

// ============================================================
// Typed Helper Tests
// ============================================================

type vectorBag struct {
	Array []*savabletest.Vector3
	List  []*savabletest.Vector3
	Named map[string]*savabletest.Vector3
}

func (*vectorBag) SavableType() string { return "test.VectorBag" }

func (b *vectorBag) Write(out *savable.OutputCapsule) error {
	if err := out.WriteSavableArray(savable.Savables(b.Array), "array", nil); err != nil {
		return err
	}
	if err := out.WriteSavableList(savable.Savables(b.List), "list", nil); err != nil {
		return err
	}
	return out.WriteStringSavableMap(savable.StringSavables(b.Named), "named", nil)
}

func (b *vectorBag) Read(in *savable.InputCapsule) error {
	var err error
	if b.Array, err = savable.ReadArrayAs[*savabletest.Vector3](in, "array", nil); err != nil {
		return err
	}
	if b.List, err = savable.ReadListAs[*savabletest.Vector3](in, "list", nil); err != nil {
		return err
	}
	b.Named, err = savable.ReadStringMapAs[*savabletest.Vector3](in, "named", nil)
	return err
}

func TestTypedHelpers(t *testing.T) {
	tree := doc.Map(
		doc.Field(savable.KeySavableType, doc.Str("test.VectorBag")),
		doc.Field("array", doc.List(object(savabletest.Vector3ID), object(savabletest.ColorID), doc.Null())),
		doc.Field("list", doc.List(object(savabletest.ColorID), object(savabletest.Vector3ID, doc.Field("z", doc.Int(1))))),
		doc.Field("named", doc.Map(
			doc.Field("v", object(savabletest.Vector3ID)),
			doc.Field("c", object(savabletest.ColorID)),
		)),
	)
	bag := &vectorBag{}
	rep, err := newImporter(savable.ImportOptions{}).DecodeInto(tree, bag)
	require.NoError(t, err)

	assert.Equal(t, []*savabletest.Vector3{{}, nil, nil}, bag.Array)
	assert.Equal(t, []*savabletest.Vector3{{Z: 1}}, bag.List)
	assert.Equal(t, map[string]*savabletest.Vector3{"v": {}}, bag.Named)

	require.Len(t, rep.Problems, 3)
	for _, p := range rep.Problems {
		assert.ErrorIs(t, p, savable.ErrTypeMismatch)
	}

	_, err = newImporter(savable.ImportOptions{Strict: true}).DecodeInto(tree, &vectorBag{})
	assert.ErrorIs(t, err, savable.ErrTypeMismatch)
}

func TestTypedHelpers_WriteSide(t *testing.T) {
	bag := &vectorBag{
		Array: []*savabletest.Vector3{{X: 1}, nil},
		List:  []*savabletest.Vector3{{Y: 1}},
		Named: map[string]*savabletest.Vector3{"a": {Z: 1}},
	}
	tree, err := newExporter(savable.ExportOptions{}).EncodeTree(bag)
	require.NoError(t, err)

	got := &vectorBag{}
	_, err = newImporter(savable.ImportOptions{}).DecodeInto(tree, got)
	require.NoError(t, err)
	assert.Equal(t, bag, got)
}
