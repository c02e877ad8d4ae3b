package savable_test

import (
	"bytes"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/Neumenon/savable/buffer"
	"github.com/Neumenon/savable/doc"
	"github.com/Neumenon/savable/savable"
	"github.com/Neumenon/savable/savable/savabletest"
)

// probe is a root object whose Write and Read are supplied by the test.
type probe struct {
	write     func(out *savable.OutputCapsule) error
	read      func(in *savable.InputCapsule) error
	versions  []int
	hierarchy []string
}

func (*probe) SavableType() string { return "test.Probe" }

func (p *probe) SavableVersions() []int { return p.versions }

func (p *probe) TypeHierarchy() []string { return p.hierarchy }

func (p *probe) Write(out *savable.OutputCapsule) error {
	if p.write == nil {
		return nil
	}
	return p.write(out)
}

func (p *probe) Read(in *savable.InputCapsule) error {
	if p.read == nil {
		return nil
	}
	return p.read(in)
}

// encodeProbe runs write against a fresh root and returns the tree.
func encodeProbe(t *testing.T, write func(out *savable.OutputCapsule) error) (*doc.Node, error) {
	t.Helper()
	ex := savable.NewExporter(savable.ExportOptions{Registry: savabletest.NewRegistry()})
	return ex.EncodeTree(&probe{write: write})
}

// rootDoc builds a root mapping for test.Probe holding fields.
func rootDoc(fields ...doc.Entry) *doc.Node {
	tree := doc.Map(
		doc.Field(savable.KeyFormatVersion, doc.Int(savable.FormatVersion)),
		doc.Field(savable.KeySavableType, doc.Str("test.Probe")),
	)
	for _, f := range fields {
		tree.Set(f.Key, f.Value)
	}
	return tree
}

// decodeProbe runs read against tree with the sample registry.
func decodeProbe(t *testing.T, tree *doc.Node, opts savable.ImportOptions, read func(in *savable.InputCapsule) error) (*savable.Report, error) {
	t.Helper()
	if opts.Registry == nil {
		opts.Registry = savabletest.NewRegistry()
	}
	return savable.NewImporter(opts).DecodeInto(tree, &probe{read: read})
}

// object builds the ["id", {fields}] form by hand.
func object(id string, fields ...doc.Entry) *doc.Node {
	return doc.List(doc.Str(id), doc.Map(fields...))
}

func newExporter(opts savable.ExportOptions) *savable.Exporter {
	if opts.Registry == nil {
		opts.Registry = savabletest.NewRegistry()
	}
	return savable.NewExporter(opts)
}

func newImporter(opts savable.ImportOptions) *savable.Importer {
	if opts.Registry == nil {
		opts.Registry = savabletest.NewRegistry()
	}
	return savable.NewImporter(opts)
}

// roundTrip encodes v as JSON and decodes it back as the same type.
func roundTrip[T savable.Savable](t *testing.T, v T) T {
	t.Helper()
	data, err := newExporter(savable.ExportOptions{}).Marshal(v)
	require.NoError(t, err)
	got, err := savable.DecodeAs[T](newImporter(savable.ImportOptions{}), bytes.NewReader(data))
	require.NoError(t, err, "decode %s", data)
	return got
}

func bitSetsEqual(a, b *bitset.BitSet) bool {
	if a == nil || b == nil {
		return a == b
	}
	n := a.Count()
	return n == b.Count() && a.IntersectionCardinality(b) == n
}

// graphOpts compares decoded sample graphs with their originals.
var graphOpts = cmp.Options{
	cmpopts.IgnoreFields(savabletest.Node{}, "Parent"),
	cmpopts.IgnoreFields(savabletest.Mesh{}, "Layout"),
	cmpopts.EquateNaNs(),
	cmp.Comparer(bitSetsEqual),
	cmp.Comparer(func(a, b *roaring.Bitmap) bool {
		if a == nil || b == nil {
			return a == b
		}
		return a.Equals(b)
	}),
	cmp.Comparer(func(a, b *buffer.Floats) bool { return buffer.Equal(a, b) }),
	cmp.Comparer(func(a, b *buffer.Ints) bool { return buffer.Equal(a, b) }),
	cmp.Comparer(func(a, b *buffer.Shorts) bool { return buffer.Equal(a, b) }),
	cmp.Comparer(func(a, b *buffer.Bytes) bool { return buffer.Equal(a, b) }),
}
