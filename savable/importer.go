package savable

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/Neumenon/savable/doc"
	"github.com/Neumenon/savable/stream"
)

// ImportOptions configures an Importer.
type ImportOptions struct {
	// Format of the input; FormatAuto sniffs JSON, YAML and CBOR.
	Format doc.Format

	// Lenient accepts comments and trailing commas in JSON input.
	Lenient bool

	// Strict makes any nested-object failure abort the decode instead of
	// resolving the field to its default.
	Strict bool

	// MaxDepth bounds object nesting (default DefaultMaxDepth).
	MaxDepth int

	// Registry constructs objects from type identifiers (default Default).
	Registry *Registry

	// Assets is handed to every object through InputCapsule.Assets.
	Assets any

	// Logger receives recovered failures at Warn and a summary at Debug.
	Logger *slog.Logger
}

// DefaultImportOptions returns lenient-recovery, format-sniffing options.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		Format:   doc.FormatAuto,
		MaxDepth: DefaultMaxDepth,
	}
}

// Report describes one decode.
type Report struct {
	// FormatVersion is the document's format_version, 0 when absent.
	FormatVersion int

	// Type is the root object's type identifier.
	Type string

	// Compression is the envelope found around the document.
	Compression stream.Compression

	// Problems are the nested-object failures that were recovered.
	Problems []error
}

// Err joins all recovered problems, or returns nil when there were none.
func (r *Report) Err() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.Problems...)
}

// Importer decodes object graphs. It holds no per-decode state and may be
// used from several goroutines at once.
type Importer struct {
	opts ImportOptions
}

// NewImporter fills unset options with their defaults.
func NewImporter(opts ImportOptions) *Importer {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Registry == nil {
		opts.Registry = Default
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Importer{opts: opts}
}

// Options returns the effective options.
func (im *Importer) Options() ImportOptions { return im.opts }

// Decode reads a document from r and returns its root object.
func (im *Importer) Decode(r io.Reader) (Savable, error) {
	v, _, err := im.DecodeWithReport(r)
	return v, err
}

// DecodeWithReport is Decode that also returns what was recovered.
func (im *Importer) DecodeWithReport(r io.Reader) (Savable, *Report, error) {
	tree, comp, err := im.ReadTree(r)
	if err != nil {
		return nil, nil, err
	}
	v, rep, err := im.DecodeTree(tree, im.opts.Assets)
	if rep != nil {
		rep.Compression = comp
	}
	return v, rep, err
}

// ReadTree decompresses and parses a document without decoding objects.
func (im *Importer) ReadTree(r io.Reader) (*doc.Node, stream.Compression, error) {
	zr, comp, err := stream.NewReader(r)
	if err != nil {
		return nil, comp, err
	}
	defer zr.Close()

	tree, err := doc.ParseReader(zr, doc.ParseOptions{Format: im.opts.Format, Lenient: im.opts.Lenient})
	if err != nil {
		return nil, comp, fmt.Errorf("savable: parse: %w", err)
	}
	return tree, comp, nil
}

// Unmarshal decodes a document held in memory.
func (im *Importer) Unmarshal(data []byte) (Savable, error) {
	return im.Decode(bytes.NewReader(data))
}

// DecodeFile decodes the document stored at path.
func (im *Importer) DecodeFile(path string) (Savable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("savable: %w", err)
	}
	defer f.Close()
	return im.Decode(f)
}

// rootInfo is what the root of a document says about itself.
type rootInfo struct {
	id            string
	fields        *doc.Node
	formatVersion int
	versions      []int
}

// inspectRoot accepts the current root mapping, a mapping using the older
// "type" key, and a bare ["<type>", {fields}] root.
func inspectRoot(tree *doc.Node) (rootInfo, error) {
	var info rootInfo
	switch {
	case tree.IsMap():
		info.fields = tree
		idNode := tree.Get(KeySavableType)
		if idNode == nil {
			idNode = tree.Get(KeyLegacyType)
		}
		if idNode == nil {
			return info, malformed(KeySavableType, "/", "root has no type identifier")
		}
		id, err := idNode.AsStr()
		if err != nil {
			return info, malformed(KeySavableType, "/", "%w", err)
		}
		info.id = id
	case isObjectNode(tree):
		idNode, _ := tree.Index(0)
		info.fields, _ = tree.Index(1)
		info.id, _ = idNode.AsStr()
	default:
		return info, malformed("", "/", "root must be a mapping or [type, fields], got %s", tree.Kind())
	}

	v, err := parseFormatVersion(tree.Get(KeyFormatVersion))
	if err != nil {
		return info, malformed(KeyFormatVersion, "/", "%w", err)
	}
	info.formatVersion = v

	if info.versions, err = parseVersions(info.fields.Get(KeyHierarchyVersions)); err != nil {
		return info, malformed(KeyHierarchyVersions, "/", "%w", err)
	}
	return info, nil
}

// parseFormatVersion accepts an integer or numeric text; empty text and
// absence both mean 0.
func parseFormatVersion(n *doc.Node) (int, error) {
	switch n.Kind() {
	case doc.KindNull:
		return 0, nil
	case doc.KindStr:
		s, _ := n.AsStr()
		if s = strings.TrimSpace(s); s == "" {
			return 0, nil
		}
		return strconv.Atoi(s)
	case doc.KindInt, doc.KindFloat:
		i, err := decodeInt64(n)
		if err != nil {
			return 0, err
		}
		if i < math.MinInt32 || i > math.MaxInt32 {
			return 0, fmt.Errorf("%d out of range", i)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("expected integer, got %s", n.Kind())
	}
}

// DecodeTree decodes an already parsed document. assets is passed through
// to every object's Read.
func (im *Importer) DecodeTree(tree *doc.Node, assets any) (Savable, *Report, error) {
	info, err := inspectRoot(tree)
	if err != nil {
		return nil, nil, err
	}
	root, err := im.opts.Registry.Construct(info.id)
	if err != nil {
		return nil, &Report{FormatVersion: info.formatVersion, Type: info.id},
			&FieldError{Kind: ErrUnknownType, Path: "/", Type: info.id, Err: err}
	}
	rep, err := im.populate(root, info, assets)
	if err != nil {
		return nil, rep, err
	}
	return root, rep, nil
}

// DecodeInto populates a caller-supplied root from tree instead of
// constructing one from the document's type identifier.
func (im *Importer) DecodeInto(tree *doc.Node, root Savable) (*Report, error) {
	if isNil(root) {
		return nil, fmt.Errorf("savable: decode into nil root: %w", ErrUnknownType)
	}
	info, err := inspectRoot(tree)
	if err != nil {
		return nil, err
	}
	return im.populate(root, info, im.opts.Assets)
}

func (im *Importer) populate(root Savable, info rootInfo, assets any) (*Report, error) {
	in := &InputCapsule{
		registry:      im.opts.Registry,
		cur:           newCursor(info.fields, im.opts.MaxDepth),
		formatVersion: info.formatVersion,
		assets:        assets,
		strict:        im.opts.Strict,
		logger:        im.opts.Logger,
	}
	rep := &Report{FormatVersion: info.formatVersion, Type: info.id}

	if err := in.cur.enter(root, info.id, info.versions); err != nil {
		return rep, err
	}
	err := root.Read(in)
	rep.Problems = in.problems
	if err != nil {
		return rep, readFailure("", "/", info.id, err)
	}
	if err := in.cur.Finish(); err != nil {
		return rep, err
	}
	im.opts.Logger.Debug("savable: decoded graph",
		"type", info.id,
		"format_version", info.formatVersion,
		"problems", len(rep.Problems))
	return rep, nil
}

// Decode reads a document from r using the Default registry.
func Decode(r io.Reader) (Savable, error) {
	return NewImporter(DefaultImportOptions()).Decode(r)
}

// DecodeAs decodes a document whose root must be of type T.
func DecodeAs[T Savable](im *Importer, r io.Reader) (T, error) {
	var zero T
	v, err := im.Decode(r)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &FieldError{Kind: ErrTypeMismatch, Path: "/",
			Err: fmt.Errorf("root is %T, want %T", v, zero)}
	}
	return t, nil
}
