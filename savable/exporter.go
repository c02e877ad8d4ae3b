package savable

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Neumenon/savable/doc"
	"github.com/Neumenon/savable/stream"
)

// ExportOptions configures an Exporter.
type ExportOptions struct {
	// Format of the output document (default JSON).
	Format doc.Format

	// Pretty indents JSON output; Indent overrides the two-space default.
	Pretty bool
	Indent string

	// Compression wraps the document in a zstd or lz4 envelope.
	Compression      stream.Compression
	CompressionLevel int

	// FormatVersion is written as format_version. Zero selects
	// FormatVersion.
	FormatVersion int

	// MaxDepth bounds object nesting (default DefaultMaxDepth).
	MaxDepth int

	// Registry resolves type identifiers (default Default).
	Registry *Registry

	// Logger receives debug output (default discards).
	Logger *slog.Logger
}

// DefaultExportOptions returns compact, uncompressed JSON at the current
// format version.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Format:        doc.FormatJSON,
		Indent:        "  ",
		FormatVersion: FormatVersion,
		MaxDepth:      DefaultMaxDepth,
	}
}

// Exporter encodes object graphs. It holds no per-encode state and may be
// used from several goroutines at once.
type Exporter struct {
	opts ExportOptions
}

// NewExporter fills unset options with their defaults.
func NewExporter(opts ExportOptions) *Exporter {
	if opts.Format == doc.FormatAuto {
		opts.Format = doc.FormatJSON
	}
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	if opts.FormatVersion == 0 {
		opts.FormatVersion = FormatVersion
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Registry == nil {
		opts.Registry = Default
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Exporter{opts: opts}
}

// Options returns the effective options.
func (e *Exporter) Options() ExportOptions { return e.opts }

// EncodeTree encodes root into a document tree without serializing it.
func (e *Exporter) EncodeTree(root Savable) (*doc.Node, error) {
	if isNil(root) {
		return nil, fmt.Errorf("savable: encode nil root: %w", ErrUnknownType)
	}
	id, err := e.opts.Registry.IdentifierOf(root)
	if err != nil {
		return nil, err
	}

	tree := doc.Map(
		doc.Field(KeyFormatVersion, doc.Int(int64(e.opts.FormatVersion))),
		doc.Field(KeySavableType, doc.Str(id)),
	)
	out := newOutputCapsule(e.opts.Registry, tree, e.opts.MaxDepth, e.opts.Logger)
	if err := out.writeFields(root, id, tree, "", false); err != nil {
		return nil, err
	}
	if err := out.cur.Finish(); err != nil {
		return nil, err
	}
	e.opts.Logger.Debug("savable: encoded graph", "type", id, "keys", tree.Len())
	return tree, nil
}

// Marshal encodes root into document bytes, compressed when configured.
func (e *Exporter) Marshal(root Savable) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Encode(root, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes root to w. The whole tree is built before the first byte
// is written, so a failed encode leaves w untouched.
func (e *Exporter) Encode(root Savable, w io.Writer) error {
	tree, err := e.EncodeTree(root)
	if err != nil {
		return err
	}
	return e.WriteTree(tree, w)
}

// WriteTree serializes an already encoded tree with the exporter's format
// and compression.
func (e *Exporter) WriteTree(tree *doc.Node, w io.Writer) error {
	zw, err := stream.NewWriter(w, stream.Options{
		Compression: e.opts.Compression,
		Level:       e.opts.CompressionLevel,
	})
	if err != nil {
		return err
	}
	jsonOpts := doc.JSONOptions{Pretty: e.opts.Pretty, Indent: e.opts.Indent}
	if err := doc.Write(zw, tree, e.opts.Format, jsonOpts); err != nil {
		zw.Close()
		return fmt.Errorf("savable: write %s: %w", e.opts.Format, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("savable: close %s envelope: %w", e.opts.Compression, err)
	}
	return nil
}

// EncodeFile writes root to path, replacing any existing file.
func (e *Exporter) EncodeFile(root Savable, path string) error {
	data, err := e.Marshal(root)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("savable: %w", err)
	}
	return nil
}

// Encode writes root to w as compact JSON using the Default registry.
func Encode(root Savable, w io.Writer) error {
	return NewExporter(DefaultExportOptions()).Encode(root, w)
}

// EncodeTree encodes root with default options.
func EncodeTree(root Savable) (*doc.Node, error) {
	return NewExporter(DefaultExportOptions()).EncodeTree(root)
}
