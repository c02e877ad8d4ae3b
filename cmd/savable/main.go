// savable - object graph document tool
//
// Usage:
//
//	savable convert [options] [file]      Re-encode a document or bundle
//	savable inspect [file]                Summarize a document or bundle
//	savable fingerprint [file]            Print the BLAKE3 fingerprint of each document
//	savable demo [options]                Write a bundle of sample scenes
//	savable version                       Print version info
//
// Compression envelopes and bundles are detected on read. If no file is
// given, reads from stdin.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"

	"github.com/spf13/pflag"

	"github.com/Neumenon/savable/doc"
	"github.com/Neumenon/savable/savable"
	"github.com/Neumenon/savable/savable/savabletest"
	"github.com/Neumenon/savable/stream"
)

const libVersion = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "convert":
		cmdConvert(args)
	case "inspect":
		cmdInspect(args)
	case "fingerprint":
		cmdFingerprint(args)
	case "demo":
		cmdDemo(args)
	case "version", "-v", "--version":
		fmt.Printf("savable %s (format %d)\n", libVersion, savable.FormatVersion)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `savable - object graph document tool

Usage:
  savable convert [options] [file]      Re-encode a document or bundle
  savable inspect [file]                Summarize a document or bundle
  savable fingerprint [file]            Print the BLAKE3 fingerprint of each document
  savable demo [options]                Write a bundle of sample scenes
  savable version                       Print version info

Convert options:
  -f, --format string        output format: json, yaml, cbor (default "json")
  -c, --compression string   output envelope: none, zstd, lz4 (default "none")
      --level int            compression level (0 = default)
      --pretty               indent JSON output
  -o, --output string        write to file instead of stdout

Common options:
      --lenient              accept comments and trailing commas in JSON input
      --verbose              log debug output to stderr

If no file is given, reads from stdin.

Examples:
  savable convert -f yaml scene.json
  savable convert -c zstd -f cbor -o scene.cbor.zst scene.json
  savable demo --count 3 | savable inspect
`)
}

// ============================================================
// Shared flags and input
// ============================================================

type commonFlags struct {
	lenient bool
	verbose bool
}

func (c *commonFlags) add(fs *pflag.FlagSet) {
	fs.BoolVar(&c.lenient, "lenient", false, "accept comments and trailing commas in JSON input")
	fs.BoolVar(&c.verbose, "verbose", false, "log debug output to stderr")
}

func (c *commonFlags) logger() *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *commonFlags) importer(logger *slog.Logger) *savable.Importer {
	return savable.NewImporter(savable.ImportOptions{Lenient: c.lenient, Logger: logger})
}

func parseFlags(fs *pflag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		fatal("%v", err)
	}
}

// readInput reads the single optional file argument, or stdin.
func readInput(fs *pflag.FlagSet) []byte {
	var r io.Reader = os.Stdin
	if rest := fs.Args(); len(rest) > 0 && rest[0] != "-" {
		if len(rest) > 1 {
			fatal("unexpected argument: %s", rest[1])
		}
		f, err := os.Open(rest[0])
		if err != nil {
			fatal("open file: %v", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		fatal("read input: %v", err)
	}
	return data
}

// document is one parsed tree of the input.
type document struct {
	seq         uint64
	tree        *doc.Node
	compression stream.Compression
}

// readDocuments parses data as a bundle when it carries frame headers and
// as a single document otherwise.
func readDocuments(im *savable.Importer, data []byte) ([]document, bool) {
	if !stream.IsBundle(data) {
		tree, comp, err := im.ReadTree(bytes.NewReader(data))
		if err != nil {
			fatal("%v", err)
		}
		return []document{{tree: tree, compression: comp}}, false
	}

	frames, err := stream.NewFrameReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		fatal("%v", err)
	}
	docs := make([]document, 0, len(frames))
	for _, f := range frames {
		tree, comp, err := im.ReadTree(bytes.NewReader(f.Payload))
		if err != nil {
			fatal("frame %d: %v", f.Seq, err)
		}
		docs = append(docs, document{seq: f.Seq, tree: tree, compression: comp})
	}
	return docs, true
}

func openOutput(path string) (io.Writer, func()) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}
	}
	f, err := os.Create(path)
	if err != nil {
		fatal("create output: %v", err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			fatal("close output: %v", err)
		}
	}
}

// ============================================================
// convert
// ============================================================

func cmdConvert(args []string) {
	var (
		common     commonFlags
		formatName string
		compName   string
		level      int
		pretty     bool
		outputPath string
	)
	fs := pflag.NewFlagSet("convert", pflag.ContinueOnError)
	fs.StringVarP(&formatName, "format", "f", "json", "output format: json, yaml, cbor")
	fs.StringVarP(&compName, "compression", "c", "none", "output envelope: none, zstd, lz4")
	fs.IntVar(&level, "level", 0, "compression level (0 = default)")
	fs.BoolVar(&pretty, "pretty", false, "indent JSON output")
	fs.StringVarP(&outputPath, "output", "o", "", "write to file instead of stdout")
	common.add(fs)
	parseFlags(fs, args)

	format, ok := doc.FormatByName(formatName)
	if !ok || format == doc.FormatAuto {
		fatal("unknown format: %s", formatName)
	}
	comp, ok := stream.ParseCompression(compName)
	if !ok {
		fatal("unknown compression: %s", compName)
	}

	logger := common.logger()
	docs, bundle := readDocuments(common.importer(logger), readInput(fs))
	ex := savable.NewExporter(savable.ExportOptions{
		Format:           format,
		Pretty:           pretty,
		Compression:      comp,
		CompressionLevel: level,
		Logger:           logger,
	})

	w, done := openOutput(outputPath)
	defer done()

	if !bundle {
		if err := ex.WriteTree(docs[0].tree, w); err != nil {
			fatal("%v", err)
		}
		logger.Debug("converted document", "from", docs[0].compression, "format", format, "compression", comp)
		return
	}

	fw := stream.NewFrameWriter(w)
	for _, d := range docs {
		var buf bytes.Buffer
		if err := ex.WriteTree(d.tree, &buf); err != nil {
			fatal("frame %d: %v", d.seq, err)
		}
		if err := fw.WriteDocument(format.String(), comp, buf.Bytes()); err != nil {
			fatal("%v", err)
		}
	}
	logger.Debug("converted bundle", "frames", len(docs), "format", format, "compression", comp)
}

// ============================================================
// inspect
// ============================================================

func cmdInspect(args []string) {
	var common commonFlags
	fs := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	common.add(fs)
	parseFlags(fs, args)

	docs, bundle := readDocuments(common.importer(common.logger()), readInput(fs))
	for i, d := range docs {
		if bundle {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("--- Frame %d ---\n", d.seq)
		}
		printSummary(d)
	}
	if bundle {
		fmt.Fprintf(os.Stderr, "\n--- %d frames inspected ---\n", len(docs))
	}
}

func printSummary(d document) {
	root := d.tree
	rootType := "?"
	for _, key := range []string{savable.KeySavableType, savable.KeyLegacyType} {
		if s, err := root.Get(key).AsStr(); err == nil {
			rootType = s
			break
		}
	}
	version := "absent"
	if v := root.Get(savable.KeyFormatVersion); v != nil {
		text, _ := doc.MarshalJSON(v)
		version = string(text)
	}

	hist := map[string]int{}
	countObjects(root, hist)

	fmt.Printf("  type=%s format_version=%s compression=%s\n", rootType, version, d.compression)
	fp, err := doc.ComputeFingerprint(root)
	if err == nil {
		fmt.Printf("  fingerprint=%s\n", fp)
	}
	if len(hist) == 0 {
		return
	}
	fmt.Printf("  nested objects:\n")
	for _, id := range slices.Sorted(maps.Keys(hist)) {
		fmt.Printf("    %-32s %d\n", id, hist[id])
	}
}

// countObjects tallies nested ["type", {fields}] objects by type.
func countObjects(n *doc.Node, hist map[string]int) {
	switch {
	case n.IsList():
		items, _ := n.AsList()
		if len(items) == 2 && items[0].Kind() == doc.KindStr && items[1].IsMap() {
			id, _ := items[0].AsStr()
			hist[id]++
		}
		for _, item := range items {
			countObjects(item, hist)
		}
	case n.IsMap():
		entries, _ := n.AsMap()
		for _, e := range entries {
			countObjects(e.Value, hist)
		}
	}
}

// ============================================================
// fingerprint
// ============================================================

func cmdFingerprint(args []string) {
	var common commonFlags
	fs := pflag.NewFlagSet("fingerprint", pflag.ContinueOnError)
	common.add(fs)
	parseFlags(fs, args)

	docs, _ := readDocuments(common.importer(common.logger()), readInput(fs))
	for _, d := range docs {
		fp, err := doc.ComputeFingerprint(d.tree)
		if err != nil {
			fatal("frame %d: %v", d.seq, err)
		}
		fmt.Println(fp)
	}
}

// ============================================================
// demo
// ============================================================

func cmdDemo(args []string) {
	var (
		common     commonFlags
		count      int
		nodes      int
		formatName string
		compName   string
	)
	fs := pflag.NewFlagSet("demo", pflag.ContinueOnError)
	fs.IntVar(&count, "count", 4, "number of scenes in the bundle")
	fs.IntVar(&nodes, "nodes", 16, "nodes per scene")
	fs.StringVarP(&formatName, "format", "f", "json", "document format: json, yaml, cbor")
	fs.StringVarP(&compName, "compression", "c", "none", "document envelope: none, zstd, lz4")
	common.add(fs)
	parseFlags(fs, args)

	format, ok := doc.FormatByName(formatName)
	if !ok || format == doc.FormatAuto {
		fatal("unknown format: %s", formatName)
	}
	comp, ok := stream.ParseCompression(compName)
	if !ok {
		fatal("unknown compression: %s", compName)
	}

	roots := make([]savable.Savable, count)
	for i := range roots {
		roots[i] = savabletest.RandomScene(nodes, uint64(i+1))
	}
	ex := savable.NewExporter(savable.ExportOptions{
		Format:      format,
		Compression: comp,
		Registry:    savabletest.NewRegistry(),
		Logger:      common.logger(),
	})
	if err := ex.EncodeBundle(context.Background(), roots, os.Stdout); err != nil {
		fatal("%v", err)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "savable: "+format+"\n", args...)
	os.Exit(1)
}
