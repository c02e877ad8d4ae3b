// bench - savable size and speed runner
//
// Encodes sample scene graphs of several sizes in every format and
// compression envelope, then decodes them back:
//   - Bytes on wire
//   - Encode and decode time per graph
//
// Output: CSV and markdown summary
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/spf13/pflag"

	"github.com/Neumenon/savable/doc"
	"github.com/Neumenon/savable/savable"
	"github.com/Neumenon/savable/savable/savabletest"
	"github.com/Neumenon/savable/stream"
)

type CaseResult struct {
	Nodes       int
	Format      doc.Format
	Compression stream.Compression
	Bytes       int
	BytesPct    float64 // relative to uncompressed JSON of the same graph
	Encode      time.Duration
	Decode      time.Duration
}

func main() {
	var (
		sizes   []int
		rounds  int
		csvPath string
		mdPath  string
	)
	fs := pflag.NewFlagSet("bench", pflag.ContinueOnError)
	fs.IntSliceVar(&sizes, "nodes", []int{10, 100, 1000}, "scene sizes in nodes")
	fs.IntVar(&rounds, "rounds", 5, "encode/decode rounds per case")
	fs.StringVar(&csvPath, "csv", "bench_results.csv", "CSV output path (empty to skip)")
	fs.StringVar(&mdPath, "md", "BENCH.md", "markdown output path (empty to skip)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		os.Exit(2)
	}
	rounds = max(rounds, 1)

	registry := savabletest.NewRegistry()
	formats := []doc.Format{doc.FormatJSON, doc.FormatYAML, doc.FormatCBOR}
	comps := []stream.Compression{stream.None, stream.Zstd, stream.LZ4}

	fmt.Fprintf(os.Stderr, "savable Benchmark Runner\n")
	fmt.Fprintf(os.Stderr, "========================\n")
	fmt.Fprintf(os.Stderr, "Sizes: %v, %d rounds\n\n", sizes, rounds)

	var results []CaseResult
	for _, n := range sizes {
		scene := savabletest.RandomScene(n, uint64(n))
		baseline := 0
		for _, f := range formats {
			for _, c := range comps {
				r, err := runCase(registry, scene, f, c, rounds)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Skip %d/%s/%s: %v\n", n, f, c, err)
					continue
				}
				r.Nodes = n
				if f == doc.FormatJSON && c == stream.None {
					baseline = r.Bytes
				}
				if baseline > 0 {
					r.BytesPct = float64(r.Bytes) / float64(baseline) * 100
				}
				results = append(results, r)
			}
		}
	}

	if csvPath != "" {
		if f, err := os.Create(csvPath); err == nil {
			writeCSV(f, results)
			f.Close()
			fmt.Fprintf(os.Stderr, "CSV written to: %s\n", csvPath)
		}
	}
	if mdPath != "" {
		if f, err := os.Create(mdPath); err == nil {
			writeMarkdown(f, results, rounds)
			f.Close()
			fmt.Fprintf(os.Stderr, "Markdown written to: %s\n", mdPath)
		}
	}

	fmt.Printf("\n=== SUMMARY ===\n")
	for _, r := range results {
		fmt.Printf("%5d nodes  %-4s %-4s %9d bytes (%5.1f%%)  enc %-10v dec %v\n",
			r.Nodes, r.Format, r.Compression, r.Bytes, r.BytesPct, r.Encode, r.Decode)
	}
}

// runCase encodes and decodes scene rounds times and reports the mean.
func runCase(reg *savable.Registry, scene *savabletest.Node, f doc.Format, c stream.Compression, rounds int) (CaseResult, error) {
	ex := savable.NewExporter(savable.ExportOptions{Format: f, Compression: c, Registry: reg})
	im := savable.NewImporter(savable.ImportOptions{Registry: reg, Strict: true})

	var (
		data           []byte
		encode, decode time.Duration
	)
	for range rounds {
		start := time.Now()
		out, err := ex.Marshal(scene)
		if err != nil {
			return CaseResult{}, err
		}
		encode += time.Since(start)
		data = out

		start = time.Now()
		if _, err := savable.DecodeAs[*savabletest.Node](im, bytes.NewReader(data)); err != nil {
			return CaseResult{}, err
		}
		decode += time.Since(start)
	}
	return CaseResult{
		Format:      f,
		Compression: c,
		Bytes:       len(data),
		Encode:      encode / time.Duration(rounds),
		Decode:      decode / time.Duration(rounds),
	}, nil
}

func writeCSV(w io.Writer, results []CaseResult) {
	fmt.Fprintln(w, "nodes,format,compression,bytes,bytes_pct,encode_us,decode_us")
	for _, r := range results {
		fmt.Fprintf(w, "%d,%s,%s,%d,%.1f,%d,%d\n",
			r.Nodes, r.Format, r.Compression, r.Bytes, r.BytesPct,
			r.Encode.Microseconds(), r.Decode.Microseconds())
	}
}

func writeMarkdown(w io.Writer, results []CaseResult, rounds int) {
	fmt.Fprintf(w, "# savable Benchmark Results\n\n")
	fmt.Fprintf(w, "**Date:** %s  \n", time.Now().Format(time.DateOnly))
	fmt.Fprintf(w, "**Format version:** %d  \n", savable.FormatVersion)
	fmt.Fprintf(w, "**Rounds per case:** %d  \n\n", rounds)

	fmt.Fprintf(w, "## Smallest Encoding per Size\n\n")
	fmt.Fprintf(w, "| Nodes | Format | Compression | Bytes | vs JSON |\n")
	fmt.Fprintf(w, "|-------|--------|-------------|-------|---------|\n")
	for _, group := range groupBySize(results) {
		best := slices.MinFunc(group, func(a, b CaseResult) int { return a.Bytes - b.Bytes })
		fmt.Fprintf(w, "| %d | %s | %s | %d | %.1f%% |\n", best.Nodes, best.Format, best.Compression, best.Bytes, best.BytesPct)
	}

	fmt.Fprintf(w, "\n## Methodology\n\n")
	fmt.Fprintf(w, "- **Graphs:** `savabletest.RandomScene`, one mesh attachment per four nodes\n")
	fmt.Fprintf(w, "- **Baseline:** uncompressed compact JSON of the same graph\n")
	fmt.Fprintf(w, "- **Timing:** mean of %d rounds, strict decode through `DecodeAs`\n\n", rounds)

	fmt.Fprintf(w, "## Detailed Results\n\n")
	fmt.Fprintf(w, "| Nodes | Format | Compression | Bytes | vs JSON | Encode | Decode |\n")
	fmt.Fprintf(w, "|-------|--------|-------------|-------|---------|--------|--------|\n")
	for _, r := range results {
		fmt.Fprintf(w, "| %d | %s | %s | %d | %.1f%% | %v | %v |\n",
			r.Nodes, r.Format, r.Compression, r.Bytes, r.BytesPct, r.Encode, r.Decode)
	}
}

// groupBySize splits results, which arrive ordered by size, into runs of
// equal Nodes.
func groupBySize(results []CaseResult) [][]CaseResult {
	var groups [][]CaseResult
	for i := 0; i < len(results); {
		j := i + 1
		for j < len(results) && results[j].Nodes == results[i].Nodes {
			j++
		}
		groups = append(groups, results[i:j])
		i = j
	}
	return groups
}
