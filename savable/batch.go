package savable

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Neumenon/savable/stream"
)

// BatchItem is one independent graph for EncodeBatch.
type BatchItem struct {
	Root   Savable
	Writer io.Writer
}

// EncodeBatch encodes independent graphs concurrently, each with its own
// capsule, at most limit at a time (GOMAXPROCS when limit <= 0). Writers
// must not be shared between items. The first failure cancels the items
// that have not started yet.
func (e *Exporter) EncodeBatch(ctx context.Context, items []BatchItem, limit int) error {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := e.Encode(item.Root, item.Writer); err != nil {
				return fmt.Errorf("savable: batch item %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// EncodeBundle encodes roots concurrently and writes them to w, in order,
// as one framed bundle.
func (e *Exporter) EncodeBundle(ctx context.Context, roots []Savable, w io.Writer) error {
	bufs := make([]bytes.Buffer, len(roots))
	items := make([]BatchItem, len(roots))
	for i, root := range roots {
		items[i] = BatchItem{Root: root, Writer: &bufs[i]}
	}
	if err := e.EncodeBatch(ctx, items, 0); err != nil {
		return err
	}

	fw := stream.NewFrameWriter(w)
	for i := range bufs {
		if err := fw.WriteDocument(e.opts.Format.String(), e.opts.Compression, bufs[i].Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// DecodeBundle decodes every document of a framed bundle. On failure the
// graphs decoded so far are returned with the error.
func (im *Importer) DecodeBundle(r io.Reader) ([]Savable, []*Report, error) {
	fr := stream.NewFrameReader(r)
	var (
		roots   []Savable
		reports []*Report
	)
	for {
		f, err := fr.Next()
		if err == io.EOF {
			return roots, reports, nil
		}
		if err != nil {
			return roots, reports, err
		}
		root, rep, err := im.DecodeWithReport(bytes.NewReader(f.Payload))
		if err != nil {
			return roots, reports, fmt.Errorf("savable: bundle frame %d: %w", f.Seq, err)
		}
		roots = append(roots, root)
		reports = append(reports, rep)
	}
}
