// Package pipeline implements a staged, pooled extractor for ZIP archives: reading, decompressing, and writing
// entries run on separate, bounded-concurrency worker pools connected by channels instead of one goroutine per
// entry, so a large archive can't spawn an unbounded number of concurrent file handles or exhaust memory buffering
// decompressed output. It trades the sequential API's single-reader simplicity for throughput on archives with many
// entries, at the cost of requiring a clonable byte source.
//
// Modeled after the teacher's internal/executor worker-pool abstraction, generalized from a single fixed stage into
// a plan/read/decompress/materialize pipeline. There is no separate mkdir stage: plan creates the directories that
// appear as their own entries, and materialize creates a file's missing parent directories when its first open fails.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/nguyengg/xzip"
	"github.com/nguyengg/xzip/cd"
	"github.com/nguyengg/xzip/decompress"
	"github.com/nguyengg/xzip/internal"
	"golang.org/x/sync/errgroup"
)

// Cloner returns a new, independently-positioned handle onto the archive's underlying byte source. Each reader
// worker owns exactly one clone; file-backed sources typically reopen the file, in-memory sources can simply return
// a fresh view over the same buffer.
type Cloner func() (io.ReaderAt, error)

// Options configures the pipeline's worker pool sizes. A zero value of any field falls back to runtime.NumCPU(),
// or 2 if that reports a non-positive value.
type Options struct {
	ReaderParallelism      int
	DecompressParallelism  int
	MaterializeParallelism int
}

func (o Options) withDefaults() Options {
	n := runtime.NumCPU()
	if n < 1 {
		n = 2
	}
	if o.ReaderParallelism < 1 {
		o.ReaderParallelism = n
	}
	if o.DecompressParallelism < 1 {
		o.DecompressParallelism = n
	}
	if o.MaterializeParallelism < 1 {
		o.MaterializeParallelism = n
	}
	return o
}

// readStop is one file's worth of raw (encrypted/compressed) bytes, handed from the Read stage to the Decompress
// stage.
type readStop struct {
	entry *cd.Entry
	path  string
	raw   *IntermediateFile
}

// processedStop is one file's worth of decompressed bytes, handed from the Decompress stage to the Materialize
// stage.
type processedStop struct {
	entry      *cd.Entry
	path       string
	decompressed *IntermediateFile
}

// planItem pairs an entry with its already-validated, already-joined extraction path.
type planItem struct {
	entry *cd.Entry
	path  string
}

// Extract runs the plan/read/decompress/materialize pipeline, extracting every entry of a into dir. clone must produce independently
// positioned handles onto the same bytes a was opened from; Extract calls it once per reader worker.
func Extract(a *xzip.Archive, clone Cloner, dir string, opts Options) error {
	opts = opts.withDefaults()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	items, err := plan(a, root)
	if err != nil {
		return err
	}

	cp := newCompletedPaths(root)

	maxBytes := int64(-1)
	if size, ok := a.DecompressedSize(); ok {
		maxBytes = int64(size)
	}
	bar := internal.DefaultBytes(maxBytes, "extracting")
	defer bar.Close()

	g, ctx := errgroup.WithContext(context.Background())

	stopsTx := make(chan readStop, 200)
	processedTx := make(chan processedStop, 200)

	g.Go(func() error {
		defer close(stopsTx)
		return runReadStage(ctx, a, clone, items, opts.ReaderParallelism, stopsTx)
	})

	g.Go(func() error {
		defer close(processedTx)
		return runDecompressStage(ctx, stopsTx, opts.DecompressParallelism, processedTx)
	})

	g.Go(func() error {
		return runMaterializeStage(ctx, processedTx, cp, opts.MaterializeParallelism, bar)
	})

	return g.Wait()
}

// plan iterates the archive's entries, computes each one's safe extraction path, and pre-creates every directory
// entry up front. Ancestor directories of non-directory entries are not created here; materializeOne creates them
// on demand (via completedPaths' locking) the first time a write to that directory fails with NotExist.
func plan(a *xzip.Archive, root string) ([]planItem, error) {
	entries := a.Entries()
	items := make([]planItem, 0, len(entries))

	for _, e := range entries {
		name, ok := xzip.EnclosedName(e.Name)
		if !ok {
			return nil, fmt.Errorf("entry %q escapes the extraction root", e.Name)
		}

		path := filepath.Join(root, filepath.FromSlash(name))
		if e.IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return nil, fmt.Errorf("create directory %q: %w", path, err)
			}
			continue
		}

		items = append(items, planItem{entry: e, path: path})
	}

	return items, nil
}

// runReadStage splits items into chunks (one per worker) and, for each chunk, sequentially visits every entry:
// locate its content, copy it into a spooled IntermediateFile, and forward the result downstream. Sequential access
// within a chunk keeps a single reader handle's seeks local; parallelism comes from running chunks concurrently on
// independently-cloned handles.
func runReadStage(ctx context.Context, a *xzip.Archive, clone Cloner, items []planItem, parallelism int, out chan<- readStop) error {
	if len(items) == 0 {
		return nil
	}

	chunks := chunk(items, parallelism)

	g, ctx := errgroup.WithContext(ctx)

	for _, c := range chunks {
		c := c
		g.Go(func() error {
			src, err := clone()
			if err != nil {
				return fmt.Errorf("clone archive source: %w", err)
			}
			worker := a.WithSource(src)

			for _, item := range c {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				raw, err := readOne(worker, item.entry)
				if err != nil {
					return fmt.Errorf("read entry %q: %w", item.entry.Name, err)
				}

				select {
				case out <- readStop{entry: item.entry, path: item.path, raw: raw}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			return nil
		})
	}

	return g.Wait()
}

func readOne(a *xzip.Archive, e *cd.Entry) (*IntermediateFile, error) {
	r, err := a.ByEntryRaw(e)
	if err != nil {
		return nil, err
	}

	im, w, err := NewIntermediateWriter(int64(e.UncompressedSize), immediateSpillThreshold)
	if err != nil {
		return nil, err
	}

	if _, err = io.CopyN(w, r, int64(e.CompressedSize)); err != nil && err != io.EOF {
		im.Close()
		return nil, err
	}

	return im, nil
}

// runDecompressStage consumes raw stops, wraps each in the raw decompressor for its method (no crypto, no CRC: the
// pipeline trusts the archive and optimizes for throughput), and forwards a fresh intermediate downstream.
func runDecompressStage(ctx context.Context, in <-chan readStop, parallelism int, out chan<- processedStop) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < parallelism; i++ {
		g.Go(func() error {
			for {
				var (
					stop readStop
					ok   bool
				)
				select {
				case stop, ok = <-in:
					if !ok {
						return nil
					}
				case <-ctx.Done():
					return ctx.Err()
				}

				processed, err := decompressOne(stop)
				if err != nil {
					return fmt.Errorf("decompress entry %q: %w", stop.entry.Name, err)
				}

				select {
				case out <- processed:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}

	return g.Wait()
}

func decompressOne(stop readStop) (processedStop, error) {
	defer stop.raw.Close()

	r, err := stop.raw.Reader()
	if err != nil {
		return processedStop{}, err
	}

	dec, err := decompress.NewReader(stop.entry.Method, r, int64(stop.entry.UncompressedSize))
	if err != nil {
		return processedStop{}, err
	}
	defer dec.Close()

	im, w, err := NewIntermediateWriter(int64(stop.entry.UncompressedSize), decompressSpillThreshold)
	if err != nil {
		return processedStop{}, err
	}

	if _, err = io.Copy(w, dec); err != nil {
		im.Close()
		return processedStop{}, err
	}

	return processedStop{entry: stop.entry, path: stop.path, decompressed: im}, nil
}

// runMaterializeStage consumes processed stops and writes each one to its final path, creating missing parent
// directories on a retry if the first open fails with NotFound (plan only creates directories that appear as their
// own entries, so a file's parent may not exist yet).
func runMaterializeStage(ctx context.Context, in <-chan processedStop, cp *completedPaths, parallelism int, bar io.Writer) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < parallelism; i++ {
		g.Go(func() error {
			for {
				var (
					stop processedStop
					ok   bool
				)
				select {
				case stop, ok = <-in:
					if !ok {
						return nil
					}
				case <-ctx.Done():
					return ctx.Err()
				}

				if err := materializeOne(stop, cp, bar); err != nil {
					return fmt.Errorf("materialize entry %q: %w", stop.entry.Name, err)
				}
			}
		})
	}

	return g.Wait()
}

func materializeOne(stop processedStop, cp *completedPaths, bar io.Writer) error {
	defer stop.decompressed.Close()

	mode := os.FileMode(0644)
	if m, ok := stop.entry.UnixMode(); ok {
		mode = os.FileMode(m).Perm()
	}

	dst, err := os.OpenFile(stop.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if os.IsNotExist(err) {
		if merr := cp.ensureDir(filepath.Dir(stop.path)); merr != nil {
			return merr
		}
		dst, err = os.OpenFile(stop.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	}
	if err != nil {
		return err
	}
	defer dst.Close()

	r, err := stop.decompressed.Reader()
	if err != nil {
		return err
	}

	_, err = io.Copy(io.MultiWriter(dst, bar), r)
	return err
}

// chunk splits items into up to n contiguous, roughly equal slices.
func chunk(items []planItem, n int) [][]planItem {
	if n > len(items) {
		n = len(items)
	}
	if n < 1 {
		n = 1
	}

	size := (len(items) + n - 1) / n
	chunks := make([][]planItem, 0, n)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}

	return chunks
}
