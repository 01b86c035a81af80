package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/xzip/internal"
	"github.com/nguyengg/xzip/internal/config"
	"github.com/nguyengg/xzip/pipeline"
)

// Pextract extracts each archive using the pipelined extractor: separate worker pools read, decompress, and
// materialize entries concurrently instead of the one-entry-at-a-time loop Extract uses.
type Pextract struct {
	Dir         string `short:"d" long:"dir" description:"target directory (default: the current directory, or the [extract] section of .xzip)" value-name:"path"`
	Parallelism int    `long:"parallelism" description:"worker pool size for each of the read/decompress/materialize stages (default: the [extract] section of .xzip, or the number of CPUs)"`
	Args        struct {
		Files []flags.Filename `positional-arg-name:"file" description:"the archives to extract" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Pextract) Execute(args []string) (err error) {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	if _, err = config.Load(ctx); err != nil {
		return fmt.Errorf("load .xzip config: %w", err)
	}
	cfg := config.ForExtract()

	dir := c.Dir
	if dir == "" {
		dir = cfg.Dir
	}
	if dir == "" {
		dir = "."
	}

	parallelism := c.Parallelism
	if parallelism == 0 {
		parallelism = cfg.Parallelism
	}

	success := 0
	n := len(c.Args.Files)
	for i, file := range c.Args.Files {
		ictx := internal.WithPrefixLogger(ctx, internal.Prefix(i+1, n, file))
		logger := internal.MustLogger(ictx)
		logger.Printf("start pipelined extraction")

		if err = c.extractOne(string(file), dir, parallelism); err == nil {
			logger.Printf("done extracting")
			success++
			continue
		}

		if errors.Is(err, context.Canceled) {
			break
		}

		logger.Printf("extract error: %v", err)
	}

	log.Printf("successfully extracted %d/%d archives", success, n)
	return nil
}

func (c *Pextract) extractOne(file, dir string, parallelism int) error {
	a, f, err := openArchive(file)
	if err != nil {
		return err
	}
	defer f.Close()

	return pipeline.Extract(a, f.clone, dir, pipeline.Options{
		ReaderParallelism:      parallelism,
		DecompressParallelism:  parallelism,
		MaterializeParallelism: parallelism,
	})
}
