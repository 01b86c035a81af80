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
)

// Extract extracts every entry of each archive sequentially, in central directory order.
type Extract struct {
	Dir  string `short:"d" long:"dir" description:"target directory (default: the current directory, or the [extract] section of .xzip)" value-name:"path"`
	Args struct {
		Files []flags.Filename `positional-arg-name:"file" description:"the archives to extract" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Extract) Execute(args []string) (err error) {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	if _, err = config.Load(ctx); err != nil {
		return fmt.Errorf("load .xzip config: %w", err)
	}

	dir := c.Dir
	if dir == "" {
		dir = config.ForExtract().Dir
	}
	if dir == "" {
		dir = "."
	}

	success := 0
	n := len(c.Args.Files)
	for i, file := range c.Args.Files {
		ictx := internal.WithPrefixLogger(ctx, internal.Prefix(i+1, n, file))
		logger := internal.MustLogger(ictx)
		logger.Printf("start extracting")

		if err = c.extractOne(ictx, string(file), dir); err == nil {
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

func (c *Extract) extractOne(ctx context.Context, file, dir string) error {
	a, f, err := openArchive(file)
	if err != nil {
		return err
	}
	defer f.Close()

	return a.ExtractContext(ctx, dir)
}
