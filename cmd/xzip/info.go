package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
)

// Info prints a one-paragraph summary of each archive: entry count, total size, and the leading-junk offset that
// made this archive's central directory need a reverse search instead of a direct read at offset 0.
type Info struct {
	Args struct {
		Files []flags.Filename `positional-arg-name:"file" description:"the archives to describe" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Info) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	for _, file := range c.Args.Files {
		if err := c.infoOne(string(file)); err != nil {
			return fmt.Errorf(`info "%s" error: %w`, file, err)
		}
	}

	return nil
}

func (c *Info) infoOne(file string) error {
	a, f, err := openArchive(file)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Printf("%s\n", file)
	fmt.Printf("  entries:  %d\n", a.Len())

	if size, ok := a.DecompressedSize(); ok {
		fmt.Printf("  size:     %s uncompressed\n", humanize.Bytes(size))
	} else {
		fmt.Printf("  size:     unknown (one or more entries use a trailing data descriptor)\n")
	}

	if off := a.Offset(); off > 0 {
		fmt.Printf("  offset:   %d bytes of leading data before the archive proper\n", off)
	}

	if comment := a.Comment(); len(comment) > 0 {
		fmt.Printf("  comment:  %s\n", string(comment))
	}

	return nil
}
