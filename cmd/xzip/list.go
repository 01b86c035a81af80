package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
)

// List prints every entry's name and size, one archive at a time.
type List struct {
	Long bool `short:"l" long:"long" description:"also print method, CRC-32, and modification time"`
	Args struct {
		Files []flags.Filename `positional-arg-name:"file" description:"the archives to list" required:"yes"`
	} `positional-args:"yes"`
}

func (c *List) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	for _, file := range c.Args.Files {
		if err := c.listOne(string(file)); err != nil {
			return fmt.Errorf(`list "%s" error: %w`, file, err)
		}
	}

	return nil
}

func (c *List) listOne(file string) error {
	a, f, err := openArchive(file)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, e := range a.Entries() {
		if !c.Long {
			fmt.Println(e.Name)
			continue
		}

		fmt.Printf("%8s  %-10s  %08x  %s  %s\n",
			humanize.Bytes(e.UncompressedSize),
			methodName(e.Method),
			e.CRC32,
			e.Modified.Format("2006-01-02 15:04"),
			e.Name)
	}

	return nil
}

func methodName(method uint16) string {
	switch method {
	case 0:
		return "stored"
	case 8:
		return "deflate"
	case 9:
		return "deflate64"
	case 12:
		return "bzip2"
	case 14:
		return "lzma"
	case 93:
		return "zstd"
	default:
		return fmt.Sprintf("method-%d", method)
	}
}
