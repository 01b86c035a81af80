package main

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/jessevdk/go-flags"
)

// Verify decompresses every entry of each archive without writing anything to disk, surfacing any CRC-32 mismatch
// or structural error the reader stack catches.
type Verify struct {
	Args struct {
		Files []flags.Filename `positional-arg-name:"file" description:"the archives to verify" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Verify) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ok := 0
	n := len(c.Args.Files)
	for _, file := range c.Args.Files {
		if err := c.verifyOne(string(file)); err != nil {
			log.Printf(`"%s": %v`, file, err)
			continue
		}
		ok++
	}

	log.Printf("%d/%d archives verified", ok, n)
	if ok != n {
		return fmt.Errorf("%d archive(s) failed verification", n-ok)
	}
	return nil
}

func (c *Verify) verifyOne(file string) error {
	a, f, err := openArchive(file)
	if err != nil {
		return err
	}
	defer f.Close()

	for i := 0; i < a.Len(); i++ {
		name, _ := a.NameForIndex(i)

		r, err := a.ByIndex(i)
		if err != nil {
			return fmt.Errorf("open entry %q: %w", name, err)
		}

		_, err = io.Copy(io.Discard, r)
		closeErr := r.Close()
		if err != nil {
			return fmt.Errorf("decompress entry %q: %w", name, err)
		}
		if closeErr != nil {
			return fmt.Errorf("verify entry %q: %w", name, closeErr)
		}
	}

	return nil
}
