// Package config loads per-project defaults for the xzip CLI from a ".xzip" ini file, the same way the teacher's
// config package locates a ".xy3" file: walk up from the working directory until one is found or the filesystem
// root is reached.
package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-ini/ini"
)

var cfg = ini.Empty()

// Load walks the directory hierarchy upwards from the working directory looking for the first ".xzip" file,
// parsing it if found. Returns the path it loaded from, or "" if none was found (not an error: the CLI runs fine
// with every setting at its default).
func Load(ctx context.Context) (string, error) {
	var (
		path        = filepath.Join(".", ".xzip")
		fi          os.FileInfo
		err         error
		cur, parent string
	)

	if cur, err = os.Getwd(); err != nil {
		return "", err
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if fi, err = os.Stat(path); err == nil && !fi.IsDir() {
			break
		}

		// a ".xzip" directory is skipped the same way as a missing file.
		if err == nil || os.IsNotExist(err) {
			parent = filepath.Dir(cur)

			if parent == cur || parent == "." || parent == "/" {
				return "", nil
			}

			path = filepath.Join(parent, ".xzip")
			cur = parent
			continue
		}

		return "", err
	}

	cfg, err = ini.Load(path)
	if err != nil {
		cfg = ini.Empty()
		return path, err
	}

	return path, nil
}

// ExtractConfig contains defaults for the extract/pextract commands.
type ExtractConfig struct {
	// Dir is the default extraction target directory when none is given on the command line.
	Dir string

	// Parallelism overrides the pipelined extractor's default worker pool sizes (0 means "use runtime.NumCPU()").
	Parallelism int
}

var cfgCache sync.Map

// ForExtract returns the [extract] section's settings.
func ForExtract() (c ExtractConfig) {
	if cache, ok := cfgCache.Load("extract"); ok {
		return cache.(ExtractConfig)
	}

	sec, err := cfg.GetSection("extract")
	if err != nil {
		return c
	}

	c.Dir = sec.Key("dir").Value()
	c.Parallelism, _ = sec.Key("parallelism").Int()

	cfgCache.Store("extract", c)
	return
}

// RemoteConfig contains defaults for opening archives that live in S3.
type RemoteConfig struct {
	Bucket     string
	AWSProfile string
}

// ForRemote returns the [remote] section's settings.
func ForRemote() (c RemoteConfig) {
	if cache, ok := cfgCache.Load("remote"); ok {
		return cache.(RemoteConfig)
	}

	sec, err := cfg.GetSection("remote")
	if err != nil {
		return c
	}

	c.Bucket = sec.Key("bucket").Value()
	c.AWSProfile = sec.Key("aws-profile").Value()

	cfgCache.Store("remote", c)
	return
}
