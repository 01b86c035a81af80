package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nguyengg/xzip"
	"github.com/nguyengg/xzip/internal/config"
	"github.com/nguyengg/xzip/remote"
)

// source is what every subcommand needs from an opened archive's backing bytes: read access and, for the pipelined
// extractor, the ability to mint an independent handle onto the same bytes.
type source interface {
	io.ReaderAt
	io.Closer
	clone() (io.ReaderAt, error)
}

type fileSource struct{ f *os.File }

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *fileSource) Close() error                             { return s.f.Close() }

// clone returns s.f itself: os.File.ReadAt is a stateless pread under the hood, already safe for concurrent callers,
// so every reader worker can share the one file descriptor.
func (s *fileSource) clone() (io.ReaderAt, error) { return s.f, nil }

type s3Source struct{ o *remote.Object }

func (s *s3Source) ReadAt(p []byte, off int64) (int, error) { return s.o.ReadAt(p, off) }
func (s *s3Source) Close() error                             { return nil }
func (s *s3Source) clone() (io.ReaderAt, error)              { return s.o.Clone(), nil }

// openArchive opens the archive named by path, which is either a local file path or an "s3://bucket/key" URI, and
// parses its central directory. Callers must close the returned source once done with the archive.
func openArchive(path string) (*xzip.Archive, source, error) {
	if rest, ok := strings.CutPrefix(path, "s3://"); ok {
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, nil, fmt.Errorf("malformed S3 URI %q: expected s3://bucket/key", path)
		}
		return openS3Archive(parts[0], parts[1])
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("stat file: %w", err)
	}

	a, err := xzip.Open(f, fi.Size())
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("parse central directory: %w", err)
	}

	return a, &fileSource{f: f}, nil
}

func openS3Archive(bucket, key string) (*xzip.Archive, source, error) {
	ctx := context.Background()

	var optFns []func(*awsconfig.LoadOptions) error
	if profile := config.ForRemote().AWSProfile; profile != "" {
		optFns = append(optFns, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	obj, err := remote.Open(client, bucket, key)
	if err != nil {
		return nil, nil, fmt.Errorf("open s3://%s/%s: %w", bucket, key, err)
	}

	a, err := xzip.Open(obj, obj.Size())
	if err != nil {
		return nil, nil, fmt.Errorf("parse central directory: %w", err)
	}

	return a, &s3Source{o: obj}, nil
}
