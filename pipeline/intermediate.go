package pipeline

import (
	"bytes"
	"io"
	"os"
)

// immediateSpillThreshold and decompressSpillThreshold are the uncompressed-size cutoffs (in bytes) at or above which an
// IntermediateFile spills to a temp file instead of staying in memory, for the Read stage and the Decompress stage
// respectively. The Decompress stage's threshold is larger since its output has already survived one pass through a
// bounded channel and is less likely to be tiny.
const (
	immediateSpillThreshold   = 2_000
	decompressSpillThreshold  = 100_000
)

// IntermediateFile holds one entry's bytes between pipeline stages: Immediate keeps small payloads in memory,
// Paging spills larger ones to a temp file so the reader/writer pools don't exhaust memory on a large archive.
// Exactly one stage touches a given value at a time (ownership passes along channels), so no internal locking is
// needed; this is the explicit-ownership alternative the original's interior-mutable paging value called for.
type IntermediateFile struct {
	buf  *bytes.Buffer
	file *os.File
}

// NewIntermediateWriter returns an IntermediateFile ready to receive size bytes (size may be -1 if unknown, in which
// case the spill decision treats it as "small"), and the io.Writer to write them through.
func NewIntermediateWriter(size int64, threshold int64) (*IntermediateFile, io.Writer, error) {
	if size >= 0 && size >= threshold {
		f, err := os.CreateTemp("", "xzip-pipeline-*")
		if err != nil {
			return nil, nil, err
		}
		im := &IntermediateFile{file: f}
		return im, f, nil
	}

	im := &IntermediateFile{buf: &bytes.Buffer{}}
	return im, im.buf, nil
}

// Reader returns an io.Reader positioned at the start of the intermediate's content.
func (im *IntermediateFile) Reader() (io.Reader, error) {
	if im.file != nil {
		if _, err := im.file.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return im.file, nil
	}
	return bytes.NewReader(im.buf.Bytes()), nil
}

// Close releases the intermediate's resources, deleting the backing temp file if one was allocated.
func (im *IntermediateFile) Close() error {
	if im.file == nil {
		return nil
	}
	name := im.file.Name()
	err := im.file.Close()
	if rerr := os.Remove(name); err == nil {
		err = rerr
	}
	return err
}
