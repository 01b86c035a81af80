package xzip

import (
	"fmt"
	"io"

	"github.com/nguyengg/xzip/block"
	"github.com/nguyengg/xzip/cd"
	"github.com/nguyengg/xzip/xzerr"
)

// locateContent resolves e's data_start, initializing it the first time (safe under concurrent callers: the first
// writer wins), then returns a reader bounded to exactly e.CompressedSize bytes starting there. See spec §4.E.
func locateContent(src io.ReaderAt, e *cd.Entry) (io.Reader, error) {
	if _, ok := e.DataStart(); !ok {
		header := make([]byte, block.LocalFileHeaderSize)
		if _, err := io.ReadFull(io.NewSectionReader(src, int64(e.HeaderStart), int64(block.LocalFileHeaderSize)), header); err != nil {
			return nil, xzerr.NewInvalidArchive(fmt.Sprintf("cannot read local file header for %q", e.Name), err)
		}

		lfh := &block.LocalFileHeader{}
		if err := lfh.Interpret(header); err != nil {
			return nil, xzerr.NewInvalidArchive(fmt.Sprintf("local file header for %q", e.Name), err)
		}

		dataStart := e.HeaderStart + uint64(block.LocalFileHeaderSize) + uint64(lfh.FileNameLength) + uint64(lfh.ExtraFieldLength)
		e.InitDataStart(dataStart)
	}

	dataStart, _ := e.DataStart()
	return io.NewSectionReader(src, int64(dataStart), int64(e.CompressedSize)), nil
}
