// Package xzip reads ZIP archives, including ZIP64 and archives preceded by arbitrary junk bytes (self-extracting
// stubs, shell wrappers, or other prefix data), without requiring the archive/zip package's all-at-once in-memory
// central directory model. It locates the end-of-central-directory record with a reverse-windowed search, reconciles
// ZIP32 and ZIP64 metadata, and composes a lazy decrypt/decompress/CRC reader stack per entry.
package xzip

import (
	"io"

	"github.com/nguyengg/xzip/cd"
)

// Archive is an opened ZIP archive: the reconciled central directory plus the reader the entries' content will be
// read from.
type Archive struct {
	src    io.ReaderAt
	shared *cd.Shared
}

// Open locates, reconciles, and parses the central directory of the archive readable through src, which must expose
// size bytes total.
func Open(src io.ReaderAt, size int64) (*Archive, error) {
	rs := &sizeBoundedReadSeeker{ReaderAt: src, size: size}

	eocd, err := cd.FindEOCD32(rs, size)
	if err != nil {
		return nil, err
	}

	candidates, err := cd.FindZip64EOCDCandidates(rs, eocd.Offset)
	if err != nil {
		return nil, err
	}

	shared, err := cd.Reconcile(eocd, candidates, func(archiveOffset int64, dirStart uint64, fileCount uint64, comment []byte) (*cd.Shared, error) {
		return cd.Parse(rs, archiveOffset, dirStart, fileCount, comment)
	})
	if err != nil {
		return nil, err
	}

	return &Archive{src: src, shared: shared}, nil
}

// Entries returns the parsed central directory entries in declaration order. Callers must not mutate the returned
// descriptors except through the lazy data-start primitive (Entry.InitDataStart), which is itself safe to call
// concurrently.
func (a *Archive) Entries() []*cd.Entry {
	return a.shared.Files
}

// WithSource returns a shallow copy of a that reads entry content through src instead of a's own source, sharing the
// same already-reconciled central directory. Used by the pipelined extractor to hand each reader worker an
// independently-positioned clone of the underlying byte source without re-parsing the directory.
func (a *Archive) WithSource(src io.ReaderAt) *Archive {
	return &Archive{src: src, shared: a.shared}
}

// sizeBoundedReadSeeker is the io.ReadSeeker the cd package needs, built over an io.ReaderAt plus a known total
// size so io.SeekEnd works for callers that want it (the cd package itself only ever seeks from SeekStart).
type sizeBoundedReadSeeker struct {
	io.ReaderAt
	pos  int64
	size int64
}

func (r *sizeBoundedReadSeeker) Read(p []byte) (int, error) {
	n, err := r.ReaderAt.ReadAt(p, r.pos)
	r.pos += int64(n)
	return n, err
}

func (r *sizeBoundedReadSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		r.pos = offset
	case io.SeekCurrent:
		r.pos += offset
	case io.SeekEnd:
		r.pos = r.size + offset
	}
	return r.pos, nil
}
