// Package decompress dispatches a ZIP entry's compression method to the codec that can decode it, and wraps the
// result with a CRC-32 verifier so callers get an io.Reader that fails on the last byte read if the checksum in the
// central directory doesn't match what actually came out of the stream.
package decompress

import (
	"hash"
	"hash/crc32"
	"io"

	"github.com/nguyengg/xzip/xzerr"
)

// Method constants, per APPNOTE section 4.4.5.
const (
	MethodStored   uint16 = 0
	MethodDeflate  uint16 = 8
	MethodDeflate64 uint16 = 9
	MethodBzip2    uint16 = 12
	MethodLZMA     uint16 = 14
	MethodZstd     uint16 = 93
)

// NewReader wraps src (the entry's raw, already-decrypted data stream) with the decompressor for method, returning
// *xzerr.UnsupportedArchive for a method this package recognises but cannot decode (deflate64: every real decoder
// in the Go ecosystem in reach of this module vendors C sources or requires cgo, so it is deliberately left
// unsupported rather than pulled in via a non-Go dependency) or for a method this package has never heard of.
func NewReader(method uint16, src io.Reader, uncompressedSize int64) (io.ReadCloser, error) {
	switch method {
	case MethodStored:
		return io.NopCloser(src), nil
	case MethodDeflate:
		return newDeflateReader(src), nil
	case MethodDeflate64:
		return nil, xzerr.NewUnsupportedArchive("deflate64 is not supported")
	case MethodBzip2:
		return newBzip2Reader(src)
	case MethodLZMA:
		return newLZMAReader(src, uncompressedSize)
	case MethodZstd:
		return newZstdReader(src)
	default:
		return nil, xzerr.NewUnsupportedArchive("unrecognised compression method")
	}
}

// CRCVerifyingReader wraps a decompressed entry stream, hashing everything read and comparing against want the
// moment the wrapped reader signals io.EOF. A mismatch surfaces as *xzerr.InvalidArchive instead of io.EOF so the
// corruption can't be mistaken for a clean end of stream.
type CRCVerifyingReader struct {
	r      io.Reader
	h      hash.Hash32
	want   uint32
	closer io.Closer
}

// NewCRCVerifyingReader wraps r (typically the output of NewReader) so that the last Read before EOF validates the
// running CRC-32 against want.
func NewCRCVerifyingReader(r io.ReadCloser, want uint32) *CRCVerifyingReader {
	return &CRCVerifyingReader{r: r, h: crc32.NewIEEE(), want: want, closer: r}
}

func (c *CRCVerifyingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.h.Write(p[:n])
	}
	if err == io.EOF {
		if c.h.Sum32() != c.want {
			return n, xzerr.NewInvalidArchive("CRC-32 mismatch")
		}
	}
	return n, err
}

func (c *CRCVerifyingReader) Close() error {
	return c.closer.Close()
}
