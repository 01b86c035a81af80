package decompress

import (
	"encoding/binary"
	"io"

	"github.com/nguyengg/xzip/xzerr"
	"github.com/ulikunitz/xz/lzma"
)

// lzmaPropertiesHeaderSize is APPNOTE section 5.8.8's 4-byte prefix (1-byte major version, 1-byte minor version,
// 2-byte little-endian properties size) that precedes the actual LZMA properties byte and dictionary size.
const lzmaPropertiesHeaderSize = 4

// newLZMAReader strips the ZIP-specific LZMA header (APPNOTE 5.8.8) and hands the remaining raw LZMA stream to
// ulikunitz/xz/lzma, which this module otherwise uses for nothing except this one format. The ZIP variant of LZMA
// omits the end-of-stream marker in the common case, relying on the entry's declared uncompressed size instead, so
// the decoder is configured accordingly.
func newLZMAReader(src io.Reader, uncompressedSize int64) (io.ReadCloser, error) {
	header := make([]byte, lzmaPropertiesHeaderSize)
	if _, err := io.ReadFull(src, header); err != nil {
		return nil, xzerr.NewInvalidArchive("truncated LZMA header", err)
	}

	propsSize := binary.LittleEndian.Uint16(header[2:4])
	if propsSize < 5 {
		return nil, xzerr.NewInvalidArchive("LZMA properties too short")
	}

	props := make([]byte, propsSize)
	if _, err := io.ReadFull(src, props); err != nil {
		return nil, xzerr.NewInvalidArchive("truncated LZMA properties", err)
	}

	p, err := lzma.NewProperties(props[0])
	if err != nil {
		return nil, xzerr.NewInvalidArchive("invalid LZMA properties byte", err)
	}

	dictCap := int(binary.LittleEndian.Uint32(props[1:5]))
	if dictCap <= 0 {
		dictCap = lzma.MinDictCap
	}

	cfg := lzma.ReaderConfig{
		Properties: &p,
		DictCap:    dictCap,
		NoEOS:      uncompressedSize >= 0,
	}

	r, err := cfg.NewReader(src)
	if err != nil {
		return nil, xzerr.NewInvalidArchive("cannot create LZMA reader", err)
	}

	if uncompressedSize >= 0 {
		return io.NopCloser(io.LimitReader(r, uncompressedSize)), nil
	}

	return io.NopCloser(r), nil
}
