package decompress

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// zstdDecoder adapts *zstd.Decoder (whose Close doesn't return an error) to io.ReadCloser.
type zstdDecoder struct {
	*zstd.Decoder
}

func (z *zstdDecoder) Close() error {
	z.Decoder.Close()
	return nil
}

func newZstdReader(src io.Reader) (io.ReadCloser, error) {
	r, err := zstd.NewReader(src)
	if err != nil {
		return nil, err
	}
	return &zstdDecoder{Decoder: r}, nil
}
