package decompress

import (
	"io"

	"github.com/klauspost/compress/flate"
)

func newDeflateReader(src io.Reader) io.ReadCloser {
	return flate.NewReader(src)
}
