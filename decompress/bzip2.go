package decompress

import (
	"io"

	"github.com/dsnet/compress/bzip2"
)

func newBzip2Reader(src io.Reader) (io.ReadCloser, error) {
	r, err := bzip2.NewReader(src, nil)
	if err != nil {
		return nil, err
	}
	return r, nil
}
