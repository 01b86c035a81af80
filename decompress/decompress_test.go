package decompress

import (
	"bytes"
	"hash/crc32"
	"io"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/nguyengg/xzip/xzerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReader_Stored(t *testing.T) {
	r, err := NewReader(MethodStored, bytes.NewReader([]byte("hello")), 5)
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestNewReader_Deflate(t *testing.T) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, _ = w.Write([]byte("the quick brown fox"))
	require.NoError(t, w.Close())

	r, err := NewReader(MethodDeflate, &buf, 20)
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "the quick brown fox", string(got))
}

func TestNewReader_Deflate64IsUnsupported(t *testing.T) {
	_, err := NewReader(MethodDeflate64, bytes.NewReader(nil), 0)
	require.Error(t, err)

	var unsupported *xzerr.UnsupportedArchive
	require.ErrorAs(t, err, &unsupported)
}

func TestNewReader_UnknownMethodIsUnsupported(t *testing.T) {
	_, err := NewReader(12345, bytes.NewReader(nil), 0)
	require.Error(t, err)

	var unsupported *xzerr.UnsupportedArchive
	require.ErrorAs(t, err, &unsupported)
}

func TestCRCVerifyingReader_DetectsMismatch(t *testing.T) {
	data := []byte("payload")
	want := crc32.ChecksumIEEE(data) + 1 // deliberately wrong.

	r := NewCRCVerifyingReader(io.NopCloser(bytes.NewReader(data)), want)
	_, err := io.ReadAll(r)
	require.Error(t, err)

	var invalid *xzerr.InvalidArchive
	require.ErrorAs(t, err, &invalid)
}

func TestCRCVerifyingReader_AcceptsMatch(t *testing.T) {
	data := []byte("payload")
	want := crc32.ChecksumIEEE(data)

	r := NewCRCVerifyingReader(io.NopCloser(bytes.NewReader(data)), want)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}
