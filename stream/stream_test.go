package stream

import (
	"bytes"
	"io"
	"testing"

	"github.com/nguyengg/xzip/block"
	"github.com/nguyengg/xzip/xzerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStoredEntry(buf *bytes.Buffer, name, content string) {
	crc := crc32Of(content)

	h := &block.LocalFileHeader{
		VersionNeeded:    20,
		Flags:            block.FlagUTF8,
		Method:           0,
		CRC32:            crc,
		CompressedSize:   uint32(len(content)),
		UncompressedSize: uint32(len(content)),
		FileNameLength:   uint16(len(name)),
	}
	buf.Write(h.Encode())
	buf.WriteString(name)
	buf.WriteString(content)
}

func crc32Of(s string) uint32 {
	var c uint32 = 0xFFFFFFFF
	for i := 0; i < len(s); i++ {
		c ^= uint32(s[i])
		for k := 0; k < 8; k++ {
			if c&1 != 0 {
				c = (c >> 1) ^ 0xEDB88320
			} else {
				c >>= 1
			}
		}
	}
	return ^c
}

func TestReader_ScansMultipleEntries(t *testing.T) {
	var buf bytes.Buffer
	writeStoredEntry(&buf, "a.txt", "hello")
	writeStoredEntry(&buf, "b.txt", "world")

	r := NewReader(&buf)

	h1, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "a.txt", h1.Name)
	got1, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got1))

	h2, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "b.txt", h2.Name)
	got2, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "world", string(got2))

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_SkipsUnreadEntry(t *testing.T) {
	var buf bytes.Buffer
	writeStoredEntry(&buf, "a.txt", "hello")
	writeStoredEntry(&buf, "b.txt", "world")

	r := NewReader(&buf)

	_, err := r.Next()
	require.NoError(t, err)
	// Deliberately don't read "a.txt"'s content before advancing.

	h2, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "b.txt", h2.Name)
}

func TestReader_EncryptedEntryIsUnsupported(t *testing.T) {
	var buf bytes.Buffer
	name := "secret.txt"
	h := &block.LocalFileHeader{
		VersionNeeded:  20,
		Flags:          block.FlagUTF8 | block.FlagEncrypted,
		FileNameLength: uint16(len(name)),
	}
	buf.Write(h.Encode())
	buf.WriteString(name)

	r := NewReader(&buf)
	_, err := r.Next()
	require.Error(t, err)

	var unsupported *xzerr.UnsupportedArchive
	require.ErrorAs(t, err, &unsupported)
}

func TestReader_DataDescriptorEntryIsUnsupported(t *testing.T) {
	var buf bytes.Buffer
	name := "streamed.txt"
	h := &block.LocalFileHeader{
		VersionNeeded:  20,
		Flags:          block.FlagUTF8 | block.FlagDataDescriptor,
		FileNameLength: uint16(len(name)),
	}
	buf.Write(h.Encode())
	buf.WriteString(name)

	r := NewReader(&buf)
	_, err := r.Next()
	require.Error(t, err)

	var unsupported *xzerr.UnsupportedArchive
	require.ErrorAs(t, err, &unsupported)
}
