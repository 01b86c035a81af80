package pipeline

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyengg/xzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDeflateArchive constructs a minimal in-memory ZIP archive whose entries are Deflate-compressed.
func buildDeflateArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	type placed struct {
		name       string
		offset     int
		compressed []byte
		crc        uint32
	}
	var placedEntries []placed

	for name, content := range entries {
		var c bytes.Buffer
		fw, err := flate.NewWriter(&c, flate.BestSpeed)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, fw.Close())

		offset := buf.Len()
		crc := crc32Of(content)

		writeLocalHeader(&buf, name, c.Bytes(), uint32(len(content)), crc)
		buf.Write(c.Bytes())

		placedEntries = append(placedEntries, placed{name: name, offset: offset, compressed: c.Bytes(), crc: crc})
	}

	cdStart := buf.Len()
	for _, p := range placedEntries {
		content := entries[p.name]
		writeCentralHeader(&buf, p.name, p.offset, len(p.compressed), len(content), p.crc)
	}
	cdSize := buf.Len() - cdStart

	writeEOCD(&buf, len(placedEntries), cdStart, cdSize)

	return buf.Bytes()
}

func writeLocalHeader(buf *bytes.Buffer, name string, compressed []byte, uncompressedSize, crc uint32) {
	var h bytes.Buffer
	write32(&h, 0x04034b50)
	write16(&h, 20)        // version needed
	write16(&h, 1<<11)     // flags: UTF-8
	write16(&h, 8)         // method: deflate
	write16(&h, 0)         // mod time
	write16(&h, 0)         // mod date
	write32(&h, crc)
	write32(&h, uint32(len(compressed)))
	write32(&h, uncompressedSize)
	write16(&h, uint16(len(name)))
	write16(&h, 0)
	buf.Write(h.Bytes())
	buf.WriteString(name)
}

func writeCentralHeader(buf *bytes.Buffer, name string, localOffset, compressedSize, uncompressedSize int, crc uint32) {
	var h bytes.Buffer
	write32(&h, 0x02014b50)
	write16(&h, (3<<8)|20)
	write16(&h, 20)
	write16(&h, 1<<11)
	write16(&h, 8)
	write16(&h, 0)
	write16(&h, 0)
	write32(&h, crc)
	write32(&h, uint32(compressedSize))
	write32(&h, uint32(uncompressedSize))
	write16(&h, uint16(len(name)))
	write16(&h, 0)
	write16(&h, 0)
	write16(&h, 0)
	write16(&h, 0)
	write32(&h, 0644<<16)
	write32(&h, uint32(localOffset))
	buf.Write(h.Bytes())
	buf.WriteString(name)
}

func writeEOCD(buf *bytes.Buffer, count, cdStart, cdSize int) {
	var h bytes.Buffer
	write32(&h, 0x06054b50)
	write16(&h, 0)
	write16(&h, 0)
	write16(&h, uint16(count))
	write16(&h, uint16(count))
	write32(&h, uint32(cdSize))
	write32(&h, uint32(cdStart))
	write16(&h, 0)
	buf.Write(h.Bytes())
}

func write16(buf *bytes.Buffer, v uint16) { _ = binary.Write(buf, binary.LittleEndian, v) }
func write32(buf *bytes.Buffer, v uint32) { _ = binary.Write(buf, binary.LittleEndian, v) }

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

func TestExtract_RoundTrip(t *testing.T) {
	files := map[string]string{
		"a.txt":     "hello, pipeline",
		"b/c.txt":   "nested content",
		"b/d.txt":   "more nested content",
	}
	data := buildDeflateArchive(t, files)

	a, err := xzip.Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	dir := t.TempDir()
	cloner := func() (io.ReaderAt, error) { return bytes.NewReader(data), nil }

	require.NoError(t, Extract(a, cloner, dir, Options{ReaderParallelism: 2, DecompressParallelism: 2, MaterializeParallelism: 2}))

	for name, want := range files {
		got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}
