package cd

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/nguyengg/xzip/block"
	"github.com/nguyengg/xzip/xzerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildMinimalArchive writes one stored, zero-length entry named "a.txt" followed by its central directory and
// EOCD, optionally preceded by junkPrefix bytes (simulating a self-extracting stub or other archive_offset).
func buildMinimalArchive(t *testing.T, junkPrefix []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(junkPrefix)

	lfhStart := buf.Len()
	lfh := &block.LocalFileHeader{
		VersionNeeded:  20,
		Flags:          block.FlagUTF8,
		FileNameLength: 5,
	}
	buf.Write(lfh.Encode())
	buf.WriteString("a.txt")

	cdStart := buf.Len()
	cdh := &block.CentralDirectoryHeader{
		VersionMadeBy:     (3 << 8) | 20,
		VersionNeeded:     20,
		Flags:             block.FlagUTF8,
		FileNameLength:    5,
		LocalHeaderOffset: uint32(lfhStart - len(junkPrefix)),
	}
	buf.Write(cdh.Encode())
	buf.WriteString("a.txt")
	cdSize := buf.Len() - cdStart

	eocd := &block.EOCDRecord{
		CDCountOnDisk: 1,
		CDCount:       1,
		CDSize:        uint32(cdSize),
		CDOffset:      uint32(cdStart - len(junkPrefix)),
	}
	buf.Write(eocd.Encode())

	return buf.Bytes()
}

func TestFindEOCD32_NoJunkPrefix(t *testing.T) {
	data := buildMinimalArchive(t, nil)
	r := bytes.NewReader(data)

	res, err := FindEOCD32(r, int64(len(data)))
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Record.CDCount)
}

func TestFindEOCD32_WithJunkPrefix(t *testing.T) {
	junk := []byte("#!/bin/sh\nthis is a self-extracting stub\n")
	data := buildMinimalArchive(t, junk)

	r := bytes.NewReader(data)
	res, err := FindEOCD32(r, int64(len(data)))
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Record.CDCount)
	assert.Equal(t, int64(len(data)-block.EOCDRecordSize), res.Offset)
}

func TestFindEOCD32_NotFound(t *testing.T) {
	data := []byte("not a zip file at all, just plain text padding to exceed the window size minimum threshold so the loop terminates cleanly without a false positive match anywhere in this buffer")
	r := bytes.NewReader(data)

	_, err := FindEOCD32(r, int64(len(data)))
	require.Error(t, err)

	var invalid *xzerr.InvalidArchive
	require.ErrorAs(t, err, &invalid)
}

func TestFindZip64EOCDCandidates_NoLocatorIsNotAnError(t *testing.T) {
	data := buildMinimalArchive(t, nil)
	r := bytes.NewReader(data)

	eocd, err := FindEOCD32(r, int64(len(data)))
	require.NoError(t, err)

	candidates, err := FindZip64EOCDCandidates(r, eocd.Offset)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestReconcile_Zip32Only(t *testing.T) {
	data := buildMinimalArchive(t, nil)
	r := bytes.NewReader(data)

	eocd, err := FindEOCD32(r, int64(len(data)))
	require.NoError(t, err)

	candidates, err := FindZip64EOCDCandidates(r, eocd.Offset)
	require.NoError(t, err)

	shared, err := Reconcile(eocd, candidates, func(archiveOffset int64, dirStart uint64, fileCount uint64, comment []byte) (*Shared, error) {
		return Parse(r, archiveOffset, dirStart, fileCount, comment)
	})
	require.NoError(t, err)
	require.Len(t, shared.Files, 1)
	assert.Equal(t, "a.txt", shared.Files[0].Name)
	assert.EqualValues(t, 0, shared.Offset)
}

func TestReconcile_ArchiveOffsetFromJunkPrefix(t *testing.T) {
	junk := make([]byte, 137)
	for i := range junk {
		junk[i] = 'X'
	}
	data := buildMinimalArchive(t, junk)
	r := bytes.NewReader(data)

	eocd, err := FindEOCD32(r, int64(len(data)))
	require.NoError(t, err)

	candidates, err := FindZip64EOCDCandidates(r, eocd.Offset)
	require.NoError(t, err)

	shared, err := Reconcile(eocd, candidates, func(archiveOffset int64, dirStart uint64, fileCount uint64, comment []byte) (*Shared, error) {
		return Parse(r, archiveOffset, dirStart, fileCount, comment)
	})
	require.NoError(t, err)
	require.Len(t, shared.Files, 1)
	assert.EqualValues(t, len(junk), shared.Offset)
	assert.EqualValues(t, len(junk), shared.Files[0].HeaderStart)
}

func TestEntry_InitDataStart_FirstWriterWins(t *testing.T) {
	e := newEntry()

	_, ok := e.DataStart()
	assert.False(t, ok)

	got := e.InitDataStart(100)
	assert.EqualValues(t, 100, got)

	got2 := e.InitDataStart(200)
	assert.EqualValues(t, 100, got2, "second writer must observe the first writer's value")

	offset, ok := e.DataStart()
	require.True(t, ok)
	assert.EqualValues(t, 100, offset)
}

func TestNewShared_AllocationGuardRejectsImplausibleCount(t *testing.T) {
	s := NewShared(1_000_000, 10)
	assert.Equal(t, 0, cap(s.Files))
}

// le64 encodes v as the 8 little-endian bytes applyZip64Extra expects in the ZIP64 extra field payload.
func le64(v uint64) []byte {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// TestApplyZip64Extra_SentinelCombinations exercises all 2^3 combinations of which of uncompressed_size,
// compressed_size, and local_header_offset are 32-bit-sentineled in the fixed header. Per APPNOTE, only the
// sentineled fields' 64-bit values are present in the payload, always in that fixed order, so the payload's length
// and content must track which bits of the combination are set.
func TestApplyZip64Extra_SentinelCombinations(t *testing.T) {
	const (
		wantUncompressed = uint64(0x1_0000_0001)
		wantCompressed   = uint64(0x2_0000_0002)
		wantHeaderOffset = uint64(0x3_0000_0003)

		fixedUncompressed = uint32(12345)
		fixedCompressed   = uint32(6789)
		fixedHeaderOffset = uint32(42)
	)

	for mask := 0; mask < 8; mask++ {
		uncompressedSentineled := mask&1 != 0
		compressedSentineled := mask&2 != 0
		headerOffsetSentineled := mask&4 != 0

		t.Run(fmt.Sprintf("uncompressed=%t/compressed=%t/headerOffset=%t",
			uncompressedSentineled, compressedSentineled, headerOffsetSentineled), func(t *testing.T) {
			h := &block.CentralDirectoryHeader{
				UncompressedSize:  fixedUncompressed,
				CompressedSize:    fixedCompressed,
				LocalHeaderOffset: fixedHeaderOffset,
			}

			var payload []byte
			if uncompressedSentineled {
				h.UncompressedSize = block.Sentinel32
				payload = append(payload, le64(wantUncompressed)...)
			}
			if compressedSentineled {
				h.CompressedSize = block.Sentinel32
				payload = append(payload, le64(wantCompressed)...)
			}
			if headerOffsetSentineled {
				h.LocalHeaderOffset = block.Sentinel32
				payload = append(payload, le64(wantHeaderOffset)...)
			}

			e := newEntry()
			e.UncompressedSize = uint64(fixedUncompressed)
			e.CompressedSize = uint64(fixedCompressed)
			localHeaderOffset := uint64(fixedHeaderOffset)

			applyZip64Extra(e, &localHeaderOffset, payload, h)

			if uncompressedSentineled {
				assert.Equal(t, wantUncompressed, e.UncompressedSize)
			} else {
				assert.Equal(t, uint64(fixedUncompressed), e.UncompressedSize)
			}

			if compressedSentineled {
				assert.Equal(t, wantCompressed, e.CompressedSize)
			} else {
				assert.Equal(t, uint64(fixedCompressed), e.CompressedSize)
			}

			if headerOffsetSentineled {
				assert.Equal(t, wantHeaderOffset, localHeaderOffset)
			} else {
				assert.Equal(t, uint64(fixedHeaderOffset), localHeaderOffset)
			}
		})
	}
}
