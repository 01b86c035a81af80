package cd

import (
	"encoding/binary"
	"io"

	"github.com/nguyengg/xzip/block"
	"github.com/nguyengg/xzip/xzerr"
	"github.com/valyala/bytebufferpool"
)

// zip32WindowSize is the size of the backward-sliding window used to search for the ZIP32 EOCD signature. Windows
// overlap by signatureSize bytes so a signature straddling a window boundary is never missed.
const zip32WindowSize = 512

// zip64WindowSize is the size of the window used to search for ZIP64 EOCD signatures between the locator's nominal
// offset and the ZIP32 EOCD position. Comments may legally contain the magic, so every match in range is collected.
const zip64WindowSize = 2048

const signatureSize = 4

// EOCD32Result is the outcome of locating and parsing the ZIP32 end-of-central-directory record.
type EOCD32Result struct {
	Record *block.EOCDRecord
	Offset int64 // cde_start: absolute offset of the EOCD record itself.
	Comment []byte
}

// FindEOCD32 slides a zip32WindowSize-byte window backward from end-of-file looking for the EOCD signature, trying
// every right-to-left candidate in a window until one parses cleanly (fixed record decodes and its declared comment
// length does not overrun the archive). See spec §4.B.
func FindEOCD32(src io.ReadSeeker, size int64) (*EOCD32Result, error) {
	end := size

	for {
		start := end - zip32WindowSize
		if start < 0 {
			start = 0
		}

		n := end - start
		if n < signatureSize {
			if start == 0 {
				return nil, xzerr.NewInvalidArchive("Could not find central directory end")
			}
			end = start + signatureSize
			continue
		}

		buf := make([]byte, n)
		if _, err := src.Seek(start, io.SeekStart); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(src, buf); err != nil {
			return nil, err
		}

		for i := len(buf) - signatureSize; i >= 0; i-- {
			if binary.LittleEndian.Uint32(buf[i:i+signatureSize]) != uint32(block.MagicEOCD) {
				continue
			}

			if res, err := tryParseEOCD32(src, start+int64(i), size); err == nil {
				return res, nil
			}
		}

		if start == 0 {
			return nil, xzerr.NewInvalidArchive("Could not find central directory end")
		}

		// overlap by signatureSize bytes so a boundary match is still caught next iteration.
		end = start + signatureSize
	}
}

func tryParseEOCD32(src io.ReadSeeker, offset, size int64) (*EOCD32Result, error) {
	if _, err := src.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	buf := make([]byte, block.EOCDRecordSize)
	if _, err := io.ReadFull(src, buf); err != nil {
		return nil, err
	}

	rec := &block.EOCDRecord{}
	if err := rec.Interpret(buf); err != nil {
		return nil, err
	}

	commentEnd := offset + int64(block.EOCDRecordSize) + int64(rec.ArchiveCommentLength)
	if commentEnd > size {
		return nil, xzerr.NewInvalidArchive("EOCD comment length overruns archive")
	}

	comment := make([]byte, rec.ArchiveCommentLength)
	if rec.ArchiveCommentLength > 0 {
		if _, err := io.ReadFull(src, comment); err != nil {
			return nil, err
		}
	}

	return &EOCD32Result{Record: rec, Offset: offset, Comment: comment}, nil
}

// Zip64Candidate is one parsed ZIP64 EOCD record found while searching between the ZIP64 locator's nominal offset
// and the ZIP32 EOCD position.
type Zip64Candidate struct {
	Record *block.Zip64EOCDRecord

	// Offset is cde_start for this candidate: its own absolute position in the stream.
	Offset int64

	// ArchiveOffset is Offset minus the locator's nominal offset: the candidate's derived archive_offset.
	ArchiveOffset int64
}

// FindZip64EOCDCandidates reads the ZIP64 EOCD locator immediately preceding the ZIP32 EOCD and, if present, collects
// every ZIP64 EOCD record that parses between the locator's nominal offset and the ZIP32 EOCD position. A missing or
// malformed locator is not an error: it simply means the archive has no ZIP64 extension, so a nil slice is returned.
func FindZip64EOCDCandidates(src io.ReadSeeker, eocd32Offset int64) ([]Zip64Candidate, error) {
	locatorOffset := eocd32Offset - block.Zip64EOCDLocatorSize
	if locatorOffset < 0 {
		return nil, nil
	}

	if _, err := src.Seek(locatorOffset, io.SeekStart); err != nil {
		return nil, err
	}

	buf := make([]byte, block.Zip64EOCDLocatorSize)
	if _, err := io.ReadFull(src, buf); err != nil {
		return nil, nil
	}

	loc := &block.Zip64EOCDLocator{}
	if err := loc.Interpret(buf); err != nil {
		return nil, nil
	}

	nominal := int64(loc.Zip64EOCDOffset)
	start := nominal
	if start < 0 {
		start = 0
	}
	if start > eocd32Offset {
		start = 0
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	var candidates []Zip64Candidate

	for pos := start; pos < eocd32Offset; {
		end := pos + zip64WindowSize
		if end > eocd32Offset {
			end = eocd32Offset
		}

		n := end - pos
		if n < signatureSize {
			break
		}

		bb.Reset()
		bb.B = append(bb.B, make([]byte, n)...)
		if _, err := src.Seek(pos, io.SeekStart); err != nil {
			return candidates, err
		}
		if _, err := io.ReadFull(src, bb.B); err != nil {
			return candidates, err
		}

		for i := 0; i+signatureSize <= len(bb.B); i++ {
			if binary.LittleEndian.Uint32(bb.B[i:i+signatureSize]) != uint32(block.MagicZip64EOCD) {
				continue
			}

			candidateOffset := pos + int64(i)
			if rec, err := tryParseZip64EOCD(src, candidateOffset); err == nil {
				candidates = append(candidates, Zip64Candidate{
					Record:        rec,
					Offset:        candidateOffset,
					ArchiveOffset: candidateOffset - nominal,
				})
			}
		}

		if end == eocd32Offset {
			break
		}

		pos = end - signatureSize
	}

	return candidates, nil
}

func tryParseZip64EOCD(src io.ReadSeeker, offset int64) (*block.Zip64EOCDRecord, error) {
	if _, err := src.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	buf := make([]byte, block.Zip64EOCDRecordFixedSize)
	if _, err := io.ReadFull(src, buf); err != nil {
		return nil, err
	}

	rec := &block.Zip64EOCDRecord{}
	if err := rec.Interpret(buf); err != nil {
		return nil, err
	}

	return rec, nil
}
