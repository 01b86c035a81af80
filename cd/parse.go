package cd

import (
	"fmt"
	"io"
	"time"

	"github.com/nguyengg/xzip/block"
	"github.com/nguyengg/xzip/xzerr"
	"golang.org/x/text/encoding/charmap"
)

// Parse decodes fileCount central directory entries starting at dirStart (an absolute offset into src that already
// accounts for archiveOffset), building the Shared value that Reconcile will consider as a candidate. It satisfies
// ParseFunc.
//
// Every header_start this function computes has archiveOffset added to it, and overflowing that addition is an
// InvalidArchive rather than a silently wrapped offset. A disk_number_start or disk number on the entry itself that
// isn't 0 means the archive spans multiple disks, which is reported as UnsupportedArchive rather than InvalidArchive
// since the bytes are perfectly well-formed, just not something this reader can follow.
func Parse(src io.ReadSeeker, archiveOffset int64, dirStart uint64, fileCount uint64, comment []byte) (*Shared, error) {
	if _, err := src.Seek(int64(dirStart), io.SeekStart); err != nil {
		return nil, xzerr.NewInvalidArchive("cannot seek to central directory start", err)
	}

	shared := NewShared(int(fileCount), dirStart)
	shared.Offset = uint64(archiveOffset)
	shared.DirStart = dirStart
	shared.Comment = comment

	fixed := make([]byte, block.CentralDirectoryHeaderSize)
	pos := dirStart

	for i := uint64(0); i < fileCount; i++ {
		if _, err := io.ReadFull(src, fixed); err != nil {
			return nil, xzerr.NewInvalidArchive(fmt.Sprintf("truncated central directory entry %d", i), err)
		}

		h := &block.CentralDirectoryHeader{}
		if err := h.Interpret(fixed); err != nil {
			return nil, xzerr.NewInvalidArchive(fmt.Sprintf("central directory entry %d", i), err)
		}

		if h.DiskNumberStart != 0 {
			return nil, xzerr.NewUnsupportedArchive("multi-disk archives are not supported")
		}

		varLen := int(h.FileNameLength) + int(h.ExtraFieldLength) + int(h.FileCommentLength)
		varData := make([]byte, varLen)
		if _, err := io.ReadFull(src, varData); err != nil {
			return nil, xzerr.NewInvalidArchive(fmt.Sprintf("truncated variable-length data for entry %d", i), err)
		}

		nameRaw := varData[:h.FileNameLength]
		extra := varData[h.FileNameLength : int(h.FileNameLength)+int(h.ExtraFieldLength)]
		commentRaw := varData[int(h.FileNameLength)+int(h.ExtraFieldLength):]

		e, err := decodeEntry(h, nameRaw, extra, commentRaw, archiveOffset)
		if err != nil {
			return nil, err
		}
		e.CentralHeaderStart = pos
		pos += uint64(block.CentralDirectoryHeaderSize) + uint64(varLen)

		shared.Insert(e)
	}

	return shared, nil
}

// decodeEntry builds an Entry from one already-decoded fixed-size central directory header plus its raw
// name/extra/comment bytes.
func decodeEntry(h *block.CentralDirectoryHeader, nameRaw, extra, commentRaw []byte, archiveOffset int64) (*Entry, error) {
	e := newEntry()

	e.NameRaw = nameRaw
	e.IsUTF8 = h.Flags&block.FlagUTF8 != 0
	if e.IsUTF8 {
		e.Name = string(nameRaw)
	} else {
		decoded, err := charmap.CodePage437.NewDecoder().Bytes(nameRaw)
		if err != nil {
			e.Name = string(nameRaw)
		} else {
			e.Name = string(decoded)
		}
	}

	if e.IsUTF8 {
		e.Comment = string(commentRaw)
	} else if decoded, err := charmap.CodePage437.NewDecoder().Bytes(commentRaw); err == nil {
		e.Comment = string(decoded)
	} else {
		e.Comment = string(commentRaw)
	}
	e.Encrypted = h.Flags&block.FlagEncrypted != 0
	e.UsingDataDescriptor = h.Flags&block.FlagDataDescriptor != 0
	e.CRC32 = h.CRC32
	e.CompressedSize = uint64(h.CompressedSize)
	e.UncompressedSize = uint64(h.UncompressedSize)
	e.ExternalAttributes = h.ExternalAttrs
	e.System = h.System()
	e.VersionMadeBy = h.VersionMadeBy
	e.VersionNeeded = h.VersionNeeded
	e.Method = h.Method
	e.ExtraField = extra
	e.CentralHeaderStart = 0 // set by Parse, which tracks the entry's position in the central directory.
	e.Modified = msDosTimeToTime(h.ModDate, h.ModTime)
	e.ModTimeRaw = h.ModTime

	localHeaderOffset := uint64(h.LocalHeaderOffset)
	largeFile := h.CompressedSize == block.Sentinel32 || h.UncompressedSize == block.Sentinel32 || h.LocalHeaderOffset == block.Sentinel32

	e.ExtraFields = block.ParseExtraFields(extra)
	var lastAES *block.AESExtraField
	for _, f := range e.ExtraFields {
		switch f.Tag {
		case block.ExtraTagZip64:
			largeFile = true
			applyZip64Extra(e, &localHeaderOffset, f.Payload, h)
		case block.ExtraTagAESWinZip:
			var aes block.AESExtraField
			if aes.Decode(f.Payload) {
				lastAES = &aes
			}
		case block.ExtraTagExtendedTimestamp:
			e.ExtendedTimestamp = decodeExtendedTimestamp(f.Payload)
		}
	}

	if lastAES != nil {
		e.AES = &AESMode{
			Strength:      lastAES.Strength,
			VendorVersion: lastAES.VendorVersion,
			InnerMethod:   lastAES.InnerMethod,
		}
		e.Method = lastAES.InnerMethod
	}

	e.LargeFile = largeFile

	headerStart := localHeaderOffset
	adjusted := headerStart + uint64(archiveOffset)
	if adjusted < headerStart {
		return nil, xzerr.NewInvalidArchive("local header offset overflows after applying archive offset")
	}
	e.HeaderStart = adjusted

	return e, nil
}

// applyZip64Extra overlays the ZIP64 extra field's 64-bit values onto the fields that were set to the 32-bit
// sentinel in the fixed header, in the fixed order APPNOTE mandates: uncompressed size, compressed size, local
// header offset, disk number start. Only the fields that were actually sentineled are present in the payload, and a
// truncated payload simply stops applying overlays past the point it ran out of bytes.
func applyZip64Extra(e *Entry, localHeaderOffset *uint64, payload []byte, h *block.CentralDirectoryHeader) {
	pos := 0
	next := func() (uint64, bool) {
		if pos+8 > len(payload) {
			return 0, false
		}
		v := uint64(payload[pos]) | uint64(payload[pos+1])<<8 | uint64(payload[pos+2])<<16 | uint64(payload[pos+3])<<24 |
			uint64(payload[pos+4])<<32 | uint64(payload[pos+5])<<40 | uint64(payload[pos+6])<<48 | uint64(payload[pos+7])<<56
		pos += 8
		return v, true
	}

	if h.UncompressedSize == block.Sentinel32 {
		if v, ok := next(); ok {
			e.UncompressedSize = v
		}
	}
	if h.CompressedSize == block.Sentinel32 {
		if v, ok := next(); ok {
			e.CompressedSize = v
		}
	}
	if h.LocalHeaderOffset == block.Sentinel32 {
		if v, ok := next(); ok {
			*localHeaderOffset = v
		}
	}
	// disk number start overlay (4 bytes) is intentionally not consumed: multi-disk archives are rejected earlier.
}

func decodeExtendedTimestamp(payload []byte) *ExtendedTimestamp {
	if len(payload) < 1 {
		return nil
	}

	flags := payload[0]
	pos := 1
	ts := &ExtendedTimestamp{}

	readTime := func() *time.Time {
		if pos+4 > len(payload) {
			return nil
		}
		sec := int32(payload[pos]) | int32(payload[pos+1])<<8 | int32(payload[pos+2])<<16 | int32(payload[pos+3])<<24
		pos += 4
		t := time.Unix(int64(sec), 0).UTC()
		return &t
	}

	if flags&0x1 != 0 {
		ts.ModTime = readTime()
	}
	if flags&0x2 != 0 {
		ts.AccessTime = readTime()
	}
	if flags&0x4 != 0 {
		ts.CreateTime = readTime()
	}

	return ts
}

// msDosTimeToTime converts an MS-DOS date and time into a time.Time. Resolution is 2 seconds.
//
// https://learn.microsoft.com/en-us/windows/win32/api/winbase/nf-winbase-dosdatetimetofiletime
func msDosTimeToTime(dosDate, dosTime uint16) time.Time {
	year := int(dosDate>>9) + 1980
	month := time.Month(dosDate >> 5 & 0xf)
	day := int(dosDate & 0x1f)
	if month < time.January || month > time.December || day == 0 {
		return time.Time{}
	}

	return time.Date(
		year, month, day,
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0,
		time.UTC,
	)
}
