// Package stream reads a ZIP archive forward, one local file header at a time, from a source that cannot seek: a
// network pipe, a gzip'd tarball of a zip, stdin. It cannot use the central directory (which sits at the far end of
// the archive) at all, so it trades away everything the directory would normally provide cheaply: encrypted entries
// and entries relying on a trailing data descriptor can't be sized up front and are reported as unsupported rather
// than guessed at.
//
// Grounded on the same fixed-header decode (binary.Read via block.Block.Interpret) and CP437/UTF-8 name handling the
// cd package uses when parsing the central directory, and on the same decompress/CRC reader stack the cd-backed
// Archive composes per entry.
package stream

import (
	"bufio"
	"io"
	"time"

	"github.com/nguyengg/xzip/block"
	"github.com/nguyengg/xzip/decompress"
	"github.com/nguyengg/xzip/xzerr"
	"golang.org/x/text/encoding/charmap"
)

// Header describes one entry encountered while scanning forward. Comment, data_start, and external_attributes are
// never populated: none of them are available without the central directory.
type Header struct {
	Name             string
	Method           uint16
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	Modified         time.Time
}

// Reader scans consecutive local file header blocks. Call Next to advance to the following entry (draining and
// closing whatever of the current entry hasn't been read yet, so the underlying source stays aligned on the next
// header), then Read to consume the current entry's decompressed, CRC-verified content.
type Reader struct {
	r   *bufio.Reader
	cur io.ReadCloser
}

// NewReader wraps r for forward scanning.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next advances to the next entry, returning its header. Returns io.EOF once no more local file headers remain.
//
// If the current entry (from a prior call to Next) was not fully read, Next drains it through a discard sink first
// so decompression/CRC verification still runs to completion and the next header lands on the correct byte offset.
func (s *Reader) Next() (*Header, error) {
	if err := s.drainCurrent(); err != nil {
		return nil, err
	}

	header := make([]byte, block.LocalFileHeaderSize)
	if _, err := io.ReadFull(s.r, header[:4]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, xzerr.NewInvalidArchive("local file header signature", err)
	}
	// the central directory (or, with no entries, the EOCD) follows the last local file header.
	sig := block.Magic(uint32(header[0]) | uint32(header[1])<<8 | uint32(header[2])<<16 | uint32(header[3])<<24)
	if sig == block.MagicCentralDirectoryHeader || sig == block.MagicEOCD {
		return nil, io.EOF
	}
	if _, err := io.ReadFull(s.r, header[4:]); err != nil {
		return nil, xzerr.NewInvalidArchive("local file header", err)
	}

	lfh := &block.LocalFileHeader{}
	if err := lfh.Interpret(header); err != nil {
		return nil, xzerr.NewInvalidArchive("local file header", err)
	}

	nameRaw := make([]byte, lfh.FileNameLength)
	if _, err := io.ReadFull(s.r, nameRaw); err != nil {
		return nil, xzerr.NewInvalidArchive("entry name", err)
	}

	extra := make([]byte, lfh.ExtraFieldLength)
	if _, err := io.ReadFull(s.r, extra); err != nil {
		return nil, xzerr.NewInvalidArchive("local extra field", err)
	}

	if lfh.Flags&block.FlagEncrypted != 0 {
		return nil, xzerr.NewUnsupportedArchive("encrypted entries cannot be streamed: size is unknown in advance")
	}
	if lfh.Flags&block.FlagDataDescriptor != 0 {
		return nil, xzerr.NewUnsupportedArchive("data-descriptor entries cannot be streamed: size is unknown in advance")
	}

	name := decodeName(nameRaw, lfh.Flags)

	limited := &io.LimitedReader{R: s.r, N: int64(lfh.CompressedSize)}
	dec, err := decompress.NewReader(lfh.Method, limited, int64(lfh.UncompressedSize))
	if err != nil {
		return nil, err
	}

	s.cur = decompress.NewCRCVerifyingReader(dec, lfh.CRC32)

	return &Header{
		Name:             name,
		Method:           lfh.Method,
		CRC32:            lfh.CRC32,
		CompressedSize:   uint64(lfh.CompressedSize),
		UncompressedSize: uint64(lfh.UncompressedSize),
		Modified:         msDosTimeToTime(lfh.ModDate, lfh.ModTime),
	}, nil
}

// Read reads from the entry most recently returned by Next.
func (s *Reader) Read(p []byte) (int, error) {
	if s.cur == nil {
		return 0, io.EOF
	}
	return s.cur.Read(p)
}

func (s *Reader) drainCurrent() error {
	if s.cur == nil {
		return nil
	}
	_, err := io.Copy(io.Discard, s.cur)
	closeErr := s.cur.Close()
	s.cur = nil
	if err != nil {
		return err
	}
	return closeErr
}

func decodeName(nameRaw []byte, flags uint16) string {
	if flags&block.FlagUTF8 != 0 {
		return string(nameRaw)
	}

	decoded, err := charmap.CodePage437.NewDecoder().Bytes(nameRaw)
	if err != nil {
		return string(nameRaw)
	}
	return string(decoded)
}

// msDosTimeToTime converts an MS-DOS date and time into a time.Time, matching the conversion the cd package applies
// to central directory timestamps.
func msDosTimeToTime(dosDate, dosTime uint16) time.Time {
	year := int(dosDate>>9) + 1980
	month := time.Month((dosDate >> 5) & 0xF)
	day := int(dosDate & 0x1F)
	if month < time.January || month > time.December || day == 0 {
		return time.Time{}
	}

	hour := int(dosTime >> 11)
	minute := int((dosTime >> 5) & 0x3F)
	second := int((dosTime & 0x1F) * 2)

	return time.Date(year, month, day, hour, minute, second, 0, time.UTC)
}
