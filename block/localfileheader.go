package block

// LocalFileHeaderSize is the fixed-size prefix of every local file header, not counting the variable-length
// file name and extra field that immediately follow it.
const LocalFileHeaderSize = 30

// LocalFileHeader is the 30-byte+variable prefix immediately preceding each entry's compressed bytes.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format)#Local_file_header.
type LocalFileHeader struct {
	Signature        uint32
	VersionNeeded    uint16
	Flags            uint16
	Method           uint16
	ModTime          uint16
	ModDate          uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	FileNameLength   uint16
	ExtraFieldLength uint16
}

var _ Block = (*LocalFileHeader)(nil)

func (h *LocalFileHeader) Interpret(data []byte) error {
	if err := decode(data, h); err != nil {
		return err
	}
	if Magic(h.Signature) != MagicLocalFileHeader {
		return &ErrBadMagic{Want: MagicLocalFileHeader, Got: Magic(h.Signature)}
	}
	return nil
}

func (h *LocalFileHeader) Encode() []byte {
	h.Signature = uint32(MagicLocalFileHeader)
	return encode(h, LocalFileHeaderSize)
}

// Flag bits recognised in LocalFileHeader.Flags and CentralDirectoryHeader.Flags.
const (
	FlagEncrypted      uint16 = 1 << 0
	FlagDataDescriptor uint16 = 1 << 3
	FlagUTF8           uint16 = 1 << 11
)

// Sentinel values that indicate the real value lives in a ZIP64 extra field.
const (
	Sentinel32 uint32 = 0xFFFFFFFF
	Sentinel16 uint16 = 0xFFFF
)
