package block

import "encoding/binary"

// Extra field tags recognised by this module.
const (
	// ExtraTagZip64 carries the 64-bit overrides for fields that were written as sentinel values.
	ExtraTagZip64 uint16 = 0x0001
	// ExtraTagAESWinZip carries WinZip AES-encryption parameters.
	ExtraTagAESWinZip uint16 = 0x9901
	// ExtraTagExtendedTimestamp carries Unix mtime/atime/ctime.
	ExtraTagExtendedTimestamp uint16 = 0x5455
)

// ExtraFieldHeaderSize is the size of one extra field's TLV header (tag + length), not counting its payload.
const ExtraFieldHeaderSize = 4

// ExtraField is one TLV record out of the extra field byte blob attached to a local or central directory header.
type ExtraField struct {
	Tag     uint16
	Payload []byte
}

// ParseExtraFields walks the repeated TLV structure until the extra bytes are exhausted.
//
// A truncated trailing record (fewer than ExtraFieldHeaderSize bytes left, or a declared length exceeding the
// remaining bytes) stops the walk without error: extra-field I/O failures are best-effort per spec, the surrounding
// central directory entry still parses.
func ParseExtraFields(extra []byte) []ExtraField {
	var fields []ExtraField

	for len(extra) >= ExtraFieldHeaderSize {
		tag := binary.LittleEndian.Uint16(extra[0:2])
		size := binary.LittleEndian.Uint16(extra[2:4])
		extra = extra[ExtraFieldHeaderSize:]

		if int(size) > len(extra) {
			return fields
		}

		fields = append(fields, ExtraField{Tag: tag, Payload: extra[:size:size]})
		extra = extra[size:]
	}

	return fields
}

// AESExtraSize is the exact payload length of a WinZip AES extra field (tag 0x9901).
const AESExtraSize = 7

// AESExtraField decodes the payload of an ExtraTagAESWinZip record.
type AESExtraField struct {
	VendorVersion uint16
	VendorID      uint16
	Strength      uint8
	InnerMethod   uint16
}

// AESVendorID is the only valid VendorID value ("AE").
const AESVendorID uint16 = 0x4541

// Decode decodes a 7-byte AES extra field payload.
func (f *AESExtraField) Decode(payload []byte) bool {
	if len(payload) != AESExtraSize {
		return false
	}

	f.VendorVersion = binary.LittleEndian.Uint16(payload[0:2])
	f.VendorID = binary.LittleEndian.Uint16(payload[2:4])
	f.Strength = payload[4]
	f.InnerMethod = binary.LittleEndian.Uint16(payload[5:7])
	return true
}

// Encode re-encodes the AES extra field payload (used by tests constructing fixtures).
func (f *AESExtraField) Encode() []byte {
	buf := make([]byte, AESExtraSize)
	binary.LittleEndian.PutUint16(buf[0:2], f.VendorVersion)
	binary.LittleEndian.PutUint16(buf[2:4], f.VendorID)
	buf[4] = f.Strength
	binary.LittleEndian.PutUint16(buf[5:7], f.InnerMethod)
	return buf
}

// AESStrengthKeyBytes maps the AES extra field's strength byte (1/2/3) to the AES key length in bytes (16/24/32).
func AESStrengthKeyBytes(strength uint8) (int, bool) {
	switch strength {
	case 1:
		return 16, true
	case 2:
		return 24, true
	case 3:
		return 32, true
	default:
		return 0, false
	}
}
