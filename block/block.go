// Package block models the fixed-layout little-endian records that make up the PKZIP APPNOTE subset this module
// understands: the local file header, the central directory file header, the end-of-central-directory record (EOCD),
// the ZIP64 EOCD record, the ZIP64 EOCD locator, and the extra-field TLV container used by both header kinds.
//
// Every record type here is a plain struct with Interpret and Encode methods. Interpret verifies the record's magic
// signature and decodes every multi-byte field from little-endian; Encode is the inverse. No alignment or padding is
// assumed; fields are read and written exactly as PKZIP's APPNOTE lays them out.
package block

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Magic is the four-byte little-endian signature that begins every fixed-layout record in a ZIP archive.
type Magic uint32

const (
	// MagicLocalFileHeader signals a LocalFileHeader.
	MagicLocalFileHeader Magic = 0x04034b50
	// MagicCentralDirectoryHeader signals a CentralDirectoryHeader.
	MagicCentralDirectoryHeader Magic = 0x02014b50
	// MagicEOCD signals an EOCDRecord.
	MagicEOCD Magic = 0x06054b50
	// MagicZip64EOCD signals a Zip64EOCDRecord.
	MagicZip64EOCD Magic = 0x06064b50
	// MagicZip64EOCDLocator signals a Zip64EOCDLocator.
	MagicZip64EOCDLocator Magic = 0x07064b50
)

func (m Magic) String() string {
	return fmt.Sprintf("0x%08x", uint32(m))
}

// ErrBadMagic is returned by Interpret when the leading signature does not match the expected value.
type ErrBadMagic struct {
	Want, Got Magic
}

func (e *ErrBadMagic) Error() string {
	return fmt.Sprintf("bad magic: want %s, got %s", e.Want, e.Got)
}

// Block is implemented by every fixed-layout record in this package.
type Block interface {
	// Interpret decodes data (which must be exactly the record's fixed size) into the receiver.
	//
	// Interpret verifies the record's magic signature first and returns *ErrBadMagic if it does not match.
	Interpret(data []byte) error

	// Encode returns the little-endian byte encoding of the receiver, exactly its fixed size.
	Encode() []byte
}

// decode is the shared binary.Read helper used by every Interpret implementation in this package: it trusts the
// caller already sliced data to the record's fixed size.
func decode(data []byte, v any) error {
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, v)
}

// encode is the shared binary.Write helper used by every Encode implementation in this package.
func encode(v any, size int) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, size))
	// a fixed-layout struct of plain integer fields never fails to encode.
	_ = binary.Write(buf, binary.LittleEndian, v)
	return buf.Bytes()
}
