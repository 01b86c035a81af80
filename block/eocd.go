package block

// EOCDRecordSize is the fixed-size prefix of the end-of-central-directory record, not counting the variable-length
// archive comment that follows it.
const EOCDRecordSize = 22

// EOCDRecord is the ZIP32 end-of-central-directory record, the archive's footer.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format)#End_of_central_directory_record_(EOCD).
type EOCDRecord struct {
	Signature           uint32
	DiskNumber          uint16
	CDStartDisk         uint16
	CDCountOnDisk       uint16
	CDCount             uint16
	CDSize              uint32
	CDOffset            uint32
	ArchiveCommentLength uint16
}

var _ Block = (*EOCDRecord)(nil)

func (r *EOCDRecord) Interpret(data []byte) error {
	if err := decode(data, r); err != nil {
		return err
	}
	if Magic(r.Signature) != MagicEOCD {
		return &ErrBadMagic{Want: MagicEOCD, Got: Magic(r.Signature)}
	}
	return nil
}

func (r *EOCDRecord) Encode() []byte {
	r.Signature = uint32(MagicEOCD)
	return encode(r, EOCDRecordSize)
}

// Zip64EOCDRecordFixedSize is the fixed-size portion of the ZIP64 EOCD record that this module writes and expects to
// read (the "version 1" record with no extensible data sector). RecordSize itself is encoded as
// Zip64EOCDRecordFixedSize-12 per APPNOTE (the count excludes the signature and the 8-byte RecordSize field itself).
const Zip64EOCDRecordFixedSize = 56

// Zip64RecordSizeValue is the value this module writes into Zip64EOCDRecord.RecordSize: 44, i.e. the number of bytes
// in the record that follow the RecordSize field itself.
const Zip64RecordSizeValue = 44

// Zip64EOCDRecord is the ZIP64 extension of EOCDRecord, widening every count/offset to 64 bits.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format)#ZIP64.
type Zip64EOCDRecord struct {
	Signature     uint32
	RecordSize    uint64
	VersionMadeBy uint16
	VersionNeeded uint16
	DiskNumber    uint32
	CDStartDisk   uint32
	CDCountOnDisk uint64
	CDCount       uint64
	CDSize        uint64
	CDOffset      uint64
}

var _ Block = (*Zip64EOCDRecord)(nil)

func (r *Zip64EOCDRecord) Interpret(data []byte) error {
	if err := decode(data, r); err != nil {
		return err
	}
	if Magic(r.Signature) != MagicZip64EOCD {
		return &ErrBadMagic{Want: MagicZip64EOCD, Got: Magic(r.Signature)}
	}
	return nil
}

func (r *Zip64EOCDRecord) Encode() []byte {
	r.Signature = uint32(MagicZip64EOCD)
	r.RecordSize = Zip64RecordSizeValue
	return encode(r, Zip64EOCDRecordFixedSize)
}

// Zip64EOCDLocatorSize is the fixed size of the ZIP64 EOCD locator.
const Zip64EOCDLocatorSize = 20

// Zip64EOCDLocator precedes the ZIP32 EOCD and points at the ZIP64 EOCD record.
type Zip64EOCDLocator struct {
	Signature               uint32
	CDStartDisk             uint32
	Zip64EOCDOffset         uint64
	TotalDisks              uint32
}

var _ Block = (*Zip64EOCDLocator)(nil)

func (l *Zip64EOCDLocator) Interpret(data []byte) error {
	if err := decode(data, l); err != nil {
		return err
	}
	if Magic(l.Signature) != MagicZip64EOCDLocator {
		return &ErrBadMagic{Want: MagicZip64EOCDLocator, Got: Magic(l.Signature)}
	}
	return nil
}

func (l *Zip64EOCDLocator) Encode() []byte {
	l.Signature = uint32(MagicZip64EOCDLocator)
	return encode(l, Zip64EOCDLocatorSize)
}
