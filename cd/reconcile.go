package cd

import (
	"errors"

	"github.com/nguyengg/xzip/block"
	"github.com/nguyengg/xzip/xzerr"
)

// sentinel16 marks a ZIP32 EOCD field as "see ZIP64 record instead": that field's cross-check is skipped.
const sentinel16 = 0xFFFF

// view is the unified shape of either the ZIP32 EOCD's own view of the directory or one candidate ZIP64 EOCD's view,
// after whatever validation applies to that kind has been performed.
type view struct {
	archiveOffset int64
	dirStart      uint64
	fileCount     uint64
}

// ParseFunc parses the central directory starting at dirStart, expecting fileCount entries, with archiveOffset
// already known so HeaderStart values can be computed. It must return an *xzerr.UnsupportedArchive if the directory
// turns out to describe a multi-disk archive.
type ParseFunc func(archiveOffset int64, dirStart uint64, fileCount uint64, comment []byte) (*Shared, error)

// Reconcile combines the ZIP32 footer and zero or more ZIP64 candidates into a final Shared, following spec §4.C:
//
//  1. Compute the ZIP32 view (saturating subtraction; underflow is InvalidArchive).
//  2. Validate every ZIP64 candidate's directory_start/disk-count/version fields.
//  3. Cross-check surviving ZIP64 candidates against the ZIP32 view (sentinel fields in the ZIP32 footer exempt the
//     corresponding check).
//  4. Append the ZIP32 view as a final candidate.
//  5. Attempt to parse the central directory for every surviving candidate.
//  6. If nothing parses, prefer the first UnsupportedArchive error over the first InvalidArchive error.
//  7. Otherwise pick the candidate with the largest dir_start.
func Reconcile(eocd *EOCD32Result, zip64Candidates []Zip64Candidate, parse ParseFunc) (*Shared, error) {
	zip32View, err := buildZip32View(eocd)
	if err != nil {
		return nil, err
	}

	views := make([]view, 0, len(zip64Candidates)+1)
	for _, c := range zip64Candidates {
		v, ok := buildZip64View(c)
		if !ok {
			continue
		}
		if !crossCheckAgainstZip32(eocd.Record, c, v) {
			continue
		}
		views = append(views, v)
	}
	views = append(views, zip32View)

	var firstInvalid, firstUnsupported error
	var winner *Shared
	var winnerDirStart uint64
	haveWinner := false

	for _, v := range views {
		shared, perr := parse(v.archiveOffset, v.dirStart, v.fileCount, eocd.Comment)
		if perr != nil {
			var unsupported *xzerr.UnsupportedArchive
			if errors.As(perr, &unsupported) {
				if firstUnsupported == nil {
					firstUnsupported = perr
				}
			} else if firstInvalid == nil {
				firstInvalid = perr
			}
			continue
		}

		if !haveWinner || v.dirStart > winnerDirStart {
			winner, winnerDirStart, haveWinner = shared, v.dirStart, true
		}
	}

	switch {
	case haveWinner:
		return winner, nil
	case firstUnsupported != nil:
		return nil, firstUnsupported
	case firstInvalid != nil:
		return nil, firstInvalid
	default:
		return nil, xzerr.NewInvalidArchive("no central directory candidate could be parsed")
	}
}

func buildZip32View(eocd *EOCD32Result) (view, error) {
	cdSize := int64(eocd.Record.CDSize)
	cdOffset := int64(eocd.Record.CDOffset)

	archiveOffset := eocd.Offset - cdSize - cdOffset
	if archiveOffset < 0 {
		return view{}, xzerr.NewInvalidArchive("ZIP32 EOCD offset/size exceed central directory end position")
	}

	return view{
		archiveOffset: archiveOffset,
		dirStart:      uint64(eocd.Offset - cdSize),
		fileCount:     uint64(eocd.Record.CDCount),
	}, nil
}

func buildZip64View(c Zip64Candidate) (view, bool) {
	dirStart := uint64(int64(c.Record.CDOffset) + c.ArchiveOffset)
	if int64(dirStart) > c.Offset {
		return view{}, false
	}
	if c.Record.CDCountOnDisk > c.Record.CDCount {
		return view{}, false
	}
	if c.Record.VersionNeeded > c.Record.VersionMadeBy {
		return view{}, false
	}

	return view{
		archiveOffset: c.ArchiveOffset,
		dirStart:      dirStart,
		fileCount:     c.Record.CDCount,
	}, true
}

// crossCheckAgainstZip32 validates a surviving ZIP64 candidate's counts and disk numbers against the ZIP32 footer,
// per spec step 3: a ZIP32 field holding the 16-bit sentinel exempts that particular check.
func crossCheckAgainstZip32(eocd32 *block.EOCDRecord, c Zip64Candidate, v view) bool {
	if eocd32.CDCount != sentinel16 && uint64(eocd32.CDCount) != c.Record.CDCount {
		return false
	}
	if eocd32.CDCountOnDisk != sentinel16 && uint64(eocd32.CDCountOnDisk) != c.Record.CDCountOnDisk {
		return false
	}
	if eocd32.DiskNumber != sentinel16 && uint32(eocd32.DiskNumber) != c.Record.DiskNumber {
		return false
	}
	if eocd32.CDStartDisk != sentinel16 && uint32(eocd32.CDStartDisk) != c.Record.CDStartDisk {
		return false
	}
	return true
}
