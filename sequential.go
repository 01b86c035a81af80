package xzip

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nguyengg/xzip/cd"
	"github.com/nguyengg/xzip/internal"
	"github.com/nguyengg/xzip/xzerr"
)

// Len returns the number of entries in the archive.
func (a *Archive) Len() int { return len(a.shared.Files) }

// IsEmpty reports whether the archive has no entries.
func (a *Archive) IsEmpty() bool { return len(a.shared.Files) == 0 }

// Offset returns archive_offset: the number of junk bytes preceding the logical start of the ZIP structure.
func (a *Archive) Offset() uint64 { return a.shared.Offset }

// Comment returns the raw archive comment bytes.
func (a *Archive) Comment() []byte { return a.shared.Comment }

// FileNames returns every entry's name, in central directory order.
func (a *Archive) FileNames() []string {
	names := make([]string, len(a.shared.Files))
	for i, e := range a.shared.Files {
		names[i] = e.Name
	}
	return names
}

// IndexForName returns the index of the entry named name, or ok=false if there is none.
func (a *Archive) IndexForName(name string) (int, bool) {
	return a.shared.IndexForName(name)
}

// NameForIndex returns the name of the entry at index i.
func (a *Archive) NameForIndex(i int) (string, bool) {
	if i < 0 || i >= len(a.shared.Files) {
		return "", false
	}
	return a.shared.Files[i].Name, true
}

// IndexForPath normalizes path with EnclosedName and looks it up, returning ok=false both when the path is unsafe
// and when no entry matches the normalized form.
func (a *Archive) IndexForPath(path string) (int, bool) {
	enclosed, ok := EnclosedName(path)
	if !ok {
		return 0, false
	}
	return a.shared.IndexForName(enclosed)
}

// entryAt fetches the descriptor at i or a *xzerr.FileNotFound.
func (a *Archive) entryAt(i int) (*cd.Entry, error) {
	if i < 0 || i >= len(a.shared.Files) {
		return nil, &xzerr.FileNotFound{Name: fmt.Sprintf("index %d", i)}
	}
	return a.shared.Files[i], nil
}

// ByIndex opens entry i's content through the full reader stack, assuming it is not encrypted.
func (a *Archive) ByIndex(i int) (io.ReadCloser, error) {
	return a.ByIndexDecrypt(i, nil)
}

// ByIndexDecrypt opens entry i's content through the full reader stack using password if the entry is encrypted.
func (a *Archive) ByIndexDecrypt(i int, password []byte) (io.ReadCloser, error) {
	e, err := a.entryAt(i)
	if err != nil {
		return nil, err
	}
	return a.openEntry(e, password)
}

// ByIndexRaw returns entry i's stored bytes with no crypto, decompression, or CRC applied.
func (a *Archive) ByIndexRaw(i int) (io.Reader, error) {
	e, err := a.entryAt(i)
	if err != nil {
		return nil, err
	}
	return a.openRaw(e)
}

// ByName opens the entry named name through the full reader stack, assuming it is not encrypted.
func (a *Archive) ByName(name string) (io.ReadCloser, error) {
	return a.ByNameDecrypt(name, nil)
}

// ByNameDecrypt opens the entry named name through the full reader stack using password if encrypted.
func (a *Archive) ByNameDecrypt(name string, password []byte) (io.ReadCloser, error) {
	i, ok := a.shared.IndexForName(name)
	if !ok {
		return nil, &xzerr.FileNotFound{Name: name}
	}
	return a.ByIndexDecrypt(i, password)
}

// DecompressedSize returns the sum of every entry's uncompressed_size, or ok=false if any entry uses a data
// descriptor (in which case the true total isn't knowable without decompressing).
func (a *Archive) DecompressedSize() (size uint64, ok bool) {
	for _, e := range a.shared.Files {
		if e.UsingDataDescriptor {
			return 0, false
		}
		size += e.UncompressedSize
	}
	return size, true
}

// Extract creates dir (if needed) and extracts every entry into it, applying POSIX mode bits from unix_mode when
// present. See spec §4.G.
func (a *Archive) Extract(dir string) error {
	return a.ExtractContext(context.Background(), dir)
}

// ExtractContext is Extract with cooperative cancellation: the copy of each entry checks ctx after every write.
func (a *Archive) ExtractContext(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	maxBytes := int64(-1)
	if size, ok := a.DecompressedSize(); ok {
		maxBytes = int64(size)
	}
	bar := internal.DefaultBytes(maxBytes, "extracting")
	defer bar.Close()

	buf := make([]byte, 32*1024)

	for i, e := range a.shared.Files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		name, ok := EnclosedName(e.Name)
		if !ok {
			return xzerr.NewInvalidArchive(fmt.Sprintf("entry %q escapes the extraction root", e.Name))
		}

		path := filepath.Join(dir, filepath.FromSlash(name))

		if e.IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return fmt.Errorf("create directory %q: %w", path, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create parent directories of %q: %w", path, err)
		}

		if err := a.extractOne(ctx, i, path, e, buf, bar); err != nil {
			return err
		}
	}

	return nil
}

func (a *Archive) extractOne(ctx context.Context, i int, path string, e *cd.Entry, buf []byte, bar io.Writer) error {
	mode := os.FileMode(0644)
	if m, ok := e.UnixMode(); ok {
		mode = os.FileMode(m).Perm()
	}

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %q: %w", path, err)
	}
	defer dst.Close()

	src, err := a.ByIndex(i)
	if err != nil {
		return fmt.Errorf("open entry %q: %w", e.Name, err)
	}
	defer src.Close()

	if err = CopyBufferWithContext(ctx, io.MultiWriter(dst, bar), src, buf); err != nil {
		return fmt.Errorf("extract entry %q to %q: %w", e.Name, path, err)
	}

	return nil
}

// MergeContents rewinds src (the archive's own reader) and copies the region [0, dir_start) into w, then rewrites
// every entry's header_start (and data_start, if already initialized) by adding the position w was at before the
// copy began. central_header_start is cleared since it was only ever an internal cache. Overflow on any adjusted
// offset is an InvalidArchive.
func (a *Archive) MergeContents(src io.ReadSeeker, w io.Writer, writerStartPos uint64) error {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return err
	}

	n, err := io.CopyN(w, src, int64(a.shared.DirStart))
	if err != nil {
		return fmt.Errorf("copy archive content region: %w", err)
	}
	if uint64(n) != a.shared.DirStart {
		return xzerr.NewInvalidArchive("short copy while merging archive contents")
	}

	for _, e := range a.shared.Files {
		newHeaderStart := e.HeaderStart + writerStartPos
		if newHeaderStart < e.HeaderStart {
			return xzerr.NewInvalidArchive("header_start overflows during merge")
		}
		e.HeaderStart = newHeaderStart

		if ds, ok := e.DataStart(); ok {
			newDataStart := ds + writerStartPos
			if newDataStart < ds {
				return xzerr.NewInvalidArchive("data_start overflows during merge")
			}
			e.ResetDataStart(newDataStart)
		}

		e.CentralHeaderStart = 0
	}

	return nil
}
