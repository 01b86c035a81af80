package xzip

import (
	"io"

	"github.com/nguyengg/xzip/block"
	"github.com/nguyengg/xzip/cd"
	"github.com/nguyengg/xzip/cryptoreader"
	"github.com/nguyengg/xzip/decompress"
	"github.com/nguyengg/xzip/xzerr"
)

// openRaw returns the entry's stored bytes with no crypto, decompression, or CRC applied: exactly what by_index_raw
// and the pipeline's Read stage need.
func (a *Archive) openRaw(e *cd.Entry) (io.Reader, error) {
	return locateContent(a.src, e)
}

// ByEntryRaw is ByIndexRaw taking the descriptor directly instead of an index, for callers (the pipelined
// extractor) that already hold entries obtained from Entries().
func (a *Archive) ByEntryRaw(e *cd.Entry) (io.Reader, error) {
	return a.openRaw(e)
}

// openEntry assembles the full reader stack for e: take(compressed_size) -> crypto -> decompress -> crc32-verify.
// See spec §4.F for the password logic and the AE-2 CRC bypass.
func (a *Archive) openEntry(e *cd.Entry, password []byte) (io.ReadCloser, error) {
	raw, err := a.openRaw(e)
	if err != nil {
		return nil, err
	}

	var (
		decrypted     io.Reader
		bypassCRC     bool
		ciphertextLen = int64(e.CompressedSize)
	)

	switch {
	case e.Encrypted && len(password) > 0:
		decrypted, bypassCRC, err = decrypt(raw, e, password, &ciphertextLen)
		if err != nil {
			return nil, err
		}
	case e.Encrypted && len(password) == 0:
		return nil, xzerr.NewUnsupportedArchive("password required")
	default:
		// (password given, entry not encrypted) silently drops the password; (no password, not encrypted) is
		// already the identity case.
		decrypted = raw
	}

	dec, err := decompress.NewReader(e.Method, decrypted, int64(e.UncompressedSize))
	if err != nil {
		return nil, err
	}

	if bypassCRC {
		return dec, nil
	}

	return decompress.NewCRCVerifyingReader(dec, e.CRC32), nil
}

// decrypt dispatches to ZipCrypto or AES depending on e.AES, returning the plaintext reader and whether the outer
// CRC check must be bypassed (true only for AE-2 AES streams, which store a zero CRC-32 by design).
func decrypt(raw io.Reader, e *cd.Entry, password []byte, ciphertextLen *int64) (io.Reader, bool, error) {
	if e.AES == nil {
		checkByte := byte(e.CRC32 >> 24)
		if e.UsingDataDescriptor {
			checkByte = byte(e.ModTimeRaw >> 8)
		}

		r, err := cryptoreader.NewZipCryptoReader(raw, password, checkByte)
		if err != nil {
			return nil, false, err
		}

		*ciphertextLen -= int64(cryptoreader.ZipCryptoHeaderSize)
		if *ciphertextLen < 0 {
			return nil, false, xzerr.NewInvalidArchive("ZipCrypto entry too small for its own header")
		}
		return r, false, nil
	}

	keyBytes, ok := block.AESStrengthKeyBytes(e.AES.Strength)
	if !ok {
		return nil, false, xzerr.NewUnsupportedArchive("unrecognised AES strength")
	}

	saltSize := keyBytes / 2
	ciphertextSize := int64(e.CompressedSize) - int64(saltSize) - 2 - int64(cryptoreader.AESAuthCodeSize)
	if ciphertextSize < 0 {
		return nil, false, xzerr.NewInvalidArchive("AES entry too small for its own header and trailer")
	}

	r, authenticate, err := cryptoreader.NewAESReader(raw, password, keyBytes, ciphertextSize)
	if err != nil {
		return nil, false, err
	}

	bypassCRC := e.AES.VendorVersion == 2

	return &authenticatingReader{r: r, authenticate: authenticate}, bypassCRC, nil
}

// authenticatingReader runs the AES authentication check the moment the wrapped reader reports EOF, surfacing a
// failed HMAC comparison as the error from that final Read instead of a silent success.
type authenticatingReader struct {
	r            io.Reader
	authenticate func() error
	done         bool
}

func (a *authenticatingReader) Read(p []byte) (int, error) {
	n, err := a.r.Read(p)
	if err == io.EOF && !a.done {
		a.done = true
		if aerr := a.authenticate(); aerr != nil {
			return n, aerr
		}
	}
	return n, err
}
