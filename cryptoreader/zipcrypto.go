package cryptoreader

import (
	"hash/crc32"
	"io"
)

// ZipCryptoHeaderSize is the size of the encryption header that precedes the ciphertext of a traditionally
// encrypted entry.
const ZipCryptoHeaderSize = 12

// zipCryptoKeys is the three-uint32 key state of the traditional PKWARE stream cipher, updated one plaintext byte
// at a time.
//
// See APPNOTE.TXT section 6.1 (Algorithm) for the constants and update formulas below.
type zipCryptoKeys struct {
	key0, key1, key2 uint32
}

func newZipCryptoKeys(password []byte) *zipCryptoKeys {
	k := &zipCryptoKeys{key0: 305419896, key1: 591751049, key2: 878082192}
	for _, b := range password {
		k.update(b)
	}
	return k
}

func (k *zipCryptoKeys) update(b byte) {
	k.key0 = crc32.IEEETable[byte(k.key0)^b] ^ (k.key0 >> 8)
	k.key1 += k.key0 & 0xff
	k.key1 = k.key1*134775813 + 1
	k.key2 = crc32.IEEETable[byte(k.key2)^byte(k.key1>>24)] ^ (k.key2 >> 8)
}

// decryptByte decrypts one ciphertext byte in place and advances the key state with the resulting plaintext byte.
func (k *zipCryptoKeys) decryptByte(c byte) byte {
	temp := uint16(k.key2) | 2
	p := c ^ byte((uint32(temp)*(uint32(temp)^1))>>8)
	k.update(p)
	return p
}

// NewZipCryptoReader wraps r (positioned at the start of the entry's encryption header) with traditional PKWARE
// decryption. checkByte is the value the decrypted header's last byte must equal to accept password: the high byte
// of the entry's CRC-32 normally, or the high byte of the last-modified time when the entry uses a data descriptor
// (APPNOTE section 6.1.4). A mismatch means the password is wrong and *xzerr.InvalidPassword is returned.
func NewZipCryptoReader(r io.Reader, password []byte, checkByte byte) (io.Reader, error) {
	keys := newZipCryptoKeys(password)

	header := make([]byte, ZipCryptoHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	var last byte
	for _, c := range header {
		last = keys.decryptByte(c)
	}

	if last != checkByte {
		return nil, NewInvalidPassword()
	}

	return &zipCryptoReader{r: r, keys: keys}, nil
}

type zipCryptoReader struct {
	r    io.Reader
	keys *zipCryptoKeys
}

func (z *zipCryptoReader) Read(p []byte) (int, error) {
	n, err := z.r.Read(p)
	for i := 0; i < n; i++ {
		p[i] = z.keys.decryptByte(p[i])
	}
	return n, err
}
