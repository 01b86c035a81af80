package cryptoreader

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// AESAuthCodeSize is the size of the HMAC-SHA1 authentication code that trails every WinZip AES-encrypted entry
// (truncated from the full 20-byte MAC).
const AESAuthCodeSize = 10

// aesPasswordVerifierSize is the size of the two-byte password verification value between the salt and the
// ciphertext.
const aesPasswordVerifierSize = 2

// AESSaltSize returns the salt length for the given AES strength (1/2/3 -> 128/192/256-bit), mirroring
// block.AESStrengthKeyBytes but expressed as the salt size (half the key size) the WinZip spec defines.
func AESSaltSize(strength uint8) (int, bool) {
	switch strength {
	case 1:
		return 8, true
	case 2:
		return 12, true
	case 3:
		return 16, true
	default:
		return 0, false
	}
}

// NewAESReader reads the salt and password verification value from r, derives the AES and HMAC keys via PBKDF2
// (1000 iterations, per the WinZip AES specification), and returns a reader over exactly ciphertextSize bytes of
// ciphertext plus a function that must be called once that reader has been drained to EOF: it consumes the trailing
// AESAuthCodeSize-byte authentication code from r and verifies it against the HMAC computed over the ciphertext,
// returning an error on mismatch (the archive has been tampered with or the stream was misaligned).
//
// keyBytes is the AES key length (16/24/32) for the entry's strength, from block.AESStrengthKeyBytes. ciphertextSize
// is the entry's compressed size minus the salt, the password verifier, and the trailing authentication code.
func NewAESReader(r io.Reader, password []byte, keyBytes int, ciphertextSize int64) (plain io.Reader, authenticate func() error, err error) {
	saltSize := keyBytes / 2

	salt := make([]byte, saltSize)
	if _, err = io.ReadFull(r, salt); err != nil {
		return nil, nil, err
	}

	derived := pbkdf2.Key(password, salt, 1000, keyBytes*2+aesPasswordVerifierSize, sha1.New)
	aesKey := derived[:keyBytes]
	hmacKey := derived[keyBytes : keyBytes*2]
	passwordVerifier := derived[keyBytes*2:]

	gotVerifier := make([]byte, aesPasswordVerifierSize)
	if _, err = io.ReadFull(r, gotVerifier); err != nil {
		return nil, nil, err
	}
	if subtle.ConstantTimeCompare(gotVerifier, passwordVerifier) != 1 {
		return nil, nil, NewInvalidPassword()
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, nil, err
	}

	mac := hmac.New(sha1.New, hmacKey)
	ciphertext := io.LimitReader(r, ciphertextSize)
	ar := &aesCTRReader{r: io.TeeReader(ciphertext, mac), block: block, counter: 1}

	authenticate = func() error {
		gotTag := make([]byte, AESAuthCodeSize)
		if _, aerr := io.ReadFull(r, gotTag); aerr != nil {
			return aerr
		}
		wantTag := mac.Sum(nil)[:AESAuthCodeSize]
		if subtle.ConstantTimeCompare(gotTag, wantTag) != 1 {
			return NewInvalidPassword()
		}
		return nil
	}

	return ar, authenticate, nil
}

// aesCTRReader implements the WinZip variant of AES-CTR: a 16-byte counter block that increments as a plain
// little-endian integer starting at 1, unlike crypto/cipher.NewCTR's big-endian convention. r yields ciphertext
// (already tee'd into the running HMAC by the caller); each Read decrypts exactly what the inner reader returned.
type aesCTRReader struct {
	r       io.Reader
	block   cipher.Block
	counter uint64
	ks      []byte // leftover keystream bytes not yet consumed, from a partial previous block.
}

func (a *aesCTRReader) Read(p []byte) (int, error) {
	n, err := a.r.Read(p)
	if n == 0 {
		return n, err
	}

	out := p[:n]
	for len(out) > 0 {
		if len(a.ks) == 0 {
			a.ks = a.nextKeystreamBlock()
		}
		k := len(a.ks)
		if k > len(out) {
			k = len(out)
		}
		for i := 0; i < k; i++ {
			out[i] ^= a.ks[i]
		}
		a.ks = a.ks[k:]
		out = out[k:]
	}

	return n, err
}

func (a *aesCTRReader) nextKeystreamBlock() []byte {
	var counterBlock [16]byte
	c := a.counter
	for i := 0; i < 8; i++ {
		counterBlock[i] = byte(c)
		c >>= 8
	}
	a.counter++

	ks := make([]byte, 16)
	a.block.Encrypt(ks, counterBlock[:])
	return ks
}
