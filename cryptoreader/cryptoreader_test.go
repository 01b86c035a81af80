package cryptoreader

import (
	"bytes"
	"crypto/aes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
)

func TestZipCrypto_RoundTrip(t *testing.T) {
	password := []byte("hunter2")
	plaintext := []byte("the quick brown fox jumps over the lazy dog")
	checkByte := byte(0xAB)

	keys := newZipCryptoKeys(password)
	header := make([]byte, ZipCryptoHeaderSize)
	_, _ = rand.Read(header[:ZipCryptoHeaderSize-1])
	header[ZipCryptoHeaderSize-1] = checkByte

	var encrypted bytes.Buffer
	for _, b := range header {
		p := b
		// encrypt header byte: cipher is symmetric between encrypt/decrypt direction on the keystream byte,
		// but key update must track plaintext, so encrypt using the same decrypt-then-rekey-on-plaintext order.
		ks := keys.keystreamByte()
		c := p ^ ks
		keys.update(p)
		encrypted.WriteByte(c)
	}

	// the body continues from the key state left after the header, as the reader does.
	for _, b := range plaintext {
		ks := keys.keystreamByte()
		c := b ^ ks
		keys.update(b)
		encrypted.WriteByte(c)
	}

	r, err := NewZipCryptoReader(&encrypted, password, checkByte)
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestZipCrypto_WrongPasswordRejected(t *testing.T) {
	password := []byte("hunter2")
	checkByte := byte(0xAB)

	keys := newZipCryptoKeys(password)
	header := make([]byte, ZipCryptoHeaderSize)
	for i := 0; i < ZipCryptoHeaderSize-1; i++ {
		header[i] = byte(i)
	}
	header[ZipCryptoHeaderSize-1] = checkByte

	var encrypted bytes.Buffer
	for _, b := range header {
		ks := keys.keystreamByte()
		c := b ^ ks
		keys.update(b)
		encrypted.WriteByte(c)
	}

	_, err := NewZipCryptoReader(&encrypted, []byte("wrong password"), checkByte)
	require.Error(t, err)
}

func TestAESReader_RoundTrip(t *testing.T) {
	password := []byte("correct horse battery staple")
	keyBytes := 32
	saltSize := keyBytes / 2
	plaintext := []byte("some entry content that spans more than one 16-byte AES block boundary")

	salt := make([]byte, saltSize)
	_, _ = rand.Read(salt)

	derived := pbkdf2.Key(password, salt, 1000, keyBytes*2+2, sha1.New)
	aesKey := derived[:keyBytes]
	hmacKey := derived[keyBytes : keyBytes*2]
	verifier := derived[keyBytes*2:]

	block, err := aes.NewCipher(aesKey)
	require.NoError(t, err)

	ciphertext := make([]byte, len(plaintext))
	counter := uint64(1)
	for off := 0; off < len(plaintext); off += 16 {
		var cb [16]byte
		c := counter
		for i := 0; i < 8; i++ {
			cb[i] = byte(c)
			c >>= 8
		}
		counter++
		var ks [16]byte
		block.Encrypt(ks[:], cb[:])

		end := off + 16
		if end > len(plaintext) {
			end = len(plaintext)
		}
		for i := off; i < end; i++ {
			ciphertext[i] = plaintext[i] ^ ks[i-off]
		}
	}

	mac := hmac.New(sha1.New, hmacKey)
	mac.Write(ciphertext)
	tag := mac.Sum(nil)[:AESAuthCodeSize]

	var stream bytes.Buffer
	stream.Write(salt)
	stream.Write(verifier)
	stream.Write(ciphertext)
	stream.Write(tag)

	plain, authenticate, err := NewAESReader(&stream, password, keyBytes, int64(len(ciphertext)))
	require.NoError(t, err)

	got, err := io.ReadAll(plain)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
	require.NoError(t, authenticate())
}

func TestAESReader_WrongPasswordRejected(t *testing.T) {
	password := []byte("correct horse battery staple")
	keyBytes := 16
	saltSize := keyBytes / 2

	salt := make([]byte, saltSize)
	_, _ = rand.Read(salt)
	derived := pbkdf2.Key(password, salt, 1000, keyBytes*2+2, sha1.New)
	verifier := derived[keyBytes*2:]

	var stream bytes.Buffer
	stream.Write(salt)
	stream.Write(verifier)

	_, _, err := NewAESReader(&stream, []byte("nope"), keyBytes, 0)
	require.Error(t, err)
}

// keystreamByte exposes the single-byte keystream value used to test vectors without duplicating decryptByte's
// combined decrypt+update behavior.
func (k *zipCryptoKeys) keystreamByte() byte {
	temp := uint16(k.key2) | 2
	return byte((uint32(temp) * (uint32(temp) ^ 1)) >> 8)
}
