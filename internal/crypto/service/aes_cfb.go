package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	apperrors "github.com/allisson/registrations/internal/errors"
)

// AESCFBCipher implements PayloadCipher using AES-256 in cipher feedback mode.
//
// CFB turns AES into a self-synchronizing stream cipher, so ciphertext length
// equals plaintext length and no padding is involved. A fresh random 16-byte IV
// is drawn for every encryption, even when the same key is reused, and is
// prepended to the ciphertext before base64 encoding.
//
// There is no authentication tag. Wrong-key decryption of a well-formed input
// silently yields incorrect bytes; only structural problems (bad base64, input
// shorter than the IV, invalid key length) produce ErrDecryption.
//
// Thread safety: the cipher is stateless and safe for concurrent use.
type AESCFBCipher struct{}

// NewAESCFB creates a new AES-256-CFB payload cipher.
func NewAESCFB() *AESCFBCipher {
	return &AESCFBCipher{}
}

// Encrypt encrypts plaintext with a 32-byte key and returns base64(iv || ciphertext).
func (a *AESCFBCipher) Encrypt(plaintext, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to create AES cipher")
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", apperrors.Wrap(err, "failed to generate IV")
	}

	ciphertext := make([]byte, len(plaintext))
	//nolint:staticcheck // CFB with a prepended IV is the wire format of stored payloads.
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(ciphertext, plaintext)

	return base64.StdEncoding.EncodeToString(append(iv, ciphertext...)), nil
}

// Decrypt decodes base64(iv || ciphertext) and decrypts it with key.
func (a *AESCFBCipher) Decrypt(encoded string, key []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDecryption, "payload is not valid base64")
	}

	if len(raw) < aes.BlockSize {
		return nil, apperrors.Wrap(apperrors.ErrDecryption, "payload is shorter than the IV")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDecryption, "invalid key length")
	}

	iv, ciphertext := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plaintext := make([]byte, len(ciphertext))
	//nolint:staticcheck // CFB with a prepended IV is the wire format of stored payloads.
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(plaintext, ciphertext)

	return plaintext, nil
}
