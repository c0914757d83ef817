package service

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/chacha20"

	apperrors "github.com/allisson/registrations/internal/errors"
)

// XChaCha20Cipher implements PayloadCipher using the XChaCha20 stream cipher.
//
// XChaCha20 extends ChaCha20 with a 24-byte nonce, which is large enough to be
// drawn randomly per encryption without birthday-bound concerns. The nonce is
// prepended to the ciphertext before base64 encoding, mirroring the AES-CFB
// format, and like it there is no authentication tag.
//
// Useful on platforms without AES hardware acceleration.
type XChaCha20Cipher struct{}

// NewXChaCha20 creates a new XChaCha20 payload cipher.
func NewXChaCha20() *XChaCha20Cipher {
	return &XChaCha20Cipher{}
}

// Encrypt encrypts plaintext with a 32-byte key and returns base64(nonce || ciphertext).
func (x *XChaCha20Cipher) Encrypt(plaintext, key []byte) (string, error) {
	nonce := make([]byte, chacha20.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", apperrors.Wrap(err, "failed to generate nonce")
	}

	stream, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to create XChaCha20 cipher")
	}

	ciphertext := make([]byte, len(plaintext))
	stream.XORKeyStream(ciphertext, plaintext)

	return base64.StdEncoding.EncodeToString(append(nonce, ciphertext...)), nil
}

// Decrypt decodes base64(nonce || ciphertext) and decrypts it with key.
func (x *XChaCha20Cipher) Decrypt(encoded string, key []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDecryption, "payload is not valid base64")
	}

	if len(raw) < chacha20.NonceSizeX {
		return nil, apperrors.Wrap(apperrors.ErrDecryption, "payload is shorter than the nonce")
	}

	nonce, ciphertext := raw[:chacha20.NonceSizeX], raw[chacha20.NonceSizeX:]
	stream, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDecryption, "invalid key length")
	}

	plaintext := make([]byte, len(ciphertext))
	stream.XORKeyStream(plaintext, ciphertext)

	return plaintext, nil
}
