// Package service provides cryptographic services for per-entry envelope encryption.
// Implements the payload ciphers (AES-256-CFB, XChaCha20) and key generation.
package service

import (
	"crypto/rand"
	"fmt"

	apperrors "github.com/allisson/registrations/internal/errors"
)

// KeySize is the size in bytes of a per-entry encryption key (256 bits).
const KeySize = 32

// Supported payload cipher names.
const (
	CipherAESCFB    = "aes-cfb"
	CipherXChaCha20 = "xchacha20"
)

// PayloadCipher encrypts and decrypts contact identifiers with per-entry keys.
//
// Encrypt draws a fresh random initialization vector for every call and returns
// the base64 encoding of iv || ciphertext. Decrypt is the inverse; it fails with
// ErrDecryption when the input is malformed or truncated below the IV length.
//
// Neither cipher carries an authentication tag: decrypting a well-formed input
// with the wrong key yields garbage bytes, not an error.
type PayloadCipher interface {
	// Encrypt encrypts plaintext with key and returns base64(iv || ciphertext).
	Encrypt(plaintext, key []byte) (string, error)

	// Decrypt decodes and decrypts a value produced by Encrypt.
	Decrypt(encoded string, key []byte) ([]byte, error)
}

// GenerateKey returns a fresh 256-bit cryptographically secure random key.
// Keys are never reused across entries.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, apperrors.Wrap(err, "failed to generate encryption key")
	}
	return key, nil
}

// NewPayloadCipher creates the payload cipher selected by name.
func NewPayloadCipher(name string) (PayloadCipher, error) {
	switch name {
	case CipherAESCFB:
		return NewAESCFB(), nil
	case CipherXChaCha20:
		return NewXChaCha20(), nil
	default:
		return nil, fmt.Errorf("unsupported payload cipher: %q", name)
	}
}
