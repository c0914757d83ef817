// Package domain defines the registration entry model and its derived values
// (identifier hashes, entry ids, vault key names).
package domain

import (
	"crypto/md5" //nolint:gosec // fast digest for id derivation, not used for security
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// VerificationStatus reports whether an entry's identifier has been verified.
type VerificationStatus string

// Verification statuses. Entries start NotVerified; the transition to
// Verified is driven by an external verification collaborator.
const (
	StatusNotVerified VerificationStatus = "Not verified"
	StatusVerified    VerificationStatus = "Verified"
)

// idSuffixAlphabet is the character set of the random id suffix.
const idSuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Entry is a short-lived, privacy-protected registration record.
//
// The plaintext contact identifier never appears on the entry: it is held only
// as ciphertext (EncryptedPayload) and as a one-way digest (PayloadHash) used
// for equality lookups. The per-entry encryption key lives in the secret vault
// under KeyName(ID) with an expiry mirroring ExpiryAt.
type Entry struct {
	ID                 string
	EncryptedPayload   string
	PayloadHash        string
	ServicePrefix      string
	CreatedAt          time.Time
	ExpiryAt           time.Time
	VerificationStatus VerificationStatus
}

// IsExpired reports whether the entry's expiry has passed.
func (e *Entry) IsExpired(now time.Time) bool {
	return !e.ExpiryAt.After(now)
}

// HashIdentifier returns the deterministic, unsalted SHA-256 hex digest of a
// plaintext contact identifier. Determinism is load-bearing: deduplication and
// abuse tracking both look records up by this value, so it must stay stable
// across requests and instances.
func HashIdentifier(identifier string) string {
	digest := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(digest[:])
}

// KeyName returns the vault secret name holding an entry's encryption key.
func KeyName(entryID string) string {
	return "encryption-key-" + entryID
}

// NewEntryID derives an entry id of the form
// UR-<14-digit UTC timestamp>-<10 hex digest chars>-<6 random uppercase alphanumerics>.
//
// The digest component is computed over the ciphertext, not the plaintext
// identifier, so ids carry no deterministic relationship to the identifier.
func NewEntryID(encryptedPayload string, now time.Time) (string, error) {
	timestamp := now.UTC().Format("20060102150405")

	digest := md5.Sum([]byte(encryptedPayload)) //nolint:gosec // fast digest for id derivation, not used for security
	digestPrefix := hex.EncodeToString(digest[:])[:10]

	suffix := make([]byte, 6)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(idSuffixAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate id suffix: %w", err)
		}
		suffix[i] = idSuffixAlphabet[n.Int64()]
	}

	return fmt.Sprintf("UR-%s-%s-%s", timestamp, digestPrefix, suffix), nil
}
