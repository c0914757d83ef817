package commands

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/allisson/go-pwdhash"
)

// RunGenerateAPIKeys generates random API keys and their Argon2id hashes.
// The plaintext key goes to the caller; the hash goes into API_KEY_HASHES.
// Plaintext keys are printed once and never stored.
func RunGenerateAPIKeys(count int, out io.Writer) error {
	if count < 1 {
		return fmt.Errorf("count must be a positive number, got: %d", count)
	}

	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyModerate))
	if err != nil {
		return fmt.Errorf("failed to create password hasher: %w", err)
	}

	for i := 0; i < count; i++ {
		randomBytes := make([]byte, 32)
		if _, err := rand.Read(randomBytes); err != nil {
			return fmt.Errorf("failed to generate random key: %w", err)
		}
		key := base64.URLEncoding.EncodeToString(randomBytes)

		hash, err := hasher.Hash([]byte(key))
		if err != nil {
			return fmt.Errorf("failed to hash key: %w", err)
		}

		fmt.Fprintf(out, "API key:  %s\n", key)
		fmt.Fprintf(out, "Hash:     %s\n\n", hash)
	}

	return nil
}
