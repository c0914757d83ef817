// Package vault provides the secret vault client used to store per-entry
// encryption keys outside the record store.
//
// The vault holds named secrets with an expiry hint. Entry keys are written
// under "encryption-key-<entry id>" with an expiry mirroring the entry's
// expiry, and are deleted best-effort when an entry is deduplicated.
package vault

import (
	"context"
	"time"
)

// Secret is a named secret value with its expiry hint.
type Secret struct {
	Value     []byte
	ExpiresAt time.Time
}

// Client abstracts the remote secret vault service.
type Client interface {
	// StoreSecret creates or overwrites a named secret. Idempotent.
	// Fails with ErrVaultUnavailable or ErrVaultAuth on transport or
	// credential failure.
	StoreSecret(ctx context.Context, name string, value []byte, expiresAt time.Time) error

	// GetSecret retrieves a named secret. Fails with ErrSecretNotFound
	// if the secret is absent or past its expiry.
	GetSecret(ctx context.Context, name string) (*Secret, error)

	// DeleteSecret initiates deletion of a named secret. Deletion is
	// asynchronous on the vault side and is not guaranteed complete when
	// this call returns.
	DeleteSecret(ctx context.Context, name string) error
}
