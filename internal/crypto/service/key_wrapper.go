package service

import (
	"context"

	"gocloud.dev/secrets"

	apperrors "github.com/allisson/registrations/internal/errors"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// KeyWrapper encrypts per-entry keys with a KMS-managed key before they leave
// the process, so a vault compromise alone does not expose plaintext keys.
type KeyWrapper interface {
	// Wrap encrypts a per-entry key.
	Wrap(ctx context.Context, key []byte) ([]byte, error)

	// Unwrap decrypts a wrapped per-entry key.
	Unwrap(ctx context.Context, wrapped []byte) ([]byte, error)

	// Close releases the underlying KMS keeper.
	Close() error
}

// kmsKeyWrapper implements KeyWrapper using gocloud.dev/secrets.
type kmsKeyWrapper struct {
	keeper *secrets.Keeper
}

// NewKMSKeyWrapper opens a KMS keeper for the given key URI.
// Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
func NewKMSKeyWrapper(ctx context.Context, keyURI string) (KeyWrapper, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to open KMS keeper")
	}
	return &kmsKeyWrapper{keeper: keeper}, nil
}

func (k *kmsKeyWrapper) Wrap(ctx context.Context, key []byte) ([]byte, error) {
	wrapped, err := k.keeper.Encrypt(ctx, key)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to wrap encryption key")
	}
	return wrapped, nil
}

func (k *kmsKeyWrapper) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	key, err := k.keeper.Decrypt(ctx, wrapped)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to unwrap encryption key")
	}
	return key, nil
}

func (k *kmsKeyWrapper) Close() error {
	return k.keeper.Close()
}
