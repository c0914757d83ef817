package vault

import (
	"context"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/hashicorp/vault/api"

	apperrors "github.com/allisson/registrations/internal/errors"
)

// HashiVaultClient implements Client against HashiCorp Vault's KV v2 engine.
//
// Secret data carries the hex-encoded value and an RFC3339 expiry. The expiry
// is enforced on read: an expired secret is reported as ErrSecretNotFound even
// when Vault still holds the data.
type HashiVaultClient struct {
	kv *api.KVv2
}

// NewHashiVaultClient creates a vault client for the given address, token and
// KV v2 mount path.
func NewHashiVaultClient(address, token, mount string) (*HashiVaultClient, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create vault client")
	}
	client.SetToken(token)

	return &HashiVaultClient{kv: client.KVv2(mount)}, nil
}

// StoreSecret writes a named secret with its expiry hint.
func (h *HashiVaultClient) StoreSecret(
	ctx context.Context,
	name string,
	value []byte,
	expiresAt time.Time,
) error {
	data := map[string]interface{}{
		"value":      hex.EncodeToString(value),
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	}

	if _, err := h.kv.Put(ctx, name, data); err != nil {
		return mapVaultError(err, "failed to store secret")
	}
	return nil
}

// GetSecret reads a named secret, treating absent, malformed, or expired data
// as ErrSecretNotFound.
func (h *HashiVaultClient) GetSecret(ctx context.Context, name string) (*Secret, error) {
	kvSecret, err := h.kv.Get(ctx, name)
	if err != nil {
		return nil, mapVaultError(err, "failed to get secret")
	}
	if kvSecret == nil || kvSecret.Data == nil {
		return nil, apperrors.ErrSecretNotFound
	}

	rawValue, ok := kvSecret.Data["value"].(string)
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrSecretNotFound, "secret data has no value field")
	}
	value, err := hex.DecodeString(rawValue)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSecretNotFound, "secret value is not valid hex")
	}

	rawExpiry, ok := kvSecret.Data["expires_at"].(string)
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrSecretNotFound, "secret data has no expiry field")
	}
	expiresAt, err := time.Parse(time.RFC3339, rawExpiry)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSecretNotFound, "secret expiry is not valid RFC3339")
	}

	if !expiresAt.After(time.Now().UTC()) {
		return nil, apperrors.ErrSecretNotFound
	}

	return &Secret{Value: value, ExpiresAt: expiresAt}, nil
}

// DeleteSecret initiates deletion of a named secret. Vault removes the data
// asynchronously; absence is not an error.
func (h *HashiVaultClient) DeleteSecret(ctx context.Context, name string) error {
	if err := h.kv.Delete(ctx, name); err != nil {
		mapped := mapVaultError(err, "failed to delete secret")
		if apperrors.Is(mapped, apperrors.ErrSecretNotFound) {
			return nil
		}
		return mapped
	}
	return nil
}

// mapVaultError translates vault transport errors into domain sentinels.
func mapVaultError(err error, message string) error {
	if apperrors.Is(err, api.ErrSecretNotFound) {
		return apperrors.Wrap(apperrors.ErrSecretNotFound, message)
	}

	var respErr *api.ResponseError
	if apperrors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperrors.Wrap(apperrors.ErrVaultAuth, message)
		case http.StatusNotFound:
			return apperrors.Wrap(apperrors.ErrSecretNotFound, message)
		default:
			return apperrors.Wrap(apperrors.ErrVaultUnavailable, message)
		}
	}
	return apperrors.Wrap(apperrors.ErrVaultUnavailable, message)
}
