package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	cryptoService "github.com/allisson/registrations/internal/crypto/service"
	apperrors "github.com/allisson/registrations/internal/errors"
	"github.com/allisson/registrations/internal/metrics"
	"github.com/allisson/registrations/internal/registration/domain"
	"github.com/allisson/registrations/internal/vault"
)

// defaultMaxOutcomes bounds the background task outcome window.
const defaultMaxOutcomes = 256

// Options carries the lifecycle parameters for entry creation.
type Options struct {
	// EntryTTL is the lifetime of an entry and its encryption key.
	EntryTTL time.Duration
	// AbuseWindow is the rolling window for abuse rate limiting.
	AbuseWindow time.Duration
	// AbuseMaxRequests is the number of accepted requests allowed per
	// identifier within the window.
	AbuseMaxRequests int
}

// entryUseCase implements EntryUseCase.
type entryUseCase struct {
	entryRepo   EntryRepository
	abuseRepo   AbuseLogRepository
	profileRepo ProfileRepository
	vaultClient vault.Client
	keyWrapper  cryptoService.KeyWrapper
	cipher      cryptoService.PayloadCipher
	notifier    Notifier
	logger      *slog.Logger
	opts        Options
	tasks       *taskRunner

	// now is swappable for deterministic expiry tests.
	now func() time.Time
}

// NewEntryUseCase creates the registration entry lifecycle manager.
// The notifier may be nil when no downstream notification is configured.
func NewEntryUseCase(
	entryRepo EntryRepository,
	abuseRepo AbuseLogRepository,
	profileRepo ProfileRepository,
	vaultClient vault.Client,
	keyWrapper cryptoService.KeyWrapper,
	cipher cryptoService.PayloadCipher,
	notifier Notifier,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
	opts Options,
) EntryUseCase {
	return &entryUseCase{
		entryRepo:   entryRepo,
		abuseRepo:   abuseRepo,
		profileRepo: profileRepo,
		vaultClient: vaultClient,
		keyWrapper:  keyWrapper,
		cipher:      cipher,
		notifier:    notifier,
		logger:      logger,
		opts:        opts,
		tasks:       newTaskRunner(logger, businessMetrics, defaultMaxOutcomes),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create runs the creation flow for a plaintext contact identifier.
//
// The entry is returned as soon as it has been constructed in memory. The
// encryption key write, the record write, and the downstream notification all
// run as independent background tasks with no ordering and no rollback; their
// failures are logged and recorded but never surface here.
func (u *entryUseCase) Create(ctx context.Context, mobileNumber, servicePrefix string) (*domain.Entry, error) {
	payloadHash := domain.HashIdentifier(mobileNumber)

	exists, err := u.profileRepo.Exists(ctx, payloadHash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Wrap(apperrors.ErrConflict, "identifier already registered")
	}

	if err := u.checkAbuse(ctx, payloadHash); err != nil {
		return nil, err
	}

	// The attempt is logged only after passing the abuse check, so rejected
	// requests never consume quota.
	if err := u.abuseRepo.LogRequest(ctx, &domain.AbuseLogRecord{
		PayloadHash: payloadHash,
		RequestedAt: u.now(),
	}); err != nil {
		return nil, err
	}

	u.scheduleDedup(ctx, payloadHash)

	key, err := cryptoService.GenerateKey()
	if err != nil {
		return nil, err
	}

	encryptedPayload, err := u.cipher.Encrypt([]byte(mobileNumber), key)
	if err != nil {
		return nil, err
	}

	createdAt := u.now()
	id, err := domain.NewEntryID(encryptedPayload, createdAt)
	if err != nil {
		return nil, err
	}

	entry := &domain.Entry{
		ID:                 id,
		EncryptedPayload:   encryptedPayload,
		PayloadHash:        payloadHash,
		ServicePrefix:      servicePrefix,
		CreatedAt:          createdAt,
		ExpiryAt:           createdAt.Add(u.opts.EntryTTL),
		VerificationStatus: domain.StatusNotVerified,
	}

	u.tasks.Go(ctx, "vault_store", func(taskCtx context.Context) error {
		wrapped, err := u.keyWrapper.Wrap(taskCtx, key)
		if err != nil {
			return err
		}
		return u.vaultClient.StoreSecret(taskCtx, domain.KeyName(entry.ID), wrapped, entry.ExpiryAt)
	})

	u.tasks.Go(ctx, "entry_store", func(taskCtx context.Context) error {
		return u.entryRepo.Create(taskCtx, entry)
	})

	if u.notifier != nil {
		u.tasks.Go(ctx, "notify", func(taskCtx context.Context) error {
			return u.notifier.NotifyEntryCreated(taskCtx, entry.ID, entry.EncryptedPayload)
		})
	}

	return entry, nil
}

// checkAbuse rejects the request when the identifier has exhausted its
// accepted-request quota within the rolling window.
func (u *entryUseCase) checkAbuse(ctx context.Context, payloadHash string) error {
	since := u.now().Add(-u.opts.AbuseWindow)

	count, err := u.abuseRepo.CountRequests(ctx, payloadHash, since)
	if err != nil {
		return err
	}
	if count >= u.opts.AbuseMaxRequests {
		return apperrors.Wrap(apperrors.ErrRateLimited, "too many registration requests for identifier")
	}
	return nil
}

// scheduleDedup launches the background removal of a previous live entry for
// the same identifier: the vault key first, then the record. Either delete
// may fail independently; failures are logged and never retried.
func (u *entryUseCase) scheduleDedup(ctx context.Context, payloadHash string) {
	previous, err := u.entryRepo.GetByPayloadHash(ctx, payloadHash)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			u.logger.Warn("dedup lookup failed",
				slog.String("payload_hash", payloadHash),
				slog.Any("error", err),
			)
		}
		return
	}

	u.tasks.Go(ctx, "dedup_delete", func(taskCtx context.Context) error {
		if err := u.vaultClient.DeleteSecret(taskCtx, domain.KeyName(previous.ID)); err != nil {
			return err
		}
		return u.entryRepo.Delete(taskCtx, previous.ID)
	})
}

// Get loads an entry without touching the vault or decrypting.
func (u *entryUseCase) Get(ctx context.Context, id string) (*domain.Entry, error) {
	return u.entryRepo.GetByID(ctx, id)
}

// Reveal loads an entry and decrypts its payload with the key fetched from
// the vault. Vault and decryption errors propagate unchanged.
func (u *entryUseCase) Reveal(ctx context.Context, id string) (*domain.Entry, string, error) {
	entry, err := u.entryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}

	secret, err := u.vaultClient.GetSecret(ctx, domain.KeyName(id))
	if err != nil {
		return nil, "", err
	}

	key, err := u.keyWrapper.Unwrap(ctx, secret.Value)
	if err != nil {
		return nil, "", err
	}

	plaintext, err := u.cipher.Decrypt(entry.EncryptedPayload, key)
	if err != nil {
		return nil, "", err
	}

	return entry, string(plaintext), nil
}

// CleanupExpired evicts expired entries and stale abuse records.
func (u *entryUseCase) CleanupExpired(ctx context.Context) (int64, int64, error) {
	entries, err := u.entryRepo.DeleteExpired(ctx)
	if err != nil {
		return 0, 0, err
	}

	abuseRecords, err := u.abuseRepo.DeleteExpired(ctx, u.now().Add(-u.opts.AbuseWindow))
	if err != nil {
		return entries, 0, err
	}

	return entries, abuseRecords, nil
}

// Wait blocks until all in-flight background tasks have completed.
func (u *entryUseCase) Wait() {
	u.tasks.Wait()
}

// Outcomes returns the completion state of recent background tasks.
func (u *entryUseCase) Outcomes() []TaskOutcome {
	return u.tasks.Outcomes()
}
