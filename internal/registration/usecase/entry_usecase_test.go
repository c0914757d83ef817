package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	cryptoService "github.com/allisson/registrations/internal/crypto/service"
	apperrors "github.com/allisson/registrations/internal/errors"
	"github.com/allisson/registrations/internal/metrics"
	"github.com/allisson/registrations/internal/registration/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type useCaseFixture struct {
	entryRepo   *fakeEntryRepo
	abuseRepo   *fakeAbuseRepo
	profileRepo *fakeProfileRepo
	vaultClient *fakeVaultClient
	keyWrapper  *fakeKeyWrapper
	notifier    *fakeNotifier
	useCase     EntryUseCase
}

func newUseCaseFixture(t *testing.T) *useCaseFixture {
	t.Helper()

	f := &useCaseFixture{
		entryRepo:   newFakeEntryRepo(),
		abuseRepo:   newFakeAbuseRepo(),
		profileRepo: newFakeProfileRepo(),
		vaultClient: newFakeVaultClient(),
		keyWrapper:  &fakeKeyWrapper{},
		notifier:    &fakeNotifier{},
	}

	f.useCase = NewEntryUseCase(
		f.entryRepo,
		f.abuseRepo,
		f.profileRepo,
		f.vaultClient,
		f.keyWrapper,
		cryptoService.NewAESCFB(),
		f.notifier,
		metrics.NewNoOpBusinessMetrics(),
		slog.New(slog.NewTextHandler(testWriter{t}, nil)),
		Options{
			EntryTTL:         600 * time.Second,
			AbuseWindow:      24 * time.Hour,
			AbuseMaxRequests: 10,
		},
	)

	t.Cleanup(f.useCase.Wait)
	return f
}

// testWriter routes log output through the test log.
type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestEntryUseCase_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_ReturnsEntryWithDerivedFields", func(t *testing.T) {
		f := newUseCaseFixture(t)

		entry, err := f.useCase.Create(ctx, "+5511999990000", "SIGNUP")

		require.NoError(t, err)
		assert.Regexp(t, `^UR-\d{14}-[0-9a-f]{10}-[A-Z0-9]{6}$`, entry.ID)
		assert.Equal(t, domain.HashIdentifier("+5511999990000"), entry.PayloadHash)
		assert.Equal(t, "SIGNUP", entry.ServicePrefix)
		assert.Equal(t, domain.StatusNotVerified, entry.VerificationStatus)
		assert.NotEmpty(t, entry.EncryptedPayload)
		assert.NotContains(t, entry.EncryptedPayload, "+5511999990000")
	})

	t.Run("Success_ExpirySetExactlyTTLAfterCreation", func(t *testing.T) {
		f := newUseCaseFixture(t)
		fixedNow := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
		f.useCase.(*entryUseCase).now = func() time.Time { return fixedNow }

		entry, err := f.useCase.Create(ctx, "+5511999990001", "SIGNUP")

		require.NoError(t, err)
		assert.Equal(t, fixedNow, entry.CreatedAt)
		assert.Equal(t, 600*time.Second, entry.ExpiryAt.Sub(entry.CreatedAt))
	})

	t.Run("Success_BackgroundWritesCompleteAfterWait", func(t *testing.T) {
		f := newUseCaseFixture(t)

		entry, err := f.useCase.Create(ctx, "+5511999990002", "SIGNUP")
		require.NoError(t, err)

		f.useCase.Wait()

		stored, err := f.entryRepo.GetByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, entry.EncryptedPayload, stored.EncryptedPayload)

		secret, err := f.vaultClient.GetSecret(ctx, domain.KeyName(entry.ID))
		require.NoError(t, err)
		assert.True(t, secret.ExpiresAt.Equal(entry.ExpiryAt))

		assert.Equal(t, 1, f.notifier.callCount())
	})

	t.Run("Success_DedupDeletesPreviousEntryAndKey", func(t *testing.T) {
		f := newUseCaseFixture(t)

		first, err := f.useCase.Create(ctx, "+5511999990003", "SIGNUP")
		require.NoError(t, err)
		f.useCase.Wait()

		second, err := f.useCase.Create(ctx, "+5511999990003", "SIGNUP")
		require.NoError(t, err)
		f.useCase.Wait()

		assert.NotEqual(t, first.ID, second.ID)

		_, err = f.entryRepo.GetByID(ctx, first.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.False(t, f.vaultClient.has(domain.KeyName(first.ID)))

		_, err = f.entryRepo.GetByID(ctx, second.ID)
		assert.NoError(t, err)
		assert.True(t, f.vaultClient.has(domain.KeyName(second.ID)))
		assert.Equal(t, 1, f.entryRepo.len())
	})

	t.Run("Success_VaultWriteFailureDoesNotFailCreation", func(t *testing.T) {
		f := newUseCaseFixture(t)
		f.vaultClient.storeErr = errors.New("vault sealed")

		entry, err := f.useCase.Create(ctx, "+5511999990004", "SIGNUP")
		require.NoError(t, err)

		f.useCase.Wait()

		// The record write proceeds independently of the key write.
		_, err = f.entryRepo.GetByID(ctx, entry.ID)
		assert.NoError(t, err)
		assert.False(t, f.vaultClient.has(domain.KeyName(entry.ID)))

		var vaultOutcome *TaskOutcome
		for _, outcome := range f.useCase.Outcomes() {
			if outcome.Name == "vault_store" {
				vaultOutcome = &outcome
				break
			}
		}
		require.NotNil(t, vaultOutcome)
		assert.Error(t, vaultOutcome.Err)
	})

	t.Run("Error_RegisteredProfileConflicts", func(t *testing.T) {
		f := newUseCaseFixture(t)
		f.profileRepo.add(domain.HashIdentifier("+5511999990005"))

		entry, err := f.useCase.Create(ctx, "+5511999990005", "SIGNUP")

		assert.Nil(t, entry)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.Equal(t, 0, f.abuseRepo.count(domain.HashIdentifier("+5511999990005")))
	})

	t.Run("Error_EleventhRequestRateLimited", func(t *testing.T) {
		f := newUseCaseFixture(t)
		payloadHash := domain.HashIdentifier("+5511999990006")

		for i := 0; i < 9; i++ {
			require.NoError(t, f.abuseRepo.LogRequest(ctx, &domain.AbuseLogRecord{
				PayloadHash: payloadHash,
				RequestedAt: time.Now().UTC().Add(-time.Hour),
			}))
		}

		// Tenth accepted request within the window.
		entry, err := f.useCase.Create(ctx, "+5511999990006", "SIGNUP")
		require.NoError(t, err)
		require.NotNil(t, entry)

		// Eleventh rejected, and the rejection itself is not logged.
		entry, err = f.useCase.Create(ctx, "+5511999990006", "SIGNUP")
		assert.Nil(t, entry)
		assert.ErrorIs(t, err, apperrors.ErrRateLimited)
		assert.Equal(t, 10, f.abuseRepo.count(payloadHash))
	})

	t.Run("Success_RequestsOutsideWindowDoNotCount", func(t *testing.T) {
		f := newUseCaseFixture(t)
		payloadHash := domain.HashIdentifier("+5511999990007")

		for i := 0; i < 10; i++ {
			require.NoError(t, f.abuseRepo.LogRequest(ctx, &domain.AbuseLogRecord{
				PayloadHash: payloadHash,
				RequestedAt: time.Now().UTC().Add(-25 * time.Hour),
			}))
		}

		entry, err := f.useCase.Create(ctx, "+5511999990007", "SIGNUP")

		require.NoError(t, err)
		assert.NotNil(t, entry)
	})

	t.Run("Success_ConcurrentCreatesForDistinctNumbers", func(t *testing.T) {
		f := newUseCaseFixture(t)
		const workers = 20

		ids := make([]string, workers)
		errs := make([]error, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				entry, err := f.useCase.Create(ctx, fmt.Sprintf("+55119999100%02d", i), "SIGNUP")
				if err != nil {
					errs[i] = err
					return
				}
				ids[i] = entry.ID
			}(i)
		}
		wg.Wait()
		f.useCase.Wait()

		seen := make(map[string]bool)
		for i := 0; i < workers; i++ {
			require.NoError(t, errs[i])
			assert.False(t, seen[ids[i]])
			seen[ids[i]] = true
		}
		assert.Equal(t, workers, f.entryRepo.len())
	})
}

func TestEntryUseCase_Reveal(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_RoundTrip", func(t *testing.T) {
		f := newUseCaseFixture(t)

		entry, err := f.useCase.Create(ctx, "+5511999991000", "SIGNUP")
		require.NoError(t, err)
		f.useCase.Wait()

		revealed, plaintext, err := f.useCase.Reveal(ctx, entry.ID)

		require.NoError(t, err)
		assert.Equal(t, entry.ID, revealed.ID)
		assert.Equal(t, "+5511999991000", plaintext)
	})

	t.Run("Error_EntryNotFound", func(t *testing.T) {
		f := newUseCaseFixture(t)

		_, _, err := f.useCase.Reveal(ctx, "UR-20260829120000-0123456789-ABC123")

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("Error_MissingVaultKeyPropagates", func(t *testing.T) {
		f := newUseCaseFixture(t)

		entry, err := f.useCase.Create(ctx, "+5511999991001", "SIGNUP")
		require.NoError(t, err)
		f.useCase.Wait()

		require.NoError(t, f.vaultClient.DeleteSecret(ctx, domain.KeyName(entry.ID)))

		_, _, err = f.useCase.Reveal(ctx, entry.ID)
		assert.ErrorIs(t, err, apperrors.ErrSecretNotFound)
	})

	t.Run("Error_UnwrapFailurePropagates", func(t *testing.T) {
		f := newUseCaseFixture(t)

		entry, err := f.useCase.Create(ctx, "+5511999991002", "SIGNUP")
		require.NoError(t, err)
		f.useCase.Wait()

		f.keyWrapper.unwrapErr = errors.New("kms unavailable")

		_, _, err = f.useCase.Reveal(ctx, entry.ID)
		assert.Error(t, err)
	})
}

func TestEntryUseCase_CleanupExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_EvictsExpiredEntriesAndAbuseRecords", func(t *testing.T) {
		f := newUseCaseFixture(t)

		expired := &domain.Entry{
			ID:                 "UR-20260829000000-0123456789-OLDOLD",
			PayloadHash:        domain.HashIdentifier("+5511999992000"),
			CreatedAt:          time.Now().UTC().Add(-time.Hour),
			ExpiryAt:           time.Now().UTC().Add(-50 * time.Minute),
			VerificationStatus: domain.StatusNotVerified,
		}
		require.NoError(t, f.entryRepo.Create(ctx, expired))

		require.NoError(t, f.abuseRepo.LogRequest(ctx, &domain.AbuseLogRecord{
			PayloadHash: expired.PayloadHash,
			RequestedAt: time.Now().UTC().Add(-25 * time.Hour),
		}))

		live, err := f.useCase.Create(ctx, "+5511999992001", "SIGNUP")
		require.NoError(t, err)
		f.useCase.Wait()

		entries, abuseRecords, err := f.useCase.CleanupExpired(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(1), entries)
		assert.Equal(t, int64(1), abuseRecords)

		_, err = f.entryRepo.GetByID(ctx, live.ID)
		assert.NoError(t, err)
	})
}
