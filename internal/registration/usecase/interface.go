// Package usecase implements the registration entry lifecycle: key generation,
// envelope encryption, deduplication, abuse rate limiting, and the dual write
// of record and key to two independent stores.
package usecase

import (
	"context"
	"time"

	"github.com/allisson/registrations/internal/registration/domain"
)

// EntryRepository defines registration entry persistence operations.
// Implementations must never return entries past their expiry.
type EntryRepository interface {
	Create(ctx context.Context, entry *domain.Entry) error
	GetByPayloadHash(ctx context.Context, payloadHash string) (*domain.Entry, error)
	GetByID(ctx context.Context, id string) (*domain.Entry, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
	ListLive(ctx context.Context, limit int) ([]*domain.Entry, error)
}

// AbuseLogRepository defines abuse log persistence operations.
type AbuseLogRepository interface {
	LogRequest(ctx context.Context, record *domain.AbuseLogRecord) error
	CountRequests(ctx context.Context, payloadHash string, since time.Time) (int, error)
	DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

// ProfileRepository checks whether an identifier already belongs to a
// registered profile.
type ProfileRepository interface {
	Exists(ctx context.Context, payloadHash string) (bool, error)
}

// Notifier dispatches the downstream one-time-code notification after an
// entry has been created. Failures are logged, never retried, and never
// affect the already-returned entry.
type Notifier interface {
	NotifyEntryCreated(ctx context.Context, entryID, encryptedPayload string) error
}

// EntryUseCase is the registration entry lifecycle manager.
type EntryUseCase interface {
	// Create runs the full creation flow for a plaintext contact identifier
	// and returns the constructed entry before its key and record writes are
	// guaranteed complete.
	Create(ctx context.Context, mobileNumber, servicePrefix string) (*domain.Entry, error)

	// Get loads an entry without touching the vault or decrypting.
	Get(ctx context.Context, id string) (*domain.Entry, error)

	// Reveal loads an entry and decrypts its payload. Vault and decryption
	// failures propagate: no payload can be recovered without the key.
	Reveal(ctx context.Context, id string) (*domain.Entry, string, error)

	// CleanupExpired evicts expired entries and abuse records, returning the
	// per-store counts.
	CleanupExpired(ctx context.Context) (entries, abuseRecords int64, err error)

	// Wait blocks until all in-flight background tasks have completed.
	Wait()

	// Outcomes returns the completion state of recent background tasks.
	Outcomes() []TaskOutcome
}
