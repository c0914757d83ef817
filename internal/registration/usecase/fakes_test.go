package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/allisson/registrations/internal/errors"
	"github.com/allisson/registrations/internal/registration/domain"
	"github.com/allisson/registrations/internal/vault"
)

// fakeEntryRepo is a synchronized in-memory EntryRepository.
type fakeEntryRepo struct {
	mu      sync.Mutex
	entries map[string]*domain.Entry

	createErr error
	getErr    error
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{entries: make(map[string]*domain.Entry)}
}

func (f *fakeEntryRepo) Create(ctx context.Context, entry *domain.Entry) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *entry
	f.entries[entry.ID] = &copied
	return nil
}

func (f *fakeEntryRepo) GetByPayloadHash(ctx context.Context, payloadHash string) (*domain.Entry, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.Entry
	now := time.Now().UTC()
	for _, entry := range f.entries {
		if entry.PayloadHash != payloadHash || entry.IsExpired(now) {
			continue
		}
		if latest == nil || entry.CreatedAt.After(latest.CreatedAt) {
			latest = entry
		}
	}
	if latest == nil {
		return nil, apperrors.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeEntryRepo) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *entry
	return &copied, nil
}

func (f *fakeEntryRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, id)
	return nil
}

func (f *fakeEntryRepo) DeleteExpired(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	var count int64
	for id, entry := range f.entries {
		if entry.IsExpired(now) {
			delete(f.entries, id)
			count++
		}
	}
	return count, nil
}

func (f *fakeEntryRepo) ListLive(ctx context.Context, limit int) ([]*domain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	var live []*domain.Entry
	for _, entry := range f.entries {
		if entry.IsExpired(now) {
			continue
		}
		copied := *entry
		live = append(live, &copied)
	}
	sort.Slice(live, func(i, j int) bool { return live[i].CreatedAt.Before(live[j].CreatedAt) })
	if len(live) > limit {
		live = live[:limit]
	}
	return live, nil
}

func (f *fakeEntryRepo) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// fakeAbuseRepo is a synchronized in-memory AbuseLogRepository.
type fakeAbuseRepo struct {
	mu      sync.Mutex
	records []*domain.AbuseLogRecord

	logErr   error
	countErr error
}

func newFakeAbuseRepo() *fakeAbuseRepo {
	return &fakeAbuseRepo{}
}

func (f *fakeAbuseRepo) LogRequest(ctx context.Context, record *domain.AbuseLogRecord) error {
	if f.logErr != nil {
		return f.logErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *record
	f.records = append(f.records, &copied)
	return nil
}

func (f *fakeAbuseRepo) CountRequests(ctx context.Context, payloadHash string, since time.Time) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, record := range f.records {
		if record.PayloadHash == payloadHash && !record.RequestedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeAbuseRepo) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*domain.AbuseLogRecord
	var count int64
	for _, record := range f.records {
		if record.RequestedAt.Before(olderThan) {
			count++
			continue
		}
		kept = append(kept, record)
	}
	f.records = kept
	return count, nil
}

func (f *fakeAbuseRepo) count(payloadHash string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, record := range f.records {
		if record.PayloadHash == payloadHash {
			count++
		}
	}
	return count
}

// fakeProfileRepo is an in-memory ProfileRepository backed by a hash set.
type fakeProfileRepo struct {
	mu     sync.Mutex
	hashes map[string]bool

	existsErr error
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{hashes: make(map[string]bool)}
}

func (f *fakeProfileRepo) Exists(ctx context.Context, payloadHash string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hashes[payloadHash], nil
}

func (f *fakeProfileRepo) add(payloadHash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hashes[payloadHash] = true
}

// fakeVaultClient is a synchronized in-memory vault.Client.
type fakeVaultClient struct {
	mu      sync.Mutex
	secrets map[string]*vault.Secret

	storeErr  error
	getErr    error
	deleteErr error
}

func newFakeVaultClient() *fakeVaultClient {
	return &fakeVaultClient{secrets: make(map[string]*vault.Secret)}
}

func (f *fakeVaultClient) StoreSecret(ctx context.Context, name string, value []byte, expiresAt time.Time) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[name] = &vault.Secret{
		Value:     append([]byte(nil), value...),
		ExpiresAt: expiresAt,
	}
	return nil
}

func (f *fakeVaultClient) GetSecret(ctx context.Context, name string) (*vault.Secret, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	secret, ok := f.secrets[name]
	if !ok || !secret.ExpiresAt.After(time.Now().UTC()) {
		return nil, apperrors.ErrSecretNotFound
	}
	return &vault.Secret{
		Value:     append([]byte(nil), secret.Value...),
		ExpiresAt: secret.ExpiresAt,
	}, nil
}

func (f *fakeVaultClient) DeleteSecret(ctx context.Context, name string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.secrets, name)
	return nil
}

func (f *fakeVaultClient) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.secrets[name]
	return ok
}

// fakeKeyWrapper reversibly prefixes keys instead of calling a KMS.
type fakeKeyWrapper struct {
	wrapErr   error
	unwrapErr error
}

func (f *fakeKeyWrapper) Wrap(ctx context.Context, key []byte) ([]byte, error) {
	if f.wrapErr != nil {
		return nil, f.wrapErr
	}
	return append([]byte("wrapped:"), key...), nil
}

func (f *fakeKeyWrapper) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	if f.unwrapErr != nil {
		return nil, f.unwrapErr
	}
	return append([]byte(nil), wrapped[len("wrapped:"):]...), nil
}

func (f *fakeKeyWrapper) Close() error {
	return nil
}

// fakeNotifier records notification calls.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []string

	notifyErr error
}

func (f *fakeNotifier) NotifyEntryCreated(ctx context.Context, entryID, encryptedPayload string) error {
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, entryID)
	return nil
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
