package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/allisson/registrations/internal/errors"
	"github.com/allisson/registrations/internal/registration/domain"
	"github.com/allisson/registrations/internal/vault"
)

// reconcileScanLimit caps how many live entries a single run inspects.
const reconcileScanLimit = 1000

// reconcileConcurrency bounds concurrent vault probes during a scan.
const reconcileConcurrency = 8

// ReconcileReport summarizes one reconciliation run.
type ReconcileReport struct {
	// Checked is the number of live entries inspected.
	Checked int
	// OrphanRecords is the number of records deleted because their vault
	// key was missing past the settle grace.
	OrphanRecords int
	// ExpiredEntries is the number of expired entries evicted.
	ExpiredEntries int64
	// ExpiredAbuseRecords is the number of stale abuse records evicted.
	ExpiredAbuseRecords int64
}

// Reconciler repairs divergence left behind by the unordered dual write:
// records whose vault key never landed are unreadable and get deleted once
// they are older than the settle grace. Keys without a record expire on
// their own in the vault and need no action here.
type Reconciler struct {
	entryRepo   EntryRepository
	abuseRepo   AbuseLogRepository
	vaultClient vault.Client
	logger      *slog.Logger

	// grace is how long after creation a record may remain keyless before
	// it is treated as an orphan rather than an in-flight write.
	grace time.Duration

	now func() time.Time
}

// NewReconciler creates a reconciler with the given settle grace.
func NewReconciler(
	entryRepo EntryRepository,
	abuseRepo AbuseLogRepository,
	vaultClient vault.Client,
	logger *slog.Logger,
	grace time.Duration,
) *Reconciler {
	return &Reconciler{
		entryRepo:   entryRepo,
		abuseRepo:   abuseRepo,
		vaultClient: vaultClient,
		logger:      logger,
		grace:       grace,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile scans live entries, deletes orphan records, and evicts expired
// entries and abuse records.
func (r *Reconciler) Reconcile(ctx context.Context, abuseWindow time.Duration) (*ReconcileReport, error) {
	entries, err := r.entryRepo.ListLive(ctx, reconcileScanLimit)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{Checked: len(entries)}
	cutoff := r.now().Add(-r.grace)

	orphans := make(chan string, len(entries))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(reconcileConcurrency)

	for _, entry := range entries {
		group.Go(func() error {
			_, err := r.vaultClient.GetSecret(groupCtx, domain.KeyName(entry.ID))
			if err == nil {
				return nil
			}
			if !errors.Is(err, apperrors.ErrSecretNotFound) {
				return err
			}
			if entry.CreatedAt.After(cutoff) {
				// The key write may still be in flight.
				return nil
			}
			orphans <- entry.ID
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	close(orphans)

	for id := range orphans {
		if err := r.entryRepo.Delete(ctx, id); err != nil {
			r.logger.Error("failed to delete orphan record",
				slog.String("entry_id", id),
				slog.Any("error", err),
			)
			continue
		}
		report.OrphanRecords++
		r.logger.Info("deleted orphan record", slog.String("entry_id", id))
	}

	report.ExpiredEntries, err = r.entryRepo.DeleteExpired(ctx)
	if err != nil {
		return nil, err
	}

	report.ExpiredAbuseRecords, err = r.abuseRepo.DeleteExpired(ctx, r.now().Add(-abuseWindow))
	if err != nil {
		return nil, err
	}

	return report, nil
}
