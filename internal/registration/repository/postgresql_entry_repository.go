// Package repository implements data persistence for registration entries,
// abuse log records, and profile lookups. Repositories support both PostgreSQL
// and MySQL; the abuse log additionally supports Redis with native TTL eviction.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/allisson/registrations/internal/errors"
	"github.com/allisson/registrations/internal/registration/domain"
)

// storeError wraps a driver error so that callers can match ErrStoreUnavailable
// while the original error stays in the chain for logging.
func storeError(message string, err error) error {
	return fmt.Errorf("%s: %w: %w", message, apperrors.ErrStoreUnavailable, err)
}

// PostgreSQLEntryRepository implements Entry persistence for PostgreSQL databases.
type PostgreSQLEntryRepository struct {
	db *sql.DB
}

// NewPostgreSQLEntryRepository creates a new PostgreSQL-backed entry repository.
func NewPostgreSQLEntryRepository(db *sql.DB) *PostgreSQLEntryRepository {
	return &PostgreSQLEntryRepository{db: db}
}

// Create inserts a new registration entry.
func (p *PostgreSQLEntryRepository) Create(ctx context.Context, entry *domain.Entry) error {
	query := `INSERT INTO registration_entries
			  (id, encrypted_payload, payload_hash, service_prefix, created_at, expiry_at, verification_status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := p.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.EncryptedPayload,
		entry.PayloadHash,
		entry.ServicePrefix,
		entry.CreatedAt,
		entry.ExpiryAt,
		entry.VerificationStatus,
	)
	if err != nil {
		return storeError("failed to create entry", err)
	}
	return nil
}

// GetByPayloadHash retrieves the newest live entry for a payload hash.
// Entries past their expiry are never returned, even before eviction runs.
func (p *PostgreSQLEntryRepository) GetByPayloadHash(
	ctx context.Context,
	payloadHash string,
) (*domain.Entry, error) {
	query := `SELECT id, encrypted_payload, payload_hash, service_prefix, created_at, expiry_at, verification_status
			  FROM registration_entries
			  WHERE payload_hash = $1 AND expiry_at > $2
			  ORDER BY created_at DESC
			  LIMIT 1`

	return p.scanEntry(p.db.QueryRowContext(ctx, query, payloadHash, time.Now().UTC()), "failed to get entry by payload hash")
}

// GetByID retrieves a live entry by its id.
func (p *PostgreSQLEntryRepository) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	query := `SELECT id, encrypted_payload, payload_hash, service_prefix, created_at, expiry_at, verification_status
			  FROM registration_entries
			  WHERE id = $1 AND expiry_at > $2
			  LIMIT 1`

	return p.scanEntry(p.db.QueryRowContext(ctx, query, id, time.Now().UTC()), "failed to get entry by id")
}

// Delete removes an entry by its id. Deleting an absent entry is not an error.
func (p *PostgreSQLEntryRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM registration_entries WHERE id = $1`

	if _, err := p.db.ExecContext(ctx, query, id); err != nil {
		return storeError("failed to delete entry", err)
	}
	return nil
}

// DeleteExpired evicts all entries whose expiry has passed, returning the count.
func (p *PostgreSQLEntryRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM registration_entries WHERE expiry_at <= $1`

	result, err := p.db.ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, storeError("failed to delete expired entries", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, storeError("failed to count deleted entries", err)
	}
	return count, nil
}

// ListLive returns up to limit live entries, oldest first. Used by the
// reconciler to probe for orphaned records.
func (p *PostgreSQLEntryRepository) ListLive(ctx context.Context, limit int) ([]*domain.Entry, error) {
	query := `SELECT id, encrypted_payload, payload_hash, service_prefix, created_at, expiry_at, verification_status
			  FROM registration_entries
			  WHERE expiry_at > $1
			  ORDER BY created_at ASC
			  LIMIT $2`

	rows, err := p.db.QueryContext(ctx, query, time.Now().UTC(), limit)
	if err != nil {
		return nil, storeError("failed to list live entries", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*domain.Entry
	for rows.Next() {
		var entry domain.Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.EncryptedPayload,
			&entry.PayloadHash,
			&entry.ServicePrefix,
			&entry.CreatedAt,
			&entry.ExpiryAt,
			&entry.VerificationStatus,
		); err != nil {
			return nil, storeError("failed to scan entry", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("failed to iterate live entries", err)
	}

	return entries, nil
}

// scanEntry scans a single-row result, mapping sql.ErrNoRows to ErrNotFound.
func (p *PostgreSQLEntryRepository) scanEntry(row *sql.Row, message string) (*domain.Entry, error) {
	var entry domain.Entry
	err := row.Scan(
		&entry.ID,
		&entry.EncryptedPayload,
		&entry.PayloadHash,
		&entry.ServicePrefix,
		&entry.CreatedAt,
		&entry.ExpiryAt,
		&entry.VerificationStatus,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, storeError(message, err)
	}
	return &entry, nil
}
