package repository

import (
	"context"
	"database/sql"
	"time"

	apperrors "github.com/allisson/registrations/internal/errors"
	"github.com/allisson/registrations/internal/registration/domain"
)

// MySQLEntryRepository implements Entry persistence for MySQL databases.
type MySQLEntryRepository struct {
	db *sql.DB
}

// NewMySQLEntryRepository creates a new MySQL-backed entry repository.
func NewMySQLEntryRepository(db *sql.DB) *MySQLEntryRepository {
	return &MySQLEntryRepository{db: db}
}

// Create inserts a new registration entry.
func (m *MySQLEntryRepository) Create(ctx context.Context, entry *domain.Entry) error {
	query := `INSERT INTO registration_entries
			  (id, encrypted_payload, payload_hash, service_prefix, created_at, expiry_at, verification_status)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := m.db.ExecContext(
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
func (m *MySQLEntryRepository) GetByPayloadHash(
	ctx context.Context,
	payloadHash string,
) (*domain.Entry, error) {
	query := `SELECT id, encrypted_payload, payload_hash, service_prefix, created_at, expiry_at, verification_status
			  FROM registration_entries
			  WHERE payload_hash = ? AND expiry_at > ?
			  ORDER BY created_at DESC
			  LIMIT 1`

	return m.scanEntry(m.db.QueryRowContext(ctx, query, payloadHash, time.Now().UTC()), "failed to get entry by payload hash")
}

// GetByID retrieves a live entry by its id.
func (m *MySQLEntryRepository) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	query := `SELECT id, encrypted_payload, payload_hash, service_prefix, created_at, expiry_at, verification_status
			  FROM registration_entries
			  WHERE id = ? AND expiry_at > ?
			  LIMIT 1`

	return m.scanEntry(m.db.QueryRowContext(ctx, query, id, time.Now().UTC()), "failed to get entry by id")
}

// Delete removes an entry by its id. Deleting an absent entry is not an error.
func (m *MySQLEntryRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM registration_entries WHERE id = ?`

	if _, err := m.db.ExecContext(ctx, query, id); err != nil {
		return storeError("failed to delete entry", err)
	}
	return nil
}

// DeleteExpired evicts all entries whose expiry has passed, returning the count.
func (m *MySQLEntryRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM registration_entries WHERE expiry_at <= ?`

	result, err := m.db.ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, storeError("failed to delete expired entries", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, storeError("failed to count deleted entries", err)
	}
	return count, nil
}

// ListLive returns up to limit live entries, oldest first.
func (m *MySQLEntryRepository) ListLive(ctx context.Context, limit int) ([]*domain.Entry, error) {
	query := `SELECT id, encrypted_payload, payload_hash, service_prefix, created_at, expiry_at, verification_status
			  FROM registration_entries
			  WHERE expiry_at > ?
			  ORDER BY created_at ASC
			  LIMIT ?`

	rows, err := m.db.QueryContext(ctx, query, time.Now().UTC(), limit)
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

func (m *MySQLEntryRepository) scanEntry(row *sql.Row, message string) (*domain.Entry, error) {
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
