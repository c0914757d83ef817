package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/allisson/registrations/internal/registration/domain"
)

// MySQLAbuseLogRepository implements AbuseLogRecord persistence for MySQL databases.
type MySQLAbuseLogRepository struct {
	db *sql.DB
}

// NewMySQLAbuseLogRepository creates a new MySQL-backed abuse log repository.
func NewMySQLAbuseLogRepository(db *sql.DB) *MySQLAbuseLogRepository {
	return &MySQLAbuseLogRepository{db: db}
}

// LogRequest records one accepted request for a hashed identifier.
func (m *MySQLAbuseLogRepository) LogRequest(
	ctx context.Context,
	record *domain.AbuseLogRecord,
) error {
	query := `INSERT INTO abuse_log_records (payload_hash, requested_at) VALUES (?, ?)`

	if _, err := m.db.ExecContext(ctx, query, record.PayloadHash, record.RequestedAt); err != nil {
		return storeError("failed to log request", err)
	}
	return nil
}

// CountRequests counts accepted requests for a hashed identifier since the
// given time.
func (m *MySQLAbuseLogRepository) CountRequests(
	ctx context.Context,
	payloadHash string,
	since time.Time,
) (int, error) {
	query := `SELECT COUNT(*) FROM abuse_log_records WHERE payload_hash = ? AND requested_at >= ?`

	var count int
	if err := m.db.QueryRowContext(ctx, query, payloadHash, since).Scan(&count); err != nil {
		return 0, storeError("failed to count requests", err)
	}
	return count, nil
}

// DeleteExpired evicts abuse records older than the cutoff, returning the count.
func (m *MySQLAbuseLogRepository) DeleteExpired(
	ctx context.Context,
	olderThan time.Time,
) (int64, error) {
	query := `DELETE FROM abuse_log_records WHERE requested_at < ?`

	result, err := m.db.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, storeError("failed to delete expired abuse records", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, storeError("failed to count deleted abuse records", err)
	}
	return count, nil
}
