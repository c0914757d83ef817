package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/allisson/registrations/internal/registration/domain"
)

// PostgreSQLAbuseLogRepository implements AbuseLogRecord persistence for
// PostgreSQL databases.
type PostgreSQLAbuseLogRepository struct {
	db *sql.DB
}

// NewPostgreSQLAbuseLogRepository creates a new PostgreSQL-backed abuse log repository.
func NewPostgreSQLAbuseLogRepository(db *sql.DB) *PostgreSQLAbuseLogRepository {
	return &PostgreSQLAbuseLogRepository{db: db}
}

// LogRequest records one accepted request for a hashed identifier.
func (p *PostgreSQLAbuseLogRepository) LogRequest(
	ctx context.Context,
	record *domain.AbuseLogRecord,
) error {
	query := `INSERT INTO abuse_log_records (payload_hash, requested_at) VALUES ($1, $2)`

	if _, err := p.db.ExecContext(ctx, query, record.PayloadHash, record.RequestedAt); err != nil {
		return storeError("failed to log request", err)
	}
	return nil
}

// CountRequests counts accepted requests for a hashed identifier since the
// given time.
func (p *PostgreSQLAbuseLogRepository) CountRequests(
	ctx context.Context,
	payloadHash string,
	since time.Time,
) (int, error) {
	query := `SELECT COUNT(*) FROM abuse_log_records WHERE payload_hash = $1 AND requested_at >= $2`

	var count int
	if err := p.db.QueryRowContext(ctx, query, payloadHash, since).Scan(&count); err != nil {
		return 0, storeError("failed to count requests", err)
	}
	return count, nil
}

// DeleteExpired evicts abuse records older than the cutoff, returning the count.
func (p *PostgreSQLAbuseLogRepository) DeleteExpired(
	ctx context.Context,
	olderThan time.Time,
) (int64, error) {
	query := `DELETE FROM abuse_log_records WHERE requested_at < $1`

	result, err := p.db.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, storeError("failed to delete expired abuse records", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, storeError("failed to count deleted abuse records", err)
	}
	return count, nil
}
