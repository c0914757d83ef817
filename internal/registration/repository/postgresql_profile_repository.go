package repository

import (
	"context"
	"database/sql"
)

// PostgreSQLProfileRepository implements the profile-existence lookup for
// PostgreSQL databases. Profiles are written by the account system; this
// repository only checks presence by hashed identifier.
type PostgreSQLProfileRepository struct {
	db *sql.DB
}

// NewPostgreSQLProfileRepository creates a new PostgreSQL-backed profile repository.
func NewPostgreSQLProfileRepository(db *sql.DB) *PostgreSQLProfileRepository {
	return &PostgreSQLProfileRepository{db: db}
}

// Exists reports whether a registered profile exists for a hashed identifier.
func (p *PostgreSQLProfileRepository) Exists(ctx context.Context, payloadHash string) (bool, error) {
	query := `SELECT 1 FROM user_profiles WHERE mobile_number_hash = $1 LIMIT 1`

	var one int
	err := p.db.QueryRowContext(ctx, query, payloadHash).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, storeError("failed to check profile existence", err)
	}
	return true, nil
}
