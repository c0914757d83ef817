package repository

import (
	"context"
	"database/sql"
)

// MySQLProfileRepository implements the profile-existence lookup for MySQL databases.
type MySQLProfileRepository struct {
	db *sql.DB
}

// NewMySQLProfileRepository creates a new MySQL-backed profile repository.
func NewMySQLProfileRepository(db *sql.DB) *MySQLProfileRepository {
	return &MySQLProfileRepository{db: db}
}

// Exists reports whether a registered profile exists for a hashed identifier.
func (m *MySQLProfileRepository) Exists(ctx context.Context, payloadHash string) (bool, error) {
	query := `SELECT 1 FROM user_profiles WHERE mobile_number_hash = ? LIMIT 1`

	var one int
	err := m.db.QueryRowContext(ctx, query, payloadHash).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, storeError("failed to check profile existence", err)
	}
	return true, nil
}
