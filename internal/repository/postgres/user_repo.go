package postgres

import (
	"context"
	"database/sql"

	"explorewithme/internal/domain"
)

// The users table is owned by the surrounding CRUD layer; the ledger only
// probes it for existence and notification addresses.
type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *userRepository {
	return &userRepository{
		DB: db,
	}
}

var _ domain.UserRepository = (*userRepository)(nil)
var _ domain.RequesterEmailLookup = (*userRepository)(nil)

func (r *userRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`
	var exists bool
	if err := r.DB.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *userRepository) EmailByUserID(ctx context.Context, userID string) (string, error) {
	query := `SELECT email FROM users WHERE id = $1`
	var email string
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(&email)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return email, nil
}
