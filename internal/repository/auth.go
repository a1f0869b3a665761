// Package repository provides SQL persistence for users and audio samples.
// Queries use $n placeholders and run unchanged on PostgreSQL and SQLite.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/asrcollect/internal/common"
	"github.com/atinyakov/asrcollect/internal/models"
)

// SQLUserRepository implements user persistence on a database/sql handle.
type SQLUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewSQLUserRepository creates a new SQLUserRepository with the given database connection.
func NewSQLUserRepository(db *sql.DB) *SQLUserRepository {
	return &SQLUserRepository{DB: db}
}

// UserExists checks whether a user with the specified username exists in the database.
func (r *SQLUserRepository) UserExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`,
		username,
	).Scan(&exists)
	return exists, err
}

// Create inserts u. The ON CONFLICT clause makes a concurrent duplicate a
// no-op instead of an error; the returned bool reports whether a row was
// actually inserted.
func (r *SQLUserRepository) Create(ctx context.Context, u *models.User) (bool, error) {
	res, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (username) DO NOTHING`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	return n == 1, nil
}

// GetByUsername returns common.ErrNotFound when no such user exists.
func (r *SQLUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return &u, nil
}
