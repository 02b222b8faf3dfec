// ABOUTME: User database operations
// ABOUTME: CRUD functions for users table

package db

import (
	"context"
	"fmt"

	"github.com/harper/agora/internal/models"
)

const userColumns = `id, username, email, admin, moderator, created_at`

// CreateUser inserts a new user and sets its ID.
func CreateUser(ctx context.Context, q DBTX, u *models.User) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO users (username, email, admin, moderator, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.Admin, u.Moderator, u.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert user %s: %w", u.Username, err)
	}
	u.ID, err = res.LastInsertId()
	return err
}

// GetUser retrieves a user by ID.
func GetUser(ctx context.Context, q DBTX, id int64) (*models.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByUsername retrieves a user by username, case-insensitively.
func GetUserByUsername(ctx context.Context, q DBTX, username string) (*models.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func GetUserByEmail(ctx context.Context, q DBTX, email string) (*models.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower(?) LIMIT 1`, email)
	return scanUser(row)
}

// ListUsers returns all users ordered by username.
func ListUsers(ctx context.Context, q DBTX) ([]*models.User, error) {
	return queryUsers(ctx, q, `SELECT `+userColumns+` FROM users ORDER BY username`)
}

// UsersByIDs returns the users with the given IDs, in no particular order.
func UsersByIDs(ctx context.Context, q DBTX, ids []int64) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id IN (` + placeholders(len(ids)) + `)`
	return queryUsers(ctx, q, query, int64Args(ids)...)
}

// SetUserStaff updates the admin and moderator flags.
func SetUserStaff(ctx context.Context, q DBTX, id int64, admin, moderator bool) error {
	result, err := q.ExecContext(ctx, `UPDATE users SET admin = ?, moderator = ? WHERE id = ?`, admin, moderator, id)
	if err != nil {
		return err
	}
	return requireRow(result, fmt.Sprintf("user %d", id))
}

func queryUsers(ctx context.Context, q DBTX, query string, args ...any) ([]*models.User, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(s scanner) (*models.User, error) {
	var u models.User
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.Admin, &u.Moderator, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
