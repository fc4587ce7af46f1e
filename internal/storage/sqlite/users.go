package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/gatekeeper/internal/models"
	"github.com/iudanet/gatekeeper/internal/storage"
)

// Get retrieves user by username
func (s *Storage) Get(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT username, password_hash, role, locked
		FROM users
		WHERE username = ?
	`

	user := &models.User{}

	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.Locked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// Put creates or overwrites a user record
func (s *Storage) Put(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, password_hash, role, locked)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			password_hash = excluded.password_hash,
			role = excluded.role,
			locked = excluded.locked
	`

	_, err := s.db.ExecContext(ctx, query,
		user.Username,
		user.PasswordHash,
		user.Role,
		user.Locked,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

// Delete removes user by username
func (s *Storage) Delete(ctx context.Context, username string) error {
	query := `DELETE FROM users WHERE username = ?`

	result, err := s.db.ExecContext(ctx, query, username)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// SetLocked updates the locked flag of a user
func (s *Storage) SetLocked(ctx context.Context, username string, locked bool) error {
	query := `UPDATE users SET locked = ? WHERE username = ?`

	result, err := s.db.ExecContext(ctx, query, locked, username)
	if err != nil {
		return fmt.Errorf("failed to update locked flag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// UpdatePasswordHash replaces the stored password hash of a user
func (s *Storage) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	query := `UPDATE users SET password_hash = ? WHERE username = ?`

	result, err := s.db.ExecContext(ctx, query, passwordHash, username)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// List returns all users sorted by username
func (s *Storage) List(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT username, password_hash, role, locked
		FROM users
		ORDER BY username
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.Username, &user.PasswordHash, &user.Role, &user.Locked); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}
