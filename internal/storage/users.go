package storage

import (
	"context"

	"github.com/iudanet/gatekeeper/internal/models"
)

//go:generate moq -out users_mock.go . CredentialStore

// CredentialStore defines interface for user credential persistence
// Implementations know nothing about sessions or lockout counters;
// they only store credential records keyed by username.
// Any error other than the sentinel errors above is a storage failure
// and must be treated as fatal by the calling operation.
type CredentialStore interface {
	// Get retrieves user by username
	// Returns ErrUserNotFound if user doesn't exist
	Get(ctx context.Context, username string) (*models.User, error)

	// Put creates or overwrites a user record
	// Callers that need "must not exist" semantics check Get first
	Put(ctx context.Context, user *models.User) error

	// Delete removes user by username
	// Returns ErrUserNotFound if user doesn't exist
	Delete(ctx context.Context, username string) error

	// SetLocked updates the locked flag of a user
	// Returns ErrUserNotFound if user doesn't exist
	SetLocked(ctx context.Context, username string, locked bool) error

	// UpdatePasswordHash replaces the stored password hash of a user
	// Returns ErrUserNotFound if user doesn't exist
	UpdatePasswordHash(ctx context.Context, username, passwordHash string) error

	// List returns all users sorted by username
	List(ctx context.Context) ([]*models.User, error)

	// Seeded reports whether the backend provisioned the default admin
	// record on open because no backing store existed yet
	Seeded() bool

	// Close releases the backing store
	Close() error
}
