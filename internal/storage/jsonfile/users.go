package jsonfile

import (
	"context"
	"sort"

	"github.com/iudanet/gatekeeper/internal/models"
	"github.com/iudanet/gatekeeper/internal/storage"
)

// Get retrieves user by username
func (s *Storage) Get(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return nil, err
	}

	rec, ok := users[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	return toUser(username, rec), nil
}

// Put creates or overwrites a user record
func (s *Storage) Put(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}

	users[user.Username] = record{
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		Locked:       user.Locked,
	}

	return s.save(users)
}

// Delete removes user by username
func (s *Storage) Delete(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := users[username]; !ok {
		return storage.ErrUserNotFound
	}

	delete(users, username)
	return s.save(users)
}

// SetLocked updates the locked flag of a user
func (s *Storage) SetLocked(ctx context.Context, username string, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}

	rec, ok := users[username]
	if !ok {
		return storage.ErrUserNotFound
	}

	rec.Locked = locked
	users[username] = rec
	return s.save(users)
}

// UpdatePasswordHash replaces the stored password hash of a user
func (s *Storage) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}

	rec, ok := users[username]
	if !ok {
		return storage.ErrUserNotFound
	}

	rec.PasswordHash = passwordHash
	users[username] = rec
	return s.save(users)
}

// List returns all users sorted by username
func (s *Storage) List(ctx context.Context) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return nil, err
	}

	result := make([]*models.User, 0, len(users))
	for username, rec := range users {
		result = append(result, toUser(username, rec))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Username < result[j].Username
	})

	return result, nil
}

func toUser(username string, rec record) *models.User {
	return &models.User{
		Username:     username,
		PasswordHash: rec.PasswordHash,
		Role:         rec.Role,
		Locked:       rec.Locked,
	}
}
