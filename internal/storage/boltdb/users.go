package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gatekeeper/internal/models"
	"github.com/iudanet/gatekeeper/internal/storage"
)

// Get retrieves user by username
func (s *Storage) Get(ctx context.Context, username string) (*models.User, error) {
	var user *models.User

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketUsers)
		if bucket == nil {
			return fmt.Errorf("users bucket not found")
		}

		data := bucket.Get([]byte(username))
		if data == nil {
			return storage.ErrUserNotFound
		}

		user = &models.User{}
		if err := json.Unmarshal(data, user); err != nil {
			return fmt.Errorf("failed to unmarshal user: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Put creates or overwrites a user record
func (s *Storage) Put(ctx context.Context, user *models.User) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketUsers)
		if bucket == nil {
			return fmt.Errorf("users bucket not found")
		}

		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}

		if err := bucket.Put([]byte(user.Username), data); err != nil {
			return fmt.Errorf("failed to save user: %w", err)
		}

		return nil
	})
}

// Delete removes user by username
func (s *Storage) Delete(ctx context.Context, username string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketUsers)
		if bucket == nil {
			return fmt.Errorf("users bucket not found")
		}

		if bucket.Get([]byte(username)) == nil {
			return storage.ErrUserNotFound
		}

		if err := bucket.Delete([]byte(username)); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}

		return nil
	})
}

// SetLocked updates the locked flag of a user
func (s *Storage) SetLocked(ctx context.Context, username string, locked bool) error {
	return s.update(username, func(user *models.User) {
		user.Locked = locked
	})
}

// UpdatePasswordHash replaces the stored password hash of a user
func (s *Storage) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	return s.update(username, func(user *models.User) {
		user.PasswordHash = passwordHash
	})
}

// update выполняет read-modify-write одной записи в одной транзакции
func (s *Storage) update(username string, mutate func(*models.User)) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketUsers)
		if bucket == nil {
			return fmt.Errorf("users bucket not found")
		}

		data := bucket.Get([]byte(username))
		if data == nil {
			return storage.ErrUserNotFound
		}

		user := &models.User{}
		if err := json.Unmarshal(data, user); err != nil {
			return fmt.Errorf("failed to unmarshal user: %w", err)
		}

		mutate(user)

		updated, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}

		if err := bucket.Put([]byte(username), updated); err != nil {
			return fmt.Errorf("failed to save user: %w", err)
		}

		return nil
	})
}

// List returns all users sorted by username
// bbolt хранит ключи в byte-sorted порядке, поэтому ForEach уже отсортирован
func (s *Storage) List(ctx context.Context) ([]*models.User, error) {
	var users []*models.User

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketUsers)
		if bucket == nil {
			return fmt.Errorf("users bucket not found")
		}

		return bucket.ForEach(func(k, v []byte) error {
			user := &models.User{}
			if err := json.Unmarshal(v, user); err != nil {
				return fmt.Errorf("failed to unmarshal user %q: %w", k, err)
			}
			users = append(users, user)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return users, nil
}
