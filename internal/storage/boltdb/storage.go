// Package boltdb implements storage.CredentialStore on top of bbolt.
// Records are stored JSON-marshaled in a single users bucket keyed by
// username; every mutation is one bbolt transaction.
package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gatekeeper/internal/models"
)

// bucketUsers - bucket с учетными записями, ключ - username
var bucketUsers = []byte("users")

// Storage represents BoltDB storage implementation
type Storage struct {
	db     *bbolt.DB
	seeded bool
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file; when the users bucket
// is created empty the seed record is written (pass nil to start empty)
func New(ctx context.Context, dbPath string, seed *models.User) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}

	// Инициализируем bucket и seed-запись в одной транзакции
	if err := s.init(seed); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize users bucket: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Seeded reports whether New provisioned the seed record
func (s *Storage) Seeded() bool {
	return s.seeded
}

// init создает users bucket если его нет и, для пустого bucket,
// записывает seed-запись
func (s *Storage) init(seed *models.User) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketUsers)
		if err != nil {
			return fmt.Errorf("failed to create users bucket: %w", err)
		}

		if seed == nil {
			return nil
		}

		// Seed только для пустого хранилища
		if k, _ := bucket.Cursor().First(); k != nil {
			return nil
		}

		data, err := json.Marshal(seed)
		if err != nil {
			return fmt.Errorf("failed to marshal seed user: %w", err)
		}

		if err := bucket.Put([]byte(seed.Username), data); err != nil {
			return fmt.Errorf("failed to write seed user: %w", err)
		}

		s.seeded = true
		return nil
	})
}
