// Package jsonfile implements storage.CredentialStore on top of a single
// JSON file. The format is a map keyed by username with password_hash,
// role and locked fields, byte-compatible with the legacy users.json store.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/iudanet/gatekeeper/internal/models"
)

// record - формат одной записи в users.json
// Username не дублируется внутри записи, он является ключом карты
type record struct {
	PasswordHash string      `json:"password_hash"`
	Role         models.Role `json:"role"`
	Locked       bool        `json:"locked"`
}

// Storage represents JSON file storage implementation
type Storage struct {
	path   string
	mu     sync.Mutex
	seeded bool
}

// New creates a new JSON file storage instance
// path is the path to the users file; if the file does not exist it is
// created with the given seed record (pass nil to start empty)
func New(ctx context.Context, path string, seed *models.User) (*Storage, error) {
	s := &Storage{path: path}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat users file: %w", err)
		}

		// Файла нет - создаем с seed-записью
		users := map[string]record{}
		if seed != nil {
			users[seed.Username] = record{
				PasswordHash: seed.PasswordHash,
				Role:         seed.Role,
				Locked:       seed.Locked,
			}
			s.seeded = true
		}

		if err := s.save(users); err != nil {
			return nil, fmt.Errorf("failed to initialize users file: %w", err)
		}
	}

	return s, nil
}

// Seeded reports whether New provisioned the seed record
func (s *Storage) Seeded() bool {
	return s.seeded
}

// Close is a no-op for the file backend
func (s *Storage) Close() error {
	return nil
}

// load читает и десериализует весь файл
func (s *Storage) load() (map[string]record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	users := map[string]record{}
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}

	return users, nil
}

// save атомарно записывает весь файл: временный файл в той же директории,
// fsync, затем rename. При падении посреди записи на диске остается либо
// старая, либо новая полная версия, но никогда не частичная
func (s *Storage) save(users map[string]record) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal users: %w", err)
	}

	dir := filepath.Dir(s.path)
	f, err := os.CreateTemp(dir, ".users-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := f.Name()

	ok := false
	defer func() {
		if !ok {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// fsync до rename, иначе после сбоя возможен пустой файл
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace users file: %w", err)
	}

	ok = true
	return nil
}
