// Package admin wraps the core with the validation and audit logging
// required for administrative operations. Role checks happen in the
// dispatcher before any of these methods are reached.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/gatekeeper/internal/audit"
	"github.com/iudanet/gatekeeper/internal/auth"
	"github.com/iudanet/gatekeeper/internal/crypto"
	"github.com/iudanet/gatekeeper/internal/models"
	"github.com/iudanet/gatekeeper/internal/storage"
	"github.com/iudanet/gatekeeper/internal/validation"
)

// ErrSelfRemoval indicates an attempt to remove one's own account
var ErrSelfRemoval = errors.New("cannot remove your own account")

// Service exposes administrative operations over the core
type Service struct {
	store  storage.CredentialStore
	engine *auth.Engine
	hasher crypto.PasswordHasher
	trail  *audit.Trail
}

// NewService creates the admin facade
func NewService(store storage.CredentialStore, engine *auth.Engine, hasher crypto.PasswordHasher, trail *audit.Trail) *Service {
	return &Service{
		store:  store,
		engine: engine,
		hasher: hasher,
		trail:  trail,
	}
}

// AddUser validates and creates a new user record
func (s *Service) AddUser(ctx context.Context, actor, username, password string, role models.Role) error {
	if err := validation.ValidateUsername(username); err != nil {
		return err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return err
	}

	// Явная проверка "must not exist": Put сам по себе перезаписывает
	if _, err := s.store.Get(ctx, username); err == nil {
		return fmt.Errorf("user %q: %w", username, storage.ErrUserAlreadyExists)
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return fmt.Errorf("failed to check user existence: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: s.hasher.Hash(password),
		Role:         role,
		Locked:       false,
	}
	if err := s.store.Put(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.audit(actor, "add_user", username)
	return nil
}

// RemoveUser deletes a user record and its transient failure counter
// Removing your own account is rejected
func (s *Service) RemoveUser(ctx context.Context, actor, username string) error {
	if username == actor {
		return ErrSelfRemoval
	}

	if err := s.store.Delete(ctx, username); err != nil {
		return err
	}

	// Счетчик не должен пережить запись: иначе новый пользователь с тем
	// же именем унаследует чужие промахи
	s.engine.ResetAttempts(username)

	s.audit(actor, "remove_user", username)
	return nil
}

// UnlockUser clears the persisted lock on a user account
func (s *Service) UnlockUser(ctx context.Context, actor, username string) error {
	if err := s.engine.Unlock(ctx, username); err != nil {
		return err
	}

	s.audit(actor, "unlock_user", username)
	return nil
}

// ListUsers returns all user records sorted by username
func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.store.List(ctx)
}

// ViewLogs returns the last n lines of the audit trail (0 for all)
func (s *Service) ViewLogs(actor string, lines int) (string, error) {
	out, err := s.trail.View(lines)
	if err != nil {
		return "", err
	}

	_ = s.trail.Command(actor, "view_logs", true)
	return out, nil
}

// ExportLogs writes the audit trail as CSV and returns the output path
func (s *Service) ExportLogs(actor string) (string, error) {
	path, err := s.trail.ExportCSV()
	if err != nil {
		return "", err
	}

	s.audit(actor, "export_logs", "")
	return path, nil
}

// audit записывает успешное административное действие
// Ошибки журнала не прерывают уже выполненную операцию
func (s *Service) audit(actor, action, target string) {
	_ = s.trail.AdminAction(actor, action, target)
	cmd := action
	if target != "" {
		cmd += " " + target
	}
	_ = s.trail.Command(actor, cmd, true)
}
