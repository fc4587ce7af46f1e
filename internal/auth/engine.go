// Package auth implements the authentication engine: password
// verification against the credential store plus the per-user lockout
// state machine.
//
// State machine per username:
//
//	Active(n) --fail-->    Active(n+1)  для n < threshold-1
//	Active(n) --fail-->    Locked       при n = threshold-1
//	Active(n) --success--> Active(0)
//	Locked    --attempt--> Locked       (проверка locked идет до счетчика)
//	Locked    --unlock-->  Active(0)
//
// Счетчик неудачных попыток живет только в памяти процесса; флаг Locked
// персистентный и снимается только административным Unlock.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iudanet/gatekeeper/internal/crypto"
	"github.com/iudanet/gatekeeper/internal/models"
	"github.com/iudanet/gatekeeper/internal/storage"
)

// DefaultMaxFailedAttempts - число последовательных неудачных попыток,
// после которого учетная запись блокируется
const DefaultMaxFailedAttempts = 3

// Status is the security outcome of an authentication operation.
// Storage failures are NOT a Status: they are returned as errors so
// callers never log an I/O outage as a failed login.
type Status string

const (
	// StatusSuccess - пароль верен, доступ разрешен
	StatusSuccess Status = "success"
	// StatusInvalidCredentials - неверный пароль или неизвестный
	// пользователь; снаружи эти случаи неразличимы
	StatusInvalidCredentials Status = "invalid_credentials"
	// StatusAccountLocked - учетная запись заблокирована
	StatusAccountLocked Status = "account_locked"
	// StatusInvalidOldPassword - смена пароля отклонена из-за неверного
	// текущего пароля
	StatusInvalidOldPassword Status = "invalid_old_password"
)

// Result carries the outcome of Authenticate or ChangePassword.
// Remaining is the number of attempts left before lockout; it is filled
// only for StatusInvalidCredentials on a known user, and disclosing it
// to the end user is the caller's choice (mild enumeration signal).
type Result struct {
	Status    Status
	Role      models.Role
	Remaining int
}

// Engine drives authentication against a CredentialStore
type Engine struct {
	store       storage.CredentialStore
	hasher      crypto.PasswordHasher
	attempts    map[string]int
	maxAttempts int

	// mu сериализует все read-modify-write последовательности, чтобы две
	// конкурентные неудачные попытки не проскочили проверку порога
	mu sync.Mutex
}

// NewEngine creates an authentication engine
// maxAttempts <= 0 falls back to DefaultMaxFailedAttempts
func NewEngine(store storage.CredentialStore, hasher crypto.PasswordHasher, maxAttempts int) *Engine {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxFailedAttempts
	}
	return &Engine{
		store:       store,
		hasher:      hasher,
		attempts:    make(map[string]int),
		maxAttempts: maxAttempts,
	}
}

// Authenticate verifies a username/password pair and advances the
// lockout state machine. A non-nil error means the credential store
// broke, not that the credentials were wrong.
func (e *Engine) Authenticate(ctx context.Context, username, password string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.authenticate(ctx, username, password)
}

// authenticate - версия без захвата mu, переиспользуется ChangePassword
func (e *Engine) authenticate(ctx context.Context, username, password string) (Result, error) {
	user, err := e.store.Get(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Неизвестный username неотличим от неверного пароля,
			// запись как side effect не создается
			return Result{Status: StatusInvalidCredentials}, nil
		}
		return Result{}, fmt.Errorf("credential lookup failed: %w", err)
	}

	if user.Locked {
		return Result{Status: StatusAccountLocked}, nil
	}

	// Константное по времени сравнение дайджестов
	if crypto.Equal(e.hasher.Hash(password), user.PasswordHash) {
		delete(e.attempts, username)
		return Result{Status: StatusSuccess, Role: user.Role}, nil
	}

	count := e.attempts[username] + 1
	if count >= e.maxAttempts {
		// Порог достигнут: переводим запись в персистентное Locked
		// и сбрасываем счетчик
		if err := e.store.SetLocked(ctx, username, true); err != nil {
			return Result{}, fmt.Errorf("failed to lock account: %w", err)
		}
		delete(e.attempts, username)
		return Result{Status: StatusAccountLocked}, nil
	}

	e.attempts[username] = count
	return Result{
		Status:    StatusInvalidCredentials,
		Remaining: e.maxAttempts - count,
	}, nil
}

// Unlock clears the persisted lock and the in-memory failure counter.
// Returns storage.ErrUserNotFound for an unknown user. Privilege checks
// belong to the caller; the engine itself enforces none.
func (e *Engine) Unlock(ctx context.Context, username string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.SetLocked(ctx, username, false); err != nil {
		return err
	}

	delete(e.attempts, username)
	return nil
}

// ChangePassword re-runs full authentication semantics against the old
// password (lockout accounting included) before storing the hash of the
// new one. Returns storage.ErrUserNotFound for an unknown user.
func (e *Engine) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Для смены пароля неизвестный пользователь - явная ошибка,
	// а не замаскированный InvalidCredentials
	if _, err := e.store.Get(ctx, username); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("credential lookup failed: %w", err)
	}

	res, err := e.authenticate(ctx, username, oldPassword)
	if err != nil {
		return Result{}, err
	}

	switch res.Status {
	case StatusSuccess:
		// ok, продолжаем
	case StatusInvalidCredentials:
		res.Status = StatusInvalidOldPassword
		return res, nil
	default:
		return res, nil
	}

	if err := e.store.UpdatePasswordHash(ctx, username, e.hasher.Hash(newPassword)); err != nil {
		return Result{}, fmt.Errorf("failed to update password hash: %w", err)
	}

	return res, nil
}

// ResetAttempts drops the transient failure counter for a username.
// Used when a user record is removed so a stale counter cannot outlive it.
func (e *Engine) ResetAttempts(username string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.attempts, username)
}
