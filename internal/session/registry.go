// Package session implements the in-process session registry.
// Sessions are keyed purely by token: there is no "current session"
// slot, callers hold the token and pass it into every call.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/gatekeeper/internal/models"
)

// ErrSessionNotFound indicates that no live session exists for a token
var ErrSessionNotFound = errors.New("session not found")

// tokenBytes - размер токена до base64-кодирования
// 32 байта из crypto/rand делают подбор токена практически невозможным;
// явной проверки коллизий нет, уникальность обеспечивается энтропией
const tokenBytes = 32

// Registry issues and validates opaque session tokens.
// Sessions live only in process memory and are never persisted.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewRegistry creates an empty session registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*models.Session),
	}
}

// Create issues a new session for an authenticated principal and
// returns a copy of the record including the token
func (r *Registry) Create(username string, role models.Role) (*models.Session, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now()
	sess := &models.Session{
		ID:           uuid.NewString(),
		Token:        base64.RawURLEncoding.EncodeToString(buf),
		Username:     username,
		Role:         role,
		CreatedAt:    now,
		LastActivity: now,
	}

	r.mu.Lock()
	r.sessions[sess.Token] = sess
	r.mu.Unlock()

	out := *sess
	return &out, nil
}

// IsAuthenticated reports whether a live session exists for the token
func (r *Registry) IsAuthenticated(token string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sessions[token]
	return ok
}

// RoleOf returns the role bound to a token
// Returns ErrSessionNotFound if the token has no live session
func (r *Registry) RoleOf(token string) (models.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[token]
	if !ok {
		return "", ErrSessionNotFound
	}
	return sess.Role, nil
}

// Get returns a copy of the session record for status rendering
// Returns ErrSessionNotFound if the token has no live session
func (r *Registry) Get(token string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}

	out := *sess
	return &out, nil
}

// UpdateActivity refreshes the last-activity timestamp of a session.
// Idle-timeout enforcement is not implemented, but the timestamp is
// maintained so it stays possible.
func (r *Registry) UpdateActivity(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[token]
	if !ok {
		return ErrSessionNotFound
	}

	sess.LastActivity = time.Now()
	return nil
}

// End removes the session for a token
// A second End on the same token returns ErrSessionNotFound
func (r *Registry) End(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[token]; !ok {
		return ErrSessionNotFound
	}

	delete(r.sessions, token)
	return nil
}
