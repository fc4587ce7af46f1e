package storage

import (
	"github.com/iudanet/gatekeeper/internal/crypto"
	"github.com/iudanet/gatekeeper/internal/models"
)

const (
	// DefaultAdminUsername is the username of the provisioning account
	DefaultAdminUsername = "admin"
	// DefaultAdminPassword is the well-known password of the provisioning
	// account. It is NOT a secret: every backend seeds this account on
	// first use so the operator can log in at all, and the password must
	// be changed immediately after the first login.
	DefaultAdminPassword = "admin123"
)

// DefaultAdmin возвращает seed-запись, которую бэкенд создает при первом
// открытии пустого хранилища. Это provisioning-удобство, не security-фича
func DefaultAdmin(hasher crypto.PasswordHasher) *models.User {
	return &models.User{
		Username:     DefaultAdminUsername,
		PasswordHash: hasher.Hash(DefaultAdminPassword),
		Role:         models.RoleAdmin,
		Locked:       false,
	}
}
