package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

//go:generate moq -out hash_mock.go . PasswordHasher

// PasswordHasher вычисляет детерминированный дайджест пароля
// Движок аутентификации работает только через этот интерфейс,
// выбор алгоритма хеширования вне его зоны ответственности
type PasswordHasher interface {
	// Hash returns a fixed-length hex digest of the password
	Hash(password string) string
}

// SHA256Hasher - штатная реализация PasswordHasher
// Дайджесты совместимы с legacy-хранилищем users.json
type SHA256Hasher struct{}

// NewSHA256Hasher creates the default password hash primitive
func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

// Hash хеширует пароль через SHA256 и возвращает hex-encoded строку
func (h *SHA256Hasher) Hash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Equal сравнивает два дайджеста за константное время
// Защита от timing-атак, даже при одинаковом сообщении об ошибке
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
