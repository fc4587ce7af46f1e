package models

import (
	"fmt"
	"time"
)

// Role определяет уровень доступа пользователя в системе
type Role string

const (
	// RoleAdmin имеет доступ к административным командам
	RoleAdmin Role = "admin"
	// RoleUser имеет доступ только к общим командам
	RoleUser Role = "user"
)

// ParseRole converts a raw string into a Role
// Returns an error for anything other than "admin" or "user"
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", fmt.Errorf("role must be 'admin' or 'user', got %q", s)
	}
}

// User представляет учетную запись в хранилище
type User struct {
	Username     string `json:"username"`      // уникальный username
	PasswordHash string `json:"password_hash"` // hex digest пароля, никогда не plaintext
	Role         Role   `json:"role"`          // admin или user
	Locked       bool   `json:"locked"`        // выставляется после превышения лимита неудачных попыток входа
}

// Session представляет активную сессию пользователя
// Token - непрозрачная случайная строка, не содержит identity информации
// и никогда не попадает в логи; для логирования используется ID или Username
type Session struct {
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ID           string    `json:"id"`       // UUID сессии, безопасен для логирования
	Token        string    `json:"-"`        // opaque token, выдается вызывающей стороне
	Username     string    `json:"username"` // владелец сессии
	Role         Role      `json:"role"`     // роль на момент входа
}
