package models

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims представляет стандартные поля JWT и пользовательские данные,
// которые мы хотим включить в токен.
type Claims struct {
	UserID               uuid.UUID `json:"user_id"`
	Roles                []string  `json:"roles"`
	jwt.RegisteredClaims           // Встраиваем стандартные поля: Issuer, Subject, ExpiresAt, IssuedAt и т.д.
}

// AuthContext carries the authenticated caller identity into service calls.
// Operations check roles against it instead of re-fetching the caller record.
type AuthContext struct {
	UserID uuid.UUID
	Roles  []string
}

// IsDM reports whether the caller holds the DM role.
func (a AuthContext) IsDM() bool {
	return HasRole(a.Roles, RoleDM)
}

// IsWebmaster reports whether the caller holds the webmaster role.
func (a AuthContext) IsWebmaster() bool {
	return HasRole(a.Roles, RoleWebmaster)
}
