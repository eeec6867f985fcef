package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleCoordinator Role = "COORDINATOR"
	RoleAssistant   Role = "ASSISTANT"
)

// ParseRole accepts a role name in any case and reports whether it is known.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", false
	}
	return r, true
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCoordinator, RoleAssistant:
		return true
	}
	return false
}

// Priority orders roles for listings, lower first.
func (r Role) Priority() int {
	switch r {
	case RoleAdmin:
		return 1
	case RoleCoordinator:
		return 2
	case RoleAssistant:
		return 3
	}
	return 4
}

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RefreshToken is a ledger row. The wire token itself is never stored.
type RefreshToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	IsRevoked bool
	CreatedAt time.Time
}

// Active reports whether the row is still honored at now.
func (t RefreshToken) Active(now time.Time) bool {
	return !t.IsRevoked && t.ExpiresAt.After(now)
}

type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Identity is what the current-identity call returns to the client.
type Identity struct {
	Sub             int64  `json:"sub"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Role            Role   `json:"role"`
	Exp             int64  `json:"exp"`
	Iat             int64  `json:"iat"`
	RefreshTokenExp *int64 `json:"refreshTokenExp,omitempty"`
	RefreshTokenIat *int64 `json:"refreshTokenIat,omitempty"`
}
