package auth

import "time"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
	RoleOwner Role = "owner"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleOwner:
		return true
	}
	return false
}

// Claims representa la información extraída del token.
type Claims struct {
	UserID string
	Email  string
	Role   Role

	// TokenID es el jti; vacío en modo dev.
	TokenID   string
	ExpiresAt time.Time
}
