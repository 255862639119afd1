package users

import (
	"time"

	"pet-clinical-history/internal/ports/auth"
)

// User es la cuenta de acceso. Los dueños tienen además un perfil en owners.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         auth.Role

	// DeactivatedAt != nil => la cuenta no puede iniciar sesión.
	DeactivatedAt *time.Time

	// Código de recuperación de contraseña vigente.
	ResetCode          string
	ResetCodeExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u User) Active() bool {
	return u.DeactivatedAt == nil
}
