package auth

import (
	"context"
	"time"
)

// AuthVerifier verifica un token y devuelve claims o error.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// TokenIssuer emite tokens de acceso firmados.
type TokenIssuer interface {
	Issue(userID, email string, role Role) (token string, claims Claims, err error)
}

// Revoker invalida un token (por jti) hasta su expiración.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AccountStatus informa si la cuenta dueña de un token sigue habilitada.
type AccountStatus interface {
	IsActive(ctx context.Context, userID string) (bool, error)
}
