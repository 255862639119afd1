package jwt

import (
	"context"
	"fmt"
	"strings"

	"pet-clinical-history/internal/ports/auth"
)

// Verifier implementa auth.AuthVerifier: firma, lista de revocación y estado de la cuenta.
type Verifier struct {
	issuer   *Issuer
	revoker  auth.Revoker
	accounts auth.AccountStatus
}

type VerifierOption func(*Verifier)

// WithAccountStatus rechaza tokens de cuentas desactivadas o borradas.
func WithAccountStatus(a auth.AccountStatus) VerifierOption {
	return func(v *Verifier) { v.accounts = a }
}

func NewVerifier(issuer *Issuer, revoker auth.Revoker, opts ...VerifierOption) *Verifier {
	v := &Verifier{issuer: issuer, revoker: revoker}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil || v.issuer == nil {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrInvalidToken
	}

	claims, err := v.issuer.parse(token)
	if err != nil {
		return auth.Claims{}, err
	}

	if v.revoker != nil && claims.TokenID != "" {
		revoked, err := v.revoker.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return auth.Claims{}, fmt.Errorf("revocation check failed: %w", err)
		}
		if revoked {
			return auth.Claims{}, ErrTokenRevoked
		}
	}

	if v.accounts != nil {
		active, err := v.accounts.IsActive(ctx, claims.UserID)
		if err != nil {
			return auth.Claims{}, fmt.Errorf("account check failed: %w", err)
		}
		if !active {
			return auth.Claims{}, ErrAccountDisabled
		}
	}

	return claims, nil
}
