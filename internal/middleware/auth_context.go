package middleware

import (
	"context"
	"net/http"
	"strings"

	"pet-clinical-history/internal/ports/auth"
	"pet-clinical-history/internal/ports/capabilities"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// Headers aceptados en modo dev.
const (
	DebugUserHeader = "X-Debug-User-ID"
	DebugRoleHeader = "X-Debug-Role"
)

// AuthContext:
// - Si verifier != nil y viene Bearer token => intenta Verify() y setea claims.
// - Si verifier == nil => modo dev: X-Debug-User-ID (+ X-Debug-Role, default owner) => setea claims.
// - Si no hay claims, el request sigue igual; los handlers decidirán si exigen auth.
func AuthContext(verifier auth.AuthVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Dev mode: permitir inyectar user sin verifier
			if verifier == nil {
				if uid := strings.TrimSpace(r.Header.Get(DebugUserHeader)); uid != "" {
					role := auth.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(DebugRoleHeader))))
					if !role.Valid() {
						role = auth.RoleOwner
					}
					next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), auth.Claims{UserID: uid, Role: role})))
					return
				}

				next.ServeHTTP(w, r)
				return
			}

			// Verifier mode
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				// No cortamos aquí para no acoplar. El handler decide 401/403.
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func WithClaims(ctx context.Context, c auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func GetClaims(ctx context.Context) (auth.Claims, bool) {
	v := ctx.Value(claimsKey)
	if v == nil {
		return auth.Claims{}, false
	}
	c, ok := v.(auth.Claims)
	return c, ok
}

// BearerToken expone el token crudo del request (lo usa logout).
func BearerToken(r *http.Request) string {
	return bearerToken(r.Header.Get("Authorization"))
}

// HasCapability consulta al resolver con los claims del contexto.
// Sin claims o con error del resolver, niega.
func HasCapability(ctx context.Context, res capabilities.CapabilitiesResolver, c capabilities.Capability) bool {
	claims, ok := GetClaims(ctx)
	if !ok || res == nil {
		return false
	}
	allowed, err := res.HasFeature(ctx, capabilities.CapabilityCheck{
		UserID:     claims.UserID,
		Role:       claims.Role,
		Capability: c,
	})
	return err == nil && allowed
}

// RequireCapability corta con 401 sin claims y 403 sin la capability.
func RequireCapability(res capabilities.CapabilitiesResolver, c capabilities.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok || strings.TrimSpace(claims.UserID) == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !HasCapability(r.Context(), res, c) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(authHeader string) string {
	if strings.TrimSpace(authHeader) == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
