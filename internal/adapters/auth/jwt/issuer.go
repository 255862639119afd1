package jwt

import (
	"errors"
	"strings"
	"time"

	"pet-clinical-history/internal/ports/auth"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrNotConfigured = errors.New("jwt signing key not configured")
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenRevoked  = errors.New("token revoked")

	ErrAccountDisabled = errors.New("account disabled")
)

type Config struct {
	SigningKey string
	Issuer     string

	// TTL del token de acceso. Si es <= 0 se usan 12h.
	TTL time.Duration
}

// tokenClaims es el payload firmado (HS256).
type tokenClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	gojwt.RegisteredClaims
}

type Issuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(cfg Config) *Issuer {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Issuer{
		key:    []byte(strings.TrimSpace(cfg.SigningKey)),
		issuer: strings.TrimSpace(cfg.Issuer),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (i *Issuer) IsConfigured() bool {
	return i != nil && len(i.key) > 0
}

func (i *Issuer) Issue(userID, email string, role auth.Role) (string, auth.Claims, error) {
	if !i.IsConfigured() {
		return "", auth.Claims{}, ErrNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", auth.Claims{}, errors.New("user id required")
	}

	now := i.now()
	exp := now.Add(i.ttl)
	jti := uuid.NewString()

	tok := gojwt.NewWithClaims(gojwt.SigningMethodHS256, tokenClaims{
		UserID: userID,
		Email:  email,
		Role:   string(role),
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(exp),
			ID:        jti,
		},
	})

	signed, err := tok.SignedString(i.key)
	if err != nil {
		return "", auth.Claims{}, err
	}

	return signed, auth.Claims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		TokenID:   jti,
		ExpiresAt: exp,
	}, nil
}

// parse valida firma, método y expiración, y devuelve claims de dominio.
func (i *Issuer) parse(token string) (auth.Claims, error) {
	if !i.IsConfigured() {
		return auth.Claims{}, ErrNotConfigured
	}

	var tc tokenClaims
	parsed, err := gojwt.ParseWithClaims(token, &tc, func(t *gojwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, gojwt.ErrTokenUnverifiable
		}
		return i.key, nil
	}, gojwt.WithTimeFunc(i.now), gojwt.WithIssuer(i.issuer))
	if err != nil {
		if errors.Is(err, gojwt.ErrTokenExpired) {
			return auth.Claims{}, ErrTokenExpired
		}
		return auth.Claims{}, ErrInvalidToken
	}
	if !parsed.Valid {
		return auth.Claims{}, ErrInvalidToken
	}

	role := auth.Role(tc.Role)
	if strings.TrimSpace(tc.UserID) == "" || !role.Valid() {
		return auth.Claims{}, ErrInvalidToken
	}

	c := auth.Claims{
		UserID:  tc.UserID,
		Email:   tc.Email,
		Role:    role,
		TokenID: tc.ID,
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}
