package jwt

import (
	"context"
	"testing"
	"time"

	"pet-clinical-history/internal/ports/auth"

	"github.com/stretchr/testify/require"
)

func newTestIssuer(now time.Time) *Issuer {
	i := NewIssuer(Config{SigningKey: "test-key", Issuer: "petclinic-test", TTL: time.Hour})
	i.now = func() time.Time { return now }
	return i
}

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	now := time.Now()
	iss := newTestIssuer(now)
	v := NewVerifier(iss, NewMemoryRevocationList())

	tok, issued, err := iss.Issue("user-1", "vet@clinic.test", auth.RoleStaff)
	require.NoError(t, err)
	require.NotEmpty(t, issued.TokenID)

	claims, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, auth.RoleStaff, claims.Role)
	require.Equal(t, issued.TokenID, claims.TokenID)
}

func TestVerify_RejectsExpired(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	tok, _, err := newTestIssuer(past).Issue("user-1", "", auth.RoleOwner)
	require.NoError(t, err)

	v := NewVerifier(newTestIssuer(time.Now()), nil)
	_, err = v.Verify(context.Background(), tok)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_RejectsOtherKey(t *testing.T) {
	tok, _, err := NewIssuer(Config{SigningKey: "other", Issuer: "petclinic-test"}).Issue("u", "", auth.RoleAdmin)
	require.NoError(t, err)

	v := NewVerifier(newTestIssuer(time.Now()), nil)
	_, err = v.Verify(context.Background(), tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsRevoked(t *testing.T) {
	iss := newTestIssuer(time.Now())
	rl := NewMemoryRevocationList()
	v := NewVerifier(iss, rl)

	tok, claims, err := iss.Issue("user-1", "", auth.RoleOwner)
	require.NoError(t, err)
	require.NoError(t, rl.Revoke(context.Background(), claims.TokenID, time.Hour))

	_, err = v.Verify(context.Background(), tok)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestMemoryRevocationList_Expires(t *testing.T) {
	now := time.Now()
	rl := NewMemoryRevocationList()
	rl.now = func() time.Time { return now }

	require.NoError(t, rl.Revoke(context.Background(), "jti-1", time.Minute))
	revoked, err := rl.IsRevoked(context.Background(), "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	rl.now = func() time.Time { return now.Add(2 * time.Minute) }
	revoked, err = rl.IsRevoked(context.Background(), "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestIssue_RequiresKey(t *testing.T) {
	_, _, err := NewIssuer(Config{}).Issue("u", "", auth.RoleOwner)
	require.ErrorIs(t, err, ErrNotConfigured)
}

type accountsStub map[string]bool

func (a accountsStub) IsActive(_ context.Context, userID string) (bool, error) {
	return a[userID], nil
}

func TestVerify_RejectsDisabledAccount(t *testing.T) {
	iss := newTestIssuer(time.Now())
	accounts := accountsStub{"user-1": true}
	v := NewVerifier(iss, NewMemoryRevocationList(), WithAccountStatus(accounts))

	tok, _, err := iss.Issue("user-1", "", auth.RoleStaff)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), tok)
	require.NoError(t, err)

	accounts["user-1"] = false
	_, err = v.Verify(context.Background(), tok)
	require.ErrorIs(t, err, ErrAccountDisabled)

	// usuario inexistente (p.ej. borrado) tampoco pasa
	tok, _, err = iss.Issue("ghost", "", auth.RoleAdmin)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), tok)
	require.ErrorIs(t, err, ErrAccountDisabled)
}
