package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DSN", "REDIS_URL", "JWT_SIGNING_KEY", "JWT_TTL", "DEV_AUTH", "VERIFY_EMAIL_LIMIT"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	require.Equal(t, ":8080", cfg.Addr)
	require.Empty(t, cfg.DatabaseDSN)
	require.Equal(t, defaultJWTSigningKey, cfg.JWTSigningKey)
	require.Equal(t, defaultJWTTTL, cfg.JWTTTL)
	require.False(t, cfg.DevAuth)
	require.Equal(t, 5, cfg.VerifyEmailLimit)
	require.Equal(t, time.Minute, cfg.VerifyEmailWindow)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DSN", "postgres://x")
	t.Setenv("JWT_TTL", "30m")
	t.Setenv("DEV_AUTH", "TRUE")
	t.Setenv("VERIFY_EMAIL_LIMIT", "not-a-number")

	cfg := FromEnv()
	require.Equal(t, ":9090", cfg.Addr)
	require.Equal(t, "postgres://x", cfg.DatabaseDSN)
	require.Equal(t, 30*time.Minute, cfg.JWTTTL)
	require.True(t, cfg.DevAuth)
	require.Equal(t, 5, cfg.VerifyEmailLimit)
}
