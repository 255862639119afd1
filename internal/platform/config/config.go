package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config agrupa la configuración del servicio; se arma desde env para que main quede liviano.
type Config struct {
	Addr string

	// DSN de Postgres. Vacío => storage in-memory.
	DatabaseDSN string

	// URL de Redis (redis://...). Vacío => limiter y revocación in-memory.
	RedisURL string

	JWTSigningKey string
	JWTIssuer     string
	JWTTTL        time.Duration

	// DevAuth habilita X-Debug-User-ID / X-Debug-Role (solo desarrollo y tests).
	DevAuth bool

	PhotoDir      string
	PhotoS3Bucket string
	PhotoS3Prefix string

	MailAPIURL string
	MailAPIKey string
	MailFrom   string

	// Cuenta admin inicial; se crea al arrancar si el email no existe.
	AdminEmail    string
	AdminPassword string

	// Intentos de verificación de email por ventana.
	VerifyEmailLimit  int
	VerifyEmailWindow time.Duration
}

const (
	defaultJWTSigningKey = "dev-secret-key-change-in-production"
	defaultJWTTTL        = 12 * time.Hour
)

func FromEnv() Config {
	addr := ":8080"
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		addr = ":" + v
	}

	signingKey := os.Getenv("JWT_SIGNING_KEY")
	if signingKey == "" {
		// default solo para desarrollo
		signingKey = defaultJWTSigningKey
	}

	return Config{
		Addr:              addr,
		DatabaseDSN:       strings.TrimSpace(os.Getenv("DB_DSN")),
		RedisURL:          strings.TrimSpace(os.Getenv("REDIS_URL")),
		JWTSigningKey:     signingKey,
		JWTIssuer:         envOr("JWT_ISSUER", "pet-clinical-history"),
		JWTTTL:            envDuration("JWT_TTL", defaultJWTTTL),
		DevAuth:           strings.EqualFold(strings.TrimSpace(os.Getenv("DEV_AUTH")), "true"),
		PhotoDir:          envOr("PHOTO_DIR", "storage/pet-photos"),
		PhotoS3Bucket:     strings.TrimSpace(os.Getenv("PHOTO_S3_BUCKET")),
		PhotoS3Prefix:     envOr("PHOTO_S3_PREFIX", "pet-photos/"),
		MailAPIURL:        strings.TrimSpace(os.Getenv("MAIL_API_URL")),
		MailAPIKey:        strings.TrimSpace(os.Getenv("MAIL_API_KEY")),
		MailFrom:          envOr("MAIL_FROM", "no-reply@petclinic.local"),
		AdminEmail:        strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
		VerifyEmailLimit:  envInt("VERIFY_EMAIL_LIMIT", 5),
		VerifyEmailWindow: envDuration("VERIFY_EMAIL_WINDOW", time.Minute),
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
