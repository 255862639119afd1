package users

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"pet-clinical-history/internal/domain/owners"
	"pet-clinical-history/internal/platform/logger"
	"pet-clinical-history/internal/platform/metrics"
	"pet-clinical-history/internal/ports/auth"
	mailport "pet-clinical-history/internal/ports/mail"
	"pet-clinical-history/internal/ports/ratelimit"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("Email has already been used.")
	ErrInvalidCredentials = errors.New("Incorrect Email or Password!")
	ErrDeactivated        = errors.New("Your account has been deactivated.")
	ErrTooManyAttempts    = errors.New("Too many attempts. Try again later.")
	ErrMailFailed         = errors.New("Failed to send email.")
	ErrInvalidResetCode   = errors.New("invalid or expired reset code")
)

const (
	minPasswordLen = 8
	codeLength     = 6
	codeAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	resetCodeTTL   = 15 * time.Minute

	// Intentos de reset por email dentro de resetCodeTTL.
	resetAttemptLimit = 5
)

// OwnerProfiles es lo que users necesita de owners (signup y login).
type OwnerProfiles interface {
	Create(ctx context.Context, in owners.CreateInput) (owners.Owner, error)
	GetByUserID(ctx context.Context, userID string) (owners.Owner, error)
}

type Service struct {
	repo    Repository
	owners  OwnerProfiles
	issuer  auth.TokenIssuer
	revoker auth.Revoker
	mailer  mailport.Sender
	limiter ratelimit.Limiter
	log     logger.Logger
	metrics *metrics.Metrics

	verifyLimit  int
	verifyWindow time.Duration
	bcryptCost   int
	exposeCodes  bool

	now     func() time.Time
	newCode func() (string, error)
}

type Deps struct {
	Repo    Repository
	Owners  OwnerProfiles
	Issuer  auth.TokenIssuer
	Revoker auth.Revoker
	Mailer  mailport.Sender
	Limiter ratelimit.Limiter
	Logger  logger.Logger
	Metrics *metrics.Metrics

	// Intentos de verify-email por ventana; por defecto 5 por minuto.
	VerifyLimit  int
	VerifyWindow time.Duration

	// BcryptCost: 0 => bcrypt.DefaultCost. Los tests usan bcrypt.MinCost.
	BcryptCost int

	// ExposeVerificationCode devuelve el código de verify-email en la respuesta.
	// Solo en desarrollo: en producción el código viaja únicamente por correo.
	ExposeVerificationCode bool
}

func NewService(d Deps) *Service {
	s := &Service{
		repo:         d.Repo,
		owners:       d.Owners,
		issuer:       d.Issuer,
		revoker:      d.Revoker,
		mailer:       d.Mailer,
		limiter:      d.Limiter,
		log:          d.Logger,
		metrics:      d.Metrics,
		verifyLimit:  d.VerifyLimit,
		verifyWindow: d.VerifyWindow,
		bcryptCost:   d.BcryptCost,
		exposeCodes:  d.ExposeVerificationCode,
		now:          time.Now,
		newCode:      randomCode,
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.verifyLimit <= 0 {
		s.verifyLimit = 5
	}
	if s.verifyWindow <= 0 {
		s.verifyWindow = time.Minute
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	return s
}

type SignupInput struct {
	Email      string
	Password   string
	Firstname  string
	Lastname   string
	ContactNum string
	ZipcodeID  string
	Barangay   string
	Zone       string
}

// Signup crea la cuenta (rol owner) y su perfil de dueño.
func (s *Service) Signup(ctx context.Context, in SignupInput) (User, owners.Owner, error) {
	u, err := s.newUser(ctx, in.Email, in.Password, auth.RoleOwner)
	if err != nil {
		return User{}, owners.Owner{}, err
	}

	o, err := s.owners.Create(ctx, owners.CreateInput{
		UserID:     u.ID,
		Firstname:  in.Firstname,
		Lastname:   in.Lastname,
		Email:      u.Email,
		ContactNum: in.ContactNum,
		ZipcodeID:  in.ZipcodeID,
		Barangay:   in.Barangay,
		Zone:       in.Zone,
	})
	if err != nil {
		// Sin perfil no hay cuenta: se deshace el usuario.
		if derr := s.repo.Delete(ctx, u.ID); derr != nil {
			s.log.Error("signup rollback failed", map[string]any{"user_id": u.ID, "error": derr})
		}
		if errors.Is(err, owners.ErrInvalidInput) {
			return User{}, owners.Owner{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return User{}, owners.Owner{}, err
	}

	s.metrics.IncUsersCreated()
	return u, o, nil
}

// CreateUser lo usa el admin para dar de alta staff o admins.
func (s *Service) CreateUser(ctx context.Context, email, password string, role auth.Role) (User, error) {
	if !role.Valid() {
		return User{}, fmt.Errorf("%w: role must be admin, staff or owner", ErrInvalidInput)
	}
	u, err := s.newUser(ctx, email, password, role)
	if err != nil {
		return User{}, err
	}
	s.metrics.IncUsersCreated()
	return u, nil
}

// EnsureAdmin crea la cuenta admin inicial si el email todavía no está registrado.
// Una cuenta existente no se toca (ni rol ni contraseña).
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	u, err := s.repo.GetByEmail(ctx, normalized)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	u, err = s.CreateUser(ctx, normalized, password, auth.RoleAdmin)
	if err != nil {
		return User{}, err
	}
	s.log.Info("admin account created", map[string]any{"user_id": u.ID})
	return u, nil
}

func (s *Service) newUser(ctx context.Context, email, password string, role auth.Role) (User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	if len(password) < minPasswordLen {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// VerifyEmail envía un código de 6 caracteres al email (aún no registrado) y lo devuelve.
// El handler decide si el código sale en la respuesta (ExposeVerificationCode).
func (s *Service) VerifyEmail(ctx context.Context, email string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}

	if s.limiter != nil {
		res, err := s.limiter.Allow(ctx, "email-verification:"+email, s.verifyLimit, s.verifyWindow)
		if err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}
		if !res.Allowed {
			s.metrics.IncRateLimited("verify_email")
			return "", ErrTooManyAttempts
		}
	}

	s.log.Info("verifying email", map[string]any{"email": email})

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return "", ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	code, err := s.newCode()
	if err != nil {
		return "", err
	}
	if err := s.send(ctx, email, "Email Verification", code); err != nil {
		return "", err
	}
	return code, nil
}

// ForgotPassword genera un código de recuperación y lo envía por correo.
// El código nunca se devuelve: un email desconocido o un fallo de envío
// solo quedan en el log, así la respuesta no revela qué cuentas existen.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.Info("password reset for unknown email", map[string]any{"email": email})
			return nil
		}
		return err
	}

	code, err := s.newCode()
	if err != nil {
		return err
	}
	exp := s.now().Add(resetCodeTTL)
	u.ResetCode = code
	u.ResetCodeExpiresAt = &exp
	u.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}

	if err := s.send(ctx, email, "Password Reset", code); err != nil {
		s.log.Warn("password reset code not delivered", map[string]any{"user_id": u.ID})
	}
	return nil
}

// ResetPassword cambia la contraseña si el código enviado por correo es válido.
// Los intentos se limitan por email para que el código no se pueda adivinar.
func (s *Service) ResetPassword(ctx context.Context, email, code, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ErrInvalidResetCode
	}

	if s.limiter != nil {
		res, err := s.limiter.Allow(ctx, "password-reset:"+email, resetAttemptLimit, resetCodeTTL)
		if err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
		if !res.Allowed {
			s.metrics.IncRateLimited("reset_password")
			return ErrTooManyAttempts
		}
	}

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidResetCode
		}
		return err
	}
	if u.ResetCode == "" || !strings.EqualFold(u.ResetCode, strings.TrimSpace(code)) ||
		u.ResetCodeExpiresAt == nil || s.now().After(*u.ResetCodeExpiresAt) {
		return ErrInvalidResetCode
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	u.ResetCode = ""
	u.ResetCodeExpiresAt = nil
	u.UpdatedAt = s.now()
	return s.repo.Update(ctx, u)
}

type LoginResult struct {
	Token  string
	Claims auth.Claims
	User   User
	Owner  *owners.Owner // solo rol owner
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !u.Active() {
		return LoginResult{}, ErrDeactivated
	}

	token, claims, err := s.issuer.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	out := LoginResult{Token: token, Claims: claims, User: u}
	if u.Role == auth.RoleOwner && s.owners != nil {
		if o, err := s.owners.GetByUserID(ctx, u.ID); err == nil {
			out.Owner = &o
		}
	}
	return out, nil
}

// Logout revoca el token actual hasta su expiración.
func (s *Service) Logout(ctx context.Context, claims auth.Claims) error {
	if s.revoker == nil || claims.TokenID == "" {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.revoker.Revoke(ctx, claims.TokenID, ttl)
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.GetByID(ctx, strings.TrimSpace(id))
}

// IsActive implementa auth.AccountStatus: una cuenta borrada cuenta como inactiva.
func (s *Service) IsActive(ctx context.Context, userID string) (bool, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return u.Active(), nil
}

// ExposeVerificationCode indica si verify-email devuelve el código en la respuesta.
func (s *Service) ExposeVerificationCode() bool {
	return s.exposeCodes
}

// SetActive activa o desactiva una cuenta. Los tokens ya emitidos dejan de
// valer en cuanto la cuenta queda inactiva (ver auth.AccountStatus).
func (s *Service) SetActive(ctx context.Context, id string, active bool) (User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	now := s.now()
	if active {
		u.DeactivatedAt = nil
	} else if u.DeactivatedAt == nil {
		u.DeactivatedAt = &now
	}
	u.UpdatedAt = now
	if err := s.repo.Update(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) send(ctx context.Context, to, subject, code string) error {
	if s.mailer == nil {
		return ErrMailFailed
	}
	err := s.mailer.Send(ctx, mailport.Message{
		To:      to,
		Subject: subject,
		Text:    "Your verification code is: " + code,
	})
	if err != nil {
		s.log.Error("email sending failed", map[string]any{"to": to, "error": err})
		return fmt.Errorf("%w: %v", ErrMailFailed, err)
	}
	s.log.Info("email sent", map[string]any{"to": to})
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	return email, nil
}

func randomCode() (string, error) {
	b := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}
