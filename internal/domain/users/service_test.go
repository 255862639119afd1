package users

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"pet-clinical-history/internal/adapters/auth/jwt"
	"pet-clinical-history/internal/adapters/mail/logmail"
	"pet-clinical-history/internal/adapters/ratelimit"
	"pet-clinical-history/internal/domain/owners"
	"pet-clinical-history/internal/ports/auth"
	mailport "pet-clinical-history/internal/ports/mail"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testRepo struct {
	mu   sync.Mutex
	byID map[string]User
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]User{}}
}

func (r *testRepo) Create(ctx context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	r.byID[u.ID] = u
	return nil
}

func (r *testRepo) Update(ctx context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[u.ID]; !ok {
		return ErrNotFound
	}
	r.byID[u.ID] = u
	return nil
}

func (r *testRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *testRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

type testProfiles struct {
	byUser    map[string]owners.Owner
	createErr error
}

func (p *testProfiles) Create(ctx context.Context, in owners.CreateInput) (owners.Owner, error) {
	if p.createErr != nil {
		return owners.Owner{}, p.createErr
	}
	o := owners.Owner{ID: "owner-" + in.UserID, UserID: in.UserID, Firstname: in.Firstname, Lastname: in.Lastname, Email: in.Email}
	p.byUser[in.UserID] = o
	return o, nil
}

func (p *testProfiles) GetByUserID(ctx context.Context, userID string) (owners.Owner, error) {
	o, ok := p.byUser[userID]
	if !ok {
		return owners.Owner{}, owners.ErrNotFound
	}
	return o, nil
}

type failingMailer struct{}

func (failingMailer) Send(ctx context.Context, msg mailport.Message) error {
	return errors.New("smtp down")
}

type fixture struct {
	svc      *Service
	repo     *testRepo
	profiles *testProfiles
	mailer   *logmail.Sender
	revoked  *jwt.MemoryRevocationList
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		repo:     newTestRepo(),
		profiles: &testProfiles{byUser: map[string]owners.Owner{}},
		mailer:   logmail.NewSender(nil),
		revoked:  jwt.NewMemoryRevocationList(),
	}
	f.svc = NewService(Deps{
		Repo:       f.repo,
		Owners:     f.profiles,
		Issuer:     jwt.NewIssuer(jwt.Config{SigningKey: "test-key", Issuer: "pet-clinical-history"}),
		Revoker:    f.revoked,
		Mailer:     f.mailer,
		Limiter:    ratelimit.NewMemoryLimiter(),
		BcryptCost: bcrypt.MinCost,
	})
	return f
}

func signupInput(email string) SignupInput {
	return SignupInput{
		Email:      email,
		Password:   "secret-pass",
		Firstname:  "Ana",
		Lastname:   "Reyes",
		ContactNum: "9171234567",
		ZipcodeID:  "1",
		Barangay:   "San Roque",
	}
}

func TestSignup_CreatesUserAndOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, o, err := f.svc.Signup(ctx, signupInput(" Ana@Example.com "))
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", u.Email)
	assert.Equal(t, auth.RoleOwner, u.Role)
	assert.Equal(t, u.ID, o.UserID)
	assert.NotEqual(t, "secret-pass", u.PasswordHash)

	_, _, err = f.svc.Signup(ctx, signupInput("ana@example.com"))
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignup_RollsBackUserWhenProfileFails(t *testing.T) {
	f := newFixture(t)
	f.profiles.createErr = owners.ErrInvalidInput

	_, _, err := f.svc.Signup(context.Background(), signupInput("ana@example.com"))
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.repo.GetByEmail(context.Background(), "ana@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyEmail_SendsCodeAndRateLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, err := f.svc.VerifyEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Equal(t, strings.ToUpper(code), code)

	msg, ok := f.mailer.Last("new@example.com")
	require.True(t, ok)
	assert.Contains(t, msg.Text, code)

	for i := 0; i < 4; i++ {
		_, err := f.svc.VerifyEmail(ctx, "new@example.com")
		require.NoError(t, err)
	}
	_, err = f.svc.VerifyEmail(ctx, "new@example.com")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// otro email tiene su propio contador
	_, err = f.svc.VerifyEmail(ctx, "other@example.com")
	assert.NoError(t, err)
}

func TestVerifyEmail_RejectsUsedEmailAndMailFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Signup(ctx, signupInput("ana@example.com"))
	require.NoError(t, err)

	_, err = f.svc.VerifyEmail(ctx, "ana@example.com")
	assert.ErrorIs(t, err, ErrEmailTaken)

	f.svc.mailer = failingMailer{}
	_, err = f.svc.VerifyEmail(ctx, "fresh@example.com")
	assert.ErrorIs(t, err, ErrMailFailed)
}

func fixedCode(code string) func() (string, error) {
	return func() (string, error) { return code, nil }
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.newCode = fixedCode("ABC123")

	_, _, err := f.svc.Signup(ctx, signupInput("ana@example.com"))
	require.NoError(t, err)

	// email desconocido: sin error y sin correo
	require.NoError(t, f.svc.ForgotPassword(ctx, "nobody@example.com"))
	_, sent := f.mailer.Last("nobody@example.com")
	assert.False(t, sent)

	require.NoError(t, f.svc.ForgotPassword(ctx, "Ana@example.com"))
	msg, sent := f.mailer.Last("ana@example.com")
	require.True(t, sent)
	assert.Contains(t, msg.Text, "ABC123")

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "ana@example.com", "WRONG1", "another-pass"), ErrInvalidResetCode)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "nobody@example.com", "ABC123", "another-pass"), ErrInvalidResetCode)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "ana@example.com", "ABC123", "short"), ErrInvalidInput)
	require.NoError(t, f.svc.ResetPassword(ctx, "ana@example.com", "abc123", "another-pass"))

	// el código es de un solo uso
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "ana@example.com", "ABC123", "third-pass!"), ErrInvalidResetCode)

	_, err = f.svc.Login(ctx, "ana@example.com", "secret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "ana@example.com", "another-pass")
	assert.NoError(t, err)
}

func TestForgotPassword_MailFailureIsSilent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Signup(ctx, signupInput("ana@example.com"))
	require.NoError(t, err)

	f.svc.mailer = failingMailer{}
	assert.NoError(t, f.svc.ForgotPassword(ctx, "ana@example.com"))
}

func TestResetPassword_ExpiredCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.newCode = fixedCode("ABC123")

	_, _, err := f.svc.Signup(ctx, signupInput("ana@example.com"))
	require.NoError(t, err)
	require.NoError(t, f.svc.ForgotPassword(ctx, "ana@example.com"))

	f.svc.now = func() time.Time { return time.Now().Add(resetCodeTTL + time.Minute) }
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "ana@example.com", "ABC123", "another-pass"), ErrInvalidResetCode)
}

func TestResetPassword_LimitsAttemptsPerEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.newCode = fixedCode("ABC123")

	_, _, err := f.svc.Signup(ctx, signupInput("ana@example.com"))
	require.NoError(t, err)
	require.NoError(t, f.svc.ForgotPassword(ctx, "ana@example.com"))

	for i := 0; i < resetAttemptLimit; i++ {
		assert.ErrorIs(t, f.svc.ResetPassword(ctx, "ana@example.com", "GUESS"+string(rune('A'+i)), "another-pass"), ErrInvalidResetCode)
	}
	// agotados los intentos, ni el código correcto pasa
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "ana@example.com", "ABC123", "another-pass"), ErrTooManyAttempts)

	_, err = f.svc.Login(ctx, "ana@example.com", "secret-pass")
	assert.NoError(t, err)
}

func TestLogin_OwnerProfileAndDeactivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, o, err := f.svc.Signup(ctx, signupInput("ana@example.com"))
	require.NoError(t, err)

	res, err := f.svc.Login(ctx, "ANA@example.com", "secret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	require.NotNil(t, res.Owner)
	assert.Equal(t, o.ID, res.Owner.ID)

	_, err = f.svc.Login(ctx, "missing@example.com", "secret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.SetActive(ctx, u.ID, false)
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "ana@example.com", "secret-pass")
	assert.ErrorIs(t, err, ErrDeactivated)

	_, err = f.svc.SetActive(ctx, u.ID, true)
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "ana@example.com", "secret-pass")
	assert.NoError(t, err)
}

func TestIsActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.CreateUser(ctx, "vet@example.com", "secret-pass", auth.RoleStaff)
	require.NoError(t, err)

	active, err := f.svc.IsActive(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, active)

	_, err = f.svc.SetActive(ctx, u.ID, false)
	require.NoError(t, err)
	active, err = f.svc.IsActive(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, active)

	active, err = f.svc.IsActive(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestLogout_RevokesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	staff, err := f.svc.CreateUser(ctx, "vet@example.com", "secret-pass", auth.RoleStaff)
	require.NoError(t, err)

	res, err := f.svc.Login(ctx, staff.Email, "secret-pass")
	require.NoError(t, err)
	assert.Nil(t, res.Owner)

	require.NoError(t, f.svc.Logout(ctx, res.Claims))
	revoked, err := f.revoked.IsRevoked(ctx, res.Claims.TokenID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestCreateUser_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateUser(ctx, "vet@example.com", "secret-pass", auth.Role("root"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.CreateUser(ctx, "not-an-email", "secret-pass", auth.RoleStaff)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.CreateUser(ctx, "vet@example.com", "short", auth.RoleStaff)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEnsureAdmin_CreatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.EnsureAdmin(ctx, " Root@Clinic.test ", "admin-pass-123")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, u.Role)
	assert.Equal(t, "root@clinic.test", u.Email)

	again, err := f.svc.EnsureAdmin(ctx, "root@clinic.test", "other-pass-456")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)

	// la contraseña original sigue vigente
	_, err = f.svc.Login(ctx, "root@clinic.test", "admin-pass-123")
	assert.NoError(t, err)

	_, err = f.svc.EnsureAdmin(ctx, "other@clinic.test", "short")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
