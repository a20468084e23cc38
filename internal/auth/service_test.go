package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"campauth/internal/config"
	"campauth/internal/mail"
	"campauth/internal/models"
)

// fakeStore is an in-memory UserStore for exercising the service without a
// database.
type fakeStore struct {
	users map[string]*models.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*models.User)}
}

func (f *fakeStore) Create(_ context.Context, u *models.User) error {
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return ErrDuplicateEmail
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	f.users[u.ID.Hex()] = u
	return nil
}

func (f *fakeStore) get(id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*models.User, error) {
	return f.get(id)
}

func (f *fakeStore) GetByIDWithSecrets(_ context.Context, id string) (*models.User, error) {
	return f.get(id)
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeStore) GetByEmailWithSecrets(ctx context.Context, email string) (*models.User, error) {
	return f.GetByEmail(ctx, email)
}

func (f *fakeStore) UpdateDetails(_ context.Context, id, name, email string) (*models.User, error) {
	u, err := f.get(id)
	if err != nil {
		return nil, err
	}
	u.Name, u.Email = name, email
	return u, nil
}

func (f *fakeStore) SetPassword(_ context.Context, id, hash string) error {
	u, err := f.get(id)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.ResetToken = nil
	return nil
}

func (f *fakeStore) SetResetToken(_ context.Context, id string, t *models.PendingToken) error {
	u, err := f.get(id)
	if err != nil {
		return err
	}
	u.ResetToken = t
	return nil
}

func (f *fakeStore) SetConfirmToken(_ context.Context, id string, t *models.PendingToken) error {
	u, err := f.get(id)
	if err != nil {
		return err
	}
	u.ConfirmToken = t
	return nil
}

func (f *fakeStore) ConfirmEmail(_ context.Context, id string) error {
	u, err := f.get(id)
	if err != nil {
		return err
	}
	u.IsEmailConfirmed = true
	u.ConfirmToken = nil
	return nil
}

func (f *fakeStore) SetOTP(_ context.Context, id string, enabled bool, sealedSecret string) error {
	u, err := f.get(id)
	if err != nil {
		return err
	}
	u.OTPEnabled = enabled
	u.OTPSecret = sealedSecret
	if !enabled {
		u.OTPSecret = ""
	}
	return nil
}

func (f *fakeStore) FindByResetTokenHash(_ context.Context, hash string, now time.Time) (*models.User, error) {
	for _, u := range f.users {
		if u.ResetToken != nil && u.ResetToken.Hash == hash && now.Before(u.ResetToken.ExpiresAt) {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeStore) FindByConfirmTokenHash(_ context.Context, hash string) (*models.User, error) {
	for _, u := range f.users {
		if u.ConfirmToken != nil && u.ConfirmToken.Hash == hash && !u.IsEmailConfirmed {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

type fakeMailer struct {
	sent []mail.Message
	fail bool
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if f.fail {
		return errors.New("smtp: connection refused")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) last() mail.Message { return f.sent[len(f.sent)-1] }

func newTestService() (*Service, *fakeStore, *fakeMailer) {
	st := newFakeStore()
	ml := &fakeMailer{}
	cfg := &config.Config{
		Env:              "development",
		BaseURL:          "http://localhost:5000",
		JWTSecret:        "test-secret",
		JWTExpire:        time.Hour,
		CookieExpire:     time.Hour,
		OTPEncryptionKey: testKey(),
	}
	return NewService(st, ml, cfg), st, ml
}

// tokenFromBody extracts the value following marker in an emailed link.
func tokenFromBody(t *testing.T, body, marker string) string {
	t.Helper()
	i := strings.Index(body, marker)
	require.GreaterOrEqual(t, i, 0, "marker %q not in %q", marker, body)
	return strings.TrimSpace(body[i+len(marker):])
}

// authKeyFromBody extracts the plaintext authenticator key from an OTP
// setup email.
func authKeyFromBody(t *testing.T, body string) string {
	t.Helper()
	const pre = "Here is your authenticator key: "
	i := strings.Index(body, pre)
	require.GreaterOrEqual(t, i, 0)
	rest := body[i+len(pre):]
	j := strings.Index(rest, ".")
	require.Greater(t, j, 0)
	return rest[:j]
}

func register(t *testing.T, svc *Service, email, password string) *models.User {
	t.Helper()
	user, token, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Alice",
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	return user
}

func TestRegister(t *testing.T) {
	svc, st, ml := newTestService()
	ctx := context.Background()

	user, token, err := svc.Register(ctx, RegisterInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.False(t, user.IsEmailConfirmed)

	// Stored password is a verifiable hash, never the raw input.
	stored := st.users[user.ID.Hex()]
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.True(t, CheckPassword(stored.PasswordHash, "secret1"))

	// Session token identifies the new user.
	userID, err := ParseSessionToken(token, []byte("test-secret"))
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), userID)

	// The confirmation email carries the raw token; only its hash is stored.
	require.Len(t, ml.sent, 1)
	combined := tokenFromBody(t, ml.last().Body, "confirmemail?token=")
	require.NotNil(t, stored.ConfirmToken)
	assert.Equal(t, HashToken(splitConfirmToken(combined)), stored.ConfirmToken.Hash)
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name string
		in   RegisterInput
	}{
		{"missing name", RegisterInput{Email: "a@b.co", Password: "secret1"}},
		{"bad email", RegisterInput{Name: "A", Email: "not-an-email", Password: "secret1"}},
		{"short password", RegisterInput{Name: "A", Email: "a@b.co", Password: "five5"}},
		{"admin role", RegisterInput{Name: "A", Email: "a@b.co", Password: "secret1", Role: models.RoleAdmin}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Register(ctx, tc.in)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()
	register(t, svc, "alice@example.com", "secret1")

	_, _, err := svc.Register(context.Background(), RegisterInput{
		Name: "Other", Email: "alice@example.com", Password: "secret2",
	})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRegister_EmailFailureRollsBackConfirmToken(t *testing.T) {
	svc, st, ml := newTestService()
	ml.fail = true

	user, token, err := svc.Register(context.Background(), RegisterInput{
		Name: "Alice", Email: "alice@example.com", Password: "secret1",
	})
	require.NoError(t, err, "registration succeeds even when the email does not")
	assert.NotEmpty(t, token)
	assert.Nil(t, st.users[user.ID.Hex()].ConfirmToken)
}

func TestLogin(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	register(t, svc, "alice@example.com", "secret1")

	_, token, err := svc.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	var verr *ValidationError
	_, _, err = svc.Login(ctx, "", "")
	assert.ErrorAs(t, err, &verr)
}

func TestLogin_RejectedWhenOTPEnabled(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()
	user := register(t, svc, "alice@example.com", "secret1")
	st.users[user.ID.Hex()].OTPEnabled = true

	// Correct credentials still get the directive, never a session.
	_, token, err := svc.Login(ctx, "alice@example.com", "secret1")
	assert.ErrorIs(t, err, ErrOTPRequired)
	assert.Empty(t, token)
}

func TestUpdateDetails(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	user := register(t, svc, "alice@example.com", "secret1")

	updated, err := svc.UpdateDetails(ctx, user.ID.Hex(), "Alice B", "aliceb@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice B", updated.Name)
	assert.Equal(t, "aliceb@example.com", updated.Email)

	var verr *ValidationError
	_, err = svc.UpdateDetails(ctx, user.ID.Hex(), "Alice", "bogus")
	assert.ErrorAs(t, err, &verr)
}

func TestUpdatePassword(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()
	user := register(t, svc, "alice@example.com", "secret1")

	_, err := svc.UpdatePassword(ctx, user.ID.Hex(), "wrong", "newsecret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, err := svc.UpdatePassword(ctx, user.ID.Hex(), "secret1", "newsecret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, _, err = svc.Login(ctx, "alice@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "alice@example.com", "newsecret")
	assert.NoError(t, err)

	// Password changes are blocked while OTP is on.
	st.users[user.ID.Hex()].OTPEnabled = true
	_, err = svc.UpdatePassword(ctx, user.ID.Hex(), "newsecret", "another1")
	assert.ErrorIs(t, err, ErrOTPRequired)
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.ForgotPassword(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestForgotPassword_StoresHashAndEmailsRawToken(t *testing.T) {
	svc, st, ml := newTestService()
	ctx := context.Background()
	user := register(t, svc, "alice@example.com", "secret1")

	otpReset, err := svc.ForgotPassword(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, otpReset)

	raw := tokenFromBody(t, ml.last().Body, "resetpassword/")
	stored := st.users[user.ID.Hex()]
	require.NotNil(t, stored.ResetToken)
	assert.Equal(t, HashToken(raw), stored.ResetToken.Hash)
	assert.WithinDuration(t, time.Now().Add(resetTokenTTL), stored.ResetToken.ExpiresAt, 2*time.Second)
}

func TestForgotPassword_EmailFailureClearsToken(t *testing.T) {
	svc, st, ml := newTestService()
	ctx := context.Background()
	user := register(t, svc, "alice@example.com", "secret1")
	ml.fail = true

	_, err := svc.ForgotPassword(ctx, "alice@example.com")
	assert.ErrorIs(t, err, ErrEmailDelivery)
	assert.Nil(t, st.users[user.ID.Hex()].ResetToken)
}

func TestForgotPassword_OTPEnabledRegeneratesKey(t *testing.T) {
	svc, st, ml := newTestService()
	ctx := context.Background()
	user := register(t, svc, "alice@example.com", "secret1")

	stored := st.users[user.ID.Hex()]
	stored.IsEmailConfirmed = true
	oldHash := stored.PasswordHash
	enabled, err := svc.ToggleOTP(ctx, user.ID.Hex())
	require.NoError(t, err)
	require.True(t, enabled)
	oldSealed := stored.OTPSecret

	otpReset, err := svc.ForgotPassword(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, otpReset)

	// Password untouched, secret replaced, new key emailed in plaintext.
	assert.Equal(t, oldHash, stored.PasswordHash)
	assert.Nil(t, stored.ResetToken)
	assert.NotEqual(t, oldSealed, stored.OTPSecret)

	emailedKey := authKeyFromBody(t, ml.last().Body)
	opened, err := OpenSecret(testKey(), stored.OTPSecret)
	require.NoError(t, err)
	assert.Equal(t, opened, emailedKey)
}

func TestResetPassword_SingleUse(t *testing.T) {
	svc, _, ml := newTestService()
	ctx := context.Background()
	register(t, svc, "alice@example.com", "secret1")

	_, err := svc.ForgotPassword(ctx, "alice@example.com")
	require.NoError(t, err)
	raw := tokenFromBody(t, ml.last().Body, "resetpassword/")

	token, err := svc.ResetPassword(ctx, raw, "newsecret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, _, err = svc.Login(ctx, "alice@example.com", "newsecret")
	assert.NoError(t, err)

	// Re-submitting the consumed token fails.
	_, err = svc.ResetPassword(ctx, raw, "another1")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetPassword_ExpiryBoundary(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()
	user := register(t, svc, "alice@example.com", "secret1")

	now := time.Now()
	svc.now = func() time.Time { return now }

	raw, hash, err := newOpaqueToken()
	require.NoError(t, err)
	stored := st.users[user.ID.Hex()]

	// One second before expiry: accepted.
	stored.ResetToken = &models.PendingToken{Hash: hash, ExpiresAt: now.Add(1 * time.Second)}
	_, err = svc.ResetPassword(ctx, raw, "newsecret")
	assert.NoError(t, err)

	// One second past expiry: rejected.
	stored.ResetToken = &models.PendingToken{Hash: hash, ExpiresAt: now.Add(-1 * time.Second)}
	_, err = svc.ResetPassword(ctx, raw, "another1")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestConfirmEmail(t *testing.T) {
	svc, st, ml := newTestService()
	ctx := context.Background()
	user := register(t, svc, "alice@example.com", "secret1")
	combined := tokenFromBody(t, ml.last().Body, "confirmemail?token=")

	_, err := svc.ConfirmEmail(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.ConfirmEmail(ctx, "bogus.suffix")
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, err := svc.ConfirmEmail(ctx, combined)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	stored := st.users[user.ID.Hex()]
	assert.True(t, stored.IsEmailConfirmed)
	assert.Nil(t, stored.ConfirmToken)

	// The token cannot confirm twice.
	_, err = svc.ConfirmEmail(ctx, combined)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestToggleOTP_RequiresConfirmedEmail(t *testing.T) {
	svc, _, _ := newTestService()
	user := register(t, svc, "alice@example.com", "secret1")

	_, err := svc.ToggleOTP(context.Background(), user.ID.Hex())
	assert.ErrorIs(t, err, ErrEmailNotConfirmed)
}

func TestToggleOTP_OffDisablesOTPLogin(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()
	user := register(t, svc, "alice@example.com", "secret1")
	stored := st.users[user.ID.Hex()]
	stored.IsEmailConfirmed = true

	enabled, err := svc.ToggleOTP(ctx, user.ID.Hex())
	require.NoError(t, err)
	require.True(t, enabled)
	require.NotEmpty(t, stored.OTPSecret)

	enabled, err = svc.ToggleOTP(ctx, user.ID.Hex())
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.Empty(t, stored.OTPSecret)

	_, _, err = svc.LoginOTP(ctx, "alice@example.com", "123456")
	assert.ErrorIs(t, err, ErrOTPNotEnabled)
}

func TestLoginOTP_FullScenario(t *testing.T) {
	svc, _, ml := newTestService()
	ctx := context.Background()

	// Pin the clock so the TOTP window is deterministic.
	now := time.Unix(1_700_000_015, 0)
	svc.now = func() time.Time { return now }

	register(t, svc, "alice@example.com", "secret1")

	combined := tokenFromBody(t, ml.last().Body, "confirmemail?token=")
	_, err := svc.ConfirmEmail(ctx, combined)
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)

	user, err := svc.users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	enabled, err := svc.ToggleOTP(ctx, user.ID.Hex())
	require.NoError(t, err)
	require.True(t, enabled)

	// Password login now redirects to the OTP path.
	_, _, err = svc.Login(ctx, "alice@example.com", "secret1")
	assert.ErrorIs(t, err, ErrOTPRequired)

	secret := authKeyFromBody(t, ml.last().Body)

	_, _, err = svc.LoginOTP(ctx, "alice@example.com", "")
	assert.ErrorIs(t, err, ErrMissingCode)

	_, _, err = svc.LoginOTP(ctx, "nobody@example.com", "123456")
	assert.ErrorIs(t, err, ErrUserNotFound)

	code, err := totp.GenerateCodeCustom(secret, now, otpValidateOpts)
	require.NoError(t, err)
	_, token, err := svc.LoginOTP(ctx, "alice@example.com", code)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	// A code from the previous window is rejected outright.
	stale, err := totp.GenerateCodeCustom(secret, now.Add(-30*time.Second), otpValidateOpts)
	require.NoError(t, err)
	if stale != code {
		_, _, err = svc.LoginOTP(ctx, "alice@example.com", stale)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}
