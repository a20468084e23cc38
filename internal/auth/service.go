package auth

import (
	"context"
	"fmt"
	"log"
	"time"

	"campauth/internal/config"
	"campauth/internal/mail"
	"campauth/internal/metrics"
	"campauth/internal/models"
	"campauth/internal/util"
)

// resetTokenTTL bounds how long an emailed reset link stays usable.
const resetTokenTTL = 10 * time.Minute

// UserStore is the persistence surface the service needs. The MongoDB
// implementation lives in internal/store; tests use an in-memory fake.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDWithSecrets(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByEmailWithSecrets(ctx context.Context, email string) (*models.User, error)
	UpdateDetails(ctx context.Context, id, name, email string) (*models.User, error)
	SetPassword(ctx context.Context, id, hash string) error
	SetResetToken(ctx context.Context, id string, t *models.PendingToken) error
	SetConfirmToken(ctx context.Context, id string, t *models.PendingToken) error
	ConfirmEmail(ctx context.Context, id string) error
	SetOTP(ctx context.Context, id string, enabled bool, sealedSecret string) error
	FindByResetTokenHash(ctx context.Context, hash string, now time.Time) (*models.User, error)
	FindByConfirmTokenHash(ctx context.Context, hash string) (*models.User, error)
}

// Service orchestrates registration, login, the reset/confirmation flows
// and the OTP second factor.
type Service struct {
	users  UserStore
	mailer mail.Mailer
	cfg    *config.Config

	now func() time.Time
}

func NewService(users UserStore, mailer mail.Mailer, cfg *config.Config) *Service {
	return &Service{
		users:  users,
		mailer: mailer,
		cfg:    cfg,
		now:    time.Now,
	}
}

// session signs a token for the user with the configured secret and expiry.
func (s *Service) session(u *models.User) (string, error) {
	return IssueSessionToken(u.ID.Hex(), []byte(s.cfg.JWTSecret), s.cfg.JWTExpire)
}

// UserByID loads a user without secret fields; used by the session
// middleware and /auth/me.
func (s *Service) UserByID(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// RegisterInput is the payload accepted by Register.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
}

// Register creates the account, emails a confirmation link and issues a
// session. If the confirmation email cannot be sent the pending token is
// cleared and registration still succeeds; the user can confirm later via
// a fresh forgot-password cycle.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	if in.Name == "" {
		return nil, "", errValidation("please add a name")
	}
	if !util.ValidateEmail(in.Email) {
		return nil, "", errValidation("please add a valid email")
	}
	if len(in.Password) < minPasswordLength {
		return nil, "", errValidation("password must be at least 6 characters")
	}
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if !in.Role.Valid() || in.Role == models.RoleAdmin {
		return nil, "", errValidation("invalid role")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, "", fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		Role:         in.Role,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}
	metrics.RegistrationsTotal.Inc()

	if err := s.requestConfirmation(ctx, user); err != nil {
		log.Printf("confirmation email for %s failed: %v", user.Email, err)
	}

	token, err := s.session(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// requestConfirmation stores a hashed confirmation token and emails the raw
// value. On delivery failure the pending token is rolled back.
func (s *Service) requestConfirmation(ctx context.Context, user *models.User) error {
	combined, hash, err := newConfirmToken()
	if err != nil {
		return err
	}
	if err := s.users.SetConfirmToken(ctx, user.ID.Hex(), &models.PendingToken{Hash: hash}); err != nil {
		return err
	}

	confirmURL := fmt.Sprintf("%s/api/v1/auth/confirmemail?token=%s", s.cfg.BaseURL, combined)
	err = s.send(ctx, "confirm", mail.Message{
		To:      user.Email,
		Subject: "Email confirmation token",
		Body: "You are receiving this email because you need to confirm your email address. " +
			"Please make a GET request to: \n\n" + confirmURL,
	})
	if err != nil {
		if clearErr := s.users.SetConfirmToken(ctx, user.ID.Hex(), nil); clearErr != nil {
			log.Printf("failed to clear confirmation token for %s: %v", user.Email, clearErr)
		}
		return ErrEmailDelivery
	}
	return nil
}

// Login authenticates by password. Accounts with OTP enabled are redirected
// to the OTP login path before the password is even checked.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	if email == "" || password == "" {
		return nil, "", errValidation("please provide an email and password")
	}
	user, err := s.users.GetByEmailWithSecrets(ctx, email)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("password", "failure").Inc()
		return nil, "", ErrInvalidCredentials
	}
	if user.OTPEnabled {
		metrics.LoginsTotal.WithLabelValues("password", "failure").Inc()
		return nil, "", ErrOTPRequired
	}
	if !CheckPassword(user.PasswordHash, password) {
		metrics.LoginsTotal.WithLabelValues("password", "failure").Inc()
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.session(user)
	if err != nil {
		return nil, "", err
	}
	metrics.LoginsTotal.WithLabelValues("password", "success").Inc()
	return user, token, nil
}

// UpdateDetails changes the user's name and email.
func (s *Service) UpdateDetails(ctx context.Context, id, name, email string) (*models.User, error) {
	if name == "" {
		return nil, errValidation("please add a name")
	}
	if !util.ValidateEmail(email) {
		return nil, errValidation("please add a valid email")
	}
	return s.users.UpdateDetails(ctx, id, name, email)
}

// UpdatePassword verifies the current password, stores a new hash and
// issues a fresh session. Blocked while OTP is enabled; the account's
// password is managed through the forgot-password flow then.
func (s *Service) UpdatePassword(ctx context.Context, id, current, newPassword string) (string, error) {
	user, err := s.users.GetByIDWithSecrets(ctx, id)
	if err != nil {
		return "", err
	}
	if user.OTPEnabled {
		return "", ErrOTPRequired
	}
	if !CheckPassword(user.PasswordHash, current) {
		return "", ErrInvalidCredentials
	}
	if len(newPassword) < minPasswordLength {
		return "", errValidation("password must be at least 6 characters")
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	if err := s.users.SetPassword(ctx, id, hash); err != nil {
		return "", err
	}
	return s.session(user)
}

// ForgotPassword starts a reset. For OTP-enabled accounts the authenticator
// key is regenerated instead and the password left untouched; the returned
// bool reports that branch.
func (s *Service) ForgotPassword(ctx context.Context, email string) (otpKeyReset bool, err error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return false, err
	}

	if user.OTPEnabled {
		if err := s.provisionOTP(ctx, user, "CampAuth new one-time password authenticator key"); err != nil {
			return false, err
		}
		return true, nil
	}

	raw, hash, err := newOpaqueToken()
	if err != nil {
		return false, fmt.Errorf("failed to generate reset token: %w", err)
	}
	pending := &models.PendingToken{Hash: hash, ExpiresAt: s.now().Add(resetTokenTTL)}
	if err := s.users.SetResetToken(ctx, user.ID.Hex(), pending); err != nil {
		return false, err
	}

	resetURL := fmt.Sprintf("%s/api/v1/auth/resetpassword/%s", s.cfg.BaseURL, raw)
	err = s.send(ctx, "reset", mail.Message{
		To:      user.Email,
		Subject: "Password reset token",
		Body: "You are receiving this email because you (or someone else) has requested the reset " +
			"of a password. Please make a PUT request to: \n\n" + resetURL,
	})
	if err != nil {
		if clearErr := s.users.SetResetToken(ctx, user.ID.Hex(), nil); clearErr != nil {
			log.Printf("failed to clear reset token for %s: %v", user.Email, clearErr)
		}
		return false, ErrEmailDelivery
	}
	return false, nil
}

// ResetPassword consumes an emailed reset token and sets a new password.
// The token is single-use: the matching store update clears it.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) (string, error) {
	user, err := s.users.FindByResetTokenHash(ctx, HashToken(rawToken), s.now())
	if err != nil {
		return "", ErrInvalidToken
	}
	if len(newPassword) < minPasswordLength {
		return "", errValidation("password must be at least 6 characters")
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	if err := s.users.SetPassword(ctx, user.ID.Hex(), hash); err != nil {
		return "", err
	}
	return s.session(user)
}

// ConfirmEmail consumes an emailed confirmation token.
func (s *Service) ConfirmEmail(ctx context.Context, combined string) (string, error) {
	if combined == "" {
		return "", ErrInvalidToken
	}
	raw := splitConfirmToken(combined)
	user, err := s.users.FindByConfirmTokenHash(ctx, HashToken(raw))
	if err != nil {
		return "", ErrInvalidToken
	}
	if err := s.users.ConfirmEmail(ctx, user.ID.Hex()); err != nil {
		return "", err
	}
	return s.session(user)
}

// ToggleOTP flips the second factor. Enabling provisions a fresh
// authenticator key and emails it; either direction requires the caller to
// log in again afterwards (the transport clears the session cookie).
func (s *Service) ToggleOTP(ctx context.Context, id string) (enabled bool, err error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !user.IsEmailConfirmed {
		return false, ErrEmailNotConfirmed
	}

	if user.OTPEnabled {
		if err := s.users.SetOTP(ctx, id, false, ""); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := s.provisionOTP(ctx, user, "CampAuth one-time password activated"); err != nil {
		return false, err
	}
	return true, nil
}

// provisionOTP generates a 20-byte authenticator secret, seals it with the
// server key, persists it with the toggle on and emails the plaintext key.
func (s *Service) provisionOTP(ctx context.Context, user *models.User, subject string) error {
	secret, err := GenerateOTPSecret(user.Email)
	if err != nil {
		return err
	}
	sealed, err := SealSecret(s.cfg.OTPEncryptionKey, secret)
	if err != nil {
		return fmt.Errorf("error encrypting OTP secret: %w", err)
	}
	if err := s.users.SetOTP(ctx, user.ID.Hex(), true, sealed); err != nil {
		return err
	}

	err = s.send(ctx, "otp_key", mail.Message{
		To:      user.Email,
		Subject: subject,
		Body: "Here is your authenticator key: " + secret + ". On your authenticator app, " +
			"please make sure that you choose 'Time-Based' as the type of key.",
	})
	if err != nil {
		return ErrEmailDelivery
	}
	return nil
}

// LoginOTP authenticates with a time-based code. The code must fall in the
// current 30-second window; neighbouring windows are rejected.
func (s *Service) LoginOTP(ctx context.Context, email, code string) (*models.User, string, error) {
	user, err := s.users.GetByEmailWithSecrets(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if !user.OTPEnabled {
		return nil, "", ErrOTPNotEnabled
	}
	if code == "" {
		return nil, "", ErrMissingCode
	}
	secret, err := OpenSecret(s.cfg.OTPEncryptionKey, user.OTPSecret)
	if err != nil {
		return nil, "", fmt.Errorf("error decrypting OTP secret: %w", err)
	}
	valid, err := ValidateOTPCode(secret, code, s.now())
	if err != nil {
		return nil, "", fmt.Errorf("error validating OTP code: %w", err)
	}
	if !valid {
		metrics.LoginsTotal.WithLabelValues("otp", "failure").Inc()
		return nil, "", ErrInvalidToken
	}
	token, err := s.session(user)
	if err != nil {
		return nil, "", err
	}
	metrics.LoginsTotal.WithLabelValues("otp", "success").Inc()
	return user, token, nil
}

func (s *Service) send(ctx context.Context, kind string, msg mail.Message) error {
	if err := s.mailer.Send(ctx, msg); err != nil {
		metrics.EmailsSentTotal.WithLabelValues(kind, "failure").Inc()
		return err
	}
	metrics.EmailsSentTotal.WithLabelValues(kind, "success").Inc()
	return nil
}
