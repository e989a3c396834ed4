// Package services contains the use-case orchestration layer: each method
// runs one guarded state machine over a user record fetched from the
// repository and persists the outcome.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pitchside/pitchside/internal/common"
	"github.com/pitchside/pitchside/internal/cryptox"
	"github.com/pitchside/pitchside/internal/logging"
	"github.com/pitchside/pitchside/internal/server/account"
	"github.com/pitchside/pitchside/internal/server/auth"
	"github.com/pitchside/pitchside/internal/server/models"
	"github.com/pitchside/pitchside/internal/server/oauth"
	"github.com/pitchside/pitchside/internal/server/repositories/users"
)

// googleLoginPassword is the placeholder secret stored for accounts created
// through Google login, which never supply a local password.
const googleLoginPassword = "google_login"

type AuthService struct {
	users         users.Repository
	cipher        *cryptox.Cipher
	verifier      oauth.Verifier
	jwtSecret     []byte
	tokenValidity time.Duration
	logger        logging.Logger
	now           func() time.Time
}

func NewAuthService(
	repo users.Repository,
	cipher *cryptox.Cipher,
	verifier oauth.Verifier,
	jwtSecret []byte,
	tokenValidity time.Duration,
	logger logging.Logger,
) *AuthService {
	return &AuthService{
		users:         repo,
		cipher:        cipher,
		verifier:      verifier,
		jwtSecret:     jwtSecret,
		tokenValidity: tokenValidity,
		logger:        logger,
		now:           time.Now,
	}
}

// RegisterParams carries the registration input. Names are optional.
type RegisterParams struct {
	Email     string
	Username  string
	Password  string
	FirstName *string
	LastName  *string
}

// Register creates a new account and returns a session token for it.
// Fails with common.ErrEmailTaken when the email is already registered.
func (s *AuthService) Register(ctx context.Context, p RegisterParams) (string, error) {
	_, err := s.users.GetByEmail(ctx, p.Email)
	if err == nil {
		s.logger.Warn(ctx, "email already registered", "op", "register")
		return "", common.ErrEmailTaken
	}
	if !errors.Is(err, common.ErrNotFound) {
		return "", fmt.Errorf("looking up email: %w", err)
	}

	hash, err := s.cipher.Encrypt(p.Password)
	if err != nil {
		s.logger.Error(ctx, "failed to encrypt password", "op", "register", "error", err)
		return "", fmt.Errorf("encrypting password: %w", err)
	}

	now := s.now()
	u := account.New(p.Email, p.Username, hash, p.FirstName, p.LastName, now)
	u, _ = account.RecordLogin(u, now)

	token, err := s.issueSession(ctx, u, "register")
	if err != nil {
		return "", err
	}

	if err := s.users.Create(ctx, &u); err != nil {
		if !errors.Is(err, common.ErrEmailTaken) {
			s.logger.Error(ctx, "failed to save user", "op", "register", "error", err)
		}
		return "", err
	}

	return token, nil
}

// Login authenticates an email/password pair. A wrong password records the
// failed attempt before failing with common.ErrInvalidCredentials; the
// attempt that reaches the lockout threshold fails with
// common.ErrAccountLocked instead.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	now := s.now()
	if account.Locked(*u, now) {
		s.logger.Warn(ctx, "account is locked", "op", "login", "user_id", u.ID)
		return "", common.ErrAccountLocked
	}

	ok, err := s.cipher.Verify(u.PasswordHash, password)
	if err != nil {
		s.logger.Error(ctx, "failed to verify stored password", "op", "login", "user_id", u.ID, "error", err)
		return "", fmt.Errorf("verifying password: %w", err)
	}

	if !ok {
		updated, fields := account.RecordFailedLogin(*u, now)
		if err := s.users.Update(ctx, &updated, fields); err != nil {
			s.logger.Error(ctx, "failed to record failed login", "op", "login", "user_id", u.ID, "error", err)
			return "", fmt.Errorf("recording failed login: %w", err)
		}
		if account.Locked(updated, now) {
			s.logger.Warn(ctx, "account locked after repeated failures", "op", "login",
				"user_id", u.ID, "failed_attempts", updated.FailedLoginAttempts)
			return "", common.ErrAccountLocked
		}
		s.logger.Warn(ctx, "invalid email or password", "op", "login",
			"user_id", u.ID, "failed_attempts", updated.FailedLoginAttempts)
		return "", common.ErrInvalidCredentials
	}

	updated, fields := account.RecordLogin(*u, now)
	token, err := s.issueSession(ctx, updated, "login")
	if err != nil {
		return "", err
	}
	if err := s.users.Update(ctx, &updated, fields); err != nil {
		s.logger.Error(ctx, "failed to record login", "op", "login", "user_id", u.ID, "error", err)
		return "", fmt.Errorf("recording login: %w", err)
	}

	return token, nil
}

// GoogleLogin authenticates through an externally verified Google identity
// token. A first-time email creates a fresh account (created=true); an
// existing account follows the lock-checked login path without a password
// check, since authenticity came from the provider.
func (s *AuthService) GoogleLogin(ctx context.Context, googleToken string) (token string, created bool, err error) {
	info, err := s.verifier.Verify(ctx, googleToken)
	if err != nil {
		s.logger.Warn(ctx, "failed to verify external token", "op", "google_login", "error", err)
		return "", false, common.ErrInvalidToken
	}

	u, err := s.users.GetByEmail(ctx, info.Email)
	if errors.Is(err, common.ErrNotFound) {
		return s.registerFromGoogle(ctx, info)
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up email: %w", err)
	}

	now := s.now()
	if account.Locked(*u, now) {
		s.logger.Warn(ctx, "account is locked", "op", "google_login", "user_id", u.ID)
		return "", false, common.ErrAccountLocked
	}

	updated, fields := account.RecordLogin(*u, now)
	token, err = s.issueSession(ctx, updated, "google_login")
	if err != nil {
		return "", false, err
	}
	if err := s.users.Update(ctx, &updated, fields); err != nil {
		s.logger.Error(ctx, "failed to record login", "op", "google_login", "user_id", u.ID, "error", err)
		return "", false, fmt.Errorf("recording login: %w", err)
	}

	return token, false, nil
}

func (s *AuthService) registerFromGoogle(ctx context.Context, info *oauth.TokenInfo) (string, bool, error) {
	username := info.Name
	if username == "" {
		username = uuid.NewString()
	}

	hash, err := s.cipher.Encrypt(googleLoginPassword)
	if err != nil {
		s.logger.Error(ctx, "failed to encrypt placeholder password", "op", "google_login", "error", err)
		return "", false, fmt.Errorf("encrypting password: %w", err)
	}

	now := s.now()
	u := account.New(info.Email, username, hash, optional(info.GivenName), optional(info.FamilyName), now)
	u, _ = account.RecordLogin(u, now)

	token, err := s.issueSession(ctx, u, "google_login")
	if err != nil {
		return "", false, err
	}

	if err := s.users.Create(ctx, &u); err != nil {
		s.logger.Error(ctx, "failed to save user", "op", "google_login", "error", err)
		return "", false, err
	}

	return token, true, nil
}

// ForgotPassword issues a time-boxed single-use reset token and persists it
// on the account. Delivery of the token to the user is the caller's concern.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	now := s.now()
	if account.Locked(*u, now) {
		s.logger.Warn(ctx, "account is locked", "op", "forgot_password", "user_id", u.ID)
		return "", common.ErrAccountLocked
	}

	updated, token, fields := account.IssueResetToken(*u, now)
	if err := s.users.Update(ctx, &updated, fields); err != nil {
		s.logger.Error(ctx, "failed to save reset token", "op", "forgot_password", "user_id", u.ID, "error", err)
		return "", fmt.Errorf("saving reset token: %w", err)
	}

	return token, nil
}

// ResetPassword redeems a reset token, replacing the stored password, and
// returns a fresh session token. A mismatched or expired token fails with
// common.ErrInvalidOrExpiredToken and changes nothing.
func (s *AuthService) ResetPassword(ctx context.Context, email, resetToken, newPassword string) (string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	now := s.now()
	if account.Locked(*u, now) {
		s.logger.Warn(ctx, "account is locked", "op", "reset_password", "user_id", u.ID)
		return "", common.ErrAccountLocked
	}

	hash, err := s.cipher.Encrypt(newPassword)
	if err != nil {
		s.logger.Error(ctx, "failed to encrypt password", "op", "reset_password", "user_id", u.ID, "error", err)
		return "", fmt.Errorf("encrypting password: %w", err)
	}

	updated, fields, err := account.RedeemReset(*u, resetToken, hash, now)
	if err != nil {
		s.logger.Warn(ctx, "failed to reset password", "op", "reset_password", "user_id", u.ID, "error", err)
		return "", err
	}

	token, err := s.issueSession(ctx, updated, "reset_password")
	if err != nil {
		return "", err
	}
	if err := s.users.Update(ctx, &updated, fields); err != nil {
		s.logger.Error(ctx, "failed to save password", "op", "reset_password", "user_id", u.ID, "error", err)
		return "", fmt.Errorf("saving password: %w", err)
	}

	return token, nil
}

// VerifyEmail redeems a verification token, marking the account verified,
// and returns a session token.
func (s *AuthService) VerifyEmail(ctx context.Context, email, verificationToken string) (string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	if u.IsVerified {
		s.logger.Warn(ctx, "email already verified", "op", "verify_email", "user_id", u.ID)
		return "", common.ErrAlreadyVerified
	}

	updated, fields, ok := account.RedeemVerification(*u, verificationToken, s.now())
	if !ok {
		s.logger.Warn(ctx, "invalid or expired verification token", "op", "verify_email", "user_id", u.ID)
		return "", common.ErrInvalidOrExpiredToken
	}

	token, err := s.issueSession(ctx, updated, "verify_email")
	if err != nil {
		return "", err
	}
	if err := s.users.Update(ctx, &updated, fields); err != nil {
		s.logger.Error(ctx, "failed to save verification", "op", "verify_email", "user_id", u.ID, "error", err)
		return "", fmt.Errorf("saving verification: %w", err)
	}

	return token, nil
}

// RequestEmailVerification issues a fresh verification token for an
// unverified account and persists it. Like the reset flow, delivering the
// token is the caller's concern.
func (s *AuthService) RequestEmailVerification(ctx context.Context, email string) (string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	if u.IsVerified {
		return "", common.ErrAlreadyVerified
	}

	updated, token, fields := account.IssueVerificationToken(*u, s.now())
	if err := s.users.Update(ctx, &updated, fields); err != nil {
		s.logger.Error(ctx, "failed to save verification token", "op", "request_email_verification", "user_id", u.ID, "error", err)
		return "", fmt.Errorf("saving verification token: %w", err)
	}

	return token, nil
}

func (s *AuthService) issueSession(ctx context.Context, u models.User, op string) (string, error) {
	token, err := auth.GenerateToken(auth.Credentials{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
	}, s.jwtSecret, s.tokenValidity)
	if err != nil {
		s.logger.Error(ctx, "failed to generate session token", "op", op, "user_id", u.ID, "error", err)
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return token, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
