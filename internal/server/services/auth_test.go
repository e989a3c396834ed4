package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pitchside/pitchside/internal/common"
	"github.com/pitchside/pitchside/internal/cryptox"
	"github.com/pitchside/pitchside/internal/logging"
	"github.com/pitchside/pitchside/internal/server/account"
	"github.com/pitchside/pitchside/internal/server/auth"
	"github.com/pitchside/pitchside/internal/server/models"
	"github.com/pitchside/pitchside/internal/server/oauth"
)

// --- fakes ---

// fakeUsersRepo keeps user snapshots in memory keyed by email. Update
// replaces the stored snapshot wholesale and records which fields the
// service asked to persist.
type fakeUsersRepo struct {
	byEmail    map[string]models.User
	lastFields []models.Field

	createErr error
	updateErr error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byEmail: map[string]models.User{}}
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := u
	return &copied, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			copied := u
			return &copied, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byEmail[u.Email]; ok {
		return common.ErrEmailTaken
	}
	f.byEmail[u.Email] = *u
	return nil
}

func (f *fakeUsersRepo) Update(ctx context.Context, u *models.User, fields []models.Field) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.lastFields = fields
	f.byEmail[u.Email] = *u
	return nil
}

type fakeVerifier struct {
	info *oauth.TokenInfo
	err  error
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) (*oauth.TokenInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

// --- helpers ---

var testJWTSecret = []byte("test-secret")

func newAuthService(t *testing.T, repo *fakeUsersRepo, verifier oauth.Verifier) *AuthService {
	t.Helper()
	cipher, err := cryptox.New("test-passphrase")
	if err != nil {
		t.Fatalf("cryptox.New error: %v", err)
	}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewAuthService(repo, cipher, verifier, testJWTSecret, 7*24*time.Hour, logger)
}

func seedUser(t *testing.T, s *AuthService, repo *fakeUsersRepo, email, username, password string) models.User {
	t.Helper()
	hash, err := s.cipher.Encrypt(password)
	if err != nil {
		t.Fatalf("Encrypt error: %v", err)
	}
	u := account.New(email, username, hash, nil, nil, time.Now())
	repo.byEmail[email] = u
	return u
}

func parseSession(t *testing.T, token string) auth.Credentials {
	t.Helper()
	creds, err := auth.GetCredentialsFromToken(token, testJWTSecret)
	if err != nil {
		t.Fatalf("session token did not validate: %v", err)
	}
	return creds
}

// --- register ---

func TestRegister_Success(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, nil)

	token, err := s.Register(context.Background(), RegisterParams{
		Email: "a@x.com", Username: "alice", Password: "pw123456",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	creds := parseSession(t, token)
	if creds.Email != "a@x.com" || creds.Username != "alice" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}

	stored, ok := repo.byEmail["a@x.com"]
	if !ok {
		t.Fatal("user was not persisted")
	}
	if stored.LastLogin == nil {
		t.Error("registration should stamp last_login")
	}
	if stored.IsVerified {
		t.Error("new account must start unverified")
	}
	if stored.Role != account.RoleUser {
		t.Errorf("role = %q, want %q", stored.Role, account.RoleUser)
	}
}

func TestRegister_EmailTaken(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, nil)
	seedUser(t, s, repo, "a@x.com", "alice", "pw")

	_, err := s.Register(context.Background(), RegisterParams{
		Email: "a@x.com", Username: "alice2", Password: "pw",
	})
	if !errors.Is(err, common.ErrEmailTaken) {
		t.Fatalf("expected common.ErrEmailTaken, got %v", err)
	}
}

// --- login ---

func TestLogin_Success(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, nil)
	seedUser(t, s, repo, "a@x.com", "alice", "pw123456")

	token, err := s.Login(context.Background(), "a@x.com", "pw123456")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	creds := parseSession(t, token)
	if creds.Email != "a@x.com" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}

	stored := repo.byEmail["a@x.com"]
	if stored.LastLogin == nil {
		t.Error("login should stamp last_login")
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, nil)

	_, err := s.Login(context.Background(), "missing@x.com", "pw")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected common.ErrNotFound, got %v", err)
	}
}

func TestLogin_WrongPasswordPersistsFailure(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, nil)
	seedUser(t, s, repo, "a@x.com", "alice", "pw123456")

	_, err := s.Login(context.Background(), "a@x.com", "nope")
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("expected common.ErrInvalidCredentials, got %v", err)
	}

	stored := repo.byEmail["a@x.com"]
	if stored.FailedLoginAttempts != 1 {
		t.Errorf("failed attempts = %d, want 1", stored.FailedLoginAttempts)
	}
	if len(repo.lastFields) == 0 {
		t.Error("failed login must be persisted")
	}
}

func TestLogin_FifthFailureLocks(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, nil)
	seedUser(t, s, repo, "a@x.com", "alice", "pw123456")

	for i := 0; i < account.MaxFailedLoginAttempts-1; i++ {
		_, err := s.Login(context.Background(), "a@x.com", "nope")
		if !errors.Is(err, common.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected common.ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	// the attempt that reaches the threshold reports the lock, not 401
	_, err := s.Login(context.Background(), "a@x.com", "nope")
	if !errors.Is(err, common.ErrAccountLocked) {
		t.Fatalf("expected common.ErrAccountLocked on 5th failure, got %v", err)
	}

	// and so does a subsequent attempt with the right password
	_, err = s.Login(context.Background(), "a@x.com", "pw123456")
	if !errors.Is(err, common.ErrAccountLocked) {
		t.Fatalf("expected common.ErrAccountLocked while locked, got %v", err)
	}
}

func TestLogin_ElapsedLockoutAdmits(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, nil)
	seedUser(t, s, repo, "a@x.com", "alice", "pw123456")

	u := repo.byEmail["a@x.com"]
	past := time.Now().Add(-time.Minute)
	u.IsLocked = true
	u.FailedLoginAttempts = account.MaxFailedLoginAttempts
	u.LockoutUntil = &past
	repo.byEmail["a@x.com"] = u

	token, err := s.Login(context.Background(), "a@x.com", "pw123456")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	parseSession(t, token)

	stored := repo.byEmail["a@x.com"]
	if stored.FailedLoginAttempts != 0 || stored.IsLocked || stored.LockoutUntil != nil {
		t.Errorf("successful login must clear lock state, got %+v", stored)
	}
}

// --- google login ---

func TestGoogleLogin_CreatesAccount(t *testing.T) {
	repo := newFakeUsersRepo()
	verifier := &fakeVerifier{info: &oauth.TokenInfo{
		Email: "g@x.com", EmailVerified: "true",
		Name: "Googler", GivenName: "Goo", FamilyName: "Gler",
	}}
	s := newAuthService(t, repo, verifier)

	token, created, err := s.GoogleLogin(context.Background(), "ext-token")
	if err != nil {
		t.Fatalf("GoogleLogin error: %v", err)
	}
	if !created {
		t.Fatal("expected created=true for a first-time email")
	}
	parseSession(t, token)

	stored, ok := repo.byEmail["g@x.com"]
	if !ok {
		t.Fatal("user was not persisted")
	}
	if stored.Username != "Googler" {
		t.Errorf("username = %q, want %q", stored.Username, "Googler")
	}
	if stored.FirstName == nil || *stored.FirstName != "Goo" {
		t.Errorf("first name not carried over: %v", stored.FirstName)
	}
}

func TestGoogleLogin_UsernameFallsBackToUUID(t *testing.T) {
	repo := newFakeUsersRepo()
	verifier := &fakeVerifier{info: &oauth.TokenInfo{Email: "g@x.com", EmailVerified: "true"}}
	s := newAuthService(t, repo, verifier)

	_, _, err := s.GoogleLogin(context.Background(), "ext-token")
	if err != nil {
		t.Fatalf("GoogleLogin error: %v", err)
	}
	if repo.byEmail["g@x.com"].Username == "" {
		t.Error("username must be generated when the provider supplies none")
	}
}

func TestGoogleLogin_ExistingAccount(t *testing.T) {
	repo := newFakeUsersRepo()
	verifier := &fakeVerifier{info: &oauth.TokenInfo{Email: "a@x.com", EmailVerified: "true"}}
	s := newAuthService(t, repo, verifier)
	seedUser(t, s, repo, "a@x.com", "alice", "pw123456")

	token, created, err := s.GoogleLogin(context.Background(), "ext-token")
	if err != nil {
		t.Fatalf("GoogleLogin error: %v", err)
	}
	if created {
		t.Fatal("expected created=false for an existing email")
	}
	parseSession(t, token)

	if repo.byEmail["a@x.com"].LastLogin == nil {
		t.Error("google login should stamp last_login")
	}
}

func TestGoogleLogin_InvalidExternalToken(t *testing.T) {
	repo := newFakeUsersRepo()
	verifier := &fakeVerifier{err: common.ErrInvalidToken}
	s := newAuthService(t, repo, verifier)

	_, _, err := s.GoogleLogin(context.Background(), "garbage")
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestGoogleLogin_LockedAccount(t *testing.T) {
	repo := newFakeUsersRepo()
	verifier := &fakeVerifier{info: &oauth.TokenInfo{Email: "a@x.com", EmailVerified: "true"}}
	s := newAuthService(t, repo, verifier)
	seedUser(t, s, repo, "a@x.com", "alice", "pw123456")

	u := repo.byEmail["a@x.com"]
	until := time.Now().Add(10 * time.Minute)
	u.IsLocked = true
	u.LockoutUntil = &until
	repo.byEmail["a@x.com"] = u

	_, _, err := s.GoogleLogin(context.Background(), "ext-token")
	if !errors.Is(err, common.ErrAccountLocked) {
		t.Fatalf("expected common.ErrAccountLocked, got %v", err)
	}
}

// --- forgot / reset password ---

func TestForgotPassword_IssuesToken(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, nil)
	seedUser(t, s, repo, "a@x.com", "alice", "pw123456")

	token, err := s.ForgotPassword(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("ForgotPassword error: %v", err)
	}
	if token == "" {
		t.Fatal("expected a reset token")
	}

	stored := repo.byEmail["a@x.com"]
	if stored.PasswordResetToken == nil || *stored.PasswordResetToken != token {
		t.Error("reset token was not persisted")
	}
	if stored.PasswordResetExpires == nil {
		t.Error("reset token must carry an expiry")
	}
}

func TestResetPassword_Success(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, nil)
	seedUser(t, s, repo, "a@x.com", "alice", "oldpw")

	reset, err := s.ForgotPassword(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("ForgotPassword error: %v", err)
	}

	token, err := s.ResetPassword(context.Background(), "a@x.com", reset, "newpw")
	if err != nil {
		t.Fatalf("ResetPassword error: %v", err)
	}
	parseSession(t, token)

	if _, err := s.Login(context.Background(), "a@x.com", "newpw"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}

	stored := repo.byEmail["a@x.com"]
	if stored.PasswordResetToken != nil || stored.PasswordResetExpires != nil {
		t.Error("reset token must be single-use")
	}
}

func TestResetPassword_ExpiredTokenLeavesPassword(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, nil)
	seedUser(t, s, repo, "a@x.com", "alice", "oldpw")

	reset, err := s.ForgotPassword(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("ForgotPassword error: %v", err)
	}

	u := repo.byEmail["a@x.com"]
	past := time.Now().Add(-time.Minute)
	u.PasswordResetExpires = &past
	repo.byEmail["a@x.com"] = u

	_, err = s.ResetPassword(context.Background(), "a@x.com", reset, "newpw")
	if !errors.Is(err, common.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected common.ErrInvalidOrExpiredToken, got %v", err)
	}

	if _, err := s.Login(context.Background(), "a@x.com", "oldpw"); err != nil {
		t.Errorf("old password should still work, got %v", err)
	}
}

func TestResetPassword_WrongToken(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, nil)
	seedUser(t, s, repo, "a@x.com", "alice", "oldpw")

	if _, err := s.ForgotPassword(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("ForgotPassword error: %v", err)
	}

	_, err := s.ResetPassword(context.Background(), "a@x.com", "not-the-token", "newpw")
	if !errors.Is(err, common.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected common.ErrInvalidOrExpiredToken, got %v", err)
	}
}

// --- verify email ---

func TestVerifyEmail_Success(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, nil)
	seedUser(t, s, repo, "a@x.com", "alice", "pw123456")

	verification, err := s.RequestEmailVerification(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("RequestEmailVerification error: %v", err)
	}

	token, err := s.VerifyEmail(context.Background(), "a@x.com", verification)
	if err != nil {
		t.Fatalf("VerifyEmail error: %v", err)
	}
	parseSession(t, token)

	stored := repo.byEmail["a@x.com"]
	if !stored.IsVerified {
		t.Error("account must be marked verified")
	}
	if stored.VerificationToken != nil || stored.VerificationTokenExpires != nil {
		t.Error("verification token must be single-use")
	}

	_, err = s.VerifyEmail(context.Background(), "a@x.com", verification)
	if !errors.Is(err, common.ErrAlreadyVerified) {
		t.Fatalf("expected common.ErrAlreadyVerified on repeat, got %v", err)
	}
}

func TestVerifyEmail_WrongTokenKeepsStoredToken(t *testing.T) {
	repo := newFakeUsersRepo()
	s := newAuthService(t, repo, nil)
	seedUser(t, s, repo, "a@x.com", "alice", "pw123456")

	verification, err := s.RequestEmailVerification(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("RequestEmailVerification error: %v", err)
	}

	_, err = s.VerifyEmail(context.Background(), "a@x.com", "wrong")
	if !errors.Is(err, common.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected common.ErrInvalidOrExpiredToken, got %v", err)
	}

	// the stored token survives a failed attempt
	if _, err := s.VerifyEmail(context.Background(), "a@x.com", verification); err != nil {
		t.Errorf("correct token should still redeem, got %v", err)
	}
}
