// Package account implements the security state machine over a user record:
// failed-login lockout bookkeeping and the lifecycle of time-boxed
// single-use tokens (email verification, password reset).
//
// Every function takes a value snapshot of the record plus an explicit
// "now" and returns a new snapshot together with the list of fields it
// touched. Nothing here performs I/O; the caller persists the result.
package account

import (
	"crypto/subtle"
	"time"

	"github.com/google/uuid"

	"github.com/pitchside/pitchside/internal/common"
	"github.com/pitchside/pitchside/internal/server/models"
)

const (
	// MaxFailedLoginAttempts is the failure count at which the account locks.
	MaxFailedLoginAttempts = 5

	// LockoutDuration is how long a lock stays effective once set.
	LockoutDuration = 30 * time.Minute

	// VerificationTokenTTL is the lifetime of an email verification token.
	VerificationTokenTTL = 24 * time.Hour

	// ResetTokenTTL is the lifetime of a password reset token.
	ResetTokenTTL = time.Hour

	RoleUser  = "user"
	RoleAdmin = "admin"
)

// New builds a fresh user record with default security state: zero failed
// attempts, unlocked, unverified, active. The password hash must already be
// produced by the cipher.
func New(email, username, passwordHash string, firstName, lastName *string, now time.Time) models.User {
	return models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		IsActive:     true,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// RecordLogin registers a successful login: stamps last_login and clears the
// failed-attempt counter and any lock, regardless of prior state.
func RecordLogin(u models.User, now time.Time) (models.User, []models.Field) {
	u.LastLogin = &now
	u.FailedLoginAttempts = 0
	u.IsLocked = false
	u.LockoutUntil = nil
	return u, []models.Field{
		models.FieldLastLogin,
		models.FieldFailedLoginAttempts,
		models.FieldIsLocked,
		models.FieldLockoutUntil,
	}
}

// RecordFailedLogin increments the failed-attempt counter. When the new
// count reaches the threshold the account is locked until now plus
// LockoutDuration. The counter keeps growing past the threshold; only the
// lockout timestamp gates access.
func RecordFailedLogin(u models.User, now time.Time) (models.User, []models.Field) {
	u.FailedLoginAttempts++
	fields := []models.Field{models.FieldFailedLoginAttempts}

	if u.FailedLoginAttempts >= MaxFailedLoginAttempts {
		until := now.Add(LockoutDuration)
		u.IsLocked = true
		u.LockoutUntil = &until
		fields = append(fields, models.FieldIsLocked, models.FieldLockoutUntil)
	}
	return u, fields
}

// Locked reports whether the account is effectively locked at the given
// time. The check is time-based, not flag-based: an elapsed lockout is not
// locked even if IsLocked was never explicitly cleared.
func Locked(u models.User, now time.Time) bool {
	return u.LockoutUntil != nil && now.Before(*u.LockoutUntil)
}

// IssueVerificationToken generates a fresh opaque verification token valid
// for VerificationTokenTTL and stores it on the snapshot. Any previously
// issued verification token is replaced.
func IssueVerificationToken(u models.User, now time.Time) (models.User, string, []models.Field) {
	token := uuid.NewString()
	expires := now.Add(VerificationTokenTTL)
	u.VerificationToken = &token
	u.VerificationTokenExpires = &expires
	return u, token, []models.Field{
		models.FieldVerificationToken,
		models.FieldVerificationTokenExpires,
	}
}

// IssueResetToken generates a fresh opaque password reset token valid for
// ResetTokenTTL and stores it on the snapshot.
func IssueResetToken(u models.User, now time.Time) (models.User, string, []models.Field) {
	token := uuid.NewString()
	expires := now.Add(ResetTokenTTL)
	u.PasswordResetToken = &token
	u.PasswordResetExpires = &expires
	return u, token, []models.Field{
		models.FieldPasswordResetToken,
		models.FieldPasswordResetExpires,
	}
}

// RedeemVerification consumes the stored verification token. On a match
// before expiry it marks the account verified and clears the token pair in
// the same transition. On mismatch or expiry the snapshot is returned
// unchanged: a failed attempt never clears the stored token.
func RedeemVerification(u models.User, token string, now time.Time) (models.User, []models.Field, bool) {
	if !tokenMatches(u.VerificationToken, u.VerificationTokenExpires, token, now) {
		return u, nil, false
	}
	u.IsVerified = true
	u.VerificationToken = nil
	u.VerificationTokenExpires = nil
	return u, []models.Field{
		models.FieldIsVerified,
		models.FieldVerificationToken,
		models.FieldVerificationTokenExpires,
	}, true
}

// RedeemReset consumes the stored password reset token, replacing the
// stored password hash with newPasswordHash and clearing the token pair.
// On mismatch or expiry it returns ErrInvalidOrExpiredToken and leaves the
// snapshot unchanged.
func RedeemReset(u models.User, token, newPasswordHash string, now time.Time) (models.User, []models.Field, error) {
	if !tokenMatches(u.PasswordResetToken, u.PasswordResetExpires, token, now) {
		return u, nil, common.ErrInvalidOrExpiredToken
	}
	u.PasswordHash = newPasswordHash
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
	return u, []models.Field{
		models.FieldPasswordHash,
		models.FieldPasswordResetToken,
		models.FieldPasswordResetExpires,
	}, nil
}

// SoftDelete marks the account deleted and inactive as a pair.
func SoftDelete(u models.User, now time.Time) (models.User, []models.Field) {
	u.DeletedAt = &now
	u.IsActive = false
	return u, []models.Field{models.FieldDeletedAt, models.FieldIsActive}
}

// Restore reverses a soft delete.
func Restore(u models.User) (models.User, []models.Field) {
	u.DeletedAt = nil
	u.IsActive = true
	return u, []models.Field{models.FieldDeletedAt, models.FieldIsActive}
}

// Promote sets the admin role.
func Promote(u models.User) (models.User, []models.Field) {
	u.Role = RoleAdmin
	return u, []models.Field{models.FieldRole}
}

// Demote sets the regular user role.
func Demote(u models.User) (models.User, []models.Field) {
	u.Role = RoleUser
	return u, []models.Field{models.FieldRole}
}

// tokenMatches checks that a token is stored, unexpired, and equal to the
// candidate. The comparison is constant-time.
func tokenMatches(stored *string, expires *time.Time, candidate string, now time.Time) bool {
	if stored == nil || expires == nil || !now.Before(*expires) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(candidate)) == 1
}
