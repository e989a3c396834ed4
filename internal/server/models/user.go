package models

import "time"

// User is the authentication-relevant projection of a user row.
// Optional columns are pointers; a nil token always pairs with a nil expiry.
type User struct {
	ID                       string
	Email                    string
	Username                 string
	PasswordHash             string
	FirstName                *string
	LastName                 *string
	IsVerified               bool
	IsActive                 bool
	IsLocked                 bool
	FailedLoginAttempts      int
	LockoutUntil             *time.Time
	VerificationToken        *string
	VerificationTokenExpires *time.Time
	PasswordResetToken       *string
	PasswordResetExpires     *time.Time
	LastLogin                *time.Time
	CreatedAt                time.Time
	UpdatedAt                time.Time
	DeletedAt                *time.Time
	Role                     string
}

// Field identifies a user column touched by a state transition. Account
// functions return the set of touched fields alongside the new snapshot so
// the caller can persist exactly what changed.
type Field string

const (
	FieldPasswordHash             Field = "password_hash"
	FieldIsVerified               Field = "is_verified"
	FieldIsActive                 Field = "is_active"
	FieldIsLocked                 Field = "is_locked"
	FieldFailedLoginAttempts      Field = "failed_login_attempts"
	FieldLockoutUntil             Field = "lockout_until"
	FieldVerificationToken        Field = "verification_token"
	FieldVerificationTokenExpires Field = "verification_token_expires"
	FieldPasswordResetToken       Field = "password_reset_token"
	FieldPasswordResetExpires     Field = "password_reset_expires"
	FieldLastLogin                Field = "last_login"
	FieldDeletedAt                Field = "deleted_at"
	FieldRole                     Field = "role"
)
