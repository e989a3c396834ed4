package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pitchside/pitchside/internal/common"
	"github.com/pitchside/pitchside/internal/server/models"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func userRows(u *models.User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "username", "password_hash", "first_name", "last_name",
		"is_verified", "is_active", "is_locked", "failed_login_attempts", "lockout_until",
		"verification_token", "verification_token_expires",
		"password_reset_token", "password_reset_expires",
		"last_login", "created_at", "updated_at", "deleted_at", "role",
	}).AddRow(
		u.ID, u.Email, u.Username, u.PasswordHash, u.FirstName, u.LastName,
		u.IsVerified, u.IsActive, u.IsLocked, u.FailedLoginAttempts, u.LockoutUntil,
		u.VerificationToken, u.VerificationTokenExpires,
		u.PasswordResetToken, u.PasswordResetExpires,
		u.LastLogin, u.CreatedAt, u.UpdatedAt, u.DeletedAt, u.Role,
	)
}

func TestGetByEmail_Found(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresRepository(db)

	now := time.Now()
	want := &models.User{
		ID: "id-1", Email: "a@x.com", Username: "alice", PasswordHash: "secret",
		IsActive: true, Role: "user", CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectQuery(`(?s)SELECT .+ FROM users\s+WHERE email = \$1 AND deleted_at IS NULL`).
		WithArgs("a@x.com").
		WillReturnRows(userRows(want))

	got, err := repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if got.ID != want.ID || got.Email != want.Email || got.Username != want.Username {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByEmail_NotFound(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectQuery(`(?s)SELECT .+ FROM users`).
		WithArgs("missing@x.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "missing@x.com")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected common.ErrNotFound, got %v", err)
	}
}

func TestCreate_OK(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresRepository(db)

	now := time.Now()
	u := &models.User{
		ID: "id-1", Email: "a@x.com", Username: "alice", PasswordHash: "secret",
		IsActive: true, Role: "user", CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_UniqueViolation(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	err := repo.Create(context.Background(), &models.User{ID: "id-1"})
	if !errors.Is(err, common.ErrEmailTaken) {
		t.Fatalf("expected common.ErrEmailTaken, got %v", err)
	}
}

func TestUpdate_BuildsSetClauseFromFields(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresRepository(db)

	until := time.Now().Add(30 * time.Minute)
	u := &models.User{ID: "id-1", FailedLoginAttempts: 5, IsLocked: true, LockoutUntil: &until}

	query := regexp.QuoteMeta(
		"UPDATE users SET failed_login_attempts = $1, is_locked = $2, lockout_until = $3, updated_at = $4 WHERE id = $5",
	)
	mock.ExpectExec(query).
		WithArgs(5, true, until, sqlmock.AnyArg(), "id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	fields := []models.Field{
		models.FieldFailedLoginAttempts,
		models.FieldIsLocked,
		models.FieldLockoutUntil,
	}
	if err := repo.Update(context.Background(), u, fields); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdate_NoFieldsIsNoop(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresRepository(db)

	if err := repo.Update(context.Background(), &models.User{ID: "id-1"}, nil); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdate_MissingRow(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec(`UPDATE users SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.User{ID: "gone"}, []models.Field{models.FieldRole})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected common.ErrNotFound, got %v", err)
	}
}

func TestUpdate_UnknownField(t *testing.T) {
	db, _ := newSQLMockDB(t)
	repo := NewPostgresRepository(db)

	err := repo.Update(context.Background(), &models.User{ID: "id-1"}, []models.Field{"nope"})
	if err == nil {
		t.Fatalf("expected error for unknown field")
	}
}
