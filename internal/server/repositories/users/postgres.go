package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pitchside/pitchside/internal/common"
	"github.com/pitchside/pitchside/internal/dbx"
	"github.com/pitchside/pitchside/internal/server/models"
)

const userColumns = `id, email, username, password_hash, first_name, last_name,
	is_verified, is_active, is_locked, failed_login_attempts, lockout_until,
	verification_token, verification_token_expires,
	password_reset_token, password_reset_expires,
	last_login, created_at, updated_at, deleted_at, role`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE email = $1 AND deleted_at IS NULL
		 `
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE id = $1 AND deleted_at IS NULL
		 `
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) error {
	query :=
		`INSERT INTO users (` + userColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		 `

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash,
		user.FirstName, user.LastName,
		user.IsVerified, user.IsActive, user.IsLocked,
		user.FailedLoginAttempts, user.LockoutUntil,
		user.VerificationToken, user.VerificationTokenExpires,
		user.PasswordResetToken, user.PasswordResetExpires,
		user.LastLogin, user.CreatedAt, user.UpdatedAt, user.DeletedAt, user.Role,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return common.ErrEmailTaken
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.User, fields []models.Field) error {
	if len(fields) == 0 {
		return nil
	}

	set := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)

	for _, f := range fields {
		value, err := fieldValue(user, f)
		if err != nil {
			return err
		}
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", f, len(args)))
	}

	args = append(args, time.Now())
	set = append(set, fmt.Sprintf("updated_at = $%d", len(args)))

	args = append(args, user.ID)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.FirstName, &user.LastName,
		&user.IsVerified, &user.IsActive, &user.IsLocked,
		&user.FailedLoginAttempts, &user.LockoutUntil,
		&user.VerificationToken, &user.VerificationTokenExpires,
		&user.PasswordResetToken, &user.PasswordResetExpires,
		&user.LastLogin, &user.CreatedAt, &user.UpdatedAt, &user.DeletedAt, &user.Role,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// fieldValue resolves a changed-field name to its current value on the
// snapshot being persisted.
func fieldValue(u *models.User, f models.Field) (any, error) {
	switch f {
	case models.FieldPasswordHash:
		return u.PasswordHash, nil
	case models.FieldIsVerified:
		return u.IsVerified, nil
	case models.FieldIsActive:
		return u.IsActive, nil
	case models.FieldIsLocked:
		return u.IsLocked, nil
	case models.FieldFailedLoginAttempts:
		return u.FailedLoginAttempts, nil
	case models.FieldLockoutUntil:
		return u.LockoutUntil, nil
	case models.FieldVerificationToken:
		return u.VerificationToken, nil
	case models.FieldVerificationTokenExpires:
		return u.VerificationTokenExpires, nil
	case models.FieldPasswordResetToken:
		return u.PasswordResetToken, nil
	case models.FieldPasswordResetExpires:
		return u.PasswordResetExpires, nil
	case models.FieldLastLogin:
		return u.LastLogin, nil
	case models.FieldDeletedAt:
		return u.DeletedAt, nil
	case models.FieldRole:
		return u.Role, nil
	default:
		return nil, fmt.Errorf("unknown user field %q", f)
	}
}
