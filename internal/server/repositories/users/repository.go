package users

import (
	"context"

	"github.com/pitchside/pitchside/internal/server/models"
)

// Repository is the persistence collaborator for user records. Lookups skip
// soft-deleted rows and return common.ErrNotFound when no row matches.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	// Update persists only the given fields of the user record, plus the
	// updated_at stamp.
	Update(ctx context.Context, user *models.User, fields []models.Field) error
}
