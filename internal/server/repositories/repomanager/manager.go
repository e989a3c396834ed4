// Package repomanager wires the database connection, migrations, and the
// repositories built on top of it.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/pitchside/pitchside/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to the underlying
// database handle.
type RepositoryManager interface {
	Conn() *sql.DB
	Users() users.Repository
	RunMigrations(ctx context.Context) error
	Close() error
}
