package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Repositories hang off it so transactions can hand out the
// same repositories bound to the open transaction.
type Store interface {
	Users() Users

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts u. A duplicate email fails with ErrAlreadyExists;
	// the unique index is the authority, not any earlier lookup.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateUser applies patch to one row, bumps updated_at and returns the
	// row as stored.
	UpdateUser(ctx context.Context, id string, patch domain.UserPatch) (domain.User, error)

	DeleteUser(ctx context.Context, id string) error

	// CountUsers is used by readiness checks and tests.
	CountUsers(ctx context.Context) (int64, error)
}
