// Package sqlstore implements store.Store over database/sql. The sqlite and
// postgres drivers differ only in their Dialect and migrations.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/store"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Dialect struct {
	Name string

	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string

	// EmailMatch is a predicate on the email column taking one parameter,
	// written with "?" and rebound like every other query.
	EmailMatch string

	// IsUniqueViolation recognises the driver error for a unique index hit.
	IsUniqueViolation func(error) bool
}

// QuestionPlaceholder is the sqlite style.
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder is the postgres style.
func DollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

// Rebind rewrites "?" placeholders in query for the dialect.
func (d Dialect) Rebind(query string) string {
	if d.Placeholder == nil {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store is a store.Store backed by a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	migrate func(*sql.DB) error
	now     func() time.Time
}

// New wraps db. migrate applies the driver's embedded migrations.
func New(db *sql.DB, dialect Dialect, migrate func(*sql.DB) error) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		migrate: migrate,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// DB exposes the pool for driver-specific setup and tests.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Users() store.Users {
	return &usersRepo{db: s.db, d: s.dialect, now: s.now}
}

func (s *Store) ApplyMigrations() error {
	if s.migrate == nil {
		return nil
	}
	if err := s.migrate(s.db); err != nil {
		return fmt.Errorf("%s: apply migrations: %w", s.dialect.Name, err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txStore{tx: tx, d: s.dialect, now: s.now}, nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type txStore struct {
	tx  *sql.Tx
	d   Dialect
	now func() time.Time
}

func (t *txStore) Users() store.Users {
	return &usersRepo{db: t.tx, d: t.d, now: t.now}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Nothing to close; the outer pool stays open.
func (t *txStore) Close() error { return nil }

func (t *txStore) Ping(context.Context) error { return nil }

// Migrations are applied before any transaction is started.
func (t *txStore) ApplyMigrations() error { return nil }

func (t *txStore) Tx(context.Context) (store.Tx, error) {
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(context.Context, func(store.Tx) error) error {
	return sql.ErrTxDone
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
