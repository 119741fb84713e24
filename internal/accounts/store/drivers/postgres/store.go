package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/store/drivers/sqlstore"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

var Dialect = sqlstore.Dialect{
	Name:              "postgres",
	Placeholder:       sqlstore.DollarPlaceholder,
	EmailMatch:        "lower(email) = lower(?)",
	IsUniqueViolation: isUniqueViolation,
}

// ConnectTimeout bounds how long NewStore waits for the server to accept
// connections.
var ConnectTimeout = 30 * time.Second

// NewStore opens a lib/pq pool and retries the first ping with exponential
// backoff, so the service can start alongside its database container.
func NewStore(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := pingWithRetry(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	return sqlstore.New(db, Dialect, applyMigrations), nil
}

func pingWithRetry(ctx context.Context, db *sql.DB) error {
	log := slogx.FromContext(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = ConnectTimeout

	return backoff.RetryNotify(
		func() error { return db.PingContext(ctx) },
		backoff.WithContext(b, ctx),
		func(err error, wait time.Duration) {
			log.Warn("postgres not ready, retrying", slog.Any("error", err), slog.Duration("wait", wait))
		},
	)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
