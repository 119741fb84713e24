//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/internal/accounts/store/drivers/postgres"
	"github.com/aussiebroadwan/accounts/pkg/idx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "accounts",
				"POSTGRES_PASSWORD": "accounts",
				"POSTGRES_DB":       "accounts",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://accounts:accounts@%s:%s/accounts?sslmode=disable", host, port.Port())
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	s, err := postgres.NewStore(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(ctx))

	u := domain.User{
		ID:             idx.New().String(),
		Email:          "jane@example.com",
		HashedPassword: "hash",
		FirstName:      "Jane",
		LastName:       "Doe",
		IsActive:       true,
	}
	require.NoError(t, s.Users().CreateUser(ctx, u))

	dup := u
	dup.ID = idx.New().String()
	dup.Email = "JANE@example.com"
	require.ErrorIs(t, s.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)

	got, err := s.Users().GetUserByEmail(ctx, "Jane@Example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	now := time.Now().UTC().Truncate(time.Microsecond)
	got, err = s.Users().UpdateUser(ctx, u.ID, domain.UserPatch{
		OTPEnabled:   domain.Ptr(true),
		OTPEnabledAt: &now,
	})
	require.NoError(t, err)
	require.True(t, got.OTPEnabled)
	require.NotNil(t, got.OTPEnabledAt)
	require.True(t, now.Equal(*got.OTPEnabledAt))

	got, err = s.Users().UpdateUser(ctx, u.ID, domain.UserPatch{ClearOTPEnabledAt: true})
	require.NoError(t, err)
	require.Nil(t, got.OTPEnabledAt)

	_, err = s.Users().GetUserByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}
