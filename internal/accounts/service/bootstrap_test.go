package service_test

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/stretchr/testify/require"
)

func TestEnsureSuperuserIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := &service.BootstrapService{
		Lifecycle: f.lifecycle,
		Email:     "admin@example.com",
		Password:  "Sup3r!secret",
	}

	require.NoError(t, b.EnsureSuperuser(ctx))
	require.NoError(t, b.EnsureSuperuser(ctx))

	n, err := f.store.Users().CountUsers(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	u, err := f.store.Users().GetUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	require.True(t, u.IsSuperuser)
	require.True(t, u.IsActive)
	require.False(t, u.IsVerified)
	require.Equal(t, "Super", u.FirstName)
	require.Equal(t, "User", u.LastName)
}

func TestEnsureSuperuserWeakPassword(t *testing.T) {
	f := newFixture(t)

	b := &service.BootstrapService{Lifecycle: f.lifecycle, Email: "admin@example.com", Password: "short"}
	require.Error(t, b.EnsureSuperuser(context.Background()))
}
